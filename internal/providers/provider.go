package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrMissingAPIKey is returned when no credential was supplied.
var ErrMissingAPIKey = errors.New("missing API key")

// CompletionRequest is a single-prompt text completion.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is the provider abstraction: one prompt in, generated text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// New creates a provider by name for model, authenticated with apiKey.
func New(provider, model, apiKey string) (Completer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch provider {
	case "", "openai":
		return NewOpenAI(apiKey, model, os.Getenv("DIFFSUM_OPENAI_BASE_URL")), nil
	case "anthropic":
		return NewAnthropic(apiKey, model, os.Getenv("DIFFSUM_ANTHROPIC_BASE_URL")), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// APIKeyEnv returns the environment variable conventionally holding the
// provider's credential.
func APIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
