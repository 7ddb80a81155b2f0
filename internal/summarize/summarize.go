package summarize

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/diffsum/internal/prompt"
	"github.com/dshills/diffsum/internal/providers"
	"github.com/dshills/diffsum/internal/ratelimit"
	"github.com/dshills/diffsum/internal/tokens"
)

// StubSummary is returned in test mode without contacting a provider.
const StubSummary = "- Summary (stubbed): changes detected and would be summarized here."

// DefaultBackoff is the pause between a retryable failure and the next attempt.
const DefaultBackoff = time.Second

// BudgetWaiter blocks until a request of the estimated size fits the budget.
type BudgetWaiter interface {
	AwaitBudget(ctx context.Context, estimated int, model string)
}

// Error is a failed run. Err is the last collaborator error.
type Error struct {
	Attempt int
	Total   int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("summarization failed on attempt %d/%d: %v", e.Attempt, e.Total, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Summarizer drives a payload through the attempt sequence until the
// collaborator succeeds or a failure cannot be recovered.
type Summarizer struct {
	Completer providers.Completer
	Limiter   BudgetWaiter
	Template  prompt.Template
	Classify  Classifier

	Model           string
	MaxOutputTokens int
	Temperature     float64
	Bounds          []int
	Backoff         time.Duration
	TestMode        bool

	// Sleep waits between attempts; nil uses ratelimit.SleepContext.
	Sleep  func(ctx context.Context, d time.Duration)
	Logger *zap.Logger
}

// Summarize returns the generated text for payload.
func (s *Summarizer) Summarize(ctx context.Context, payload string) (string, error) {
	if s.TestMode {
		return StubSummary, nil
	}
	if s.Completer == nil {
		return "", fmt.Errorf("no completer configured")
	}

	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("provider", s.Completer.Name()),
		zap.String("model", s.Model),
	)

	classify := s.Classify
	if classify == nil {
		classify = DefaultClassifier
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = ratelimit.SleepContext
	}
	tmpl := s.Template
	if tmpl.Name == "" && tmpl.Instructions == "" {
		tmpl = prompt.Summary()
	}

	attempts := PlanAttempts(payload, s.Bounds)
	total := len(attempts)

	for i, attempt := range attempts {
		n := i + 1
		text := tmpl.Render(attempt.Payload)
		est := tokens.Estimate(text)

		if s.Limiter != nil {
			s.Limiter.AwaitBudget(ctx, est, s.Model)
		}

		logger.Debug("sending attempt",
			zap.Int("attempt", n),
			zap.Int("of", total),
			zap.Int("bound", attempt.Bound),
			zap.Int("estimated_tokens", est),
		)

		start := time.Now()
		out, err := s.Completer.Complete(ctx, providers.CompletionRequest{
			Prompt:      text,
			MaxTokens:   s.MaxOutputTokens,
			Temperature: s.Temperature,
		})
		if err == nil {
			logger.Debug("attempt succeeded",
				zap.Int("attempt", n),
				zap.Duration("elapsed", time.Since(start)),
			)
			return out, nil
		}

		class := classify(err)
		if !class.Retryable() || n == total {
			logger.Debug("attempt failed",
				zap.Int("attempt", n),
				zap.String("class", class.String()),
				zap.Error(err),
			)
			return "", &Error{Attempt: n, Total: total, Err: err}
		}

		logger.Warn("attempt failed, retrying with smaller payload",
			zap.Int("attempt", n),
			zap.Int("of", total),
			zap.String("class", class.String()),
			zap.Error(err),
		)
		if s.Backoff > 0 {
			sleep(ctx, s.Backoff)
		}
	}

	// PlanAttempts always yields at least one attempt.
	return "", &Error{Attempt: total, Total: total, Err: fmt.Errorf("no attempts")}
}
