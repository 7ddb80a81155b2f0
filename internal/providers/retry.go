package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// maxErrorBody bounds how much of a response body is kept in an APIError.
const maxErrorBody = 2048

// retryBaseDelay is the first back-off step for transient server errors.
var retryBaseDelay = time.Second

// APIError is a non-2xx response. Its message carries "error code: <status>"
// followed by the provider's body, the phrasing callers match on to spot
// oversized and rate-limited requests.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: error code: %d - %s", e.Provider, e.StatusCode, e.Body)
}

func newAPIError(provider string, status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	return &APIError{Provider: provider, StatusCode: status, Body: msg}
}

// IsAuthError checks if an error is an authentication failure.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// isTransient reports whether err is a server-side failure worth repeating
// unchanged. Rate limits and size errors are left to the caller, which may
// shrink the request.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := retryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
