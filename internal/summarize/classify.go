package summarize

import "strings"

// Class is the recovery category of a failed attempt.
type Class int

const (
	// Fatal failures end the run.
	Fatal Class = iota
	// TooLarge failures may succeed with a smaller payload.
	TooLarge
	// RateLimited failures may succeed after backing off.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case TooLarge:
		return "too_large"
	case RateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Retryable reports whether another attempt is worthwhile.
func (c Class) Retryable() bool { return c != Fatal }

// Classifier maps a collaborator error to a Class.
type Classifier func(error) Class

// DefaultClassifier matches known phrases in the error text, ignoring case.
func DefaultClassifier(err error) Class {
	switch {
	case IsTooLarge(err):
		return TooLarge
	case IsRateLimited(err):
		return RateLimited
	default:
		return Fatal
	}
}

// IsTooLarge reports whether err says the request exceeded a size limit.
func IsTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "request too large") {
		return true
	}
	if strings.Contains(msg, "tokens per min") && strings.Contains(msg, "limit") && strings.Contains(msg, "requested") {
		return true
	}
	return strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context")
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "error code: 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit")
}
