package ratelimit

import (
	"context"
	"math"
	"time"
)

// Window is the token accounting interval for a single model.
type Window struct {
	Model      string
	Start      time.Time
	TokensUsed int
}

// Config holds the limiter's budget. It is immutable for the life of a process.
type Config struct {
	TPMLimit int
	Reserve  int
	Window   time.Duration
	MaxSleep time.Duration
}

// DefaultConfig returns the budget used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TPMLimit: 30000,
		Reserve:  2000,
		Window:   60 * time.Second,
		MaxSleep: 90 * time.Second,
	}
}

// Store persists windows keyed by model. Implementations are shared across
// processes without locking; concurrent writers may overwrite each other.
type Store interface {
	// Load returns all persisted windows. A store that has never been
	// written returns an empty map and no error.
	Load(ctx context.Context) (map[string]Window, error)
	// Save replaces the persisted windows with the given map.
	Save(ctx context.Context, windows map[string]Window) error
}

// Backend is a Store that holds resources which must be released.
type Backend interface {
	Store
	Close() error
}

// record is the persisted shape of a window, shared by every backend.
type record struct {
	WindowStart float64 `json:"window_start"`
	Tokens      int     `json:"tokens"`
}

func toRecord(w Window) record {
	return record{
		WindowStart: epochSeconds(w.Start),
		Tokens:      w.TokensUsed,
	}
}

func fromRecord(model string, r record) Window {
	tokens := r.Tokens
	if tokens < 0 {
		tokens = 0
	}
	return Window{
		Model:      model,
		Start:      fromEpochSeconds(r.WindowStart),
		TokensUsed: tokens,
	}
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(s float64) time.Time {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return time.Unix(0, 0)
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
