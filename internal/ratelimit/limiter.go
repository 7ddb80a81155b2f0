package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Limiter blocks callers until a request fits the tokens-per-window budget of
// its model. It is advisory: state problems never fail the caller.
type Limiter struct {
	store  Store
	cfg    Config
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	logger *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper overrides how the limiter waits.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithLogger sets the logger used for waits and swallowed state errors.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Limiter over store.
func New(store Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		sleep:  SleepContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AwaitBudget charges estimated tokens plus the reserve to model's window,
// sleeping first when the charge would overflow the budget.
//
// After a sleep the window is restarted unconditionally, even if the sleep
// was clamped short of the window's end. A single request larger than the
// whole budget therefore waits at most MaxSleep once and is then admitted.
func (l *Limiter) AwaitBudget(ctx context.Context, estimated int, model string) {
	if l == nil || l.store == nil {
		return
	}

	need := estimated + l.cfg.Reserve

	windows, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Debug("rate limit state unreadable, starting fresh", zap.Error(err))
		windows = nil
	}
	if windows == nil {
		windows = make(map[string]Window)
	}

	now := l.now()
	w, ok := windows[model]
	if !ok {
		w = Window{Model: model, Start: now}
	}
	w.Model = model
	if w.TokensUsed < 0 {
		w.TokensUsed = 0
	}

	if now.Sub(w.Start) >= l.cfg.Window {
		w.Start = now
		w.TokensUsed = 0
	}

	if w.TokensUsed+need > l.cfg.TPMLimit {
		wait := clampDuration(l.cfg.Window-now.Sub(w.Start), 0, l.cfg.MaxSleep)
		if wait > 0 {
			l.logger.Info("token budget exhausted, waiting for window",
				zap.String("model", model),
				zap.Int("tokens_used", w.TokensUsed),
				zap.Int("need", need),
				zap.Int("tpm_limit", l.cfg.TPMLimit),
				zap.Duration("wait", wait))
			l.sleep(ctx, wait)
		}
		w.Start = l.now()
		w.TokensUsed = 0
	}

	w.TokensUsed += need
	windows[model] = w

	if err := l.store.Save(ctx, windows); err != nil {
		l.logger.Debug("rate limit state not persisted", zap.Error(err))
	}
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
