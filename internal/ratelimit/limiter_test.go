package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(store Store, cfg Config, clock *fakeClock) *Limiter {
	return New(store, cfg, WithClock(clock.Now), WithSleeper(clock.Sleep))
}

func TestAwaitBudget_SleepsWhenBudgetExceeded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 1000, Reserve: 0, Window: time.Minute, MaxSleep: 90 * time.Second}, clock)

	l.AwaitBudget(ctx, 500, "gpt-4o")
	require.Empty(t, clock.slept, "first call fits the budget")

	w, ok := store.Window("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 500, w.TokensUsed)
	start := w.Start

	clock.Advance(time.Second)
	l.AwaitBudget(ctx, 600, "gpt-4o")
	require.Len(t, clock.slept, 1, "500+600 exceeds 1000")
	assert.Equal(t, 59*time.Second, clock.slept[0])

	w, ok = store.Window("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 600, w.TokensUsed, "window restarted with only the second request")
	assert.True(t, w.Start.After(start))
	assert.Equal(t, clock.Now(), w.Start)
}

func TestAwaitBudget_ElapsedWindowResetsWithoutSleep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: time.Minute}, clock)

	l.AwaitBudget(ctx, 900, "m")
	clock.Advance(time.Minute)
	l.AwaitBudget(ctx, 900, "m")

	assert.Empty(t, clock.slept)
	w, _ := store.Window("m")
	assert.Equal(t, 900, w.TokensUsed)
	assert.Equal(t, clock.Now(), w.Start)
}

func TestAwaitBudget_AccumulatesWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 30000, Reserve: 2000, Window: time.Minute, MaxSleep: time.Minute}, clock)

	l.AwaitBudget(ctx, 100, "m")
	clock.Advance(10 * time.Second)
	l.AwaitBudget(ctx, 400, "m")

	assert.Empty(t, clock.slept)
	w, _ := store.Window("m")
	assert.Equal(t, 2100+2400, w.TokensUsed, "reserve is charged on every call")
}

func TestAwaitBudget_OversizedRequestWaitsOnceAndIsAdmitted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: 10 * time.Second}, clock)

	l.AwaitBudget(ctx, 5000, "m")

	require.Len(t, clock.slept, 1)
	assert.Equal(t, 10*time.Second, clock.slept[0], "sleep is capped at MaxSleep")
	w, _ := store.Window("m")
	assert.Equal(t, 5000, w.TokensUsed)
}

func TestAwaitBudget_ZeroMaxSleepNeverWaits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 10, Window: time.Minute, MaxSleep: 0}, clock)

	l.AwaitBudget(ctx, 50, "m")
	l.AwaitBudget(ctx, 50, "m")

	assert.Empty(t, clock.slept)
	w, _ := store.Window("m")
	assert.Equal(t, 50, w.TokensUsed)
}

func TestAwaitBudget_ModelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: time.Minute}, clock)

	l.AwaitBudget(ctx, 800, "a")
	l.AwaitBudget(ctx, 800, "b")

	assert.Empty(t, clock.slept)
	a, _ := store.Window("a")
	b, _ := store.Window("b")
	assert.Equal(t, 800, a.TokensUsed)
	assert.Equal(t, 800, b.TokensUsed)
}

func TestAwaitBudget_UnreadableStateStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.LoadErr = errors.New("disk on fire")
	clock := newFakeClock()
	l := newTestLimiter(store, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: time.Minute}, clock)

	l.AwaitBudget(ctx, 100, "m")

	assert.Empty(t, clock.slept)
	assert.Equal(t, 1, store.Saves())
}

func TestAwaitBudget_SaveFailureIsSwallowed(t *testing.T) {
	store := NewMemoryStore()
	store.SaveErr = errors.New("read-only filesystem")
	clock := newFakeClock()
	l := newTestLimiter(store, DefaultConfig(), clock)

	assert.NotPanics(t, func() { l.AwaitBudget(context.Background(), 100, "m") })
	assert.Equal(t, 0, store.Saves())
}

func TestAwaitBudget_NegativeTokensClamped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	require.NoError(t, store.Save(ctx, map[string]Window{
		"m": {Model: "m", Start: clock.Now(), TokensUsed: -500},
	}))
	l := newTestLimiter(store, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: time.Minute}, clock)

	l.AwaitBudget(ctx, 100, "m")

	w, _ := store.Window("m")
	assert.Equal(t, 100, w.TokensUsed)
}

func TestAwaitBudget_NilLimiter(t *testing.T) {
	var l *Limiter
	assert.NotPanics(t, func() { l.AwaitBudget(context.Background(), 100, "m") })
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	SleepContext(ctx, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepContext_Waits(t *testing.T) {
	start := time.Now()
	SleepContext(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	ts := time.Unix(1_712_345_678, 250_000_000)
	got := fromEpochSeconds(epochSeconds(ts))
	assert.WithinDuration(t, ts, got, time.Microsecond)
	assert.Equal(t, time.Unix(0, 0), fromEpochSeconds(-1))
}
