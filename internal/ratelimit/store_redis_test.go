package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisTestStore returns a store on a throwaway key, or skips when no server
// is configured.
func redisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("DIFFSUM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DIFFSUM_TEST_REDIS_ADDR not set")
	}
	s := DialRedisStore(addr, "diffsum:test:"+uuid.NewString())
	t.Cleanup(func() {
		_ = s.client.Del(context.Background(), s.key).Err()
		_ = s.Close()
	})
	return s
}

func TestRedisStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := redisTestStore(t)
	require.NoError(t, s.Ping(ctx))

	windows, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, windows)

	start := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.Save(ctx, map[string]Window{
		"gpt-4o": {Model: "gpt-4o", Start: start, TokensUsed: 99},
	}))

	windows, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99, windows["gpt-4o"].TokensUsed)
	assert.True(t, start.Equal(windows["gpt-4o"].Start))

	require.NoError(t, s.Save(ctx, map[string]Window{}))
	windows, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, windows, "save replaces the whole hash")
}

func TestRedisStore_SkipsUndecodableFields(t *testing.T) {
	ctx := context.Background()
	s := redisTestStore(t)

	require.NoError(t, s.client.HSet(ctx, s.key, "broken", "{nope", "ok", `{"window_start":1,"tokens":5}`).Err())

	windows, err := s.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, windows, "broken")
	assert.Equal(t, 5, windows["ok"].TokensUsed)
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	s := DialRedisStore("127.0.0.1:1", "")
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Load(ctx)
	assert.Error(t, err)
	assert.ErrorContains(t, s.Ping(ctx), "redis ping 127.0.0.1:1")

	clock := newFakeClock()
	l := New(s, DefaultConfig(), WithClock(clock.Now), WithSleeper(clock.Sleep))
	assert.NotPanics(t, func() { l.AwaitBudget(ctx, 10, "m") })
}
