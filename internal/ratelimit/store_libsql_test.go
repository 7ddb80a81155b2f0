//go:build cgo

package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibSQLStore_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLibSQLStore(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	windows, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, windows)

	start := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.Save(ctx, map[string]Window{
		"a": {Model: "a", Start: start, TokensUsed: 1},
		"b": {Model: "b", Start: start, TokensUsed: 2},
	}))
	require.NoError(t, s.Save(ctx, map[string]Window{
		"b": {Model: "b", Start: start, TokensUsed: 7},
	}))

	windows, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 7, windows["b"].TokensUsed)
	assert.Equal(t, start.Unix(), windows["b"].Start.Unix())
}

func TestLibSQLStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "tpm.db")

	s, err := OpenStore(ctx, StoreConfig{Backend: BackendLibSQL, LibSQLPath: path})
	require.NoError(t, err)

	clock := newFakeClock()
	l := New(s, Config{TPMLimit: 1000, Window: time.Minute, MaxSleep: time.Minute},
		WithClock(clock.Now), WithSleeper(clock.Sleep))
	l.AwaitBudget(ctx, 250, "gpt-4o")
	require.NoError(t, s.Close())

	reopened, err := OpenLibSQLStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	windows, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, windows["gpt-4o"].TokensUsed)
}

func TestBuildLibsqlDSN(t *testing.T) {
	_, err := buildLibsqlDSN("  ")
	assert.Error(t, err)

	dsn, err := buildLibsqlDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = buildLibsqlDSN("libsql://db.example.turso.io")
	require.NoError(t, err)
	assert.Equal(t, "libsql://db.example.turso.io", dsn)

	path := filepath.Join(t.TempDir(), "x", "tpm.db")
	dsn, err = buildLibsqlDSN(path)
	require.NoError(t, err)
	assert.Equal(t, "file:"+path, dsn)
}
