package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Supported state backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendLibSQL = "libsql"
)

// StoreConfig selects and locates the state backend.
type StoreConfig struct {
	Backend    string
	StateFile  string
	RedisAddr  string
	RedisKey   string
	LibSQLPath string
}

// OpenStore opens the configured backend. An empty backend means file. A
// redis backend must answer a ping before it is returned.
func OpenStore(ctx context.Context, cfg StoreConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileStore(cfg.StateFile)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis backend requires ratelimit.redis_addr")
		}
		s := DialRedisStore(cfg.RedisAddr, cfg.RedisKey)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case BackendLibSQL:
		return OpenLibSQLStore(ctx, cfg.LibSQLPath)
	default:
		return nil, fmt.Errorf("unknown rate limit backend: %s", cfg.Backend)
	}
}

// Snapshot returns the persisted windows sorted by model.
func Snapshot(ctx context.Context, store Store) ([]Window, error) {
	windows, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Window, 0, len(windows))
	for _, w := range windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// Reset deletes the windows for the given models, or every window when none
// are named. It returns the number of windows removed.
func Reset(ctx context.Context, store Store, models ...string) (int, error) {
	windows, err := store.Load(ctx)
	if err != nil {
		// Corrupt state is exactly what a reset is for.
		windows = map[string]Window{}
	}

	removed := 0
	if len(models) == 0 {
		removed = len(windows)
		windows = map[string]Window{}
	} else {
		for _, m := range models {
			if _, ok := windows[m]; ok {
				delete(windows, m)
				removed++
			}
		}
	}

	if err := store.Save(ctx, windows); err != nil {
		return 0, err
	}
	return removed, nil
}
