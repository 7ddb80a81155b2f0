package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding one field per model.
const DefaultRedisKey = "diffsum:tpm"

// RedisStore shares windows between machines through a Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// redisPingTimeout bounds the reachability check in Ping.
const redisPingTimeout = 3 * time.Second

// DialRedisStore creates a store for addr. The connection is lazy; use Ping
// to check reachability.
func DialRedisStore(addr, key string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisStore(client, key)
}

// Ping reports whether the server answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", s.client.Options().Addr, err)
	}
	return nil
}

// Load reads every model field from the hash. Fields that fail to decode are
// skipped.
func (s *RedisStore) Load(ctx context.Context) (map[string]Window, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.key, err)
	}
	windows := make(map[string]Window, len(vals))
	for model, raw := range vals {
		var r record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		windows[model] = fromRecord(model, r)
	}
	return windows, nil
}

// Save replaces the hash contents in a single transaction.
func (s *RedisStore) Save(ctx context.Context, windows map[string]Window) error {
	fields := make(map[string]any, len(windows))
	for model, w := range windows {
		data, err := json.Marshal(toRecord(w))
		if err != nil {
			return fmt.Errorf("marshaling window %s: %w", model, err)
		}
		fields[model] = string(data)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, s.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
