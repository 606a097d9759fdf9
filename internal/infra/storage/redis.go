package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on Redis, for hosted deployments where the
// console state should outlive a single machine.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to Redis at addr. All keys are stored under the
// given prefix so several consoles can share one instance.
func NewRedisKV(addr, prefix string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "haunt"
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func (s *RedisKV) key(k string) string { return s.prefix + ":" + k }

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read key %q: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

func (s *RedisKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	raw, err := s.client.Keys(ctx, s.key(prefix)+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(s.prefix)+1:])
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisKV) Close() error { return s.client.Close() }
