package kv

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisKey = "tabcycle:storage"

// RedisStore keeps every key as a field of one Redis hash.
type RedisStore struct {
	rdb  goredis.Cmdable
	key  string
	stop func() error
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, addr string, db int, hashKey string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("kv redis store: empty address")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv redis store: ping %s: %w", addr, err)
	}
	s := newRedisStore(client, hashKey)
	s.stop = client.Close
	return s, nil
}

func newRedisStore(rdb goredis.Cmdable, hashKey string) *RedisStore {
	if hashKey == "" {
		hashKey = defaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: hashKey}
}

func (s *RedisStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.key, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("kv redis store: hmget: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = json.RawMessage(str)
	}
	return out, nil
}

func (s *RedisStore) Set(ctx context.Context, values map[string]any) error {
	encoded, err := encodeValues(values)
	if err != nil {
		return err
	}
	if len(encoded) == 0 {
		return nil
	}
	fields := make(map[string]any, len(encoded))
	for k, v := range encoded {
		fields[k] = string(v)
	}
	if err := s.rdb.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("kv redis store: hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("kv redis store: hdel: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.stop == nil {
		return nil
	}
	return s.stop()
}
