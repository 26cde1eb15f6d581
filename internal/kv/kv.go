// Package kv is the key-value persistence layer holding the recency list,
// the cycle cursor and the user settings. Every value is stored as a JSON
// document under its key.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Store is an asynchronous-style key-value store. Implementations are safe
// for concurrent use.
type Store interface {
	// Get returns the raw JSON for each requested key that exists. Absent
	// keys are omitted from the result.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set writes every entry of values, overwriting existing keys.
	Set(ctx context.Context, values map[string]any) error
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the file path for the file and sqlite backends.
	Path string
	// RedisAddr, RedisDB and RedisKey configure the redis backend.
	RedisAddr string
	RedisDB   int
	RedisKey  string
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFileStore(cfg.Path)
	case BackendSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
}

func encodeValues(values map[string]any) (map[string][]byte, error) {
	out := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("kv: marshal %q: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}
