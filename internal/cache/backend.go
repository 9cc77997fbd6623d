package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nezhub/backend/internal/config"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend stores opaque byte values with a TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// NewBackend builds the backend selected by cfg.Cache.Backend.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "redis":
		if !cfg.Redis.Enabled {
			return nil, fmt.Errorf("cache backend redis requires redis.enabled")
		}
		backend, err := NewRedisBackend(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return backend, nil
	case "none":
		return NoopBackend{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// NoopBackend never stores anything.
type NoopBackend struct{}

func (NoopBackend) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (NoopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopBackend) Delete(context.Context, string) error { return nil }

func (NoopBackend) DeletePrefix(context.Context, string) error { return nil }

func (NoopBackend) Close() error { return nil }
