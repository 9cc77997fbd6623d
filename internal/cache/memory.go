package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = 10 * time.Minute

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	cache *gocache.Cache
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		cache: gocache.New(gocache.NoExpiration, memoryCleanupInterval),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	obj, found := m.cache.Get(key)
	if !found {
		return nil, ErrMiss
	}
	return obj.([]byte), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) error {
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	m.cache.Flush()
	return nil
}
