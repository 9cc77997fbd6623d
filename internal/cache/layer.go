// Package cache is a read-through, write-invalidate cache keyed by
// (namespace, key). Backend failures degrade to misses; callers never see
// cache errors.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nezhub/backend/internal/metrics"
	"github.com/nezhub/backend/pkg/logger"
	"github.com/rs/zerolog"
)

type Namespace string

const (
	ProjectDetails   Namespace = "projectDetails"
	TrendingProjects Namespace = "trendingProjects"
	SearchBySkill    Namespace = "searchBySkill"
	SkillStats       Namespace = "skillStats"
	StatusStats      Namespace = "statusStats"
)

// DefaultTTLs are the per-namespace lifetimes used unless overridden.
var DefaultTTLs = map[Namespace]time.Duration{
	ProjectDetails:   time.Hour,
	TrendingProjects: time.Hour,
	SearchBySkill:    30 * time.Minute,
	SkillStats:       2 * time.Hour,
	StatusStats:      2 * time.Hour,
}

const defaultTimeout = 250 * time.Millisecond

// Cache is what the services depend on.
type Cache interface {
	// Get decodes the entry into dest and reports whether it was found.
	Get(ctx context.Context, ns Namespace, key string, dest interface{}) bool
	Put(ctx context.Context, ns Namespace, key string, value interface{})
	Evict(ctx context.Context, ns Namespace, key string)
	EvictAll(ctx context.Context, ns Namespace)
}

type Options struct {
	KeyPrefix string
	// Timeout bounds each backend call.
	Timeout time.Duration
	// TTLs overrides DefaultTTLs by namespace name.
	TTLs map[string]time.Duration
}

// Layer implements Cache over a Backend with JSON encoding.
type Layer struct {
	backend Backend
	prefix  string
	timeout time.Duration
	ttls    map[Namespace]time.Duration
	log     zerolog.Logger
}

func NewLayer(backend Backend, opts Options) *Layer {
	ttls := make(map[Namespace]time.Duration, len(DefaultTTLs))
	for ns, ttl := range DefaultTTLs {
		ttls[ns] = ttl
	}
	for name, ttl := range opts.TTLs {
		ttls[Namespace(name)] = ttl
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Layer{
		backend: backend,
		prefix:  opts.KeyPrefix,
		timeout: timeout,
		ttls:    ttls,
		log:     logger.Component("cache"),
	}
}

// TTL returns the lifetime of entries in ns.
func (l *Layer) TTL(ns Namespace) time.Duration {
	return l.ttls[ns]
}

func (l *Layer) Get(ctx context.Context, ns Namespace, key string, dest interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	data, err := l.backend.Get(ctx, l.key(ns, key))
	if errors.Is(err, ErrMiss) {
		metrics.CacheRequests.WithLabelValues(string(ns), "miss").Inc()
		return false
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues(string(ns), "error").Inc()
		l.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache get failed")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		metrics.CacheRequests.WithLabelValues(string(ns), "error").Inc()
		l.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache entry undecodable")
		return false
	}

	metrics.CacheRequests.WithLabelValues(string(ns), "hit").Inc()
	return true
}

func (l *Layer) Put(ctx context.Context, ns Namespace, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		l.log.Warn().Err(err).Str("namespace", string(ns)).Msg("cache value not encodable")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.backend.Set(ctx, l.key(ns, key), data, l.ttls[ns]); err != nil {
		l.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache put failed")
	}
}

func (l *Layer) Evict(ctx context.Context, ns Namespace, key string) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	metrics.CacheEvictions.WithLabelValues(string(ns), "key").Inc()
	if err := l.backend.Delete(ctx, l.key(ns, key)); err != nil {
		l.log.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("cache evict failed")
	}
}

func (l *Layer) EvictAll(ctx context.Context, ns Namespace) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	metrics.CacheEvictions.WithLabelValues(string(ns), "all").Inc()
	if err := l.backend.DeletePrefix(ctx, l.prefix+string(ns)+"::"); err != nil {
		l.log.Warn().Err(err).Str("namespace", string(ns)).Msg("cache evict-all failed")
	}
}

func (l *Layer) key(ns Namespace, key string) string {
	return l.prefix + string(ns) + "::" + key
}
