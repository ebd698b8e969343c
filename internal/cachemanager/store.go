package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/tapkit/internal/log"
)

// NoExpiration keeps an entry until it is deleted or the store is flushed.
const NoExpiration = gocache.NoExpiration

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	expiration time.Duration
	cleanup    time.Duration
}

// WithExpiration sets the default entry lifetime and the janitor interval.
func WithExpiration(expiration, cleanup time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.expiration = expiration
		c.cleanup = cleanup
	}
}

// Store is the go-cache implementation of CacheManager.
type Store[K ~string, V any] struct {
	name  string
	cache *gocache.Cache
}

var _ CacheManager[string, int] = (*Store[string, int])(nil)

// NewStore creates a store. name labels its log lines.
func NewStore[K ~string, V any](name string, opts ...StoreOption) *Store[K, V] {
	cfg := storeConfig{expiration: DefaultExpiration, cleanup: DefaultCleanupInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[K, V]{
		name:  name,
		cache: gocache.New(cfg.expiration, cfg.cleanup),
	}
}

// Get returns the value under key. An entry of the wrong type counts as
// missing.
func (s *Store[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, ok := s.cache.Get(string(key))
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		log.Error(log.CatCache, "Unexpected cached type", "cache", s.name, "key", key)
		return zero, false
	}
	return v, true
}

// Set stores value under key for ttl.
func (s *Store[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	s.cache.Set(string(key), value, ttl)
}

// Delete removes keys; absent keys are ignored.
func (s *Store[K, V]) Delete(_ context.Context, keys ...K) {
	for _, key := range keys {
		s.cache.Delete(string(key))
	}
}

// Flush removes every entry.
func (s *Store[K, V]) Flush(_ context.Context) {
	s.cache.Flush()
}

// Len returns the number of live entries.
func (s *Store[K, V]) Len() int {
	return s.cache.ItemCount()
}
