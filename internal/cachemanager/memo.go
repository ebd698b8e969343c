package cachemanager

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zjrosen/tapkit/internal/log"
)

// Memo computes values on a miss and keeps the successful ones. Failed
// computations are returned to the caller and never stored.
type Memo[K ~string, V any] struct {
	store  CacheManager[K, V]
	bypass bool

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

// NewMemo memoizes into store. With bypass set every Load computes and
// nothing is stored.
func NewMemo[K ~string, V any](store CacheManager[K, V], bypass bool) *Memo[K, V] {
	return &Memo[K, V]{store: store, bypass: bypass}
}

// Load returns the value stored under key, or computes it with fn.
func (m *Memo[K, V]) Load(ctx context.Context, key K, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	if !m.bypass {
		if v, ok := m.store.Get(ctx, key); ok {
			m.hits.Add(1)
			return v, nil
		}
	}
	m.misses.Add(1)

	v, err := fn(ctx)
	if err != nil {
		m.failures.Add(1)
		log.Debug(log.CatCache, "Memo computation failed", "key", key, "error", err)
		return v, err
	}
	if !m.bypass {
		m.store.Set(ctx, key, v, ttl)
	}
	return v, nil
}

// Forget drops the values stored under keys.
func (m *Memo[K, V]) Forget(ctx context.Context, keys ...K) {
	if m.bypass {
		return
	}
	m.store.Delete(ctx, keys...)
}

// Stats returns the lookup counters.
func (m *Memo[K, V]) Stats() Stats {
	return Stats{
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Failures: m.failures.Load(),
	}
}
