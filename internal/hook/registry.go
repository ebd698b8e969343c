package hook

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/tapkit/internal/cachemanager"
	"github.com/zjrosen/tapkit/internal/log"
)

// Registry stores hook registrations per name and computes their execution
// order on demand. Registrations are never removed.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string][]Registration
	names []string
	seq   int

	order *cachemanager.Memo[string, []Registration]
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	cacheOrder bool
}

// WithOrderCache memoizes computed orderings until the next Add on the same
// name.
func WithOrderCache(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.cacheOrder = enabled
	}
}

// NewRegistry creates an empty hook registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := cachemanager.NewStore[string, []Registration]("hook-order",
		cachemanager.WithExpiration(cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval))
	return &Registry{
		hooks: make(map[string][]Registration),
		order: cachemanager.NewMemo[string, []Registration](store, !cfg.cacheOrder),
	}
}

// Add appends a registration under its name. The aggregation kind is derived
// from the name here and stored with the registration.
func (r *Registry) Add(reg Registration) error {
	if reg.Name == "" || reg.Plugin == "" || reg.Fn == nil {
		return fmt.Errorf("%w: name=%q plugin=%q", ErrInvalidRegistration, reg.Name, reg.Plugin)
	}
	reg.Kind = Classify(reg.Name)
	reg.Before = slices.Clone(reg.Before)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	reg.seq = r.seq
	if _, ok := r.hooks[reg.Name]; !ok {
		r.names = append(r.names, reg.Name)
	}
	r.hooks[reg.Name] = append(r.hooks[reg.Name], reg)
	r.order.Forget(context.Background(), reg.Name)

	log.Debug(log.CatHook, "hook registered",
		"name", reg.Name,
		"plugin", reg.Plugin,
		"kind", reg.Kind,
		"stage", reg.Stage,
		"before", reg.Before)
	return nil
}

// Ordered returns the registrations for name in execution order. A cycle in
// before-constraints yields a *CycleError. Unknown names yield an empty list.
func (r *Registry) Ordered(name string) ([]Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered, err := r.order.Load(context.Background(), name, cachemanager.NoExpiration,
		func(context.Context) ([]Registration, error) {
			regs := r.hooks[name]
			if len(regs) == 0 {
				return nil, nil
			}
			return schedule(name, regs)
		})
	if err != nil {
		return nil, err
	}
	return slices.Clone(ordered), nil
}

// OrderStats reports how often orderings were served from the memo.
func (r *Registry) OrderStats() cachemanager.Stats {
	return r.order.Stats()
}

// Count returns the number of registrations for name.
func (r *Registry) Count(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[name])
}

// Names returns every hook name in first-registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// All returns the registrations of name in insertion order.
func (r *Registry) All(name string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.hooks[name])
}
