// Package flags provides feature flag support for optional kernel behavior.
// Flags are read-only after initialization and provide safe defaults for unknown flags.
package flags

import (
	"maps"
	"sort"

	"github.com/zjrosen/tapkit/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagHookOrderCache memoizes computed hook orderings until the next registration
	// on the same hook name.
	FlagHookOrderCache = "hook-order-cache"

	// FlagScriptPlugins allows path-form presets and plugins to be loaded as
	// interpreted Go scripts.
	FlagScriptPlugins = "script-plugins"
)

// Defaults returns the flag values written to a fresh tool config.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagHookOrderCache: true,
		FlagScriptPlugins:  true,
	}
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	if flags == nil {
		flags = make(map[string]bool)
	}
	r := &Registry{flags: maps.Clone(flags)}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(flags), "enabled", r.EnabledNames())
	return r
}

// Enabled returns true if the named flag is enabled.
// Unknown flags and nil registries report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}

// EnabledNames returns the sorted names of every enabled flag.
func (r *Registry) EnabledNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, on := range r.flags {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
