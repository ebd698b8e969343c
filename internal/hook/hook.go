// Package hook implements named extension points: registration, ordering and
// sequential execution of plugin handlers.
//
// Three aggregation semantics exist and are chosen by the hook name:
//
//	modify<Name>  waterfall: each handler receives the previous handler's result
//	add<Name>     collect:   handler results are appended to a collection
//	on<Name>      event:     handlers are notified with the initial value
//
// Names matching none of the prefixes (command and platform names) behave as
// events.
package hook

import (
	"context"
	"strings"
)

// Func is the handler signature shared by hooks, commands and platforms.
// opts carries invocation options, value the aggregated value so far.
type Func func(ctx context.Context, opts any, value any) (any, error)

// Kind is the aggregation semantic of a hook name.
type Kind int

const (
	KindEvent Kind = iota
	KindWaterfall
	KindCollect
)

func (k Kind) String() string {
	switch k {
	case KindWaterfall:
		return "waterfall"
	case KindCollect:
		return "collect"
	default:
		return "event"
	}
}

// Name prefixes selecting a Kind.
const (
	PrefixModify = "modify"
	PrefixAdd    = "add"
	PrefixOn     = "on"
)

// Classify returns the aggregation kind for a hook name. The modify prefix is
// checked first, so it wins over every other convention.
func Classify(name string) Kind {
	switch {
	case strings.HasPrefix(name, PrefixModify):
		return KindWaterfall
	case strings.HasPrefix(name, PrefixAdd):
		return KindCollect
	default:
		return KindEvent
	}
}

// Hook is what a plugin declares when tapping an extension point.
type Hook struct {
	Name string
	// Stage orders handlers, lower first. Defaults to 0.
	Stage int
	// Before lists plugin identities whose handlers on this name must run after
	// this one.
	Before []string
	Fn     Func
}

// Registration is a Hook bound to its owning plugin.
type Registration struct {
	Hook
	Plugin string
	Kind   Kind

	seq int
}

// Seq returns the registration's global insertion sequence number.
func (r Registration) Seq() int {
	return r.seq
}

func (r Registration) precedes(plugin string) bool {
	if plugin == r.Plugin {
		return false
	}
	for _, id := range r.Before {
		if id == plugin {
			return true
		}
	}
	return false
}
