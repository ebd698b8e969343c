package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/tapkit/internal/hook"
)

// Built-in method slots every context can call.
const (
	MethodOnReady = "onReady"
	MethodOnStart = "onStart"
)

var errMethodArgument = errors.New("expected a hook handler as first argument")

// MethodFunc is a callback in a method slot. caller is the context the
// method was invoked through.
type MethodFunc func(caller *Context, args ...any) any

// methodTable maps slot names to their callbacks in registration order.
type methodTable struct {
	slots map[string][]MethodFunc
	order []string
}

func newMethodTable() *methodTable {
	return &methodTable{slots: make(map[string][]MethodFunc)}
}

func (m *methodTable) add(name string, fn MethodFunc) {
	if _, ok := m.slots[name]; !ok {
		m.order = append(m.order, name)
	}
	m.slots[name] = append(m.slots[name], fn)
}

func (m *methodTable) get(name string) ([]MethodFunc, bool) {
	fns, ok := m.slots[name]
	return fns, ok
}

func (m *methodTable) names() []string {
	return append([]string(nil), m.order...)
}

// tapMethod is the callback of a slot declared without one: it taps the
// extension point named after the slot, owned by the calling plugin.
func tapMethod(name string) MethodFunc {
	return func(caller *Context, args ...any) any {
		if len(args) == 0 {
			return fmt.Errorf("method %q: %w", name, errMethodArgument)
		}
		h, ok := asHook(name, args[0])
		if !ok {
			return fmt.Errorf("method %q: %w, got %T", name, errMethodArgument, args[0])
		}
		if err := caller.RegisterHook(h); err != nil {
			return err
		}
		return nil
	}
}

func asHook(name string, arg any) (hook.Hook, bool) {
	switch v := arg.(type) {
	case hook.Func:
		return hook.Hook{Name: name, Fn: v}, v != nil
	case func(context.Context, any, any) (any, error):
		return hook.Hook{Name: name, Fn: v}, v != nil
	case hook.Hook:
		v.Name = name
		return v, v.Fn != nil
	default:
		return hook.Hook{}, false
	}
}
