package kernel

import (
	"context"
	"fmt"
	"maps"

	"github.com/zjrosen/tapkit/internal/helper"
	"github.com/zjrosen/tapkit/internal/hook"
	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/paths"
	"github.com/zjrosen/tapkit/internal/schema"
)

// SchemaProvider returns the schema a plugin's options must satisfy.
type SchemaProvider func() *schema.Schema

// Capability names reachable through Context.Lookup.
const (
	CapAppPath       = "appPath"
	CapPlugins       = "plugins"
	CapPlatforms     = "platforms"
	CapPaths         = "paths"
	CapHelper        = "helper"
	CapRunOpts       = "runOpts"
	CapInitialConfig = "initialConfig"
	CapApplyPlugins  = "applyPlugins"
)

// Context is the capability surface handed to one preset or plugin. Every
// registration made through it is owned by that preset or plugin.
type Context struct {
	k      *Kernel
	id     string
	path   string
	kind   Kind
	local  map[string]any
	schema SchemaProvider
}

func (k *Kernel) newContext(d *Descriptor) *Context {
	return &Context{
		k:     k,
		id:    d.ID,
		path:  d.Path,
		kind:  d.Kind,
		local: make(map[string]any),
	}
}

// ID returns the owner's identity.
func (c *Context) ID() string { return c.id }

// Path returns where the owner was loaded from.
func (c *Context) Path() string { return c.path }

// Kind reports whether the owner is a preset or a plugin.
func (c *Context) Kind() Kind { return c.kind }

func (c *Context) AppPath() string { return c.k.appPath }

func (c *Context) Paths() paths.Paths { return c.k.paths }

func (c *Context) Helper() *helper.Helper { return c.k.helper }

func (c *Context) RunOpts() RunOpts { return c.k.runOpts }

// Plugins returns a read-only view of the registered presets and plugins.
func (c *Context) Plugins() PluginView { return PluginView{r: c.k.plugins} }

// Platforms returns a copy of the registered platforms by name.
func (c *Context) Platforms() map[string]Platform {
	out := make(map[string]Platform, len(c.k.platforms))
	for name, p := range c.k.platforms {
		out[name] = p.Platform
	}
	return out
}

// Commands returns the commands registered so far.
func (c *Context) Commands() []Command { return c.k.Commands() }

// InitialConfig returns a shallow copy of the project configuration.
func (c *Context) InitialConfig() map[string]any {
	return maps.Clone(c.k.initialConfig)
}

// ApplyPlugins invokes the extension point name.
func (c *Context) ApplyPlugins(ctx context.Context, name string, opts any, initial any) (any, error) {
	return c.k.Invoke(ctx, name, opts, initial)
}

// RegisterHook taps an extension point.
func (c *Context) RegisterHook(h hook.Hook) error {
	if err := c.k.hooks.Add(hook.Registration{Hook: h, Plugin: c.id}); err != nil {
		return fmt.Errorf("plugin %q: %w", c.id, err)
	}
	return nil
}

// RegisterCommand adds a command. A name already taken returns
// ErrDuplicateCommand and leaves the first command in place.
func (c *Context) RegisterCommand(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("plugin %q: %w: empty name", c.id, ErrInvalidCommand)
	}
	if existing, ok := c.k.commands[cmd.Name]; ok {
		log.Warn(log.CatPlugin, "Command already registered", "command", cmd.Name, "owner", existing.Plugin, "plugin", c.id)
		return fmt.Errorf("command %q (registered by %s): %w", cmd.Name, existing.Plugin, ErrDuplicateCommand)
	}

	c.k.commands[cmd.Name] = registeredCommand{Command: cmd, Plugin: c.id}
	c.k.commandOrder = append(c.k.commandOrder, cmd.Name)
	log.Debug(log.CatPlugin, "Registered command", "command", cmd.Name, "plugin", c.id)

	if cmd.Fn != nil {
		return c.RegisterHook(hook.Hook{Name: cmd.Name, Fn: cmd.Fn})
	}
	return nil
}

// RegisterPlatform adds a platform. A name already taken returns
// ErrDuplicatePlatform and leaves the first platform in place.
func (c *Context) RegisterPlatform(p Platform) error {
	if p.Name == "" {
		return fmt.Errorf("plugin %q: %w: empty platform name", c.id, ErrInvalidCommand)
	}
	if existing, ok := c.k.platforms[p.Name]; ok {
		log.Warn(log.CatPlugin, "Platform already registered", "platform", p.Name, "owner", existing.Plugin, "plugin", c.id)
		return fmt.Errorf("platform %q (registered by %s): %w", p.Name, existing.Plugin, ErrDuplicatePlatform)
	}

	c.k.platforms[p.Name] = registeredPlatform{Platform: p, Plugin: c.id}
	c.k.platformOrder = append(c.k.platformOrder, p.Name)
	log.Debug(log.CatPlugin, "Registered platform", "platform", p.Name, "plugin", c.id)

	if p.Fn != nil {
		return c.RegisterHook(hook.Hook{Name: p.Name, Fn: p.Fn})
	}
	return nil
}

// RegisterMethod adds callbacks to the slot name. Without callbacks it only
// declares the slot: an undeclared slot gets one callback that taps the
// extension point of the same name with the handler passed as first
// argument, and a declared slot is left as it is.
func (c *Context) RegisterMethod(name string, fns ...MethodFunc) {
	if len(fns) == 0 {
		if _, ok := c.k.methods.get(name); ok {
			log.Debug(log.CatPlugin, "Method already declared", "method", name, "plugin", c.id)
			return
		}
		fns = []MethodFunc{tapMethod(name)}
	}
	for _, fn := range fns {
		c.k.methods.add(name, fn)
	}
	log.Debug(log.CatPlugin, "Registered method", "method", name, "plugin", c.id, "callbacks", len(fns))
}

// Method returns a callable for the slot name. Calling it runs every
// callback in order with the same arguments and returns nil, unless the slot
// holds exactly one callback, whose result is then returned.
func (c *Context) Method(name string) (func(args ...any) any, bool) {
	if _, ok := c.k.methods.get(name); !ok {
		return nil, false
	}
	return func(args ...any) any {
		fns, _ := c.k.methods.get(name)
		if len(fns) == 1 {
			return fns[0](c, args...)
		}
		for _, fn := range fns {
			fn(c, args...)
		}
		return nil
	}, true
}

// OnReady taps the onReady extension point.
func (c *Context) OnReady(fn hook.Func) error {
	return c.callTap(MethodOnReady, fn)
}

// OnStart taps the onStart extension point.
func (c *Context) OnStart(fn hook.Func) error {
	return c.callTap(MethodOnStart, fn)
}

func (c *Context) callTap(slot string, fn hook.Func) error {
	call, ok := c.Method(slot)
	if !ok {
		return fmt.Errorf("method %q not declared", slot)
	}
	if err, ok := call(fn).(error); ok {
		return err
	}
	return nil
}

// Set stores local state on the context.
func (c *Context) Set(key string, value any) {
	c.local[key] = value
}

// Local returns local state without consulting slots or capabilities.
func (c *Context) Local(key string) (any, bool) {
	v, ok := c.local[key]
	return v, ok
}

// SetOptionsSchema declares the schema the owner's options are checked
// against once it has been applied.
func (c *Context) SetOptionsSchema(provider SchemaProvider) {
	c.schema = provider
}

// Lookup resolves name through method slots, then kernel capabilities, then
// local state.
func (c *Context) Lookup(name string) (any, bool) {
	if call, ok := c.Method(name); ok {
		return call, true
	}
	if v, ok := c.capability(name); ok {
		return v, true
	}
	return c.Local(name)
}

func (c *Context) capability(name string) (any, bool) {
	switch name {
	case CapAppPath:
		return c.AppPath(), true
	case CapPlugins:
		return c.Plugins(), true
	case CapPlatforms:
		return c.Platforms(), true
	case CapPaths:
		return c.Paths(), true
	case CapHelper:
		return c.Helper(), true
	case CapRunOpts:
		return c.RunOpts(), true
	case CapInitialConfig:
		return c.InitialConfig(), true
	case CapApplyPlugins:
		return c.ApplyPlugins, true
	default:
		return nil, false
	}
}

// PluginView is a read-only view of a kernel's presets and plugins.
type PluginView struct {
	r *Registry
}

// Get returns a copy of the descriptor registered under id.
func (v PluginView) Get(id string) (Descriptor, bool) {
	d, ok := v.r.Get(id)
	if !ok {
		return Descriptor{}, false
	}
	return copyDescriptor(d), true
}

// Has reports whether id is registered.
func (v PluginView) Has(id string) bool {
	_, ok := v.r.Get(id)
	return ok
}

// List returns copies of all descriptors in registration order.
func (v PluginView) List() []Descriptor {
	list := v.r.List()
	out := make([]Descriptor, len(list))
	for i, d := range list {
		out[i] = copyDescriptor(d)
	}
	return out
}

// Len returns the number of registered presets and plugins.
func (v PluginView) Len() int {
	return v.r.Len()
}

func copyDescriptor(d *Descriptor) Descriptor {
	out := *d
	out.Options = maps.Clone(d.Options)
	return out
}
