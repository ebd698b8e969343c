// Package kernel orchestrates presets and plugins: it resolves them, gives
// each a scoped Context, and runs commands through the hook engine.
package kernel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/descriptor"
	"github.com/zjrosen/tapkit/internal/flags"
	"github.com/zjrosen/tapkit/internal/help"
	"github.com/zjrosen/tapkit/internal/helper"
	"github.com/zjrosen/tapkit/internal/hook"
	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/paths"
	"github.com/zjrosen/tapkit/internal/pubsub"
	"github.com/zjrosen/tapkit/internal/queue"
	"github.com/zjrosen/tapkit/internal/schema"
	"github.com/zjrosen/tapkit/internal/tracing"
)

// Extension points fired by Run.
const (
	// HookModifyRunnerOpts is a waterfall fired for platform runs. Handlers
	// get {"opts": config} as options and the previous handler's result as
	// value, starting from the config. A final map[string]any result replaces
	// the config; any other result keeps it, with changes made to the opts
	// map in place.
	HookModifyRunnerOpts = "modifyRunnerOpts"
)

// Options configures a Kernel. Only AppPath is required.
type Options struct {
	AppPath string
	// Presets and Plugins are declarations in addition to the project's own.
	// Their options are overridden by the project configuration.
	Presets []any
	Plugins []any

	Resolver     Resolver
	Sources      SourceRegistrar
	SkipSources  bool
	ConfigLoader config.Loader
	Validator    schema.Validator
	Flags        *flags.Registry
	Tracer       trace.Tracer
	// Middleware wraps hook handlers after the logging and tracing middleware.
	Middleware []hook.Middleware
	// Output receives help text. Defaults to os.Stdout.
	Output  io.Writer
	Program string
}

type registeredCommand struct {
	Command
	Plugin string
}

type registeredPlatform struct {
	Platform
	Plugin string
}

// Kernel is one orchestration: its presets, plugins, hooks, commands and
// platforms. A Kernel serves a single top-level run and is not safe for
// concurrent runs.
type Kernel struct {
	appPath       string
	paths         paths.Paths
	project       config.Project
	configLoaded  bool
	initialConfig map[string]any

	optPresets  []any
	optPlugins  []any
	resolver    Resolver
	sources     SourceRegistrar
	skipSources bool
	validator   schema.Validator
	helper      *helper.Helper
	tracer      trace.Tracer
	out         io.Writer
	program     string

	plugins *Registry
	hooks   *hook.Registry
	engine  *hook.Engine
	methods *methodTable

	commands      map[string]registeredCommand
	commandOrder  []string
	platforms     map[string]registeredPlatform
	platformOrder []string

	runOpts RunOpts
	runID   string
	phase   Phase
	loaded  bool
	events  *pubsub.Broker[PhaseEvent]
}

// New creates a kernel for opts.AppPath, loading the project configuration
// and resolving the project paths. A missing or broken project configuration
// is not an error: the kernel continues with an empty one.
func New(opts Options) (*Kernel, error) {
	if opts.AppPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine app path: %w", err)
		}
		opts.AppPath = wd
	}
	appPath, err := filepath.Abs(opts.AppPath)
	if err != nil {
		return nil, fmt.Errorf("resolve app path: %w", err)
	}

	if opts.Resolver == nil {
		opts.Resolver = NewCatalog()
	}
	if opts.ConfigLoader == nil {
		opts.ConfigLoader = config.FileLoader{}
	}
	if opts.Validator == nil {
		opts.Validator = schema.NewValidator()
	}
	if opts.Flags == nil {
		opts.Flags = flags.New(flags.Defaults())
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("tapkit")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	hooks := hook.NewRegistry(hook.WithOrderCache(opts.Flags.Enabled(flags.FlagHookOrderCache)))
	middleware := append([]hook.Middleware{
		hook.NewLoggingMiddleware(),
		tracing.NewHookMiddleware(opts.Tracer),
	}, opts.Middleware...)

	k := &Kernel{
		appPath:     appPath,
		optPresets:  opts.Presets,
		optPlugins:  opts.Plugins,
		resolver:    opts.Resolver,
		sources:     opts.Sources,
		skipSources: opts.SkipSources,
		validator:   opts.Validator,
		helper:      helper.New(),
		tracer:      opts.Tracer,
		out:         opts.Output,
		program:     opts.Program,
		plugins:     NewRegistry(),
		hooks:       hooks,
		engine:      hook.NewEngine(hooks, hook.WithTracer(opts.Tracer), hook.WithMiddleware(middleware...)),
		methods:     newMethodTable(),
		commands:    make(map[string]registeredCommand),
		platforms:   make(map[string]registeredPlatform),
		runID:       uuid.NewString(),
		events:      pubsub.NewBroker[PhaseEvent](pubsub.WithReplay(phaseHistory)),
	}

	// Built-in slots exist before any context so every plugin can call them.
	k.methods.add(MethodOnReady, tapMethod(MethodOnReady))
	k.methods.add(MethodOnStart, tapMethod(MethodOnStart))

	k.project, k.configLoaded = opts.ConfigLoader.Load(appPath)
	k.initialConfig = k.project.Values
	if k.initialConfig == nil {
		k.initialConfig = map[string]any{}
	}
	k.setPhase(PhaseConfigLoaded, "")

	configPath := ""
	if k.configLoaded {
		configPath = k.project.Path
	}
	k.paths = paths.Resolve(appPath, configPath, k.project.SourceRoot(), k.project.OutputRoot())
	k.setPhase(PhasePathsResolved, "")
	log.Debug(log.CatKernel, "Kernel created", "run_id", k.runID, "app_path", appPath, "config_loaded", k.configLoaded)

	return k, nil
}

// RunID identifies this kernel's run in logs, spans and events.
func (k *Kernel) RunID() string { return k.runID }

// AppPath returns the absolute project directory.
func (k *Kernel) AppPath() string { return k.appPath }

// Paths returns the resolved project layout.
func (k *Kernel) Paths() paths.Paths { return k.paths }

// ConfigLoaded reports whether a project configuration was found.
func (k *Kernel) ConfigLoaded() bool { return k.configLoaded }

// Phase returns the current lifecycle phase.
func (k *Kernel) Phase() Phase { return k.phase }

var _ pubsub.Subscriber[PhaseEvent] = (*Kernel)(nil)

// phaseHistory covers every phase of one run plus its failure event.
const phaseHistory = 16

// Subscribe returns a channel of phase events until ctx is cancelled. Events
// already published by this kernel are delivered first.
func (k *Kernel) Subscribe(ctx context.Context) <-chan pubsub.Event[PhaseEvent] {
	return k.events.Subscribe(ctx)
}

// Close releases event subscribers.
func (k *Kernel) Close() {
	stats := k.hooks.OrderStats()
	log.Debug(log.CatCache, "Hook order memo", "run_id", k.runID,
		"hits", stats.Hits, "misses", stats.Misses, "failures", stats.Failures)
	k.events.Close()
}

func (k *Kernel) setPhase(p Phase, command string) {
	k.phase = p
	log.Debug(log.CatKernel, "Phase changed", "run_id", k.runID, "phase", p, "command", command)
	k.events.Publish(pubsub.PhaseEvent, PhaseEvent{RunID: k.runID, Phase: p, Command: command})
}

func (k *Kernel) fail(command string, err error) error {
	log.ErrorErr(log.CatKernel, "Run failed", err, "run_id", k.runID, "phase", k.phase, "command", command)
	k.events.Publish(pubsub.FailedEvent, PhaseEvent{RunID: k.runID, Phase: k.phase, Command: command, Err: err})
	return err
}

// withRunID attaches the run ID to ctx.
func (k *Kernel) withRunID(ctx context.Context) context.Context {
	if tracing.RunIDFromContext(ctx) == "" {
		ctx = tracing.ContextWithRunID(ctx, k.runID)
	}
	return ctx
}

// Invoke runs the extension point name.
func (k *Kernel) Invoke(ctx context.Context, name string, opts any, initial any) (any, error) {
	return k.engine.Invoke(k.withRunID(ctx), name, opts, initial)
}

// Load resolves and applies all presets and plugins. Only the first call
// does any work.
func (k *Kernel) Load(ctx context.Context) error {
	if k.loaded {
		return nil
	}
	ctx, span := k.tracer.Start(k.withRunID(ctx), tracing.SpanLoad,
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, k.runID),
			attribute.String(tracing.AttrAppPath, k.appPath),
		),
	)
	defer span.End()

	if err := k.load(ctx); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	k.loaded = true
	span.SetStatus(codes.Ok, "")
	return nil
}

func (k *Kernel) load(ctx context.Context) error {
	presets, err := descriptor.Merge(k.optPresets, k.project.Presets())
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}
	plugins, err := descriptor.Merge(k.optPlugins, k.project.Plugins())
	if err != nil {
		return fmt.Errorf("read plugins: %w", err)
	}
	k.registerSources(presets, plugins)

	extra, err := k.applyPresets(ctx, presets)
	if err != nil {
		return err
	}
	k.setPhase(PhasePresetsResolved, "")

	// Preset-contributed plugins come first; configured options win.
	extra.Merge(plugins)
	if err := k.applyPlugins(ctx, extra); err != nil {
		return err
	}
	k.setPhase(PhasePluginsResolved, "")
	log.Info(log.CatKernel, "Loaded presets and plugins", "run_id", k.runID, "count", k.plugins.Len())
	return nil
}

// registerSources makes configured path identities loadable.
func (k *Kernel) registerSources(sets ...*descriptor.Set) {
	if k.skipSources || k.sources == nil {
		return
	}
	var preds []Predicate
	for _, set := range sets {
		for _, id := range set.Keys() {
			if IsPathID(id) {
				preds = append(preds, PathPredicate(k.appPath, id))
			}
		}
	}
	if len(preds) > 0 {
		k.sources.Register(preds...)
		log.Debug(log.CatKernel, "Registered source paths", "count", len(preds))
	}
}

// applyPresets drains the preset queue depth-first: presets yielded by a
// preset are applied right after it, ahead of its queued siblings. Every
// identity is applied at most once. Plugins yielded by presets are returned.
func (k *Kernel) applyPresets(ctx context.Context, presets *descriptor.Set) (*descriptor.Set, error) {
	extra := descriptor.NewSet()
	pending := queue.New[descriptor.Entry](0)
	seen := make(map[string]bool, presets.Len())

	enqueue := func(entries []descriptor.Entry) error {
		fresh := make([]descriptor.Entry, 0, len(entries))
		for _, e := range entries {
			if seen[e.ID] {
				log.Debug(log.CatPreset, "Preset already queued", "id", e.ID)
				continue
			}
			seen[e.ID] = true
			fresh = append(fresh, e)
		}
		if err := pending.PushFront(fresh...); err != nil {
			return fmt.Errorf("queue %d presets: %w", len(fresh), err)
		}
		return nil
	}
	if err := enqueue(presets.Entries()); err != nil {
		return nil, err
	}

	for {
		entry, ok := pending.Dequeue()
		if !ok {
			return extra, nil
		}
		yield, err := k.apply(ctx, entry, KindPreset)
		if err != nil {
			return nil, err
		}
		if yield == nil {
			continue
		}

		yielded, err := descriptor.Merge(yield.Presets)
		if err != nil {
			return nil, fmt.Errorf("preset %q: read yielded presets: %w", entry.ID, err)
		}
		if err := enqueue(yielded.Entries()); err != nil {
			return nil, err
		}
		yieldedPlugins, err := descriptor.Merge(yield.Plugins)
		if err != nil {
			return nil, fmt.Errorf("preset %q: read yielded plugins: %w", entry.ID, err)
		}
		extra.Merge(yieldedPlugins)
	}
}

func (k *Kernel) applyPlugins(ctx context.Context, plugins *descriptor.Set) error {
	pending := queue.New[descriptor.Entry](0)
	if err := pending.EnqueueAll(plugins.Entries()...); err != nil {
		return fmt.Errorf("queue plugins: %w", err)
	}
	for {
		entry, ok := pending.Dequeue()
		if !ok {
			return nil
		}
		if _, err := k.apply(ctx, entry, KindPlugin); err != nil {
			return err
		}
	}
}

// apply resolves, registers and applies one preset or plugin, then checks
// its options.
func (k *Kernel) apply(ctx context.Context, entry descriptor.Entry, kind Kind) (*Yield, error) {
	cat := log.CatPlugin
	if kind == KindPreset {
		cat = log.CatPreset
	}

	_, span := k.tracer.Start(ctx, tracing.SpanPrefixApply+entry.ID,
		trace.WithAttributes(
			attribute.String(tracing.AttrPluginID, entry.ID),
			attribute.String(tracing.AttrPluginKind, kind.String()),
		),
	)
	defer span.End()

	yield, err := k.applyEntry(entry, kind, cat, span)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return yield, nil
}

func (k *Kernel) applyEntry(entry descriptor.Entry, kind Kind, cat log.Category, span trace.Span) (*Yield, error) {
	if IsPathID(entry.ID) && !k.skipSources && k.sources != nil {
		k.sources.Register(PathPredicate(k.appPath, entry.ID))
	}
	mod, err := k.resolver.Resolve(k.appPath, entry.ID)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		ID:      entry.ID,
		Path:    mod.Path,
		Kind:    kind,
		Options: entry.Options,
		Apply:   mod.Apply,
	}
	if err := k.plugins.Register(d); err != nil {
		return nil, err
	}
	log.Debug(cat, "Registered "+kind.String(), "id", d.ID, "path", d.Path)

	pc := k.newContext(d)
	opts := d.Options
	if opts == nil {
		opts = map[string]any{}
	}
	var yield *Yield
	if d.Apply != nil {
		yield, err = d.Apply(pc, opts)
		if err != nil {
			return nil, fmt.Errorf("apply %s %q: %w", kind, d.ID, err)
		}
	}
	if kind == KindPreset {
		span.AddEvent(tracing.EventPresetApplied)
	} else {
		span.AddEvent(tracing.EventPluginApplied)
	}

	if err := k.checkOptions(pc, opts); err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventOptionsChecked)
	return yield, nil
}

func (k *Kernel) checkOptions(c *Context, opts map[string]any) error {
	if c.schema == nil {
		return nil
	}
	s := c.schema()
	if s == nil {
		return nil
	}
	if err := k.validator.Validate(s, opts); err != nil {
		log.Warn(log.CatPlugin, "Options rejected", "id", c.id, "error", err)
		return &InvalidOptionsError{ID: c.id, Err: err}
	}
	return nil
}

// Run executes the command name: it loads presets and plugins, fires onReady
// and onStart, then the command's own extension point.
func (k *Kernel) Run(ctx context.Context, name string, opts RunOpts) (err error) {
	ctx, span := k.tracer.Start(k.withRunID(ctx), tracing.SpanRun,
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, k.runID),
			attribute.String(tracing.AttrCommand, name),
			attribute.String(tracing.AttrPlatform, opts.Platform()),
			attribute.String(tracing.AttrAppPath, k.appPath),
		),
	)
	defer func() {
		if err != nil {
			tracing.RecordError(span, err)
			err = k.fail(name, err)
		} else {
			span.SetStatus(codes.Ok, "")
			k.setPhase(PhaseTerminal, name)
		}
		span.End()
	}()

	if opts.Options == nil {
		opts.Options = map[string]any{}
	}
	k.runOpts = opts
	log.Info(log.CatKernel, "Running command", "run_id", k.runID, "command", name, "help", opts.IsHelp)

	if err := k.Load(ctx); err != nil {
		return err
	}
	if _, ok := k.commands[name]; !ok {
		return &UnknownCommandError{Name: name}
	}

	if _, err := k.Invoke(ctx, MethodOnReady, nil, nil); err != nil {
		return err
	}
	k.setPhase(PhaseReady, name)
	if _, err := k.Invoke(ctx, MethodOnStart, nil, nil); err != nil {
		return err
	}
	k.setPhase(PhaseStarted, name)

	if opts.IsHelp {
		_, err := io.WriteString(k.out, help.Render(k.RunHelp(name)))
		return err
	}

	if platform := opts.Platform(); platform != "" {
		cfg, err := k.namedConfig(platform)
		if err != nil {
			return err
		}
		k.runOpts.Config = cfg
		modified, err := k.Invoke(ctx, HookModifyRunnerOpts, map[string]any{"opts": cfg}, cfg)
		if err != nil {
			return err
		}
		if m, ok := modified.(map[string]any); ok {
			k.runOpts.Config = m
		}
	}

	k.setPhase(PhaseCommandExecuting, name)
	_, err = k.Invoke(ctx, name, k.runOpts, nil)
	return err
}

func (k *Kernel) namedConfig(platform string) (map[string]any, error) {
	p, ok := k.platforms[platform]
	if !ok {
		return nil, &UnknownPlatformError{Name: platform}
	}
	return k.project.NamedView(k.appPath, platform, p.UseConfigName), nil
}

// RunHelp returns the usage of the command name. Unknown commands get the
// default option table only.
func (k *Kernel) RunHelp(name string) Usage {
	u := Usage{Program: k.program, Command: name}
	if cmd, ok := k.commands[name]; ok {
		u.Description = cmd.Description
		u.Options = cmd.OptionsMap
		u.Synopsis = help.Synopsis(cmd.Synopsis)
	}
	u.Options = help.Options(u.Options)
	return u
}

// Commands returns the registered commands in registration order.
func (k *Kernel) Commands() []Command {
	out := make([]Command, len(k.commandOrder))
	for i, name := range k.commandOrder {
		out[i] = k.commands[name].Command
	}
	return out
}

// CommandOwner returns the identity that registered the command name.
func (k *Kernel) CommandOwner(name string) (string, bool) {
	c, ok := k.commands[name]
	return c.Plugin, ok
}

// Platforms returns the registered platforms in registration order.
func (k *Kernel) Platforms() []Platform {
	out := make([]Platform, len(k.platformOrder))
	for i, name := range k.platformOrder {
		out[i] = k.platforms[name].Platform
	}
	return out
}

// Plugins returns the registered presets and plugins in registration order.
func (k *Kernel) Plugins() []Descriptor {
	return PluginView{r: k.plugins}.List()
}

// HookInfo summarizes one extension point.
type HookInfo struct {
	Name string
	Kind hook.Kind
	// Plugins lists handler owners in execution order.
	Plugins []string
	// Err is set when the handlers cannot be ordered.
	Err error
}

// Hooks describes every tapped extension point in first-tap order.
func (k *Kernel) Hooks() []HookInfo {
	names := k.hooks.Names()
	out := make([]HookInfo, 0, len(names))
	for _, name := range names {
		info := HookInfo{Name: name, Kind: hook.Classify(name)}
		ordered, err := k.hooks.Ordered(name)
		if err != nil {
			info.Err = err
		}
		for _, r := range ordered {
			info.Plugins = append(info.Plugins, r.Plugin)
		}
		out = append(out, info)
	}
	return out
}

// Methods returns the declared method slot names.
func (k *Kernel) Methods() []string {
	return k.methods.names()
}
