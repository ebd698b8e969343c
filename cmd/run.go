package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tapkit/internal/builtin"
	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/flags"
	"github.com/zjrosen/tapkit/internal/kernel"
	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/paths"
	"github.com/zjrosen/tapkit/internal/pubsub"
	"github.com/zjrosen/tapkit/internal/script"
	"github.com/zjrosen/tapkit/internal/tracing"
)

// runCommand runs one kernel command. With isHelp the command's usage is
// printed instead.
func runCommand(cmd *cobra.Command, opts *cliOptions, name string, args []string, isHelp bool) error {
	options, err := opts.runOptions()
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(opts.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatCLI, "Tracing shutdown failed", err)
		}
	}()

	k, err := newKernel(opts, cmd.OutOrStdout(), provider)
	if err != nil {
		return err
	}
	var phasesDone <-chan struct{}
	if log.Enabled(log.LevelDebug) {
		phasesDone = logPhases(k.Subscribe(context.Background()))
	}
	defer func() {
		k.Close()
		if phasesDone != nil {
			<-phasesDone
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return k.Run(ctx, name, kernel.RunOpts{
		Args:    args,
		Options: options,
		IsHelp:  isHelp,
	})
}

// logPhases logs the kernel's phase events with the time spent since the
// previous one. The returned channel is closed once events is drained.
func logPhases(events <-chan pubsub.Event[kernel.PhaseEvent]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var prev time.Time
		for ev := range events {
			p := ev.Payload
			if ev.Type == pubsub.FailedEvent {
				log.Warn(log.CatCLI, "Phase failed", "run_id", p.RunID, "phase", p.Phase, "command", p.Command, "error", p.Err)
				continue
			}
			var elapsed time.Duration
			if !prev.IsZero() {
				elapsed = ev.Timestamp.Sub(prev)
			}
			prev = ev.Timestamp
			log.Debug(log.CatCLI, "Phase reached", "seq", ev.Seq, "phase", p.Phase, "command", p.Command, "since_previous", elapsed)
		}
	}()
	return done
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newKernel wires the built-in modules, script plugins and tool
// configuration into a kernel for the selected project.
func newKernel(opts *cliOptions, out io.Writer, provider *tracing.Provider) (*kernel.Kernel, error) {
	appPath, err := resolveAppPath(opts.appPath)
	if err != nil {
		return nil, err
	}

	featureFlags := flags.New(opts.cfg.Flags)
	log.Debug(log.CatCLI, "Feature flags", "enabled", featureFlags.EnabledNames())
	cat := kernel.NewCatalog()
	builtin.Register(cat, out)

	var sources kernel.SourceRegistrar
	if featureFlags.Enabled(flags.FlagScriptPlugins) {
		loader := script.New()
		cat.AddLoader(loader)
		sources = loader
	}

	presets := opts.cfg.Presets
	if !opts.cfg.DisableBuiltin {
		presets = append([]any{[]any{builtin.PresetDefault, presetOptions(opts.cfg.Watch)}}, presets...)
	}

	return kernel.New(kernel.Options{
		AppPath:  appPath,
		Presets:  presets,
		Plugins:  opts.cfg.Plugins,
		Resolver: cat,
		Sources:  sources,
		Flags:    featureFlags,
		Tracer:   provider.Tracer(),
		Output:   out,
		Program:  "tapkit",
	})
}

// presetOptions passes the watch settings to the built-in build plugin.
func presetOptions(w config.WatchConfig) map[string]any {
	build := map[string]any{}
	if w.DebounceMs > 0 {
		build["debounceMs"] = w.DebounceMs
	}
	if len(w.Extensions) > 0 {
		exts := make([]any, len(w.Extensions))
		for i, e := range w.Extensions {
			exts[i] = e
		}
		build["extensions"] = exts
	}
	return map[string]any{"build": build}
}

// resolveAppPath returns explicit when set, else the nearest ancestor of the
// working directory holding a project configuration, else the working
// directory.
func resolveAppPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if root := paths.FindProjectRoot(wd, config.ProjectMarkers()...); root != "" {
		return root, nil
	}
	return wd, nil
}

// runOptions collects -t, -w and every -o key=value into kernel options.
// Values are decoded as YAML scalars, so "3" is a number and "true" a bool.
func (o *cliOptions) runOptions() (map[string]any, error) {
	options := make(map[string]any, len(o.options)+2)
	for _, kv := range o.options {
		key, value, err := parseOption(kv)
		if err != nil {
			return nil, err
		}
		options[key] = value
	}
	if o.platform != "" {
		options["platform"] = o.platform
	}
	if o.watch {
		options["watch"] = true
	}
	return options, nil
}

func parseOption(kv string) (string, any, error) {
	key, raw, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, fmt.Errorf("invalid option %q: want key=value", kv)
	}
	if !ok {
		return key, true, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return key, raw, nil
	}
	switch value.(type) {
	case string, bool, int, float64:
		return key, value, nil
	default:
		// Keep structured-looking values verbatim.
		return key, raw, nil
	}
}
