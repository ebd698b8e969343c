package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tapkit/internal/helper"
	"github.com/zjrosen/tapkit/internal/kernel"
	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/schema"
	"github.com/zjrosen/tapkit/internal/tracing"
	"github.com/zjrosen/tapkit/internal/watcher"
)

// Extension points fired by the build command.
const (
	HookModifyBuildConfig = "modifyBuildConfig"
	HookAddAssets         = "addAssets"
	HookOnBuildStart      = "onBuildStart"
	HookOnBuildFinish     = "onBuildFinish"
)

// ManifestFile is written to <output>/<platform>/ by every build.
const ManifestFile = "manifest.yaml"

// ErrPlatformRequired is returned by build without --platform.
var ErrPlatformRequired = errors.New("build requires a platform (-t, --platform)")

// Manifest records the outcome of one build.
type Manifest struct {
	Platform string         `yaml:"platform"`
	RunID    string         `yaml:"runId,omitempty"`
	BuiltAt  time.Time      `yaml:"builtAt"`
	Plugins  []string       `yaml:"plugins"`
	Assets   []any          `yaml:"assets"`
	Config   map[string]any `yaml:"config"`
}

// BuildOptions are the build plugin's options.
type BuildOptions struct {
	Debounce   time.Duration
	Extensions []string
}

func buildSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"debounceMs": schema.Integer().Min(0).Describe("watch debounce in milliseconds"),
		"extensions": schema.Array(schema.String().Matches(`^\.`)).Describe("extensions that trigger a rebuild"),
	}).Strict()
}

func parseBuildOptions(opts map[string]any) BuildOptions {
	var o BuildOptions
	switch v := opts["debounceMs"].(type) {
	case int:
		o.Debounce = time.Duration(v) * time.Millisecond
	case float64:
		o.Debounce = time.Duration(v) * time.Millisecond
	}
	if exts, ok := opts["extensions"].([]any); ok {
		for _, e := range exts {
			if s, ok := e.(string); ok {
				o.Extensions = append(o.Extensions, s)
			}
		}
	}
	if exts, ok := opts["extensions"].([]string); ok {
		o.Extensions = append(o.Extensions, exts...)
	}
	return o
}

func buildPlugin(out io.Writer) kernel.ApplyFunc {
	return func(c *kernel.Context, opts map[string]any) (*kernel.Yield, error) {
		c.SetOptionsSchema(buildSchema)
		for _, name := range []string{HookModifyBuildConfig, HookAddAssets, HookOnBuildStart, HookOnBuildFinish} {
			c.RegisterMethod(name)
		}

		b := &builder{c: c, out: out, opts: parseBuildOptions(opts)}
		return nil, c.RegisterCommand(kernel.Command{
			Name:        "build",
			Description: "Build the project for a platform",
			OptionsMap: []kernel.Option{
				{Flag: "-t, --platform [platform]", Description: "Target platform (web, mini)"},
				{Flag: "-w, --watch", Description: "Rebuild when source files change"},
			},
			Synopsis: []string{
				"tapkit build -t web",
				"tapkit build -t mini --watch",
			},
			Fn: b.run,
		})
	}
}

type builder struct {
	c    *kernel.Context
	out  io.Writer
	opts BuildOptions
}

func (b *builder) run(ctx context.Context, opts any, _ any) (any, error) {
	ro, ok := opts.(kernel.RunOpts)
	if !ok {
		return nil, fmt.Errorf("build: unexpected options %T", opts)
	}
	if ro.Platform() == "" {
		return nil, ErrPlatformRequired
	}

	path, err := b.build(ctx, ro)
	if err != nil {
		return nil, err
	}
	if !ro.Bool("watch") {
		return path, nil
	}
	return path, b.watch(ctx, ro)
}

// build runs one build and returns the manifest path.
func (b *builder) build(ctx context.Context, ro kernel.RunOpts) (string, error) {
	platform := ro.Platform()
	started := time.Now()

	cfg, err := b.c.ApplyPlugins(ctx, HookModifyBuildConfig, map[string]any{"platform": platform}, maps.Clone(ro.Config))
	if err != nil {
		return "", err
	}
	config, _ := cfg.(map[string]any)
	if config == nil {
		config = map[string]any{}
	}

	outputDir := filepath.Join(b.outputRoot(config), platform)
	stage := map[string]any{"platform": platform, "config": config, "outputDir": outputDir}

	collected, err := b.c.ApplyPlugins(ctx, HookAddAssets, stage, nil)
	if err != nil {
		return "", err
	}
	assets, _ := collected.([]any)
	stage["assets"] = assets

	if _, err := b.c.ApplyPlugins(ctx, HookOnBuildStart, stage, nil); err != nil {
		return "", err
	}
	if _, err := b.c.ApplyPlugins(ctx, platform, stage, nil); err != nil {
		return "", err
	}

	manifest := Manifest{
		Platform: platform,
		RunID:    tracing.RunIDFromContext(ctx),
		BuiltAt:  started.UTC(),
		Assets:   assets,
		Config:   config,
	}
	for _, d := range b.c.Plugins().List() {
		manifest.Plugins = append(manifest.Plugins, d.ID)
	}
	path, err := writeManifest(b.c.Helper(), outputDir, manifest)
	if err != nil {
		return "", err
	}
	stage["manifest"] = path

	if _, err := b.c.ApplyPlugins(ctx, HookOnBuildFinish, stage, nil); err != nil {
		return "", err
	}
	log.Info(log.CatPlugin, "Build finished", "platform", platform, "manifest", path, "duration", time.Since(started))
	_, _ = fmt.Fprintf(b.out, "Built %s in %s -> %s\n", platform, time.Since(started).Round(time.Millisecond), path)
	return path, nil
}

func (b *builder) outputRoot(config map[string]any) string {
	if p := b.c.Paths().OutputPath; p != "" {
		return p
	}
	root, _ := config["outputRoot"].(string)
	if root == "" {
		root = helper.OutputDir
	}
	if filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(b.c.AppPath(), root)
}

func (b *builder) sourceRoot() string {
	if p := b.c.Paths().SourcePath; p != "" {
		return p
	}
	return filepath.Join(b.c.AppPath(), helper.SourceDir)
}

// watch rebuilds on every batch of source changes until ctx is cancelled.
// Failed rebuilds are reported and watching continues.
func (b *builder) watch(ctx context.Context, ro kernel.RunOpts) error {
	cfg := watcher.DefaultConfig(b.sourceRoot())
	cfg.Extensions = b.opts.Extensions
	if b.opts.Debounce > 0 {
		cfg.DebounceDur = b.opts.Debounce
	}
	if err := b.c.Helper().EnsureDir(cfg.Roots[0]); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(b.out, "Watching %s\n", cfg.Roots[0])
	return b.c.Helper().Watch(ctx, cfg, func(batch watcher.Batch) error {
		log.Debug(log.CatPlugin, "Rebuilding", "changed", len(batch.Paths))
		if _, err := b.build(ctx, ro); err != nil {
			log.ErrorErr(log.CatPlugin, "Rebuild failed", err, "platform", ro.Platform())
			_, _ = fmt.Fprintf(b.out, "Rebuild failed: %v\n", err)
		}
		return nil
	})
}

func writeManifest(h *helper.Helper, dir string, m Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := h.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	if err := h.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
