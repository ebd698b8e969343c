package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/hook"
	"github.com/zjrosen/tapkit/internal/kernel"
)

type fixture struct {
	app string
	out *bytes.Buffer
	cat *kernel.Catalog
}

func newFixture(t *testing.T, withProject bool) fixture {
	t.Helper()
	app := t.TempDir()
	if withProject {
		_, err := config.WriteProjectSkeleton(app, "shop")
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Join(app, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(app, "src", "app.ts"), []byte("export {}\n"), 0o644))
	}
	out := &bytes.Buffer{}
	cat := kernel.NewCatalog()
	Register(cat, out)
	return fixture{app: app, out: out, cat: cat}
}

func (f fixture) kernel(t *testing.T, presets []any, plugins ...any) *kernel.Kernel {
	t.Helper()
	if presets == nil {
		presets = []any{PresetDefault}
	}
	k, err := kernel.New(kernel.Options{
		AppPath:  f.app,
		Resolver: f.cat,
		Presets:  presets,
		Plugins:  plugins,
		Output:   f.out,
	})
	require.NoError(t, err)
	t.Cleanup(k.Close)
	return k
}

func TestPresetDefault_LoadsBuiltins(t *testing.T) {
	f := newFixture(t, false)
	k := f.kernel(t, nil)
	require.NoError(t, k.Load(context.Background()))

	var ids []string
	for _, d := range k.Plugins() {
		ids = append(ids, d.ID)
	}
	require.Equal(t, []string{PresetDefault, PluginPlatforms, PluginInfo, PluginBuild, PluginInit}, ids)

	var commands []string
	for _, c := range k.Commands() {
		commands = append(commands, c.Name)
	}
	require.Equal(t, []string{"info", "build", "init"}, commands)
	require.Len(t, k.Platforms(), 2)
	require.Contains(t, k.Methods(), HookOnBuildStart)
}

func TestInfo_PrintsSections(t *testing.T) {
	f := newFixture(t, true)
	k := f.kernel(t, nil)
	require.NoError(t, k.Run(context.Background(), "info", kernel.RunOpts{}))

	out := f.out.String()
	for _, want := range []string{"Paths:", "sourcePath", "Plugins:", PluginBuild, "Commands:", "build", "Platforms:", "mini", "config: web"} {
		require.Contains(t, out, want)
	}
}

func TestInit_WritesSkeletonOnce(t *testing.T) {
	f := newFixture(t, false)
	k := f.kernel(t, nil)
	require.NoError(t, k.Run(context.Background(), "init", kernel.RunOpts{Args: []string{"shop"}}))

	data, err := os.ReadFile(filepath.Join(f.app, "config", "index.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "projectName: shop")
	require.Contains(t, f.out.String(), "Created")

	k = f.kernel(t, nil)
	require.NoError(t, k.Run(context.Background(), "init", kernel.RunOpts{}))
	require.Contains(t, f.out.String(), "already exists")
}

func TestBuild_RequiresPlatform(t *testing.T) {
	f := newFixture(t, true)
	k := f.kernel(t, nil)
	err := k.Run(context.Background(), "build", kernel.RunOpts{})
	require.ErrorIs(t, err, ErrPlatformRequired)
}

// buildProbe is a plugin tapping every build extension point.
func buildProbe(finished *atomic.Int32) kernel.ApplyFunc {
	return func(c *kernel.Context, _ map[string]any) (*kernel.Yield, error) {
		if err := c.RegisterHook(hook.Hook{Name: HookModifyBuildConfig, Fn: func(_ context.Context, _ any, v any) (any, error) {
			cfg := v.(map[string]any)
			cfg["minify"] = true
			return cfg, nil
		}}); err != nil {
			return nil, err
		}
		if err := c.RegisterHook(hook.Hook{Name: HookAddAssets, Fn: func(context.Context, any, any) (any, error) {
			return "logo.png", nil
		}}); err != nil {
			return nil, err
		}
		finish, ok := c.Method(HookOnBuildFinish)
		if !ok {
			return nil, nil
		}
		if res, _ := finish(hook.Func(func(context.Context, any, any) (any, error) {
			finished.Add(1)
			return nil, nil
		})).(error); res != nil {
			return nil, res
		}
		return nil, nil
	}
}

func TestBuild_Web(t *testing.T) {
	f := newFixture(t, true)
	var finished atomic.Int32
	f.cat.Add("probe", buildProbe(&finished))
	k := f.kernel(t, nil, "probe")

	err := k.Run(context.Background(), "build", kernel.RunOpts{Options: map[string]any{"platform": PlatformWeb}})
	require.NoError(t, err)
	require.Equal(t, int32(1), finished.Load())

	data, err := os.ReadFile(filepath.Join(f.app, "dist", "web", ManifestFile))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	require.Equal(t, PlatformWeb, m.Platform)
	require.Equal(t, k.RunID(), m.RunID)
	require.Equal(t, []any{"logo.png"}, m.Assets)
	require.Equal(t, true, m.Config["minify"])
	require.Equal(t, "/", m.Config["publicPath"])
	require.Contains(t, m.Plugins, "probe")

	index, err := os.ReadFile(filepath.Join(f.app, "dist", "web", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "<title>shop</title>")
	require.Contains(t, string(index), `src="app.ts"`)
	require.Contains(t, f.out.String(), "Built web")
}

func TestBuild_Mini(t *testing.T) {
	f := newFixture(t, true)
	k := f.kernel(t, nil)

	err := k.Run(context.Background(), "build", kernel.RunOpts{Options: map[string]any{"platform": PlatformMini}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.app, "dist", "mini", "app.json"))
	require.NoError(t, err)
	var app map[string]any
	require.NoError(t, json.Unmarshal(data, &app))
	require.Equal(t, []any{"app.ts"}, app["pages"])
}

func TestBuild_UnknownPlatform(t *testing.T) {
	f := newFixture(t, true)
	k := f.kernel(t, nil)
	err := k.Run(context.Background(), "build", kernel.RunOpts{Options: map[string]any{"platform": "tv"}})
	var unknown *kernel.UnknownPlatformError
	require.ErrorAs(t, err, &unknown)
}

func TestBuild_RejectsInvalidOptions(t *testing.T) {
	f := newFixture(t, false)
	k := f.kernel(t, []any{[]any{PresetDefault, map[string]any{"build": map[string]any{"debounceMs": -5}}}})

	err := k.Load(context.Background())
	var invalid *kernel.InvalidOptionsError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, PluginBuild, invalid.ID)
}

func TestBuild_WatchRebuilds(t *testing.T) {
	f := newFixture(t, true)
	var finished atomic.Int32
	f.cat.Add("probe", buildProbe(&finished))
	k := f.kernel(t, []any{[]any{PresetDefault, map[string]any{"build": map[string]any{"debounceMs": 20}}}}, "probe")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- k.Run(ctx, "build", kernel.RunOpts{Options: map[string]any{"platform": PlatformWeb, "watch": true}})
	}()

	require.Eventually(t, func() bool { return finished.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	// Give the watcher time to register the tree before touching it.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(f.app, "src", "page.ts"), []byte("export const x = 1\n"), 0o644))
	require.Eventually(t, func() bool { return finished.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestParseBuildOptions(t *testing.T) {
	o := parseBuildOptions(map[string]any{"debounceMs": 50, "extensions": []any{".ts", 3, ".tsx"}})
	require.Equal(t, 50*time.Millisecond, o.Debounce)
	require.Equal(t, []string{".ts", ".tsx"}, o.Extensions)

	require.Equal(t, BuildOptions{}, parseBuildOptions(nil))
}
