// Package builtin provides the presets and plugins compiled into tapkit.
package builtin

import (
	"io"

	"github.com/zjrosen/tapkit/internal/kernel"
)

// Module names.
const (
	PresetDefault   = "tapkit/preset-default"
	PluginInfo      = "tapkit/plugin-info"
	PluginBuild     = "tapkit/plugin-build"
	PluginInit      = "tapkit/plugin-init"
	PluginPlatforms = "tapkit/plugin-platforms"
)

// Register adds every built-in module to cat. Commands print to out.
func Register(cat *kernel.Catalog, out io.Writer) {
	cat.Add(PresetDefault, presetDefault)
	cat.Add(PluginInfo, infoPlugin(out))
	cat.Add(PluginBuild, buildPlugin(out))
	cat.Add(PluginInit, initPlugin(out))
	cat.Add(PluginPlatforms, platformsPlugin)
}

// presetDefault yields the built-in plugins. Its "build" option is handed to
// the build plugin.
func presetDefault(_ *kernel.Context, opts map[string]any) (*kernel.Yield, error) {
	build := any(PluginBuild)
	if o, ok := opts["build"].(map[string]any); ok {
		build = []any{PluginBuild, o}
	}
	return &kernel.Yield{
		Plugins: []any{PluginPlatforms, PluginInfo, build, PluginInit},
	}, nil
}
