package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tapkit/internal/helper"
	"github.com/zjrosen/tapkit/internal/log"
)

// Project is a loaded project configuration (<app>/config/index.yaml).
type Project struct {
	// Path is the file the configuration was read from.
	Path string
	// Values holds the decoded document. It is never nil for a loaded project.
	Values map[string]any

	// order holds the written key order of presets/plugins mapping blocks.
	order map[string][]string
}

// Loader loads a project configuration. ok is false when no usable
// configuration exists; the kernel then continues with an empty one.
type Loader interface {
	Load(appPath string) (project Project, ok bool)
}

// FileLoader reads config/index.yaml, .yml or .json below the app path.
type FileLoader struct{}

var _ Loader = FileLoader{}

// ProjectFile returns the configuration path for appPath, whether or not it
// exists.
func ProjectFile(appPath string) string {
	return helper.ResolvePath(filepath.Join(appPath, helper.ConfigDir, helper.DefaultConfigFile), helper.ConfigExts)
}

// ProjectMarkers are the relative paths identifying a project root.
func ProjectMarkers() []string {
	markers := make([]string, len(helper.ConfigExts))
	for i, ext := range helper.ConfigExts {
		markers[i] = filepath.Join(helper.ConfigDir, helper.DefaultConfigFile+ext)
	}
	return markers
}

// Load never fails: a missing or malformed file is logged and reported with
// ok=false.
func (FileLoader) Load(appPath string) (Project, bool) {
	path := ProjectFile(appPath)

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the app path
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug(log.CatConfig, "No project configuration", "path", path)
		} else {
			log.Warn(log.CatConfig, "Failed to read project configuration", "path", path, "error", err)
		}
		return Project{Values: map[string]any{}}, false
	}

	values, err := ParseProject(data)
	if err != nil {
		log.Warn(log.CatConfig, "Failed to parse project configuration", "path", path, "error", err)
		return Project{Values: map[string]any{}}, false
	}

	log.Debug(log.CatConfig, "Loaded project configuration", "path", path, "keys", len(values))
	return Project{Path: path, Values: values, order: declarationOrder(data)}, true
}

// declarationOrder records the key order of the presets and plugins blocks
// written as mappings.
func declarationOrder(data []byte) map[string][]string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	order := make(map[string][]string)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Value != "presets" && key.Value != "plugins" {
			continue
		}
		if val.Kind == yaml.AliasNode && val.Alias != nil {
			val = val.Alias
		}
		if val.Kind != yaml.MappingNode {
			continue
		}
		ids := make([]string, 0, len(val.Content)/2)
		for j := 0; j+1 < len(val.Content); j += 2 {
			ids = append(ids, val.Content[j].Value)
		}
		order[key.Value] = ids
	}
	return order
}

// ParseProject decodes a project document. An empty document is an empty
// configuration.
func ParseProject(data []byte) (map[string]any, error) {
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding project configuration: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// Get returns a top-level value.
func (p Project) Get(key string) (any, bool) {
	v, ok := p.Values[key]
	return v, ok
}

func (p Project) stringOr(key, fallback string) string {
	if s, ok := p.Values[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// SourceRoot is the source directory relative to the app, default "src".
func (p Project) SourceRoot() string {
	return p.stringOr("sourceRoot", helper.SourceDir)
}

// OutputRoot is the output directory relative to the app, default "dist".
func (p Project) OutputRoot() string {
	return p.stringOr("outputRoot", helper.OutputDir)
}

// Presets returns the preset declarations, or nil.
func (p Project) Presets() any {
	return p.declarations("presets")
}

// Plugins returns the plugin declarations, or nil.
func (p Project) Plugins() any {
	return p.declarations("plugins")
}

// declarations returns the value of key. A mapping read from the file comes
// back as a sequence of bare identities and [identity, options] pairs in
// written order.
func (p Project) declarations(key string) any {
	raw := p.Values[key]
	m, ok := raw.(map[string]any)
	ids := p.order[key]
	if !ok || len(ids) != len(m) {
		return raw
	}

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		opts, ok := m[id]
		if !ok {
			return raw
		}
		if opts == nil {
			out = append(out, id)
			continue
		}
		out = append(out, []any{id, opts})
	}
	return out
}

// viewKeys are copied into a named view when present in the project.
var viewKeys = []string{
	"copy",
	"framework",
	"baseLevel",
	"csso",
	"sass",
	"uglify",
	"terser",
	"plugins",
	"projectName",
	"env",
	"defineConstants",
	"designWidth",
	"deviceRatio",
	"projectConfigName",
}

// NamedView builds the configuration seen by a platform: shared project keys
// plus an entry map, overlaid with the section named useConfigName.
func (p Project) NamedView(appPath, platform, useConfigName string) map[string]any {
	sourceRoot := p.SourceRoot()
	entryPath := helper.New().ResolveScriptPath(filepath.Join(appPath, sourceRoot, helper.Entry))

	alias, ok := p.Values["alias"]
	if !ok || alias == nil {
		alias = map[string]any{}
	}

	view := map[string]any{
		"entry":      map[string]any{helper.Entry: []any{entryPath}},
		"alias":      alias,
		"sourceRoot": sourceRoot,
		"outputRoot": p.OutputRoot(),
		"platform":   platform,
	}
	for _, key := range viewKeys {
		if v, ok := p.Values[key]; ok {
			view[key] = v
		}
	}

	if useConfigName != "" {
		if section, ok := p.Values[useConfigName].(map[string]any); ok {
			maps.Copy(view, section)
		}
	}
	return view
}
