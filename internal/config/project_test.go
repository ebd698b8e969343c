package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, name, content string) string {
	t.Helper()
	app := t.TempDir()
	dir := filepath.Join(app, "config")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return app
}

func TestFileLoader_Load(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		body   string
		wantOK bool
		check  func(t *testing.T, p Project)
	}{
		{
			name:   "yaml",
			file:   "index.yaml",
			body:   "projectName: demo\nsourceRoot: client\nplugins:\n  - tapkit/plugin-build\n",
			wantOK: true,
			check: func(t *testing.T, p Project) {
				require.Equal(t, "client", p.SourceRoot())
				require.Equal(t, "dist", p.OutputRoot())
				require.Equal(t, []any{"tapkit/plugin-build"}, p.Plugins())
				require.Nil(t, p.Presets())
			},
		},
		{
			name:   "mapping declarations keep written order",
			file:   "index.yaml",
			body:   "plugins:\n  zeta: {}\n  alpha:\n    minify: true\n  mid:\npresets:\n  - p\n",
			wantOK: true,
			check: func(t *testing.T, p Project) {
				require.Equal(t, []any{
					[]any{"zeta", map[string]any{}},
					[]any{"alpha", map[string]any{"minify": true}},
					"mid",
				}, p.Plugins())
				require.Equal(t, []any{"p"}, p.Presets())

				raw, _ := p.Get("plugins")
				require.IsType(t, map[string]any{}, raw)
			},
		},
		{
			name:   "yml",
			file:   "index.yml",
			body:   "outputRoot: build\n",
			wantOK: true,
			check: func(t *testing.T, p Project) {
				require.Equal(t, "build", p.OutputRoot())
				require.Equal(t, "src", p.SourceRoot())
			},
		},
		{
			name:   "json",
			file:   "index.json",
			body:   `{"projectName": "demo", "designWidth": 750}`,
			wantOK: true,
			check: func(t *testing.T, p Project) {
				v, ok := p.Get("designWidth")
				require.True(t, ok)
				require.Equal(t, 750, v)
			},
		},
		{
			name:   "empty document",
			file:   "index.yaml",
			body:   "",
			wantOK: true,
			check: func(t *testing.T, p Project) {
				require.NotNil(t, p.Values)
				require.Empty(t, p.Values)
			},
		},
		{
			name:   "malformed",
			file:   "index.yaml",
			body:   "projectName: [unterminated\n",
			wantOK: false,
		},
		{
			name:   "not a mapping",
			file:   "index.yaml",
			body:   "- a\n- b\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := writeProject(t, tt.file, tt.body)

			p, ok := FileLoader{}.Load(app)
			require.Equal(t, tt.wantOK, ok)
			require.NotNil(t, p.Values)
			if !ok {
				require.Empty(t, p.Path)
				return
			}
			require.Equal(t, filepath.Join(app, "config", tt.file), p.Path)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestProject_MappingWithoutRecordedOrder(t *testing.T) {
	plugins := map[string]any{"b": nil, "a": nil}
	p := Project{Values: map[string]any{"plugins": plugins}}
	require.Equal(t, plugins, p.Plugins())
}

func TestFileLoader_Missing(t *testing.T) {
	p, ok := FileLoader{}.Load(t.TempDir())
	require.False(t, ok)
	require.Empty(t, p.Values)
}

func TestProject_NamedView(t *testing.T) {
	app := t.TempDir()
	p := Project{Values: map[string]any{
		"projectName":     "demo",
		"designWidth":     750,
		"defineConstants": map[string]any{"DEBUG": "false"},
		"ignored":         true,
		"web": map[string]any{
			"publicPath":  "/",
			"designWidth": 375,
		},
	}}

	view := p.NamedView(app, "web", "web")

	require.Equal(t, map[string]any{
		"entry":           map[string]any{"app": []any{filepath.Join(app, "src", "app.go")}},
		"alias":           map[string]any{},
		"sourceRoot":      "src",
		"outputRoot":      "dist",
		"platform":        "web",
		"projectName":     "demo",
		"designWidth":     375,
		"defineConstants": map[string]any{"DEBUG": "false"},
		"publicPath":      "/",
	}, view)
}

func TestProject_NamedViewWithoutSection(t *testing.T) {
	p := Project{Values: map[string]any{"alias": map[string]any{"@": "src"}, "mini": "not a map"}}
	view := p.NamedView("/app", "mini", "mini")

	require.Equal(t, map[string]any{"@": "src"}, view["alias"])
	require.Equal(t, "mini", view["platform"])
	require.NotContains(t, view, "projectName")
}

func TestProjectMarkers(t *testing.T) {
	require.Equal(t, []string{
		filepath.Join("config", "index.yaml"),
		filepath.Join("config", "index.yml"),
		filepath.Join("config", "index.json"),
	}, ProjectMarkers())
}
