package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/zjrosen/tapkit/internal/helper"
	"github.com/zjrosen/tapkit/internal/kernel"
)

// Platform names.
const (
	PlatformWeb  = "web"
	PlatformMini = "mini"
)

func platformsPlugin(c *kernel.Context, _ map[string]any) (*kernel.Yield, error) {
	if err := c.RegisterPlatform(kernel.Platform{
		Name:          PlatformWeb,
		UseConfigName: "web",
		Fn:            emitter(c.Helper(), "index.html", renderWebIndex),
	}); err != nil {
		return nil, err
	}
	return nil, c.RegisterPlatform(kernel.Platform{
		Name:          PlatformMini,
		UseConfigName: "mini",
		Fn:            emitter(c.Helper(), "app.json", renderMiniApp),
	})
}

// emitter returns a platform handler writing one file into the build's
// output directory.
func emitter(h *helper.Helper, file string, render func(stage map[string]any) ([]byte, error)) func(context.Context, any, any) (any, error) {
	return func(_ context.Context, opts any, _ any) (any, error) {
		stage, ok := opts.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("platform: unexpected options %T", opts)
		}
		dir, _ := stage["outputDir"].(string)
		if dir == "" {
			return nil, fmt.Errorf("platform: no output directory")
		}
		data, err := render(stage)
		if err != nil {
			return nil, err
		}
		if err := h.EnsureDir(dir); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, file)
		if err := h.WriteFile(path, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", file, err)
		}
		return path, nil
	}
}

var webIndex = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<div id="app"></div>
{{range .Scripts}}<script src="{{.}}"></script>
{{end}}</body>
</html>
`))

func renderWebIndex(stage map[string]any) ([]byte, error) {
	config, _ := stage["config"].(map[string]any)
	title, _ := config["projectName"].(string)
	if title == "" {
		title = "tapkit"
	}
	data := struct {
		Title   string
		Scripts []string
	}{Title: title, Scripts: entryFiles(config)}

	var b strings.Builder
	if err := webIndex.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("render index.html: %w", err)
	}
	return []byte(b.String()), nil
}

func renderMiniApp(stage map[string]any) ([]byte, error) {
	config, _ := stage["config"].(map[string]any)
	app := map[string]any{
		"pages":  entryFiles(config),
		"window": map[string]any{"navigationBarTitleText": config["projectName"]},
	}
	if assets, ok := stage["assets"].([]any); ok && len(assets) > 0 {
		app["assets"] = assets
	}
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render app.json: %w", err)
	}
	return append(data, '\n'), nil
}

// entryFiles lists the entry scripts of a named view by base name.
func entryFiles(config map[string]any) []string {
	entry, _ := config["entry"].(map[string]any)
	files, _ := entry[helper.Entry].([]any)
	out := make([]string, 0, len(files))
	for _, f := range files {
		if s, ok := f.(string); ok {
			out = append(out, filepath.Base(s))
		}
	}
	return out
}
