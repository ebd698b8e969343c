package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/tapkit/internal/helper"
)

// ErrProjectExists is returned when a skeleton would overwrite a project
// configuration.
var ErrProjectExists = errors.New("project configuration already exists")

// ProjectTemplate returns a commented project configuration for name.
func ProjectTemplate(name string) string {
	return fmt.Sprintf(`# Project configuration
projectName: %s

sourceRoot: %s
outputRoot: %s

# Presets and plugins for this project.
# presets:
#   - ./tools/preset.go
plugins: []

designWidth: 750
deviceRatio:
  640: 2.34
  750: 1
  828: 1.81

defineConstants: {}

# Per-platform sections are merged over the shared keys when building for
# that platform.
web:
  publicPath: /
mini: {}
`, quote(name), helper.SourceDir, helper.OutputDir)
}

func quote(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(bytes.TrimSpace(out))
}

// WriteProjectSkeleton writes ProjectTemplate to the project file of appPath
// and returns its path. An existing file is left alone and ErrProjectExists
// is returned.
func WriteProjectSkeleton(appPath, name string) (string, error) {
	path := ProjectFile(appPath)
	if _, err := os.Stat(path); err == nil {
		return path, ErrProjectExists
	}
	if err := helper.New().WriteFile(path, []byte(ProjectTemplate(name))); err != nil {
		return "", fmt.Errorf("writing project configuration: %w", err)
	}
	return path, nil
}

// SetProjectValue sets a top-level key in the project file at path. Comments
// and formatting of other keys are preserved.
func SetProjectValue(path, key string, value any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: caller-provided project file
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}

	root := doc.Content[0]
	found := false
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = &valueNode
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&valueNode,
		)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return helper.New().WriteFile(path, buf.Bytes())
}
