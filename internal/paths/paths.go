// Package paths resolves the directory layout of a tapkit project.
package paths

import (
	"os"
	"path/filepath"
)

// Paths is the resolved layout of one project. ConfigPath, SourcePath and
// OutputPath are empty when the project configuration could not be loaded.
type Paths struct {
	AppPath    string
	ConfigPath string
	SourcePath string
	OutputPath string
}

// Resolve builds Paths for appPath. sourceRoot and outputRoot are relative
// to appPath unless absolute. An empty configPath means the project has no
// usable configuration and only AppPath is set.
func Resolve(appPath, configPath, sourceRoot, outputRoot string) Paths {
	p := Paths{AppPath: filepath.Clean(appPath)}
	if configPath == "" {
		return p
	}
	p.ConfigPath = configPath
	p.SourcePath = under(p.AppPath, sourceRoot)
	p.OutputPath = under(p.AppPath, outputRoot)
	return p
}

// Initialized reports whether the configuration-derived paths are set.
func (p Paths) Initialized() bool {
	return p.ConfigPath != ""
}

// Map returns the paths keyed by name, skipping empty ones.
func (p Paths) Map() map[string]string {
	m := map[string]string{"appPath": p.AppPath}
	if p.ConfigPath != "" {
		m["configPath"] = p.ConfigPath
	}
	if p.SourcePath != "" {
		m["sourcePath"] = p.SourcePath
	}
	if p.OutputPath != "" {
		m["outputPath"] = p.OutputPath
	}
	return m
}

func under(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// FindUp walks from start towards the filesystem root and returns the first
// existing path formed by joining a directory with one of names. It returns
// "" when nothing matches.
func FindUp(start string, names ...string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FindProjectRoot returns the nearest directory at or above start containing
// one of markers (relative paths such as "config/index.yaml"). It falls back
// to start itself.
func FindProjectRoot(start string, markers ...string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	found := FindUp(abs, markers...)
	if found == "" {
		return abs
	}
	for _, m := range markers {
		if root, ok := trimMarker(found, m); ok {
			return root
		}
	}
	return abs
}

func trimMarker(found, marker string) (string, bool) {
	suffix := string(filepath.Separator) + filepath.Clean(marker)
	if len(found) > len(suffix) && found[len(found)-len(suffix):] == suffix {
		return found[:len(found)-len(suffix)], true
	}
	return "", false
}
