// Package helper is the utility surface handed to presets and plugins:
// project constants, path helpers, file writing, watching and namespaced
// debug logging.
package helper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/paths"
	"github.com/zjrosen/tapkit/internal/watcher"
)

// Project layout defaults.
const (
	SourceDir         = "src"
	OutputDir         = "dist"
	Entry             = "app"
	ConfigDir         = "config"
	DefaultConfigFile = "index"
)

// ScriptExts are tried in order when resolving an extensionless script path.
var ScriptExts = []string{".go", ".ts", ".tsx", ".js", ".jsx"}

// ConfigExts are tried in order when resolving the project configuration.
var ConfigExts = []string{".yaml", ".yml", ".json"}

// Helper bundles the helpers. The zero value is usable.
type Helper struct{}

// New returns a Helper.
func New() *Helper {
	return &Helper{}
}

// ResolveScriptPath returns base with the first extension from ScriptExts
// that exists on disk. A base that already exists is returned as is. When
// nothing exists, base with the first extension is returned.
func (h *Helper) ResolveScriptPath(base string) string {
	return ResolvePath(base, ScriptExts)
}

// ResolvePath is ResolveScriptPath with a custom extension list.
func ResolvePath(base string, exts []string) string {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base
	}
	for _, ext := range exts {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if len(exts) == 0 {
		return base
	}
	return base + exts[0]
}

// FindUp returns the nearest existing path named one of names at or above
// start, or "".
func (h *Helper) FindUp(start string, names ...string) string {
	return paths.FindUp(start, names...)
}

// EnsureDir creates dir and its parents.
func (h *Helper) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to path atomically, creating parent directories.
func (h *Helper) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := h.EnsureDir(dir); err != nil {
		return err
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Watch calls onChange with each debounced batch of changes below roots
// until ctx is cancelled. The first onChange error stops watching and is
// returned.
func (h *Helper) Watch(ctx context.Context, cfg watcher.Config, onChange func(watcher.Batch) error) error {
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-changes:
			if err := onChange(batch); err != nil {
				return err
			}
		}
	}
}

// DebugFunc logs under a namespace.
type DebugFunc func(msg string, fields ...any)

// Debug returns a logger whose lines carry namespace as the "ns" field.
func (h *Helper) Debug(namespace string) DebugFunc {
	return func(msg string, fields ...any) {
		log.Debug(log.CatPlugin, msg, append([]any{"ns", namespace}, fields...)...)
	}
}
