package helper

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/watcher"
)

func TestResolveScriptPath(t *testing.T) {
	dir := t.TempDir()
	h := New()

	base := filepath.Join(dir, "app")
	require.Equal(t, base+".go", h.ResolveScriptPath(base), "falls back to the first extension")

	require.NoError(t, os.WriteFile(base+".tsx", nil, 0644))
	require.Equal(t, base+".tsx", h.ResolveScriptPath(base))

	require.NoError(t, os.WriteFile(base+".go", nil, 0644))
	require.Equal(t, base+".go", h.ResolveScriptPath(base), "earlier extensions win")

	exact := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(exact, nil, 0644))
	require.Equal(t, exact, h.ResolveScriptPath(exact))

	require.Equal(t, base, ResolvePath(base, nil))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dist", "web", "manifest.yaml")
	h := New()

	require.NoError(t, h.WriteFile(target, []byte("a: 1\n")))
	require.NoError(t, h.WriteFile(target, []byte("a: 2\n")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "a: 2\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestEnsureDirError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	require.Error(t, New().EnsureDir(filepath.Join(file, "sub")))
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), nil, 0644))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0755))

	require.Equal(t, filepath.Join(root, "go.mod"), New().FindUp(deep, "go.mod"))
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan watcher.Batch, 1)
	done := make(chan error, 1)
	go func() {
		done <- New().Watch(ctx, watcher.Config{Roots: []string{dir}, DebounceDur: 30 * time.Millisecond}, func(b watcher.Batch) error {
			got <- b
			cancel()
			return nil
		})
	}()

	// Let the watcher register the directory before writing.
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(dir, "page.go")
	require.NoError(t, os.WriteFile(file, []byte("package page"), 0644))

	select {
	case b := <-got:
		require.Equal(t, []string{file}, b.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch received")
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWatchMissingRoot(t *testing.T) {
	err := New().Watch(context.Background(), watcher.Config{Roots: []string{filepath.Join(t.TempDir(), "nope")}}, nil)
	require.Error(t, err)
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	log.InitWriter(&buf)
	t.Cleanup(func() { log.InitWriter(nil) })

	New().Debug("tapkit:build")("starting", "platform", "web")

	require.Contains(t, buf.String(), "[plugin] starting ns=tapkit:build platform=web")
}
