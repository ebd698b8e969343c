package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zjrosen/tapkit/internal/watcher"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, cfg watcher.Config) (*watcher.Watcher, <-chan watcher.Batch) {
	t.Helper()
	w, err := watcher.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ch, err := w.Start()
	require.NoError(t, err)
	return w, ch
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.go")
	require.NoError(t, os.WriteFile(file, []byte("package main"), 0644))

	_, ch := startWatcher(t, watcher.Config{Roots: []string{dir}, DebounceDur: 50 * time.Millisecond})

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf("package main // %d", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case batch := <-ch:
		require.Equal(t, []string{file}, batch.Paths)
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-ch:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("initial"), 0644))

	_, ch := startWatcher(t, watcher.Config{
		Roots:       []string{dir},
		Extensions:  []string{".go"},
		DebounceDur: 50 * time.Millisecond,
	})

	require.NoError(t, os.WriteFile(other, []byte("changed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.go"), []byte("x"), 0644))

	select {
	case batch := <-ch:
		t.Fatalf("unexpected batch %v", batch.Paths)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	_, ch := startWatcher(t, watcher.Config{Roots: []string{dir}, DebounceDur: 50 * time.Millisecond})

	sub := filepath.Join(dir, "pages")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the loop time to register the new directory.
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "index.go")
	require.NoError(t, os.WriteFile(file, []byte("package pages"), 0644))

	select {
	case batch := <-ch:
		require.Contains(t, batch.Paths, file)
	case <-time.After(time.Second):
		t.Fatal("expected notification for file in new directory")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	_, err = w.Start()
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestNew_Errors(t *testing.T) {
	_, err := watcher.New(watcher.Config{})
	require.Error(t, err)

	w, err := watcher.New(watcher.Config{Roots: []string{filepath.Join(t.TempDir(), "missing")}})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.ErrorContains(t, err, "watching directory")
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("src", "config")
	require.Equal(t, []string{"src", "config"}, cfg.Roots)
	require.Equal(t, 200*time.Millisecond, cfg.DebounceDur)
	require.Empty(t, cfg.Extensions)
}
