// Package watcher watches project directories and reports debounced batches
// of changed files.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/tapkit/internal/log"
)

// Config holds watcher configuration options.
type Config struct {
	// Roots are watched recursively. New subdirectories are picked up as they
	// appear.
	Roots []string
	// Extensions limits events to files with these extensions (".go", ".yaml").
	// Empty accepts every file.
	Extensions  []string
	DebounceDur time.Duration
}

// DefaultConfig watches roots with a short debounce suited to rebuilds.
func DefaultConfig(roots ...string) Config {
	return Config{
		Roots:       roots,
		DebounceDur: 200 * time.Millisecond,
	}
}

// Batch lists the files changed during one debounce window, sorted.
type Batch struct {
	Paths []string
}

// Watcher monitors directory trees and sends one Batch per burst of changes.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	roots      []string
	extensions []string
	debounce   time.Duration
	onChange   chan Batch
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("watcher requires at least one root")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	debounce := cfg.DebounceDur
	if debounce <= 0 {
		debounce = DefaultConfig().DebounceDur
	}

	return &Watcher{
		fsWatcher:  fsw,
		roots:      slices.Clone(cfg.Roots),
		extensions: slices.Clone(cfg.Extensions),
		debounce:   debounce,
		onChange:   make(chan Batch, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}, nil
}

// Start adds every directory below the roots and begins watching.
func (w *Watcher) Start() (<-chan Batch, error) {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			return nil, err
		}
	}

	w.started.Store(true)
	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and waits for its goroutine to exit. It is safe
// to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		if w.started.Load() {
			<-w.stopped
		}
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	defer close(w.stopped)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]struct{})
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.ErrorErr(log.CatWatcher, "failed to watch new directory", err, "path", event.Name)
					}
					continue
				}
			}

			if !w.isRelevantEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}
			batch := Batch{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				batch.Paths = append(batch.Paths, p)
			}
			slices.Sort(batch.Paths)
			clear(pending)

			log.Debug(log.CatWatcher, "change batch", "files", len(batch.Paths))
			// Non-blocking send, a batch is dropped while the previous one is unread.
			select {
			case w.onChange <- batch:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether event should trigger a batch.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, filepath.Ext(event.Name))
}
