package kernel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zjrosen/tapkit/internal/log"
)

// Resolver turns a preset or plugin identity into a loadable module.
type Resolver interface {
	Resolve(appPath, id string) (Module, error)
}

// Loader loads modules from files, for example interpreted scripts.
type Loader interface {
	// Match reports whether the loader serves the absolute path.
	Match(path string) bool
	Load(path string) (ApplyFunc, error)
}

// Predicate selects source paths.
type Predicate func(path string) bool

// SourceRegistrar makes source paths loadable before resolution starts.
// Registering the same paths again must be harmless.
type SourceRegistrar interface {
	Register(preds ...Predicate)
}

// errNoLoader is wrapped into an UnresolvedModuleError for path identities
// no loader accepts.
var errNoLoader = errors.New("no loader accepts this file")

// IsPathID reports whether id names a file rather than a catalog module.
func IsPathID(id string) bool {
	return strings.HasPrefix(id, "./") ||
		strings.HasPrefix(id, "../") ||
		id == "." || id == ".." ||
		filepath.IsAbs(id)
}

// ResolveIDPath returns the absolute file path of a path identity.
func ResolveIDPath(appPath, id string) string {
	if filepath.IsAbs(id) {
		return filepath.Clean(id)
	}
	return filepath.Join(appPath, id)
}

// PathPredicate matches the exact file of a path identity.
func PathPredicate(appPath, id string) Predicate {
	target := ResolveIDPath(appPath, id)
	return func(path string) bool {
		return filepath.Clean(path) == target
	}
}

// Catalog is the default Resolver: compiled-in modules by name plus loaders
// for path identities.
type Catalog struct {
	mu      sync.RWMutex
	modules map[string]ApplyFunc
	loaders []Loader
}

var _ Resolver = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{modules: make(map[string]ApplyFunc)}
}

// Add registers a compiled-in module under name, replacing any previous one.
func (c *Catalog) Add(name string, apply ApplyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[name] = apply
}

// AddLoader appends a loader for path identities. Loaders are tried in the
// order they were added.
func (c *Catalog) AddLoader(l Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders = append(c.loaders, l)
}

// Names returns the compiled-in module names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver.
func (c *Catalog) Resolve(appPath, id string) (Module, error) {
	if IsPathID(id) {
		return c.resolveFile(ResolveIDPath(appPath, id), id)
	}

	c.mu.RLock()
	apply, ok := c.modules[id]
	c.mu.RUnlock()
	if !ok {
		return Module{}, &UnresolvedModuleError{ID: id}
	}
	return Module{Path: id, Apply: apply}, nil
}

func (c *Catalog) resolveFile(path, id string) (Module, error) {
	if _, err := os.Stat(path); err != nil {
		return Module{}, &UnresolvedModuleError{ID: id, Err: err}
	}

	c.mu.RLock()
	loaders := c.loaders
	c.mu.RUnlock()

	for _, l := range loaders {
		if !l.Match(path) {
			continue
		}
		apply, err := l.Load(path)
		if err != nil {
			return Module{}, &UnresolvedModuleError{ID: id, Err: fmt.Errorf("load %s: %w", path, err)}
		}
		log.Debug(log.CatKernel, "Loaded module from file", "id", id, "path", path)
		return Module{Path: path, Apply: apply}, nil
	}
	return Module{}, &UnresolvedModuleError{ID: id, Err: errNoLoader}
}
