// Package script loads plugins written as Go source files and runs them with
// the yaegi interpreter.
//
// A script is a single Go file. Every function below is optional, except
// that Hook is required once HookNames or Commands return anything:
//
//	func Apply(opts map[string]interface{}) error
//	func Presets() []string
//	func Plugins() []string
//	func HookNames() []string
//	func Commands() []string
//	func Hook(name string, opts, value interface{}) (interface{}, error)
//	func OptionsSchema() string
//
// OptionsSchema returns a YAML or JSON schema the plugin's options are checked
// against after Apply.
package script

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/zjrosen/tapkit/internal/hook"
	"github.com/zjrosen/tapkit/internal/schema"
	"github.com/zjrosen/tapkit/internal/kernel"
	"github.com/zjrosen/tapkit/internal/log"
)

// Ext is the extension of script plugins.
const Ext = ".go"

var (
	// ErrForbiddenImport is returned for scripts importing packages outside
	// the allow-list.
	ErrForbiddenImport = errors.New("forbidden import")
	// ErrBadSignature is returned when an exported script function has an
	// unexpected type.
	ErrBadSignature = errors.New("unexpected function signature")
	// ErrMissingHook is returned when a script declares hooks or commands
	// without a Hook function.
	ErrMissingHook = errors.New("script declares hooks but no Hook function")
)

// Loader serves path identities ending in .go whose paths were registered.
type Loader struct {
	mu      sync.RWMutex
	preds   []kernel.Predicate
	allowed map[string]bool
}

var (
	_ kernel.Loader          = (*Loader)(nil)
	_ kernel.SourceRegistrar = (*Loader)(nil)
)

// Option configures a Loader.
type Option func(*Loader)

// WithAllowedImports restricts scripts to the listed standard library
// packages. Without it any standard library package may be imported.
func WithAllowedImports(pkgs ...string) Option {
	return func(l *Loader) {
		l.allowed = make(map[string]bool, len(pkgs))
		for _, p := range pkgs {
			l.allowed[p] = true
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds path predicates. Registering a predicate twice is harmless.
func (l *Loader) Register(preds ...kernel.Predicate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.preds = append(l.preds, preds...)
}

// Match reports whether path is a script some predicate selects.
func (l *Loader) Match(path string) bool {
	if filepath.Ext(path) != Ext {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.preds {
		if p(path) {
			return true
		}
	}
	return false
}

// Load interprets the script at path and returns its entry point.
func (l *Loader) Load(path string) (kernel.ApplyFunc, error) {
	src, err := os.ReadFile(path) //nolint:gosec // G304: path was registered by the kernel
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	pkg, err := l.inspect(path, src)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", filepath.Base(path), err)
	}

	s := &script{path: path}
	if err := s.bind(i, pkg); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	log.Debug(log.CatScript, "Loaded script", "path", path, "hooks", len(s.hookNames), "commands", len(s.commands))
	return s.apply, nil
}

// inspect returns the package name and checks imports against the
// allow-list.
func (l *Loader) inspect(path string, src []byte) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, src, parser.ImportsOnly)
	if err != nil {
		return "", fmt.Errorf("parse script: %w", err)
	}
	if l.allowed == nil {
		return f.Name.Name, nil
	}

	var forbidden []string
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return "", fmt.Errorf("parse import %s: %w", imp.Path.Value, err)
		}
		if !l.allowed[p] {
			forbidden = append(forbidden, p)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return "", fmt.Errorf("%w: %v", ErrForbiddenImport, forbidden)
	}
	return f.Name.Name, nil
}

type hookFunc = func(name string, opts, value interface{}) (interface{}, error)

// script is one interpreted plugin.
type script struct {
	path string

	// mu serializes calls into the interpreter.
	mu        sync.Mutex
	applyFn   func(map[string]interface{}) error
	presets   []string
	plugins   []string
	hookNames []string
	commands  []string
	hook      hookFunc
	schema    *schema.Schema
}

func (s *script) bind(i *interp.Interpreter, pkg string) error {
	lookup := func(name string) (any, bool) {
		v, err := i.Eval(pkg + "." + name)
		if err != nil || !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}
	list := func(name string) ([]string, error) {
		v, ok := lookup(name)
		if !ok {
			return nil, nil
		}
		fn, ok := v.(func() []string)
		if !ok {
			return nil, fmt.Errorf("func %s: %w, want func() []string", name, ErrBadSignature)
		}
		return fn(), nil
	}

	var err error
	if s.presets, err = list("Presets"); err != nil {
		return err
	}
	if s.plugins, err = list("Plugins"); err != nil {
		return err
	}
	if s.hookNames, err = list("HookNames"); err != nil {
		return err
	}
	if s.commands, err = list("Commands"); err != nil {
		return err
	}

	if v, ok := lookup("Apply"); ok {
		fn, ok := v.(func(map[string]interface{}) error)
		if !ok {
			return fmt.Errorf("func Apply: %w, want func(map[string]interface{}) error", ErrBadSignature)
		}
		s.applyFn = fn
	}
	if v, ok := lookup("Hook"); ok {
		fn, ok := v.(hookFunc)
		if !ok {
			return fmt.Errorf("func Hook: %w, want func(string, interface{}, interface{}) (interface{}, error)", ErrBadSignature)
		}
		s.hook = fn
	}
	if v, ok := lookup("OptionsSchema"); ok {
		fn, ok := v.(func() string)
		if !ok {
			return fmt.Errorf("func OptionsSchema: %w, want func() string", ErrBadSignature)
		}
		if s.schema, err = schema.Parse([]byte(fn())); err != nil {
			return err
		}
	}
	if s.hook == nil && len(s.hookNames)+len(s.commands) > 0 {
		return ErrMissingHook
	}
	return nil
}

func (s *script) apply(c *kernel.Context, opts map[string]any) (*kernel.Yield, error) {
	if s.schema != nil {
		c.SetOptionsSchema(func() *schema.Schema { return s.schema })
	}
	if s.applyFn != nil {
		s.mu.Lock()
		err := s.applyFn(opts)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	for _, name := range s.hookNames {
		if err := c.RegisterHook(hook.Hook{Name: name, Fn: s.handler(name)}); err != nil {
			return nil, err
		}
	}
	for _, name := range s.commands {
		if err := c.RegisterCommand(kernel.Command{Name: name, Fn: s.handler(name)}); err != nil {
			return nil, err
		}
	}

	if len(s.presets)+len(s.plugins) == 0 {
		return nil, nil
	}
	return &kernel.Yield{Presets: toAny(s.presets), Plugins: toAny(s.plugins)}, nil
}

func (s *script) handler(name string) hook.Func {
	return func(_ context.Context, opts any, value any) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.hook(name, exportValue(opts), value)
	}
}

// exportValue converts kernel types scripts cannot name into plain maps.
func exportValue(v any) any {
	if o, ok := v.(kernel.RunOpts); ok {
		return map[string]interface{}{
			"args":    o.Args,
			"options": o.Options,
			"isHelp":  o.IsHelp,
			"config":  o.Config,
		}
	}
	return v
}

func toAny(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
