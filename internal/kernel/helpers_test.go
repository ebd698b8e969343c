package kernel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/hook"
)

type stubLoader struct {
	project config.Project
	ok      bool
}

func (s stubLoader) Load(string) (config.Project, bool) {
	return s.project, s.ok
}

// journal records the order in which presets, plugins and handlers ran.
type journal struct {
	events []string
}

func (tr *journal) add(e string) {
	tr.events = append(tr.events, e)
}

type testKernel struct {
	*Kernel
	out *bytes.Buffer
}

func newTestKernel(t *testing.T, cat *Catalog, opts Options) testKernel {
	t.Helper()
	out := &bytes.Buffer{}
	if opts.AppPath == "" {
		opts.AppPath = t.TempDir()
	}
	if opts.ConfigLoader == nil {
		opts.ConfigLoader = stubLoader{}
	}
	opts.Resolver = cat
	opts.Output = out
	k, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(k.Close)
	return testKernel{Kernel: k, out: out}
}

// plugin builds an ApplyFunc that records its application and runs setup.
func plugin(tr *journal, id string, setup func(c *Context) error) ApplyFunc {
	return func(c *Context, _ map[string]any) (*Yield, error) {
		tr.add(id)
		if setup != nil {
			if err := setup(c); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

// preset builds an ApplyFunc yielding the given declarations.
func preset(tr *journal, id string, presets, plugins []any) ApplyFunc {
	return func(c *Context, _ map[string]any) (*Yield, error) {
		tr.add(id)
		return &Yield{Presets: presets, Plugins: plugins}, nil
	}
}

func tapValue(name string, fn func(v any) any) func(c *Context) error {
	return func(c *Context) error {
		return c.RegisterHook(hook.Hook{Name: name, Fn: func(_ context.Context, _ any, v any) (any, error) {
			return fn(v), nil
		}})
	}
}

func command(name string, tr *journal) func(c *Context) error {
	return func(c *Context) error {
		return c.RegisterCommand(Command{Name: name, Fn: func(_ context.Context, _ any, _ any) (any, error) {
			tr.add("run:" + name)
			return nil, nil
		}})
	}
}
