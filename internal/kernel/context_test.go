package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tapkit/internal/hook"
)

// loadedContext returns the context of a single plugin "p" after Load.
func loadedContext(t *testing.T, opts Options, setup func(c *Context) error) (testKernel, *Context) {
	t.Helper()
	var captured *Context
	cat := NewCatalog()
	cat.Add("p", func(c *Context, _ map[string]any) (*Yield, error) {
		captured = c
		if setup != nil {
			return nil, setup(c)
		}
		return nil, nil
	})
	opts.Plugins = append(opts.Plugins, "p")
	k := newTestKernel(t, cat, opts)
	require.NoError(t, k.Load(context.Background()))
	require.NotNil(t, captured)
	return k, captured
}

func TestContext_Identity(t *testing.T) {
	_, c := loadedContext(t, Options{}, nil)
	require.Equal(t, "p", c.ID())
	require.Equal(t, "p", c.Path())
	require.Equal(t, KindPlugin, c.Kind())
}

func TestContext_Capabilities(t *testing.T) {
	k, c := loadedContext(t, Options{}, nil)

	require.Equal(t, k.AppPath(), c.AppPath())
	require.Equal(t, k.Paths(), c.Paths())
	require.NotNil(t, c.Helper())
	require.True(t, c.Plugins().Has("p"))
	require.Equal(t, 1, c.Plugins().Len())
	require.Empty(t, c.Platforms())
	require.NotNil(t, c.InitialConfig())
}

func TestContext_PluginViewIsReadOnly(t *testing.T) {
	_, c := loadedContext(t, Options{Plugins: []any{}}, nil)

	d, ok := c.Plugins().Get("p")
	require.True(t, ok)
	d.ID = "changed"
	if d.Options == nil {
		d.Options = map[string]any{}
	}
	d.Options["x"] = 1

	again, _ := c.Plugins().Get("p")
	require.Equal(t, "p", again.ID)
	require.NotContains(t, again.Options, "x")
}

func TestContext_MethodFanOut(t *testing.T) {
	var calls []string
	_, c := loadedContext(t, Options{}, func(c *Context) error {
		c.RegisterMethod("notify",
			func(_ *Context, args ...any) any { calls = append(calls, "first:"+args[0].(string)); return 1 },
			func(_ *Context, args ...any) any { calls = append(calls, "second:"+args[0].(string)); return 2 },
		)
		return nil
	})

	call, ok := c.Method("notify")
	require.True(t, ok)
	require.Nil(t, call("x"))
	require.Equal(t, []string{"first:x", "second:x"}, calls)
}

func TestContext_MethodSingleCallbackResult(t *testing.T) {
	_, c := loadedContext(t, Options{}, func(c *Context) error {
		c.RegisterMethod("answer", func(caller *Context, args ...any) any {
			return caller.ID() + ":" + args[0].(string)
		})
		return nil
	})

	call, ok := c.Method("answer")
	require.True(t, ok)
	require.Equal(t, "p:q", call("q"))

	_, ok = c.Method("missing")
	require.False(t, ok)
}

func TestContext_MethodWithoutCallbackTapsHook(t *testing.T) {
	k, c := loadedContext(t, Options{}, func(c *Context) error {
		c.RegisterMethod("onBuildFinish")
		return nil
	})

	call, _ := c.Method("onBuildFinish")
	var fired bool
	res := call(hook.Func(func(context.Context, any, any) (any, error) {
		fired = true
		return nil, nil
	}))
	require.Nil(t, res)

	_, err := k.Invoke(context.Background(), "onBuildFinish", nil, nil)
	require.NoError(t, err)
	require.True(t, fired)
	require.Equal(t, []string{"p"}, k.Hooks()[0].Plugins)

	err, _ = call("not a handler").(error)
	require.ErrorIs(t, err, errMethodArgument)
}

func TestContext_RedeclaredMethodTapsOnce(t *testing.T) {
	tr := &journal{}
	handler := func(name string) hook.Func {
		return func(context.Context, any, any) (any, error) {
			tr.add(name)
			return nil, nil
		}
	}
	cat := NewCatalog()
	cat.Add("a", plugin(tr, "a", func(c *Context) error {
		c.RegisterMethod("onBuild")
		return nil
	}))
	cat.Add("b", plugin(tr, "b", func(c *Context) error {
		c.RegisterMethod("onBuild")
		c.RegisterMethod(MethodOnReady)
		return nil
	}))
	cat.Add("c", plugin(tr, "c", func(c *Context) error {
		call, ok := c.Method("onBuild")
		require.True(t, ok)
		if err, ok := call(handler("build")).(error); ok {
			return err
		}
		return c.OnReady(handler("ready"))
	}))
	k := newTestKernel(t, cat, Options{Plugins: []any{"a", "b", "c"}})
	require.NoError(t, k.Load(context.Background()))

	_, err := k.Invoke(context.Background(), "onBuild", nil, nil)
	require.NoError(t, err)
	_, err = k.Invoke(context.Background(), MethodOnReady, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "c", "build", "ready"}, tr.events)
	require.Equal(t, []string{MethodOnReady, MethodOnStart, "onBuild"}, k.Methods())
	for _, info := range k.Hooks() {
		require.Equal(t, []string{"c"}, info.Plugins, info.Name)
	}
}

func TestContext_OnReadyOwnedByCaller(t *testing.T) {
	noop := func(context.Context, any, any) (any, error) { return nil, nil }
	cat := NewCatalog()
	cat.Add("a", func(c *Context, _ map[string]any) (*Yield, error) { return nil, c.OnReady(noop) })
	cat.Add("b", func(c *Context, _ map[string]any) (*Yield, error) { return nil, c.OnReady(noop) })
	k := newTestKernel(t, cat, Options{Plugins: []any{"a", "b"}})
	require.NoError(t, k.Load(context.Background()))

	hooks := k.Hooks()
	require.Len(t, hooks, 1)
	require.Equal(t, MethodOnReady, hooks[0].Name)
	require.Equal(t, []string{"a", "b"}, hooks[0].Plugins)
}

func TestContext_LookupPrecedence(t *testing.T) {
	k, c := loadedContext(t, Options{}, func(c *Context) error {
		c.Set("appPath", "local")
		c.Set("paths", "local")
		c.Set("mine", 42)
		c.RegisterMethod("paths", func(*Context, ...any) any { return "slot" })
		return nil
	})

	v, ok := c.Lookup("paths")
	require.True(t, ok)
	call, isFunc := v.(func(args ...any) any)
	require.True(t, isFunc)
	require.Equal(t, "slot", call())

	v, ok = c.Lookup("appPath")
	require.True(t, ok)
	require.Equal(t, k.AppPath(), v)

	v, ok = c.Lookup("mine")
	require.True(t, ok)
	require.Equal(t, 42, v)

	local, ok := c.Local("appPath")
	require.True(t, ok)
	require.Equal(t, "local", local)

	_, ok = c.Lookup("nothing")
	require.False(t, ok)
}

func TestContext_LookupApplyPlugins(t *testing.T) {
	_, c := loadedContext(t, Options{}, func(c *Context) error {
		return c.RegisterHook(hook.Hook{Name: "modifyValue", Fn: func(_ context.Context, _ any, v any) (any, error) {
			return v.(int) * 10, nil
		}})
	})

	v, ok := c.Lookup(CapApplyPlugins)
	require.True(t, ok)
	apply := v.(func(context.Context, string, any, any) (any, error))
	got, err := apply(context.Background(), "modifyValue", nil, 4)
	require.NoError(t, err)
	require.Equal(t, 40, got)
}

func TestContext_RegisterCommandValidates(t *testing.T) {
	_, c := loadedContext(t, Options{}, nil)
	require.ErrorIs(t, c.RegisterCommand(Command{}), ErrInvalidCommand)
	require.ErrorIs(t, c.RegisterPlatform(Platform{}), ErrInvalidCommand)
}

func TestContext_RegisterHookRejectsInvalid(t *testing.T) {
	_, c := loadedContext(t, Options{}, nil)
	require.ErrorIs(t, c.RegisterHook(hook.Hook{Name: "onX"}), hook.ErrInvalidRegistration)
}

func TestRunOpts_Accessors(t *testing.T) {
	o := RunOpts{Options: map[string]any{"platform": "web", "watch": true, "out": "dist"}}
	require.Equal(t, "web", o.Platform())
	require.True(t, o.Bool("watch"))
	require.False(t, o.Bool("platform"))
	require.Equal(t, "dist", o.Text("out"))
	require.Empty(t, RunOpts{}.Platform())
}
