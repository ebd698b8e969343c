package cachemanager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct {
	calls int
	err   error
}

func (c *counter) order(name string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		c.calls++
		if c.err != nil {
			return "", c.err
		}
		return "ordered:" + name, nil
	}
}

func TestMemo_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemo[string, string](NewStore[string, string]("test"), false)
	c := &counter{}

	for i := 0; i < 3; i++ {
		v, err := m.Load(ctx, "modifyConfig", NoExpiration, c.order("modifyConfig"))
		require.NoError(t, err)
		require.Equal(t, "ordered:modifyConfig", v)
	}
	require.Equal(t, 1, c.calls)
	require.Equal(t, Stats{Hits: 2, Misses: 1}, m.Stats())
	require.InDelta(t, 2.0/3.0, m.Stats().HitRatio(), 1e-9)
}

func TestMemo_BypassAlwaysComputes(t *testing.T) {
	ctx := context.Background()
	store := NewStore[string, string]("test")
	m := NewMemo[string, string](store, true)
	c := &counter{}

	for i := 0; i < 3; i++ {
		_, err := m.Load(ctx, "k", NoExpiration, c.order("k"))
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.calls)
	require.Zero(t, store.Len())
	require.Zero(t, m.Stats().HitRatio())
}

func TestMemo_FailuresAreNotStored(t *testing.T) {
	ctx := context.Background()
	m := NewMemo[string, string](NewStore[string, string]("test"), false)
	c := &counter{err: errors.New("cycle")}

	_, err := m.Load(ctx, "k", NoExpiration, c.order("k"))
	require.Error(t, err)
	_, err = m.Load(ctx, "k", NoExpiration, c.order("k"))
	require.Error(t, err)
	require.Equal(t, 2, c.calls)
	require.Equal(t, uint64(2), m.Stats().Failures)
}

func TestMemo_Forget(t *testing.T) {
	ctx := context.Background()
	m := NewMemo[string, string](NewStore[string, string]("test"), false)
	c := &counter{}

	_, _ = m.Load(ctx, "k", NoExpiration, c.order("k"))
	m.Forget(ctx, "k")
	_, _ = m.Load(ctx, "k", NoExpiration, c.order("k"))
	require.Equal(t, 2, c.calls)
}

func TestStats_HitRatioEmpty(t *testing.T) {
	require.Zero(t, Stats{}.HitRatio())
}
