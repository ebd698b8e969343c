package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected Entry
		wantErr  bool
	}{
		{name: "bare identity", raw: "tapkit/plugin-build", expected: Entry{ID: "tapkit/plugin-build"}},
		{name: "pair with options", raw: []any{"p", map[string]any{"a": 1}}, expected: Entry{ID: "p", Options: map[string]any{"a": 1}}},
		{name: "pair with nil options", raw: []any{"p", nil}, expected: Entry{ID: "p"}},
		{name: "single element pair", raw: []any{"p"}, expected: Entry{ID: "p"}},
		{name: "string slice pair", raw: []string{"p"}, expected: Entry{ID: "p"}},
		{name: "pair with yaml map", raw: []any{"p", map[any]any{"k": "v"}}, expected: Entry{ID: "p", Options: map[string]any{"k": "v"}}},
		{name: "object form", raw: map[string]any{"id": "p", "options": map[string]any{"x": true}}, expected: Entry{ID: "p", Options: map[string]any{"x": true}}},
		{name: "object form with path", raw: map[string]any{"path": "./plugins/local.go"}, expected: Entry{ID: "./plugins/local.go"}},
		{name: "yaml object form", raw: map[any]any{"id": "p"}, expected: Entry{ID: "p"}},
		{name: "entry passes through", raw: Entry{ID: "p", Options: map[string]any{"a": 1}}, expected: Entry{ID: "p", Options: map[string]any{"a": 1}}},
		{name: "empty string", raw: "", wantErr: true},
		{name: "number", raw: 42, wantErr: true},
		{name: "nil", raw: nil, wantErr: true},
		{name: "empty pair", raw: []any{}, wantErr: true},
		{name: "pair too long", raw: []any{"p", nil, nil}, wantErr: true},
		{name: "pair non-string identity", raw: []any{1, nil}, wantErr: true},
		{name: "pair non-map options", raw: []any{"p", "opts"}, wantErr: true},
		{name: "object without id", raw: map[string]any{"options": map[string]any{}}, wantErr: true},
		{name: "object with bad options", raw: map[string]any{"id": "p", "options": 3}, wantErr: true},
		{name: "yaml map with non-string key", raw: map[any]any{1: "p"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDeclaration)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_CopiesOptions(t *testing.T) {
	opts := map[string]any{"a": 1}
	e, err := Normalize([]any{"p", opts})
	require.NoError(t, err)
	opts["a"] = 2
	require.Equal(t, 1, e.Options["a"])
}

func TestMerge(t *testing.T) {
	set, err := Merge(
		[]any{"a", []any{"b", map[string]any{"v": 1}}},
		map[string]any{"c": nil, "b": map[string]any{"v": 2}},
		[]string{"a", "d"},
		nil,
	)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "c", "d"}, set.Keys())
	opts, ok := set.Get("b")
	require.True(t, ok)
	require.Equal(t, map[string]any{"v": 2}, opts, "later source overrides options")
	require.True(t, set.Has("d"))
	require.False(t, set.Has("z"))
	require.Equal(t, 4, set.Len())
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  any
	}{
		{name: "bad declaration in sequence", src: []any{42}},
		{name: "unsupported source", src: 3.14},
		{name: "map with bad options", src: map[string]any{"p": "x"}},
		{name: "map with empty key", src: map[string]any{"": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.src)
			require.ErrorIs(t, err, ErrInvalidDeclaration)
		})
	}
}

func TestSet_MergeKeepsPosition(t *testing.T) {
	a := NewSet()
	a.Put(Entry{ID: "x"})
	a.Put(Entry{ID: "y"})

	b := NewSet()
	b.Put(Entry{ID: "z"})
	b.Put(Entry{ID: "x", Options: map[string]any{"n": 1}})

	a.Merge(b)
	a.Merge(nil)

	require.Equal(t, []string{"x", "y", "z"}, a.Keys())
	require.Equal(t, []Entry{
		{ID: "x", Options: map[string]any{"n": 1}},
		{ID: "y"},
		{ID: "z"},
	}, a.Entries())
}

func TestMerge_FirstAppearanceOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOf(rapid.SampledFrom([]string{"a", "b", "c", "d", "e"})).Draw(t, "ids")
		split := rapid.IntRange(0, len(ids)).Draw(t, "split")

		set, err := Merge(ids[:split], ids[split:])
		if err != nil {
			t.Fatal(err)
		}

		var want []string
		seen := map[string]bool{}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				want = append(want, id)
			}
		}
		got := set.Keys()
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})
}
