// Package descriptor normalizes preset and plugin declarations.
//
// A declaration names a module and optionally carries options. Three shapes
// are accepted:
//
//	"tapkit/plugin-build"                          bare identity
//	["tapkit/plugin-build", {minify: true}]        identity/options pair
//	{id: "tapkit/plugin-build", options: {...}}    object form ("path" is an alias of "id")
package descriptor

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidDeclaration is returned for declarations of an unsupported shape.
var ErrInvalidDeclaration = errors.New("invalid declaration")

// Entry is a normalized declaration.
type Entry struct {
	ID      string
	Options map[string]any
}

// Normalize converts a raw declaration into an Entry.
func Normalize(raw any) (Entry, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return Entry{}, fmt.Errorf("%w: empty identity", ErrInvalidDeclaration)
		}
		return Entry{ID: v}, nil

	case Entry:
		if v.ID == "" {
			return Entry{}, fmt.Errorf("%w: empty identity", ErrInvalidDeclaration)
		}
		return Entry{ID: v.ID, Options: cloneOptions(v.Options)}, nil

	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return normalizePair(items)

	case []any:
		return normalizePair(v)

	default:
		if m, ok := toStringMap(raw); ok {
			return normalizeObject(m)
		}
		return Entry{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDeclaration, raw)
	}
}

func normalizePair(items []any) (Entry, error) {
	if len(items) == 0 || len(items) > 2 {
		return Entry{}, fmt.Errorf("%w: pair must have one or two elements, got %d", ErrInvalidDeclaration, len(items))
	}
	id, ok := items[0].(string)
	if !ok || id == "" {
		return Entry{}, fmt.Errorf("%w: pair identity must be a non-empty string", ErrInvalidDeclaration)
	}
	if len(items) == 1 || items[1] == nil {
		return Entry{ID: id}, nil
	}
	opts, err := toOptions(items[1])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: options for %q: %v", ErrInvalidDeclaration, id, err)
	}
	return Entry{ID: id, Options: opts}, nil
}

func normalizeObject(m map[string]any) (Entry, error) {
	id, _ := m["id"].(string)
	if id == "" {
		id, _ = m["path"].(string)
	}
	if id == "" {
		return Entry{}, fmt.Errorf("%w: object form requires an id or path", ErrInvalidDeclaration)
	}
	raw, ok := m["options"]
	if !ok || raw == nil {
		return Entry{ID: id}, nil
	}
	opts, err := toOptions(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: options for %q: %v", ErrInvalidDeclaration, id, err)
	}
	return Entry{ID: id, Options: opts}, nil
}

func toOptions(raw any) (map[string]any, error) {
	m, ok := toStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("expected a map, got %T", raw)
	}
	return m, nil
}

// toStringMap accepts map[string]any and the map[any]any / map[string]string
// shapes produced by YAML decoding and Go literals.
func toStringMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return maps.Clone(m), true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	}
	return nil, false
}

func cloneOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	return maps.Clone(opts)
}

// Set is an insertion-ordered collection of entries keyed by identity.
type Set struct {
	order   []string
	options map[string]map[string]any
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{options: make(map[string]map[string]any)}
}

// Put adds or replaces an entry. A replaced identity keeps its original
// position.
func (s *Set) Put(e Entry) {
	if _, ok := s.options[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.options[e.ID] = cloneOptions(e.Options)
}

// Get returns the options stored for id.
func (s *Set) Get(id string) (map[string]any, bool) {
	opts, ok := s.options[id]
	return opts, ok
}

// Has reports whether id is present.
func (s *Set) Has(id string) bool {
	_, ok := s.options[id]
	return ok
}

// Keys returns identities in first-appearance order.
func (s *Set) Keys() []string {
	return slices.Clone(s.order)
}

// Entries returns the entries in first-appearance order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.order))
	for i, id := range s.order {
		out[i] = Entry{ID: id, Options: s.options[id]}
	}
	return out
}

func (s *Set) Len() int {
	return len(s.order)
}

// Merge folds other into s with Put semantics.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for _, e := range other.Entries() {
		s.Put(e)
	}
}

// Merge builds a Set from declaration sources. A source is either a sequence
// of declarations or a map of identity to options. Later sources override
// options for identities seen earlier. Map sources have no order of their own
// and contribute their identities sorted.
func Merge(sources ...any) (*Set, error) {
	set := NewSet()
	for i, src := range sources {
		if err := set.add(src); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}
	return set, nil
}

func (s *Set) add(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case *Set:
		s.Merge(v)
		return nil
	case []any:
		for _, raw := range v {
			e, err := Normalize(raw)
			if err != nil {
				return err
			}
			s.Put(e)
		}
		return nil
	case []string:
		for _, id := range v {
			e, err := Normalize(id)
			if err != nil {
				return err
			}
			s.Put(e)
		}
		return nil
	case []Entry:
		for _, e := range v {
			s.Put(e)
		}
		return nil
	}

	m, ok := toStringMap(src)
	if !ok {
		return fmt.Errorf("%w: unsupported source type %T", ErrInvalidDeclaration, src)
	}
	keys := slices.Sorted(maps.Keys(m))
	for _, id := range keys {
		if id == "" {
			return fmt.Errorf("%w: empty identity", ErrInvalidDeclaration)
		}
		var opts map[string]any
		if raw := m[id]; raw != nil {
			o, err := toOptions(raw)
			if err != nil {
				return fmt.Errorf("%w: options for %q: %v", ErrInvalidDeclaration, id, err)
			}
			opts = o
		}
		s.Put(Entry{ID: id, Options: opts})
	}
	return nil
}
