package hook

import (
	"cmp"
	"slices"
)

// schedule returns regs in execution order.
//
// Registrations are stably sorted by stage. A registration naming identities
// in Before is then placed immediately ahead of the first registration owned
// by any of them. Identities without registrations on this name are ignored,
// as is a plugin naming itself.
func schedule(name string, regs []Registration) ([]Registration, error) {
	sorted := slices.Clone(regs)
	slices.SortStableFunc(sorted, func(a, b Registration) int {
		return cmp.Compare(a.Stage, b.Stage)
	})

	s := &scheduler{
		name:   name,
		sorted: sorted,
		state:  make([]visitState, len(sorted)),
		out:    make([]Registration, 0, len(sorted)),
	}
	for i := range sorted {
		if err := s.emit(i); err != nil {
			return nil, err
		}
	}
	return s.out, nil
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	emitted
)

type scheduler struct {
	name   string
	sorted []Registration
	state  []visitState
	stack  []int
	out    []Registration
}

// emit appends sorted[i] after first emitting every registration that must
// precede it.
func (s *scheduler) emit(i int) error {
	switch s.state[i] {
	case emitted:
		return nil
	case visiting:
		return s.cycle(i)
	}

	s.state[i] = visiting
	s.stack = append(s.stack, i)

	owner := s.sorted[i].Plugin
	for j, reg := range s.sorted {
		if j == i || !reg.precedes(owner) {
			continue
		}
		if err := s.emit(j); err != nil {
			return err
		}
	}

	s.stack = s.stack[:len(s.stack)-1]
	s.state[i] = emitted
	s.out = append(s.out, s.sorted[i])
	return nil
}

func (s *scheduler) cycle(i int) error {
	start := slices.Index(s.stack, i)
	var ids []string
	for _, idx := range s.stack[start:] {
		id := s.sorted[idx].Plugin
		if len(ids) == 0 || ids[len(ids)-1] != id {
			ids = append(ids, id)
		}
	}
	ids = append(ids, s.sorted[i].Plugin)
	return &CycleError{Name: s.name, Identities: ids}
}
