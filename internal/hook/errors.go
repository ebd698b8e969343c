package hook

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRegistration is returned when a registration lacks a name, an
// owner or a handler.
var ErrInvalidRegistration = errors.New("invalid hook registration")

// CycleError reports before-constraints on one hook name that cannot all be
// satisfied.
type CycleError struct {
	Name       string
	Identities []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hook %q: ordering cycle between %s", e.Name, strings.Join(e.Identities, " -> "))
}

// HandlerError wraps the failure of a single handler. The invocation stops at
// the first failing handler.
type HandlerError struct {
	Name   string
	Plugin string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hook %q: handler from %q failed: %v", e.Name, e.Plugin, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
