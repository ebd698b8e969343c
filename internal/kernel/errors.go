package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCommand is returned to a plugin registering a command name
	// that is already taken. The first registration stays in effect.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrDuplicatePlatform is the platform counterpart of ErrDuplicateCommand.
	ErrDuplicatePlatform = errors.New("platform already registered")
	// ErrInvalidCommand is returned for a command or platform without a name.
	ErrInvalidCommand = errors.New("invalid command")
)

// UnresolvedModuleError reports a preset or plugin identity that no module
// could be found for.
type UnresolvedModuleError struct {
	ID  string
	Err error
}

func (e *UnresolvedModuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("resolve %q: module not found", e.ID)
}

func (e *UnresolvedModuleError) Unwrap() error {
	return e.Err
}

// DuplicateIdentityError reports a second registration of an identity.
type DuplicateIdentityError struct {
	ID           string
	ExistingPath string
	NewPath      string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("plugin %q already registered from %s (again from %s)", e.ID, e.ExistingPath, e.NewPath)
}

// InvalidOptionsError reports options rejected by the plugin's schema.
type InvalidOptionsError struct {
	ID  string
	Err error
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("plugin %q: invalid options: %v", e.ID, e.Err)
}

func (e *InvalidOptionsError) Unwrap() error {
	return e.Err
}

// UnknownCommandError is returned by Run for a command no plugin registered.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// UnknownPlatformError is returned by Run for a platform no plugin registered.
type UnknownPlatformError struct {
	Name string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q", e.Name)
}
