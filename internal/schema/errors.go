package schema

import (
	"fmt"
	"strings"
)

// ValidationError is a single failed constraint.
type ValidationError struct {
	// Path is the dot-separated location of the value, empty for the root.
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every failed constraint of one validation.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ValidationErrors) add(path, format string, args ...any) {
	e.Errors = append(e.Errors, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// asError returns nil when nothing failed.
func (e *ValidationErrors) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
