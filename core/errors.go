package core

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed overlay field. It is raised
// before any store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid overlay: %s %s", e.Field, e.Reason)
}

// NotFoundError reports an id the persistence service does not know.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("overlay with id %s not found", e.ID)
}

// TransportError wraps a failure to reach the persistence service or an
// unexpected answer from it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound matches unknown overlay and layout ids.
func IsNotFound(err error) bool {
	var overlay *NotFoundError
	var layout *LayoutNotFoundError
	return errors.As(err, &overlay) || errors.As(err, &layout)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
