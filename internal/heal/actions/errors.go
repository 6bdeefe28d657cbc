package actions

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is returned by Do for names outside the operation surface.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArguments is returned by Do when an argument is missing or mistyped.
	ErrInvalidArguments = errors.New("invalid operation arguments")
	// ErrNoOptions is returned when SelectRandomOption finds nothing it could pick.
	ErrNoOptions = errors.New("no valid options found")
)

// ActionFailedError wraps a failure of a named operation, resolution included.
type ActionFailedError struct {
	Op     string
	Target string
	Err    error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("action %s on %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *ActionFailedError) Unwrap() error { return e.Err }
