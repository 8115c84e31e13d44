package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownExtension is returned when no extension matches a block tag
	// and no fallback extension is configured.
	ErrUnknownExtension = errors.New("unknown extension")

	// ErrExtensionFailure wraps any error raised by an extension.
	ErrExtensionFailure = errors.New("extension failure")

	// ErrTimeout is an extension failure caused by the block timeout.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrExtensionFailure)
)

// ExecutionError reports the block that aborted query resolution.
type ExecutionError struct {
	Tag      string
	Position int
	Err      error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	tag := e.Tag
	if tag == "" {
		tag = "<untagged>"
	}
	return fmt.Sprintf("block %d (%s): %v", e.Position, tag, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsTimeout checks if an error was caused by a block timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnknownExtension checks if an error was caused by an unresolvable tag.
func IsUnknownExtension(err error) bool {
	return errors.Is(err, ErrUnknownExtension)
}
