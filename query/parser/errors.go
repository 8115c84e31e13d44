package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLiteral is returned when a quoted literal has no closing quote.
	ErrMalformedLiteral = errors.New("malformed literal")

	// ErrMalformedProperty is returned for a property without '=', an
	// unterminated value or a property list without closing ')'.
	ErrMalformedProperty = errors.New("malformed property")
)

// ParseError reports where in the query a parse failure happened.
type ParseError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func malformedLiteral(offset int, quote byte) error {
	return fmt.Errorf("%w: missing closing %q after offset %d", ErrMalformedLiteral, quote, offset)
}

func malformedProperty(offset int, reason string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformedProperty, reason, offset)
}
