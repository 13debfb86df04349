package format

import (
	"errors"
	"fmt"
)

// ErrNotBinary marks a FormatError raised because the magic bytes are absent.
// Callers may fall back to a text statistics format.
var ErrNotBinary = errors.New("format: not a binary model")

// FormatError reports an unrecognized or corrupt header.
//
// The wrapped cause, if any, is available through errors.Unwrap.
type FormatError struct {
	Path     string
	Reason   string
	Expected string
	Found    string
	cause    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("format: %s: %s", e.Path, e.Reason)
	if e.Expected != "" || e.Found != "" {
		msg += fmt.Sprintf(" (expected %s, found %s)", e.Expected, e.Found)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.cause }

// UnsupportedOrderError reports a model whose order exceeds the maximum this
// build or configuration accepts.
type UnsupportedOrderError struct {
	Path       string
	MaxOrder   int
	ModelOrder int
}

func (e *UnsupportedOrderError) Error() string {
	return fmt.Sprintf("format: %s: model order %d exceeds maximum order %d", e.Path, e.ModelOrder, e.MaxOrder)
}

// NewFormatError returns a FormatError for path wrapping cause.
func NewFormatError(path, reason string, cause error) *FormatError {
	return &FormatError{Path: path, Reason: reason, cause: cause}
}

// NewMismatchError returns a FormatError carrying the expected and found
// values of a failed check.
func NewMismatchError(path, reason, expected, found string, cause error) *FormatError {
	return &FormatError{Path: path, Reason: reason, Expected: expected, Found: found, cause: cause}
}
