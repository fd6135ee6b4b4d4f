// Package failure defines the typed failures surfaced by an extraction call.
package failure

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the loader, the staging area and the
// extraction service matches exactly one of these through errors.Is.
var (
	// ErrMissingInput is returned when a required named payload is absent.
	ErrMissingInput = errors.New("missing input")

	// ErrImageCorrupt is returned when the image cannot be parsed as a
	// managed PE module.
	ErrImageCorrupt = errors.New("image corrupt")

	// ErrSymbolsMismatched is returned when the symbol stream does not belong
	// to the image or is in an unsupported format.
	ErrSymbolsMismatched = errors.New("symbols mismatched")

	// ErrIOFailure is returned when reading a payload fails.
	ErrIOFailure = errors.New("i/o failure")
)

var kindNames = []struct {
	kind error
	name string
}{
	{ErrMissingInput, "MissingInput"},
	{ErrImageCorrupt, "ImageCorrupt"},
	{ErrSymbolsMismatched, "SymbolsMismatched"},
	{ErrIOFailure, "IOFailure"},
}

// Error carries the failure kind, the operation that failed and the cause.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // e.g. "read cli header"
	Err  error  // underlying cause, may be nil
}

// New wraps err with a failure kind and operation.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an Error whose cause is a formatted message.
func Newf(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns the taxonomy name of err ("ImageCorrupt", ...) or an empty
// string if err carries no failure kind.
func KindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return ""
}
