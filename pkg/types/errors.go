package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for argument and row-set validation.
var (
	// ErrInvalidArgument is returned when caller input is missing, malformed,
	// or contradictory (e.g. neither a URL nor an explicit filename).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyRowSet is returned when a table's row source produces zero rows.
	ErrEmptyRowSet = errors.New("empty row set")
)

// UnsupportedTypeError is returned when a value or type name has no mapping
// to a database storage type. The mapping never falls back to TEXT.
type UnsupportedTypeError struct {
	// Type is the unrecognized type name or %T rendering of the value
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported element type %q", e.Type)
}

// DuplicateKeyError is returned when a key column would contain the same
// value more than once.
type DuplicateKeyError struct {
	// Key is the repeated key value
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q", e.Key)
}

// RowArityError is returned when a row's length differs from the first row's
// length in the same insert batch.
type RowArityError struct {
	// Row is the zero-based index of the offending row
	Row int

	// Got is the offending row's length
	Got int

	// Want is the expected length, taken from the first row
	Want int
}

func (e *RowArityError) Error() string {
	return fmt.Sprintf("row %d has %d values, want %d", e.Row, e.Got, e.Want)
}

// BuildError wraps any failure raised while materializing a collection.
// Its presence signals that the partial artifact was (or should be) cleaned up.
type BuildError struct {
	// Collection is the logical collection being built
	Collection string

	// Cause is the underlying engine or row-source error
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building collection %q: %v", e.Collection, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// TransportError wraps a network or protocol failure while fetching a URL.
// It propagates unchanged through the cache layer.
type TransportError struct {
	// URL is the remote source that failed
	URL string

	// Cause is the underlying client or status error
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TransportError) Unwrap() error {
	return e.Cause
}
