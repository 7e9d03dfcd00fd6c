package nest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProperty reports a schema node that is not a Scalar, Single or
	// Collection (in practice: a nil Property or a nil pointer).
	ErrUnknownProperty = errors.New("nest: unknown property kind")

	// ErrMissingColumn reports a row that lacks a column referenced by the
	// schema. It is distinct from a present column holding nil.
	ErrMissingColumn = errors.New("nest: missing column")

	// ErrInvalidSchema reports a schema rejected by Validate, or a field that
	// holds a value of the wrong shape while hydrating.
	ErrInvalidSchema = errors.New("nest: invalid schema")
)

// ColumnError describes a failed column lookup.
type ColumnError struct {
	// Path is the dotted field path of the property, e.g. "tracks.id".
	Path   string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: column %q (field %s)", e.Err, e.Column, e.Path)
}

func (e *ColumnError) Unwrap() error { return e.Err }
