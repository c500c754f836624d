package features

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup by id that matched no feature.
	ErrNotFound = errors.New("feature not found")
	// ErrInvalidState marks an operation that is not allowed for the
	// feature's current status (e.g. skipping a passing feature).
	ErrInvalidState = errors.New("invalid feature state")
	// ErrStore marks an underlying persistence failure.
	ErrStore = errors.New("feature store failure")

	// ErrNoPendingWork is returned by Next when every feature passes. It
	// satisfies errors.Is(err, ErrNotFound).
	ErrNoPendingWork error = &noPendingWork{}
)

type noPendingWork struct{}

func (*noPendingWork) Error() string { return "no pending features" }

func (*noPendingWork) Unwrap() error { return ErrNotFound }

// ValidationError describes one rejected field. Index is the position within
// a bulk request, or -1 for single-feature operations.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("features[%d].%s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
