package nest

import "errors"

var (
	// ErrNotFound is returned when a referenced node does not exist or has
	// been deleted.
	ErrNotFound = errors.New("arbor: node not found")

	// ErrCycle is returned when a move would place a subtree under its own
	// descendant (or under itself).
	ErrCycle = errors.New("arbor: cannot move a subtree under its own descendant")

	// ErrBoundaryOverflow is returned when a computed boundary would exceed
	// Config.MaxBoundary.
	ErrBoundaryOverflow = errors.New("arbor: boundary value out of range")

	// ErrConflict is returned when the storage layer reports that the forest
	// was mutated concurrently (lock wait timeout, deadlock, failed
	// optimistic lock). The failed operation left no trace; callers may
	// retry it, and the retry re-reads fresh boundaries.
	ErrConflict = errors.New("arbor: forest was modified concurrently")

	// ErrInvalidState is returned when stored boundaries violate the
	// encoding (left >= right, non-positive boundaries on an attached row).
	ErrInvalidState = errors.New("arbor: invalid boundary state")
)

// IsRetryable reports whether err is a transient concurrency failure that
// the caller is expected to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
