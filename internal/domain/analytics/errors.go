package analytics

import "errors"

// Domain errors usable with errors.Is().
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("analytics: record not found")

	// ErrEmptyUserID is returned when an operation requires a user id.
	ErrEmptyUserID = errors.New("analytics: user id cannot be empty")

	// ErrInvalidProgress is returned for progress values outside 0-100.
	ErrInvalidProgress = errors.New("analytics: progress out of range")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
