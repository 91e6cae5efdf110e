package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks transport or connection failures of the backing store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInconsistentTree is returned when traversal meets a cycle or a
	// hierarchy deeper than MaxBranchDepth.
	ErrInconsistentTree = errors.New("inconsistent category tree")
	ErrInvalidField     = errors.New("invalid field update")
)

// Unavailable wraps a backend error so callers can match it with ErrUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
