package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a status update would violate the
// request lifecycle graph.
var ErrInvalidTransition = errors.New("invalid status transition")

// DuplicateError is returned when a create would duplicate the
// (source_ip, destination_ip, port, protocol) tuple of an existing request.
// ExistingID identifies the conflicting record.
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate request: conflicts with %s", e.ExistingID)
}
