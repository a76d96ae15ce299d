package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an optimistic version check or a guarded
	// counter update loses to a concurrent write.
	ErrConflict = errors.New("concurrent modification")

	// ErrDuplicateActiveRide is returned when a rider already holds a ride in a non-terminal status.
	ErrDuplicateActiveRide = errors.New("rider already has an active ride")
)
