package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyRated is returned when a side of the ride has already left a rating.
	ErrAlreadyRated = errors.New("ride already rated")

	// ErrRideNotCompleted is returned when an operation needs a completed ride.
	ErrRideNotCompleted = errors.New("ride not completed")
)

// TransitionError reports a rejected status change. The ride is left untouched.
type TransitionError struct {
	From RideStatus
	To   RideStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
