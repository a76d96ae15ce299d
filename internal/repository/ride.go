package repository

import (
	"context"

	"ecoride/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. It returns ErrDuplicateActiveRide when the
	// rider already has a ride in a non-terminal status.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// Update writes the ride if its stored version still equals ride.Version,
	// then bumps ride.Version. It returns ErrConflict on a version mismatch.
	Update(ctx context.Context, ride *domain.Ride) error

	// GetActiveByRider returns the rider's non-terminal ride or ErrNotFound.
	GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error)

	// ListByRider returns rides newest first.
	ListByRider(ctx context.Context, riderID string, limit, skip int) ([]*domain.Ride, error)

	// ListActive returns non-terminal rides, newest first.
	ListActive(ctx context.Context, limit int) ([]*domain.Ride, error)

	// EcoStatsByRider sums distance and eco impact over completed rides.
	// A rider with no completed rides yields zero stats.
	EcoStatsByRider(ctx context.Context, riderID string) (domain.EcoStats, error)

	// CompletedDistanceByRider returns the completed-ride count and average actual distance.
	CompletedDistanceByRider(ctx context.Context, riderID string) (count int, avgKm float64, err error)
}
