package repository

import (
	"context"

	"ecoride/internal/domain"
)

// RiderRepository defines the persistence operations for riders.
type RiderRepository interface {
	Create(ctx context.Context, rider *domain.Rider) error
	GetByID(ctx context.Context, id string) (*domain.Rider, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Rider, error)
}
