package repository

import (
	"context"

	"ecoride/internal/domain"
)

// PlanFilter narrows plan listings. Zero values match everything.
type PlanFilter struct {
	VehicleType     domain.VehicleType
	ActiveOnly      bool
	RecommendedOnly bool
}

// PlanRepository defines the persistence operations for subscription plans.
// Flag and counter mutations are applied atomically by the store.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.SubscriptionPlan) error
	GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error)
	List(ctx context.Context, filter PlanFilter) ([]*domain.SubscriptionPlan, error)

	// SetRecommended sets the flag on one plan. Setting it to true clears it on
	// every other plan of the same vehicle type in the same atomic write.
	SetRecommended(ctx context.Context, id string, recommended bool) error

	// AddSubscriber increments total and active counts and adds revenue.
	AddSubscriber(ctx context.Context, id string, revenue float64) error

	// RemoveSubscriber decrements the active count, never below zero.
	RemoveSubscriber(ctx context.Context, id string) error

	// IncrementRedemption bumps the discount counter only while below the cap.
	// It returns ErrConflict when the cap is already reached.
	IncrementRedemption(ctx context.Context, id string) error

	// UpdateRates overwrites conversion, renewal and usage rates.
	UpdateRates(ctx context.Context, id string, conversion, renewal, usage float64) error
}
