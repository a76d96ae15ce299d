package service

import (
	"errors"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
)

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidPlanID is returned when plan ID is empty.
	ErrInvalidPlanID = errors.New("invalid plan id")
)

// Ride lifecycle errors.
var (
	// ErrActiveRideExists is returned when the rider already has a non-terminal ride.
	ErrActiveRideExists = errors.New("rider already has an active ride")

	// ErrDriverUnavailable is returned when assigning a driver who is offline or on another trip.
	ErrDriverUnavailable = errors.New("driver is not available")

	// ErrBookingInProgress is returned when another booking for the rider holds the lock.
	ErrBookingInProgress = errors.New("another booking for this rider is in progress")

	// ErrInvalidTransition matches every rejected status change.
	ErrInvalidTransition = domain.ErrInvalidTransition

	// ErrValidation matches every malformed or missing field.
	ErrValidation = domain.ErrValidation

	// ErrAlreadyRated is returned when a rating was already written for that side.
	ErrAlreadyRated = domain.ErrAlreadyRated

	// ErrRideNotCompleted is returned when rating a ride that has not completed.
	ErrRideNotCompleted = domain.ErrRideNotCompleted
)

// Subscription plan errors. Price queries never return these; only explicit redemption does.
var (
	// ErrNoDiscount is returned when redeeming a plan that carries no discount.
	ErrNoDiscount = pricing.ErrNoDiscount

	// ErrDiscountExpired is returned when the discount window is closed.
	ErrDiscountExpired = pricing.ErrDiscountExpired

	// ErrRedemptionExhausted is returned when the redemption cap is reached.
	ErrRedemptionExhausted = pricing.ErrRedemptionExhausted

	// ErrInvalidCoupon is returned when the coupon code does not match the plan.
	ErrInvalidCoupon = errors.New("invalid coupon code")
)
