// Package pricing holds the pure fare, eco-impact and plan price rules.
// Nothing here touches storage or the network.
package pricing

import (
	"math"

	"ecoride/internal/domain"
)

// Schedule is the distance tariff for one vehicle type.
type Schedule struct {
	BaseFare   float64 // covers the first IncludedKm
	IncludedKm float64
	PerKmRate  float64 // charged for every km beyond IncludedKm
}

// DefaultSchedules are the tariffs for each vehicle type.
var DefaultSchedules = map[domain.VehicleType]Schedule{
	domain.VehicleTypeBike: {BaseFare: 15, IncludedKm: 1, PerKmRate: 6},
	domain.VehicleTypeCar:  {BaseFare: 30, IncludedKm: 2, PerKmRate: 15},
}

// Adjustments are fare components supplied by external policies.
type Adjustments struct {
	TimeFare float64
	Surge    float64
	Discount float64
	Taxes    float64
	Tip      float64
}

// FareInput is everything the fare calculation needs.
type FareInput struct {
	VehicleType  domain.VehicleType
	DistanceKm   float64
	Subscription bool
	Adjustments  Adjustments
}

// CalculateFare builds the fare breakdown for a ride. A subscription ride has
// its base and distance cost waived through SubscriptionDiscount.
func CalculateFare(in FareInput) (domain.FareBreakdown, error) {
	sched, ok := DefaultSchedules[in.VehicleType]
	if !ok {
		return domain.FareBreakdown{}, &domain.ValidationError{Field: "vehicle_type", Message: "must be bike or car"}
	}
	if in.DistanceKm < 0 || math.IsNaN(in.DistanceKm) || math.IsInf(in.DistanceKm, 0) {
		return domain.FareBreakdown{}, &domain.ValidationError{Field: "estimated_distance", Message: "must be a non-negative number"}
	}
	adj := in.Adjustments
	if adj.TimeFare < 0 || adj.Surge < 0 || adj.Discount < 0 || adj.Taxes < 0 || adj.Tip < 0 {
		return domain.FareBreakdown{}, &domain.ValidationError{Field: "fare", Message: "components must not be negative"}
	}

	base := sched.BaseFare
	distance := DistanceFare(sched, in.DistanceKm)

	subscriptionDiscount := 0.0
	if in.Subscription {
		subscriptionDiscount = base + distance
	}

	total := base + distance + adj.TimeFare + adj.Surge + adj.Taxes + adj.Tip - adj.Discount - subscriptionDiscount
	if total < 0 {
		total = 0
	}

	return domain.FareBreakdown{
		BaseFare:             Round2(base),
		DistanceFare:         Round2(distance),
		TimeFare:             Round2(adj.TimeFare),
		SurgePricing:         Round2(adj.Surge),
		Discount:             Round2(adj.Discount),
		SubscriptionDiscount: Round2(subscriptionDiscount),
		Taxes:                Round2(adj.Taxes),
		Tip:                  Round2(adj.Tip),
		Total:                Round2(total),
	}, nil
}

// DistanceFare charges only the distance beyond the included kilometers.
func DistanceFare(s Schedule, distanceKm float64) float64 {
	extra := distanceKm - s.IncludedKm
	if extra <= 0 {
		return 0
	}
	return extra * s.PerKmRate
}
