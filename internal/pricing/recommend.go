package pricing

import "ecoride/internal/domain"

// BikeDistanceThresholdKm is the average ride length below which bike plans are recommended.
const BikeDistanceThresholdKm = 5.0

// RecommendedVehicle picks a vehicle type from a rider's ride history.
func RecommendedVehicle(avgDistanceKm float64, completedRides int) domain.VehicleType {
	if completedRides == 0 || avgDistanceKm < BikeDistanceThresholdKm {
		return domain.VehicleTypeBike
	}
	return domain.VehicleTypeCar
}

// SelectRecommended returns the active, recommended plan of the given vehicle
// type with the highest conversion rate, or nil. Ties keep the first candidate.
func SelectRecommended(plans []*domain.SubscriptionPlan, vt domain.VehicleType) *domain.SubscriptionPlan {
	var best *domain.SubscriptionPlan
	for _, p := range plans {
		if p.VehicleType != vt || !p.Flags.Recommended || !p.Flags.Active {
			continue
		}
		if best == nil || p.Stats.ConversionRate > best.Stats.ConversionRate {
			best = p
		}
	}
	return best
}
