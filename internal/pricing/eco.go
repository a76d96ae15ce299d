package pricing

import "ecoride/internal/domain"

const (
	// BaselineKmPerLiter is the efficiency of the combustion vehicle a ride replaces.
	BaselineKmPerLiter = 15.0
	// CO2KgPerLiter is the petrol emission factor.
	CO2KgPerLiter = 2.31
	// CO2KgPerTreeYear is what one tree absorbs in a year.
	CO2KgPerTreeYear = 21.77
)

// EcoImpact derives the environmental saving for an actual distance in km.
// Trees are computed from the rounded CO2 figure.
func EcoImpact(distanceKm float64) domain.EcoImpact {
	if distanceKm < 0 {
		distanceKm = 0
	}
	fuel := distanceKm / BaselineKmPerLiter
	co2 := Round2(fuel * CO2KgPerLiter)
	return domain.EcoImpact{
		FuelSaved:       Round2(fuel),
		CO2Saved:        co2,
		TreesEquivalent: Round4(co2 / CO2KgPerTreeYear),
	}
}
