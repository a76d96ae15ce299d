package pricing

import (
	"errors"
	"math"
	"time"

	"ecoride/internal/domain"
)

// Plan discount outcomes. Price queries never surface these; they fall back to list price.
var (
	ErrNoDiscount          = errors.New("plan has no discount")
	ErrDiscountExpired     = errors.New("discount is outside its validity window")
	ErrRedemptionExhausted = errors.New("discount redemption limit reached")
)

const (
	// WeeklyPriceFraction and DailyPriceFraction derive unit prices from the monthly price.
	WeeklyPriceFraction = 0.30
	DailyPriceFraction  = 0.08

	DefaultMinAge = 18
	DefaultMaxAge = 100
)

// DefaultExtraKmRates is charged beyond a plan's included kilometers.
var DefaultExtraKmRates = map[domain.VehicleType]float64{
	domain.VehicleTypeBike: 5,
	domain.VehicleTypeCar:  12,
}

// averageKmPerRide backs the cost-per-km estimate for unlimited plans.
// The figures are heuristics and do not reconcile with CalculateFare.
var averageKmPerRide = map[domain.VehicleType]float64{
	domain.VehicleTypeBike: 3,
	domain.VehicleTypeCar:  8,
}

const ridesPerMonthEstimate = 30

// CheckDiscount reports why a discount does not apply at now, or nil when it does.
// It is evaluated on every call and never cached.
func CheckDiscount(d domain.PlanDiscount, now time.Time) error {
	if d.Percentage <= 0 {
		return ErrNoDiscount
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return ErrDiscountExpired
	}
	if d.ValidTill != nil && now.After(*d.ValidTill) {
		return ErrDiscountExpired
	}
	if d.MaxRedemptions > 0 && d.CurrentRedemptions >= d.MaxRedemptions {
		return ErrRedemptionExhausted
	}
	return nil
}

// DiscountValid reports whether the plan discount applies at now.
func DiscountValid(d domain.PlanDiscount, now time.Time) bool {
	return CheckDiscount(d, now) == nil
}

// DiscountedPrice is the price for a billing unit at now, rounded to a whole unit
// when a discount applies and the list price otherwise.
func DiscountedPrice(p *domain.SubscriptionPlan, unit domain.PlanDuration, now time.Time) float64 {
	price := p.PriceFor(unit)
	if !DiscountValid(p.Discount, now) {
		return price
	}
	pct := math.Min(p.Discount.Percentage, 100)
	return math.Round(price * (1 - pct/100))
}

// SavingsPercentage compares the current monthly price with the original snapshot.
func SavingsPercentage(p *domain.SubscriptionPlan, now time.Time) int {
	original := p.Pricing.OriginalMonthly
	if original <= 0 {
		return 0
	}
	current := DiscountedPrice(p, domain.PlanDurationMonthly, now)
	if current >= original {
		return 0
	}
	return int(math.Round((original - current) / original * 100))
}

// EstimatedCostPerKm is an approximate per-km cost of the monthly plan.
func EstimatedCostPerKm(p *domain.SubscriptionPlan) float64 {
	var km float64
	switch {
	case p.Benefits.UnlimitedRides:
		km = averageKmPerRide[p.VehicleType] * ridesPerMonthEstimate
	case p.Benefits.IncludedKm > 0:
		km = p.Benefits.IncludedKm
	}
	if km <= 0 {
		return 0
	}
	return Round2(p.Pricing.Monthly / km)
}

// DefaultUnitPrices fills weekly and daily prices that were not supplied.
func DefaultUnitPrices(monthly, weekly, daily float64) (float64, float64) {
	if weekly <= 0 {
		weekly = math.Round(monthly * WeeklyPriceFraction)
	}
	if daily <= 0 {
		daily = math.Round(monthly * DailyPriceFraction)
	}
	return weekly, daily
}
