package domain

import (
	"strings"
	"time"
)

// PlanDuration is the billing unit a plan price is quoted in.
type PlanDuration string

const (
	PlanDurationMonthly PlanDuration = "monthly"
	PlanDurationWeekly  PlanDuration = "weekly"
	PlanDurationDaily   PlanDuration = "daily"
)

func (d PlanDuration) IsValid() bool {
	return d == PlanDurationMonthly || d == PlanDurationWeekly || d == PlanDurationDaily
}

// PlanPricing holds list prices. OriginalMonthly is captured once at creation.
type PlanPricing struct {
	Monthly         float64 `json:"monthly" bson:"monthly"`
	Weekly          float64 `json:"weekly" bson:"weekly"`
	Daily           float64 `json:"daily" bson:"daily"`
	OriginalMonthly float64 `json:"original_monthly" bson:"original_monthly"`
}

// PlanBenefits lists what a subscriber gets.
type PlanBenefits struct {
	IncludedKm       float64 `json:"included_km" bson:"included_km"`
	UnlimitedRides   bool    `json:"unlimited_rides" bson:"unlimited_rides"`
	ExtraKmRate      float64 `json:"extra_km_rate" bson:"extra_km_rate"`
	PriorityBooking  bool    `json:"priority_booking" bson:"priority_booking"`
	NoSurge          bool    `json:"no_surge" bson:"no_surge"`
	FreeCancellation bool    `json:"free_cancellation" bson:"free_cancellation"`
	SupportTier      string  `json:"support_tier" bson:"support_tier"`
}

// PlanDiscount is a percentage discount bounded by a time window and a redemption cap.
// A zero MaxRedemptions means uncapped.
type PlanDiscount struct {
	Percentage         float64    `json:"percentage" bson:"percentage"`
	ValidFrom          *time.Time `json:"valid_from,omitempty" bson:"valid_from,omitempty"`
	ValidTill          *time.Time `json:"valid_till,omitempty" bson:"valid_till,omitempty"`
	CouponCode         string     `json:"coupon_code,omitempty" bson:"coupon_code,omitempty"`
	MaxRedemptions     int        `json:"max_redemptions" bson:"max_redemptions"`
	CurrentRedemptions int        `json:"current_redemptions" bson:"current_redemptions"`
}

// PlanFlags controls how a plan is surfaced.
type PlanFlags struct {
	Active      bool `json:"active" bson:"active"`
	Popular     bool `json:"popular" bson:"popular"`
	Featured    bool `json:"featured" bson:"featured"`
	Recommended bool `json:"recommended" bson:"recommended"`
}

// PlanAvailability restricts a plan to cities unless it is universal.
type PlanAvailability struct {
	Cities    []string `json:"cities" bson:"cities"`
	Universal bool     `json:"universal" bson:"universal"`
}

// PlanEligibility restricts who may buy a plan. Zero age bounds are unbounded.
type PlanEligibility struct {
	MinAge               int  `json:"min_age" bson:"min_age"`
	MaxAge               int  `json:"max_age" bson:"max_age"`
	RequiresVerification bool `json:"requires_verification" bson:"requires_verification"`
	ExcludeNewUsers      bool `json:"exclude_new_users" bson:"exclude_new_users"`
}

// PlanStats are lifetime counters driven by subscription events.
type PlanStats struct {
	TotalSubscribers  int     `json:"total_subscribers" bson:"total_subscribers"`
	ActiveSubscribers int     `json:"active_subscribers" bson:"active_subscribers"`
	Revenue           float64 `json:"revenue" bson:"revenue"`
	ConversionRate    float64 `json:"conversion_rate" bson:"conversion_rate"`
	RenewalRate       float64 `json:"renewal_rate" bson:"renewal_rate"`
	UsageRate         float64 `json:"usage_rate" bson:"usage_rate"`
}

// SubscriptionPlan is a purchasable bundle of ride benefits for one vehicle type.
type SubscriptionPlan struct {
	ID               string           `json:"id" bson:"_id"`
	Name             string           `json:"name" bson:"name"`
	Description      string           `json:"description" bson:"description"`
	ShortDescription string           `json:"short_description,omitempty" bson:"short_description,omitempty"`
	VehicleType      VehicleType      `json:"vehicle_type" bson:"vehicle_type"`
	Pricing          PlanPricing      `json:"pricing" bson:"pricing"`
	Benefits         PlanBenefits     `json:"benefits" bson:"benefits"`
	Discount         PlanDiscount     `json:"discount" bson:"discount"`
	Flags            PlanFlags        `json:"flags" bson:"flags"`
	Availability     PlanAvailability `json:"availability" bson:"availability"`
	Eligibility      PlanEligibility  `json:"eligibility" bson:"eligibility"`
	Stats            PlanStats        `json:"stats" bson:"stats"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// AvailableIn reports whether the plan can be bought in the given city.
func (p *SubscriptionPlan) AvailableIn(city string) bool {
	if p.Availability.Universal {
		return true
	}
	for _, c := range p.Availability.Cities {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(city)) {
			return true
		}
	}
	return false
}

// PriceFor returns the undiscounted list price for a billing unit.
func (p *SubscriptionPlan) PriceFor(d PlanDuration) float64 {
	switch d {
	case PlanDurationWeekly:
		return p.Pricing.Weekly
	case PlanDurationDaily:
		return p.Pricing.Daily
	default:
		return p.Pricing.Monthly
	}
}

// AddSubscriber records a new subscription. Revenue may be zero.
func (p *SubscriptionPlan) AddSubscriber(revenue float64) {
	p.Stats.TotalSubscribers++
	p.Stats.ActiveSubscribers++
	if revenue > 0 {
		p.Stats.Revenue += revenue
	}
}

// RemoveSubscriber records a lapsed subscription. The lifetime total is kept.
func (p *SubscriptionPlan) RemoveSubscriber() {
	if p.Stats.ActiveSubscribers > 0 {
		p.Stats.ActiveSubscribers--
	}
}
