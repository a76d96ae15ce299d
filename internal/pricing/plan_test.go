package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecoride/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func planWithDiscount(d domain.PlanDiscount) *domain.SubscriptionPlan {
	return &domain.SubscriptionPlan{
		ID:          "bike_999_1",
		VehicleType: domain.VehicleTypeBike,
		Pricing:     domain.PlanPricing{Monthly: 999, Weekly: 300, Daily: 80, OriginalMonthly: 999},
		Discount:    d,
		Flags:       domain.PlanFlags{Active: true},
	}
}

func TestDiscountedPrice(t *testing.T) {
	t.Parallel()

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	testCases := []struct {
		name     string
		discount domain.PlanDiscount
		unit     domain.PlanDuration
		want     float64
	}{
		{
			name:     "open window applies",
			discount: domain.PlanDiscount{Percentage: 20},
			unit:     domain.PlanDurationMonthly,
			want:     799,
		},
		{
			name:     "weekly unit",
			discount: domain.PlanDiscount{Percentage: 20},
			unit:     domain.PlanDurationWeekly,
			want:     240,
		},
		{
			name:     "expired window falls back",
			discount: domain.PlanDiscount{Percentage: 20, ValidTill: &past},
			unit:     domain.PlanDurationMonthly,
			want:     999,
		},
		{
			name:     "not yet started falls back",
			discount: domain.PlanDiscount{Percentage: 20, ValidFrom: &future},
			unit:     domain.PlanDurationMonthly,
			want:     999,
		},
		{
			name:     "redemptions exhausted falls back",
			discount: domain.PlanDiscount{Percentage: 20, MaxRedemptions: 10, CurrentRedemptions: 10},
			unit:     domain.PlanDurationMonthly,
			want:     999,
		},
		{
			name:     "inside window and below cap",
			discount: domain.PlanDiscount{Percentage: 50, ValidFrom: &past, ValidTill: &future, MaxRedemptions: 10, CurrentRedemptions: 9},
			unit:     domain.PlanDurationDaily,
			want:     40,
		},
		{
			name:     "no discount",
			discount: domain.PlanDiscount{},
			unit:     domain.PlanDurationMonthly,
			want:     999,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DiscountedPrice(planWithDiscount(tc.discount), tc.unit, testNow))
		})
	}
}

func TestDiscountedPrice_ReevaluatedPerCall(t *testing.T) {
	t.Parallel()

	till := testNow.Add(time.Minute)
	plan := planWithDiscount(domain.PlanDiscount{Percentage: 20, ValidTill: &till})

	assert.Equal(t, 799.0, DiscountedPrice(plan, domain.PlanDurationMonthly, testNow))
	assert.Equal(t, 999.0, DiscountedPrice(plan, domain.PlanDurationMonthly, testNow.Add(2*time.Minute)))
}

func TestCheckDiscount_Reasons(t *testing.T) {
	t.Parallel()

	past := testNow.Add(-time.Hour)
	assert.ErrorIs(t, CheckDiscount(domain.PlanDiscount{}, testNow), ErrNoDiscount)
	assert.ErrorIs(t, CheckDiscount(domain.PlanDiscount{Percentage: 10, ValidTill: &past}, testNow), ErrDiscountExpired)
	assert.ErrorIs(t, CheckDiscount(domain.PlanDiscount{Percentage: 10, MaxRedemptions: 1, CurrentRedemptions: 1}, testNow), ErrRedemptionExhausted)
	assert.NoError(t, CheckDiscount(domain.PlanDiscount{Percentage: 10}, testNow))
}

func TestSavingsPercentage(t *testing.T) {
	t.Parallel()

	plan := planWithDiscount(domain.PlanDiscount{Percentage: 20})
	assert.Equal(t, 20, SavingsPercentage(plan, testNow))

	plan.Discount = domain.PlanDiscount{}
	assert.Equal(t, 0, SavingsPercentage(plan, testNow))
}

func TestEstimatedCostPerKm(t *testing.T) {
	t.Parallel()

	plan := planWithDiscount(domain.PlanDiscount{})
	plan.Benefits.UnlimitedRides = true
	assert.Equal(t, 11.1, EstimatedCostPerKm(plan))

	plan.Benefits = domain.PlanBenefits{IncludedKm: 100}
	assert.Equal(t, 9.99, EstimatedCostPerKm(plan))

	plan.Benefits = domain.PlanBenefits{}
	assert.Zero(t, EstimatedCostPerKm(plan))
}

func TestDefaultUnitPrices(t *testing.T) {
	t.Parallel()

	weekly, daily := DefaultUnitPrices(1000, 0, 0)
	assert.Equal(t, 300.0, weekly)
	assert.Equal(t, 80.0, daily)

	weekly, daily = DefaultUnitPrices(1000, 250, 50)
	assert.Equal(t, 250.0, weekly)
	assert.Equal(t, 50.0, daily)
}

func TestCheckEligibility(t *testing.T) {
	t.Parallel()

	dob := func(years int) *time.Time {
		d := testNow.AddDate(-years, 0, -1)
		return &d
	}

	base := func() *domain.SubscriptionPlan {
		p := planWithDiscount(domain.PlanDiscount{})
		p.Eligibility = domain.PlanEligibility{MinAge: 18, MaxAge: 60}
		return p
	}

	testCases := []struct {
		name      string
		mutate    func(p *domain.SubscriptionPlan)
		rider     domain.Rider
		completed int
		want      Eligibility
	}{
		{
			name:  "eligible",
			rider: domain.Rider{PhoneVerified: true, DateOfBirth: dob(30)},
			want:  Eligibility{Eligible: true},
		},
		{
			name:   "inactive plan",
			mutate: func(p *domain.SubscriptionPlan) { p.Flags.Active = false },
			rider:  domain.Rider{PhoneVerified: true},
			want:   Eligibility{Reason: ReasonPlanInactive},
		},
		{
			name:   "verification required",
			mutate: func(p *domain.SubscriptionPlan) { p.Eligibility.RequiresVerification = true },
			rider:  domain.Rider{PhoneVerified: false},
			want:   Eligibility{Reason: ReasonVerificationRequired},
		},
		{
			name:  "too young",
			rider: domain.Rider{DateOfBirth: dob(16)},
			want:  Eligibility{Reason: ReasonAgeRestricted},
		},
		{
			name:  "too old",
			rider: domain.Rider{DateOfBirth: dob(61)},
			want:  Eligibility{Reason: ReasonAgeRestricted},
		},
		{
			name:  "unknown date of birth skips age rule",
			rider: domain.Rider{},
			want:  Eligibility{Eligible: true},
		},
		{
			name:   "new users excluded",
			mutate: func(p *domain.SubscriptionPlan) { p.Eligibility.ExcludeNewUsers = true },
			rider:  domain.Rider{},
			want:   Eligibility{Reason: ReasonNewUsersExcluded},
		},
		{
			name:      "returning user passes exclusion",
			mutate:    func(p *domain.SubscriptionPlan) { p.Eligibility.ExcludeNewUsers = true },
			rider:     domain.Rider{},
			completed: 3,
			want:      Eligibility{Eligible: true},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := base()
			if tc.mutate != nil {
				tc.mutate(p)
			}
			rider := tc.rider
			assert.Equal(t, tc.want, CheckEligibility(p, &rider, tc.completed, testNow))
		})
	}
}

func TestRecommendedVehicle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.VehicleTypeBike, RecommendedVehicle(0, 0))
	assert.Equal(t, domain.VehicleTypeBike, RecommendedVehicle(12, 0))
	assert.Equal(t, domain.VehicleTypeBike, RecommendedVehicle(4.99, 5))
	assert.Equal(t, domain.VehicleTypeCar, RecommendedVehicle(5, 5))
}

func TestSelectRecommended(t *testing.T) {
	t.Parallel()

	plans := []*domain.SubscriptionPlan{
		{ID: "a", VehicleType: domain.VehicleTypeCar, Flags: domain.PlanFlags{Active: true, Recommended: true}, Stats: domain.PlanStats{ConversionRate: 0.2}},
		{ID: "b", VehicleType: domain.VehicleTypeCar, Flags: domain.PlanFlags{Active: false, Recommended: true}, Stats: domain.PlanStats{ConversionRate: 0.9}},
		{ID: "c", VehicleType: domain.VehicleTypeCar, Flags: domain.PlanFlags{Active: true, Recommended: true}, Stats: domain.PlanStats{ConversionRate: 0.4}},
		{ID: "d", VehicleType: domain.VehicleTypeBike, Flags: domain.PlanFlags{Active: true, Recommended: true}, Stats: domain.PlanStats{ConversionRate: 0.8}},
		{ID: "e", VehicleType: domain.VehicleTypeCar, Flags: domain.PlanFlags{Active: true}, Stats: domain.PlanStats{ConversionRate: 0.95}},
	}

	got := SelectRecommended(plans, domain.VehicleTypeCar)
	if assert.NotNil(t, got) {
		assert.Equal(t, "c", got.ID)
	}
	assert.Nil(t, SelectRecommended(plans[:2], domain.VehicleTypeBike))
}
