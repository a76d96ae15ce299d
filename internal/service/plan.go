package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
	"ecoride/internal/repository"
)

// PlanService evaluates and maintains subscription plans.
type PlanService struct {
	plans  repository.PlanRepository
	riders repository.RiderRepository
	rides  repository.RideRepository
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewPlanService creates a new PlanService. A nil clock uses time.Now.
func NewPlanService(
	plans repository.PlanRepository,
	riders repository.RiderRepository,
	rides repository.RideRepository,
	logger logrus.FieldLogger,
	clock func() time.Time,
) *PlanService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PlanService{
		plans:  plans,
		riders: riders,
		rides:  rides,
		logger: logger,
		now:    clock,
	}
}

// CreatePlanRequest contains the parameters for creating a plan. Zero weekly
// and daily prices, a zero extra-km rate and nil age bounds take defaults.
type CreatePlanRequest struct {
	Name                 string
	Description          string
	ShortDescription     string
	VehicleType          domain.VehicleType
	Monthly              float64
	Weekly               float64
	Daily                float64
	Benefits             domain.PlanBenefits
	Discount             domain.PlanDiscount
	Active               *bool
	Popular              bool
	Featured             bool
	Recommended          bool
	Availability         domain.PlanAvailability
	MinAge               *int
	MaxAge               *int
	RequiresVerification bool
	ExcludeNewUsers      bool
}

// CreatePlan builds a plan with its defaults and stores it. A plan created as
// recommended takes the flag from its siblings.
func (s *PlanService) CreatePlan(ctx context.Context, req CreatePlanRequest) (*domain.SubscriptionPlan, error) {
	if err := validateCreatePlan(req); err != nil {
		return nil, err
	}

	plan := NewPlan(req, s.now())
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}

	if req.Recommended {
		if err := s.plans.SetRecommended(ctx, plan.ID, true); err != nil {
			return nil, err
		}
		plan.Flags.Recommended = true
	}

	s.logger.WithFields(logrus.Fields{
		"plan_id":      plan.ID,
		"vehicle_type": plan.VehicleType,
		"monthly":      plan.Pricing.Monthly,
	}).Info("plan created")

	return plan, nil
}

// NewPlan applies the creation defaults. The recommended flag is left false;
// it is only ever set through SetRecommended.
func NewPlan(req CreatePlanRequest, now time.Time) *domain.SubscriptionPlan {
	weekly, daily := pricing.DefaultUnitPrices(req.Monthly, req.Weekly, req.Daily)

	benefits := req.Benefits
	if benefits.ExtraKmRate <= 0 {
		benefits.ExtraKmRate = pricing.DefaultExtraKmRates[req.VehicleType]
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	minAge, maxAge := pricing.DefaultMinAge, pricing.DefaultMaxAge
	if req.MinAge != nil {
		minAge = *req.MinAge
	}
	if req.MaxAge != nil {
		maxAge = *req.MaxAge
	}

	availability := req.Availability
	if availability.Cities == nil {
		availability.Cities = []string{}
	}

	discount := req.Discount
	discount.CurrentRedemptions = 0

	return &domain.SubscriptionPlan{
		ID:               planID(req.VehicleType, req.Monthly, now),
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		VehicleType:      req.VehicleType,
		Pricing: domain.PlanPricing{
			Monthly:         req.Monthly,
			Weekly:          weekly,
			Daily:           daily,
			OriginalMonthly: req.Monthly,
		},
		Benefits: benefits,
		Discount: discount,
		Flags: domain.PlanFlags{
			Active:   active,
			Popular:  req.Popular,
			Featured: req.Featured,
		},
		Availability: availability,
		Eligibility: domain.PlanEligibility{
			MinAge:               minAge,
			MaxAge:               maxAge,
			RequiresVerification: req.RequiresVerification,
			ExcludeNewUsers:      req.ExcludeNewUsers,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func planID(vt domain.VehicleType, monthly float64, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d", vt, int64(math.Round(monthly)), now.UnixMilli())
}

func validateCreatePlan(req CreatePlanRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return &domain.ValidationError{Field: "name", Message: "is required"}
	case !req.VehicleType.IsValid():
		return &domain.ValidationError{Field: "vehicle_type", Message: "must be bike or car"}
	case !isFinite(req.Monthly) || req.Monthly <= 0:
		return &domain.ValidationError{Field: "pricing.monthly", Message: "must be greater than zero"}
	case req.Weekly < 0 || req.Daily < 0:
		return &domain.ValidationError{Field: "pricing", Message: "must not be negative"}
	case req.Benefits.IncludedKm < 0 || req.Benefits.ExtraKmRate < 0:
		return &domain.ValidationError{Field: "benefits", Message: "must not be negative"}
	case req.Discount.Percentage < 0 || req.Discount.Percentage > 100:
		return &domain.ValidationError{Field: "discount.percentage", Message: "must be between 0 and 100"}
	case req.Discount.MaxRedemptions < 0:
		return &domain.ValidationError{Field: "discount.max_redemptions", Message: "must not be negative"}
	case req.Discount.ValidFrom != nil && req.Discount.ValidTill != nil && req.Discount.ValidTill.Before(*req.Discount.ValidFrom):
		return &domain.ValidationError{Field: "discount.valid_till", Message: "must not precede valid_from"}
	case !req.Availability.Universal && len(req.Availability.Cities) == 0:
		return &domain.ValidationError{Field: "availability", Message: "cities are required unless universal"}
	}

	if (req.MinAge != nil && *req.MinAge < 0) || (req.MaxAge != nil && *req.MaxAge < 0) {
		return &domain.ValidationError{Field: "eligibility", Message: "age bounds must not be negative"}
	}
	if req.MinAge != nil && req.MaxAge != nil && *req.MaxAge > 0 && *req.MinAge > *req.MaxAge {
		return &domain.ValidationError{Field: "eligibility", Message: "min_age must not exceed max_age"}
	}
	return nil
}

// GetPlan retrieves a plan by ID.
func (s *PlanService) GetPlan(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	if planID == "" {
		return nil, ErrInvalidPlanID
	}
	return s.plans.GetByID(ctx, planID)
}

// PlanQuote is the price of a plan for one billing unit at a point in time.
type PlanQuote struct {
	PlanID             string              `json:"plan_id"`
	Unit               domain.PlanDuration `json:"unit"`
	ListPrice          float64             `json:"list_price"`
	Price              float64             `json:"price"`
	DiscountApplied    bool                `json:"discount_applied"`
	SavingsPercentage  int                 `json:"savings_percentage"`
	EstimatedCostPerKm float64             `json:"estimated_cost_per_km"`
}

// Quote prices a plan. An inapplicable discount falls back to list price.
func (s *PlanService) Quote(ctx context.Context, planID string, unit domain.PlanDuration) (*PlanQuote, error) {
	if unit == "" {
		unit = domain.PlanDurationMonthly
	}
	if !unit.IsValid() {
		return nil, &domain.ValidationError{Field: "unit", Message: "must be monthly, weekly or daily"}
	}

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	return QuotePlan(plan, unit, s.now()), nil
}

// QuotePlan prices a loaded plan at now.
func QuotePlan(plan *domain.SubscriptionPlan, unit domain.PlanDuration, now time.Time) *PlanQuote {
	return &PlanQuote{
		PlanID:             plan.ID,
		Unit:               unit,
		ListPrice:          plan.PriceFor(unit),
		Price:              pricing.DiscountedPrice(plan, unit, now),
		DiscountApplied:    pricing.DiscountValid(plan.Discount, now),
		SavingsPercentage:  pricing.SavingsPercentage(plan, now),
		EstimatedCostPerKm: pricing.EstimatedCostPerKm(plan),
	}
}

// CheckEligibility decides whether a rider may buy a plan.
func (s *PlanService) CheckEligibility(ctx context.Context, planID, riderID string) (pricing.Eligibility, error) {
	if riderID == "" {
		return pricing.Eligibility{}, ErrInvalidRiderID
	}

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return pricing.Eligibility{}, err
	}

	rider, err := s.riders.GetByID(ctx, riderID)
	if err != nil {
		return pricing.Eligibility{}, err
	}

	completed, _, err := s.rides.CompletedDistanceByRider(ctx, riderID)
	if err != nil {
		return pricing.Eligibility{}, err
	}

	result := pricing.CheckEligibility(plan, rider, completed, s.now())
	if !result.Eligible {
		s.logger.WithFields(logrus.Fields{
			"plan_id":  plan.ID,
			"rider_id": riderID,
			"reason":   result.Reason,
		}).Info("rider not eligible for plan")
	}
	return result, nil
}

// ListAvailable returns active plans that can be bought in city. An empty
// vehicle type matches both.
func (s *PlanService) ListAvailable(ctx context.Context, city string, vt domain.VehicleType) ([]*domain.SubscriptionPlan, error) {
	if strings.TrimSpace(city) == "" {
		return nil, &domain.ValidationError{Field: "city", Message: "is required"}
	}
	if vt != "" && !vt.IsValid() {
		return nil, &domain.ValidationError{Field: "vehicle_type", Message: "must be bike or car"}
	}

	plans, err := s.plans.List(ctx, repository.PlanFilter{VehicleType: vt, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	available := make([]*domain.SubscriptionPlan, 0, len(plans))
	for _, p := range plans {
		if p.AvailableIn(city) {
			available = append(available, p)
		}
	}
	return available, nil
}

// Recommendation is the plan suggested from a rider's ride history. Plan is
// nil when no recommended plan exists for the vehicle type.
type Recommendation struct {
	VehicleType     domain.VehicleType       `json:"vehicle_type"`
	AverageDistance float64                  `json:"average_distance"`
	CompletedRides  int                      `json:"completed_rides"`
	Plan            *domain.SubscriptionPlan `json:"plan"`
}

// Recommend picks a vehicle type from the rider's average completed-ride
// distance and returns the best recommended plan for it.
func (s *PlanService) Recommend(ctx context.Context, riderID string) (*Recommendation, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	count, avg, err := s.rides.CompletedDistanceByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}

	vt := pricing.RecommendedVehicle(avg, count)
	plans, err := s.plans.List(ctx, repository.PlanFilter{VehicleType: vt, ActiveOnly: true, RecommendedOnly: true})
	if err != nil {
		return nil, err
	}

	return &Recommendation{
		VehicleType:     vt,
		AverageDistance: pricing.Round2(avg),
		CompletedRides:  count,
		Plan:            pricing.SelectRecommended(plans, vt),
	}, nil
}

// AddSubscriber records a purchase against the plan's stats.
func (s *PlanService) AddSubscriber(ctx context.Context, planID string, revenue float64) (*domain.SubscriptionPlan, error) {
	if planID == "" {
		return nil, ErrInvalidPlanID
	}
	if !isFinite(revenue) || revenue < 0 {
		return nil, &domain.ValidationError{Field: "revenue", Message: "must not be negative"}
	}

	if err := s.plans.AddSubscriber(ctx, planID, revenue); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"plan_id": planID, "revenue": revenue}).Info("subscriber added")
	return s.plans.GetByID(ctx, planID)
}

// RemoveSubscriber records a lapsed subscription. Active subscribers never go below zero.
func (s *PlanService) RemoveSubscriber(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	if planID == "" {
		return nil, ErrInvalidPlanID
	}

	if err := s.plans.RemoveSubscriber(ctx, planID); err != nil {
		return nil, err
	}

	s.logger.WithField("plan_id", planID).Info("subscriber removed")
	return s.plans.GetByID(ctx, planID)
}

// SetRecommended sets the recommended flag. Setting it clears the flag on
// every other plan of the same vehicle type.
func (s *PlanService) SetRecommended(ctx context.Context, planID string, recommended bool) (*domain.SubscriptionPlan, error) {
	if planID == "" {
		return nil, ErrInvalidPlanID
	}

	if err := s.plans.SetRecommended(ctx, planID, recommended); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"plan_id": planID, "recommended": recommended}).Info("plan recommended flag changed")
	return s.plans.GetByID(ctx, planID)
}

// Redemption is the outcome of a successful discount redemption.
type Redemption struct {
	PlanID     string              `json:"plan_id"`
	Unit       domain.PlanDuration `json:"unit"`
	Price      float64             `json:"price"`
	Percentage float64             `json:"percentage"`
}

// RedeemDiscount checks the coupon, window and cap and then counts one
// redemption. The cap is enforced by the store against concurrent redemptions.
func (s *PlanService) RedeemDiscount(ctx context.Context, planID, coupon string, unit domain.PlanDuration) (*Redemption, error) {
	if unit == "" {
		unit = domain.PlanDurationMonthly
	}
	if !unit.IsValid() {
		return nil, &domain.ValidationError{Field: "unit", Message: "must be monthly, weekly or daily"}
	}

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	if code := plan.Discount.CouponCode; code != "" && !strings.EqualFold(strings.TrimSpace(coupon), code) {
		return nil, ErrInvalidCoupon
	}

	now := s.now()
	if err := pricing.CheckDiscount(plan.Discount, now); err != nil {
		return nil, err
	}
	price := pricing.DiscountedPrice(plan, unit, now)

	if err := s.plans.IncrementRedemption(ctx, planID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRedemptionExhausted
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"plan_id": planID, "price": price}).Info("discount redeemed")
	return &Redemption{
		PlanID:     planID,
		Unit:       unit,
		Price:      price,
		Percentage: plan.Discount.Percentage,
	}, nil
}

// UpdateRatesRequest carries plan performance rates, each a percentage.
type UpdateRatesRequest struct {
	PlanID         string
	ConversionRate float64
	RenewalRate    float64
	UsageRate      float64
}

// UpdateRates overwrites a plan's conversion, renewal and usage rates.
func (s *PlanService) UpdateRates(ctx context.Context, req UpdateRatesRequest) (*domain.SubscriptionPlan, error) {
	if req.PlanID == "" {
		return nil, ErrInvalidPlanID
	}
	for field, v := range map[string]float64{
		"conversion_rate": req.ConversionRate,
		"renewal_rate":    req.RenewalRate,
		"usage_rate":      req.UsageRate,
	} {
		if !isFinite(v) || v < 0 || v > 100 {
			return nil, &domain.ValidationError{Field: field, Message: "must be between 0 and 100"}
		}
	}

	if err := s.plans.UpdateRates(ctx, req.PlanID, req.ConversionRate, req.RenewalRate, req.UsageRate); err != nil {
		return nil, err
	}
	return s.plans.GetByID(ctx, req.PlanID)
}
