package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
	"ecoride/internal/service"
)

// PlanCatalog is the subscription plan service used by PlanHandler.
type PlanCatalog interface {
	CreatePlan(ctx context.Context, req service.CreatePlanRequest) (*domain.SubscriptionPlan, error)
	GetPlan(ctx context.Context, planID string) (*domain.SubscriptionPlan, error)
	Quote(ctx context.Context, planID string, unit domain.PlanDuration) (*service.PlanQuote, error)
	CheckEligibility(ctx context.Context, planID, riderID string) (pricing.Eligibility, error)
	ListAvailable(ctx context.Context, city string, vt domain.VehicleType) ([]*domain.SubscriptionPlan, error)
	Recommend(ctx context.Context, riderID string) (*service.Recommendation, error)
	AddSubscriber(ctx context.Context, planID string, revenue float64) (*domain.SubscriptionPlan, error)
	RemoveSubscriber(ctx context.Context, planID string) (*domain.SubscriptionPlan, error)
	SetRecommended(ctx context.Context, planID string, recommended bool) (*domain.SubscriptionPlan, error)
	RedeemDiscount(ctx context.Context, planID, coupon string, unit domain.PlanDuration) (*service.Redemption, error)
	UpdateRates(ctx context.Context, req service.UpdateRatesRequest) (*domain.SubscriptionPlan, error)
}

// PlanHandler handles HTTP requests for subscription plans.
type PlanHandler struct {
	planService PlanCatalog
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService PlanCatalog) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// PlanDiscountRequest describes an optional promotional discount.
type PlanDiscountRequest struct {
	Percentage     float64    `json:"percentage"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTill      *time.Time `json:"valid_till,omitempty"`
	CouponCode     string     `json:"coupon_code,omitempty"`
	MaxRedemptions int        `json:"max_redemptions,omitempty"`
}

// CreatePlanRequest is the HTTP request body for creating a plan.
type CreatePlanRequest struct {
	Name                 string                  `json:"name"`
	Description          string                  `json:"description"`
	ShortDescription     string                  `json:"short_description,omitempty"`
	VehicleType          string                  `json:"vehicle_type"`
	Monthly              float64                 `json:"monthly"`
	Weekly               float64                 `json:"weekly,omitempty"`
	Daily                float64                 `json:"daily,omitempty"`
	Benefits             domain.PlanBenefits     `json:"benefits"`
	Discount             PlanDiscountRequest     `json:"discount"`
	Active               *bool                   `json:"active,omitempty"`
	Popular              bool                    `json:"popular,omitempty"`
	Featured             bool                    `json:"featured,omitempty"`
	Recommended          bool                    `json:"recommended,omitempty"`
	Availability         domain.PlanAvailability `json:"availability"`
	MinAge               *int                    `json:"min_age,omitempty"`
	MaxAge               *int                    `json:"max_age,omitempty"`
	RequiresVerification bool                    `json:"requires_verification,omitempty"`
	ExcludeNewUsers      bool                    `json:"exclude_new_users,omitempty"`
}

// SubscriberRequest is the HTTP request body for recording a purchase.
type SubscriberRequest struct {
	Revenue float64 `json:"revenue"`
}

// RecommendedFlagRequest is the HTTP request body for the recommended flag.
type RecommendedFlagRequest struct {
	Recommended bool `json:"recommended"`
}

// RedeemRequest is the HTTP request body for redeeming a plan discount.
type RedeemRequest struct {
	CouponCode string `json:"coupon_code,omitempty"`
	Unit       string `json:"unit,omitempty"`
}

// RatesRequest is the HTTP request body for plan performance rates.
type RatesRequest struct {
	ConversionRate float64 `json:"conversion_rate"`
	RenewalRate    float64 `json:"renewal_rate"`
	UsageRate      float64 `json:"usage_rate"`
}

// CreatePlan handles POST /v1/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), service.CreatePlanRequest{
		Name:             req.Name,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		VehicleType:      domain.VehicleType(req.VehicleType),
		Monthly:          req.Monthly,
		Weekly:           req.Weekly,
		Daily:            req.Daily,
		Benefits:         req.Benefits,
		Discount: domain.PlanDiscount{
			Percentage:     req.Discount.Percentage,
			ValidFrom:      req.Discount.ValidFrom,
			ValidTill:      req.Discount.ValidTill,
			CouponCode:     req.Discount.CouponCode,
			MaxRedemptions: req.Discount.MaxRedemptions,
		},
		Active:               req.Active,
		Popular:              req.Popular,
		Featured:             req.Featured,
		Recommended:          req.Recommended,
		Availability:         req.Availability,
		MinAge:               req.MinAge,
		MaxAge:               req.MaxAge,
		RequiresVerification: req.RequiresVerification,
		ExcludeNewUsers:      req.ExcludeNewUsers,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, plan)
}

// GetPlan handles GET /v1/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	h.respondPlan(c)(h.planService.GetPlan(c.Request.Context(), c.Param("id")))
}

// ListAvailable handles GET /v1/plans?city=&vehicle_type=
func (h *PlanHandler) ListAvailable(c *gin.Context) {
	plans, err := h.planService.ListAvailable(
		c.Request.Context(),
		c.Query("city"),
		domain.VehicleType(c.Query("vehicle_type")),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, plans)
}

// Quote handles GET /v1/plans/:id/price?unit=
func (h *PlanHandler) Quote(c *gin.Context) {
	quote, err := h.planService.Quote(c.Request.Context(), c.Param("id"), domain.PlanDuration(c.Query("unit")))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, quote)
}

// CheckEligibility handles GET /v1/plans/:id/eligibility/:riderId
func (h *PlanHandler) CheckEligibility(c *gin.Context) {
	result, err := h.planService.CheckEligibility(c.Request.Context(), c.Param("id"), c.Param("riderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, result)
}

// Recommend handles GET /v1/riders/:id/recommended-plan
func (h *PlanHandler) Recommend(c *gin.Context) {
	rec, err := h.planService.Recommend(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, rec)
}

// AddSubscriber handles POST /v1/plans/:id/subscribers
func (h *PlanHandler) AddSubscriber(c *gin.Context) {
	var req SubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondPlan(c)(h.planService.AddSubscriber(c.Request.Context(), c.Param("id"), req.Revenue))
}

// RemoveSubscriber handles DELETE /v1/plans/:id/subscribers
func (h *PlanHandler) RemoveSubscriber(c *gin.Context) {
	h.respondPlan(c)(h.planService.RemoveSubscriber(c.Request.Context(), c.Param("id")))
}

// SetRecommended handles PUT /v1/plans/:id/recommended
func (h *PlanHandler) SetRecommended(c *gin.Context) {
	var req RecommendedFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondPlan(c)(h.planService.SetRecommended(c.Request.Context(), c.Param("id"), req.Recommended))
}

// RedeemDiscount handles POST /v1/plans/:id/redeem
func (h *PlanHandler) RedeemDiscount(c *gin.Context) {
	var req RedeemRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	redemption, err := h.planService.RedeemDiscount(c.Request.Context(), c.Param("id"), req.CouponCode, domain.PlanDuration(req.Unit))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, redemption)
}

// UpdateRates handles PUT /v1/plans/:id/rates
func (h *PlanHandler) UpdateRates(c *gin.Context) {
	var req RatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondPlan(c)(h.planService.UpdateRates(c.Request.Context(), service.UpdateRatesRequest{
		PlanID:         c.Param("id"),
		ConversionRate: req.ConversionRate,
		RenewalRate:    req.RenewalRate,
		UsageRate:      req.UsageRate,
	}))
}

func (h *PlanHandler) respondPlan(c *gin.Context) func(*domain.SubscriptionPlan, error) {
	return func(plan *domain.SubscriptionPlan, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, plan)
	}
}
