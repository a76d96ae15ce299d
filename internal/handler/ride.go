package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ecoride/internal/domain"
	"ecoride/internal/pricing"
	"ecoride/internal/service"
)

// RideLifecycle is the ride service used by RideHandler.
type RideLifecycle interface {
	CreateRide(ctx context.Context, req service.CreateRideRequest) (*domain.Ride, error)
	MarkSearching(ctx context.Context, rideID string) (*domain.Ride, error)
	AssignDriver(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
	MarkDriverArriving(ctx context.Context, rideID string, eta *time.Time) (*domain.Ride, error)
	MarkDriverArrived(ctx context.Context, rideID string) (*domain.Ride, error)
	StartRide(ctx context.Context, rideID string) (*domain.Ride, error)
	CompleteRide(ctx context.Context, req service.CompleteRideRequest) (*domain.Ride, error)
	UpdateActualDistance(ctx context.Context, rideID string, distanceKm, durationMin float64) (*domain.Ride, error)
	CancelRide(ctx context.Context, req service.CancelRideRequest) (*domain.Ride, error)
	FailRide(ctx context.Context, rideID, reason string) (*domain.Ride, error)
	RecordLocation(ctx context.Context, req service.RecordLocationRequest) (*domain.Ride, error)
	RateRide(ctx context.Context, req service.RateRideRequest) (*domain.Ride, error)
	ActivateSOS(ctx context.Context, rideID string, contacts []domain.EmergencyContact) (*domain.Ride, error)
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	GetActiveRide(ctx context.Context, riderID string) (*domain.Ride, error)
	GetHistory(ctx context.Context, riderID string, limit, skip int) ([]service.HistoryEntry, error)
	GetEcoStats(ctx context.Context, riderID string) (domain.EcoStats, error)
	Receipt(ctx context.Context, rideID string) (string, error)
}

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService RideLifecycle
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService RideLifecycle) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for booking a ride.
type CreateRideRequest struct {
	RiderID           string          `json:"rider_id"`
	Pickup            domain.Location `json:"pickup"`
	Destination       domain.Location `json:"destination"`
	VehicleType       string          `json:"vehicle_type"`
	EstimatedDistance float64         `json:"estimated_distance"`
	EstimatedDuration float64         `json:"estimated_duration"`
	ServiceType       string          `json:"service_type,omitempty"`   // regular, subscription
	PaymentMethod     string          `json:"payment_method,omitempty"` // cash, card, wallet, upi
	ScheduledFor      *time.Time      `json:"scheduled_for,omitempty"`
	Discount          float64         `json:"discount,omitempty"`
	Tip               float64         `json:"tip,omitempty"`
}

// AssignDriverRequest is the HTTP request body for assigning a driver.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

// DriverArrivingRequest is the HTTP request body for the driver_arriving transition.
type DriverArrivingRequest struct {
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
}

// ActualTripRequest carries the measured trip.
type ActualTripRequest struct {
	ActualDistance float64 `json:"actual_distance"`
	ActualDuration float64 `json:"actual_duration"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string  `json:"cancelled_by,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Fee         float64 `json:"fee,omitempty"`
}

// FailRideRequest is the HTTP request body for failing a ride.
type FailRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// LocationPingRequest is a single location ping during a ride.
type LocationPingRequest struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Party    string   `json:"party"` // rider, driver
	Score    int      `json:"score"`
	Feedback string   `json:"feedback,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// SOSRequest is the HTTP request body for activating SOS.
type SOSRequest struct {
	EmergencyContacts []domain.EmergencyContact `json:"emergency_contacts"`
}

// HistoryItem is one entry of a rider's ride history.
type HistoryItem struct {
	Ride         *domain.Ride `json:"ride"`
	DriverName   string       `json:"driver_name,omitempty"`
	DriverRating float64      `json:"driver_rating,omitempty"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	paymentMethod, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		badRequest(c, "payment_method must be one of cash, card, wallet, upi")
		return
	}

	var subscription bool
	switch domain.ServiceType(req.ServiceType) {
	case "", domain.ServiceTypeRegular:
	case domain.ServiceTypeSubscription:
		subscription = true
	default:
		badRequest(c, "service_type must be regular or subscription")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		RiderID:           req.RiderID,
		Pickup:            req.Pickup,
		Destination:       req.Destination,
		VehicleType:       domain.VehicleType(req.VehicleType),
		EstimatedDistance: req.EstimatedDistance,
		EstimatedDuration: req.EstimatedDuration,
		Subscription:      subscription,
		PaymentMethod:     paymentMethod,
		ScheduledFor:      req.ScheduledFor,
		Adjustments: pricing.Adjustments{
			Discount: req.Discount,
			Tip:      req.Tip,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ride)
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ride)
}

// MarkSearching handles POST /v1/rides/:id/searching
func (h *RideHandler) MarkSearching(c *gin.Context) {
	h.respondRide(c)(h.rideService.MarkSearching(c.Request.Context(), c.Param("id")))
}

// AssignDriver handles POST /v1/rides/:id/assign
func (h *RideHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.AssignDriver(c.Request.Context(), c.Param("id"), req.DriverID))
}

// MarkDriverArriving handles POST /v1/rides/:id/arriving
func (h *RideHandler) MarkDriverArriving(c *gin.Context) {
	var req DriverArrivingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	h.respondRide(c)(h.rideService.MarkDriverArriving(c.Request.Context(), c.Param("id"), req.EstimatedArrival))
}

// MarkDriverArrived handles POST /v1/rides/:id/arrived
func (h *RideHandler) MarkDriverArrived(c *gin.Context) {
	h.respondRide(c)(h.rideService.MarkDriverArrived(c.Request.Context(), c.Param("id")))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	h.respondRide(c)(h.rideService.StartRide(c.Request.Context(), c.Param("id")))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req ActualTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.CompleteRide(c.Request.Context(), service.CompleteRideRequest{
		RideID:         c.Param("id"),
		ActualDistance: req.ActualDistance,
		ActualDuration: req.ActualDuration,
	}))
}

// UpdateActualDistance handles PUT /v1/rides/:id/distance
func (h *RideHandler) UpdateActualDistance(c *gin.Context) {
	var req ActualTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.UpdateActualDistance(c.Request.Context(), c.Param("id"), req.ActualDistance, req.ActualDuration))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	by := domain.CancelledBy(req.CancelledBy)
	if by == "" {
		by = domain.CancelledByUser
	}

	h.respondRide(c)(h.rideService.CancelRide(c.Request.Context(), service.CancelRideRequest{
		RideID:      c.Param("id"),
		Reason:      req.Reason,
		CancelledBy: by,
		Fee:         req.Fee,
	}))
}

// FailRide handles POST /v1/rides/:id/fail
func (h *RideHandler) FailRide(c *gin.Context) {
	var req FailRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	h.respondRide(c)(h.rideService.FailRide(c.Request.Context(), c.Param("id"), req.Reason))
}

// RecordLocation handles POST /v1/rides/:id/location
func (h *RideHandler) RecordLocation(c *gin.Context) {
	var req LocationPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.RecordLocation(c.Request.Context(), service.RecordLocationRequest{
		RideID:    c.Param("id"),
		Lat:       req.Lat,
		Lng:       req.Lng,
		Timestamp: req.Timestamp,
	}))
}

// RateRide handles POST /v1/rides/:id/rating
func (h *RideHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.RateRide(c.Request.Context(), service.RateRideRequest{
		RideID:   c.Param("id"),
		Party:    domain.RatingParty(req.Party),
		Score:    req.Score,
		Feedback: req.Feedback,
		Tags:     req.Tags,
	}))
}

// ActivateSOS handles POST /v1/rides/:id/sos
func (h *RideHandler) ActivateSOS(c *gin.Context) {
	var req SOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.ActivateSOS(c.Request.Context(), c.Param("id"), req.EmergencyContacts))
}

// Receipt handles GET /v1/rides/:id/receipt
func (h *RideHandler) Receipt(c *gin.Context) {
	receipt, err := h.rideService.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.String(http.StatusOK, receipt)
}

// GetHistory handles GET /v1/riders/:id/rides?limit=&skip=
func (h *RideHandler) GetHistory(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	skip, err := queryInt(c, "skip")
	if err != nil {
		badRequest(c, "skip must be an integer")
		return
	}

	entries, err := h.rideService.GetHistory(c.Request.Context(), c.Param("id"), limit, skip)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryItem{
			Ride:         e.Ride,
			DriverName:   e.DriverName,
			DriverRating: e.DriverRating,
		})
	}

	respondJSON(c, http.StatusOK, items)
}

// GetActiveRide handles GET /v1/riders/:id/rides/active
func (h *RideHandler) GetActiveRide(c *gin.Context) {
	ride, err := h.rideService.GetActiveRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ride == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active ride"})
		return
	}

	respondJSON(c, http.StatusOK, ride)
}

// GetEcoStats handles GET /v1/riders/:id/eco-stats
func (h *RideHandler) GetEcoStats(c *gin.Context) {
	stats, err := h.rideService.GetEcoStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, stats)
}

// respondRide writes the outcome of a ride mutation.
func (h *RideHandler) respondRide(c *gin.Context) func(*domain.Ride, error) {
	return func(ride *domain.Ride, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, ride)
	}
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
