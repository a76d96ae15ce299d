package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
	"ecoride/internal/service"
)

// DriverAvailability is the driver-side service used by DriverHandler.
type DriverAvailability interface {
	UpdateLocation(ctx context.Context, req service.UpdateLocationRequest) error
	SetDriverOffline(ctx context.Context, driverID string) error
}

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService DriverAvailability
	driverRepo    repository.DriverRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService DriverAvailability, driverRepo repository.DriverRepository) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		driverRepo:    driverRepo,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name    string             `json:"name"`
	Phone   string             `json:"phone"`
	Rating  float64            `json:"rating,omitempty"`
	Vehicle domain.VehicleInfo `json:"vehicle"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Phone   string             `json:"phone"`
	Status  string             `json:"status"`
	Rating  float64            `json:"rating"`
	Vehicle domain.VehicleInfo `json:"vehicle"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:      d.ID,
		Name:    d.Name,
		Phone:   d.Phone,
		Status:  string(d.Status),
		Rating:  d.Rating,
		Vehicle: d.Vehicle,
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if req.Name == "" || req.Phone == "" {
		badRequest(c, "name and phone are required")
		return
	}
	if !req.Vehicle.Type.IsValid() {
		badRequest(c, "vehicle.type must be bike or car")
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		badRequest(c, "rating must be between 0 and 5")
		return
	}

	existing, err := h.driverRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "driver already registered",
			"driver":  toDriverResponse(existing),
		})
		return
	}

	driver := &domain.Driver{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Phone:   req.Phone,
		Status:  domain.DriverStatusOffline,
		Rating:  req.Rating,
		Vehicle: req.Vehicle,
	}

	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	if err := h.driverService.SetDriverOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
