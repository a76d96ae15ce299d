package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
)

const dateLayout = "2006-01-02"

// RiderHandler handles HTTP requests for riders.
type RiderHandler struct {
	riderRepo repository.RiderRepository
	now       func() time.Time
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(riderRepo repository.RiderRepository) *RiderHandler {
	return &RiderHandler{riderRepo: riderRepo, now: time.Now}
}

// RegisterRiderRequest is the HTTP request body for rider registration.
type RegisterRiderRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	PhoneVerified bool   `json:"phone_verified"`
	DateOfBirth   string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	City          string `json:"city,omitempty"`
}

// RiderResponse is the HTTP response for rider data.
type RiderResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	PhoneVerified bool   `json:"phone_verified"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	City          string `json:"city,omitempty"`
}

func toRiderResponse(r *domain.Rider) RiderResponse {
	resp := RiderResponse{
		ID:            r.ID,
		Name:          r.Name,
		Phone:         r.Phone,
		PhoneVerified: r.PhoneVerified,
		City:          r.City,
	}
	if r.DateOfBirth != nil {
		resp.DateOfBirth = r.DateOfBirth.Format(dateLayout)
	}
	return resp
}

// Register handles POST /v1/riders/register
func (h *RiderHandler) Register(c *gin.Context) {
	var req RegisterRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if req.Name == "" || req.Phone == "" {
		badRequest(c, "name and phone are required")
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		t, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			badRequest(c, "date_of_birth must be YYYY-MM-DD")
			return
		}
		dob = &t
	}

	existing, err := h.riderRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "rider already registered",
			"rider":   toRiderResponse(existing),
		})
		return
	}

	rider := &domain.Rider{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Phone:         req.Phone,
		PhoneVerified: req.PhoneVerified,
		DateOfBirth:   dob,
		City:          req.City,
		CreatedAt:     h.now(),
	}

	if err := h.riderRepo.Create(c.Request.Context(), rider); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRiderResponse(rider))
}

// GetRider handles GET /v1/riders/:id
func (h *RiderHandler) GetRider(c *gin.Context) {
	rider, err := h.riderRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRiderResponse(rider))
}
