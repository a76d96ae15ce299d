package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
	"ecoride/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	c.JSON(mapErrorToHTTPStatus(err), resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a body or query that could not be bound.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPlanID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidCoupon):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrActiveRideExists),
		errors.Is(err, service.ErrBookingInProgress),
		errors.Is(err, service.ErrDriverUnavailable),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, service.ErrRideNotCompleted),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// The discount exists but cannot be used right now.
	case errors.Is(err, service.ErrNoDiscount),
		errors.Is(err, service.ErrDiscountExpired),
		errors.Is(err, service.ErrRedemptionExhausted):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
