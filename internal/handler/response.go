package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidVehicleID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidPlan),
		errors.Is(err, service.ErrUnrecognizedReply):
		return http.StatusBadRequest

	// Payment required
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired

	// Conflict errors
	case errors.Is(err, service.ErrOrderNotPending),
		errors.Is(err, service.ErrOrderNotDispatching),
		errors.Is(err, service.ErrStaleAcceptance),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrInvalidTripState),
		errors.Is(err, service.ErrVehicleBusy):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrVehicleNotAssigned):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, service.ErrPoolExhausted),
		errors.Is(err, service.ErrEstimatorUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
