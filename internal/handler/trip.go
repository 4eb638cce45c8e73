package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// TripHandler handles HTTP requests for trip progression.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// TripRequest is the HTTP request body for trip progression calls.
type TripRequest struct {
	VehicleID string `json:"vehicle_id"`
}

// StartTripRequest additionally carries the destination for orders booked
// without one.
type StartTripRequest struct {
	VehicleID      string   `json:"vehicle_id"`
	DestinationLat *float64 `json:"destination_lat,omitempty"`
	DestinationLng *float64 `json:"destination_lng,omitempty"`
}

// StartTrip handles POST /v1/orders/:id/trip/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var dest *domain.LatLng
	if req.DestinationLat != nil && req.DestinationLng != nil {
		dest = &domain.LatLng{Lat: *req.DestinationLat, Lng: *req.DestinationLng}
	}

	order, err := h.tripService.Start(c.Request.Context(), c.Param("id"), req.VehicleID, dest)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// ArriveTrip handles POST /v1/orders/:id/trip/arrive
func (h *TripHandler) ArriveTrip(c *gin.Context) {
	h.progress(c, h.tripService.Arrive)
}

// BoardTrip handles POST /v1/orders/:id/trip/board
func (h *TripHandler) BoardTrip(c *gin.Context) {
	h.progress(c, h.tripService.Board)
}

// CompleteTrip handles POST /v1/orders/:id/trip/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	h.progress(c, h.tripService.Complete)
}

func (h *TripHandler) progress(c *gin.Context, op func(ctx context.Context, orderID, vehicleID string) (*domain.Order, error)) {
	var req TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := op(c.Request.Context(), c.Param("id"), req.VehicleID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}
