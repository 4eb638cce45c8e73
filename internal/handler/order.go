package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for orders and their dispatch.
type OrderHandler struct {
	orderService *service.OrderService
	scheduler    *service.DispatchScheduler
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService, scheduler *service.DispatchScheduler) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		scheduler:    scheduler,
	}
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	PickupLat      float64  `json:"pickup_lat"`
	PickupLng      float64  `json:"pickup_lng"`
	DestinationLat *float64 `json:"destination_lat,omitempty"`
	DestinationLng *float64 `json:"destination_lng,omitempty"`
	Tier           string   `json:"tier,omitempty"` // INTERNAL, PARTNER, LINE_BROADCAST
}

// AcceptOrderRequest is the HTTP request body for accepting an offer.
type AcceptOrderRequest struct {
	VehicleID string `json:"vehicle_id"`
}

// CancelOrderRequest is the HTTP request body for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ReplyRequest is the HTTP request body for a driver chat reply.
type ReplyRequest struct {
	VehicleID string `json:"vehicle_id"`
	Text      string `json:"text"`
}

// ReplyResponse reports the outcome of a chat reply back to the chat bridge.
type ReplyResponse struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// OrderResponse is the HTTP representation of an order.
type OrderResponse struct {
	ID             string   `json:"id"`
	DisplayCode    string   `json:"display_code"`
	PickupLat      float64  `json:"pickup_lat"`
	PickupLng      float64  `json:"pickup_lng"`
	DestinationLat *float64 `json:"destination_lat,omitempty"`
	DestinationLng *float64 `json:"destination_lng,omitempty"`
	Status         string   `json:"status"`
	Tier           string   `json:"tier,omitempty"`
	Price          int64    `json:"price"`
	WaitingFee     int64    `json:"waiting_fee"`
	Commission     int64    `json:"commission,omitempty"`
	VehicleID      string   `json:"vehicle_id,omitempty"`
	OfferedVehicle string   `json:"offered_vehicle_id,omitempty"`
	OfferExpiresAt string   `json:"offer_expires_at,omitempty"`
	PoolExhausted  bool     `json:"pool_exhausted"`
	CreatedAt      string   `json:"created_at"`
	CompletedAt    string   `json:"completed_at,omitempty"`
	CancelledAt    string   `json:"cancelled_at,omitempty"`
	CancelReason   string   `json:"cancel_reason,omitempty"`
}

func orderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:             o.ID,
		DisplayCode:    o.DisplayCode,
		PickupLat:      o.Pickup.Lat,
		PickupLng:      o.Pickup.Lng,
		Status:         string(o.Status),
		Tier:           string(o.Tier),
		Price:          o.Price,
		WaitingFee:     o.WaitingFee,
		Commission:     o.Commission,
		VehicleID:      o.VehicleID,
		OfferedVehicle: o.OfferedVehicleID,
		PoolExhausted:  o.PoolExhausted,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
	if o.Destination != nil {
		lat, lng := o.Destination.Lat, o.Destination.Lng
		resp.DestinationLat = &lat
		resp.DestinationLng = &lng
	}
	if !o.OfferExpiresAt.IsZero() {
		resp.OfferExpiresAt = o.OfferExpiresAt.Format(time.RFC3339)
	}
	if !o.CompletedAt.IsZero() {
		resp.CompletedAt = o.CompletedAt.Format(time.RFC3339)
	}
	if !o.CancelledAt.IsZero() {
		resp.CancelledAt = o.CancelledAt.Format(time.RFC3339)
		resp.CancelReason = o.CancelReason
	}
	return resp
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	in := service.CreateOrderInput{
		Pickup: domain.LatLng{Lat: req.PickupLat, Lng: req.PickupLng},
	}
	if req.Tier != "" {
		tier, err := domain.ParseVehicleTier(req.Tier)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		in.Tier = tier
	}
	if req.DestinationLat != nil && req.DestinationLng != nil {
		in.Destination = &domain.LatLng{Lat: *req.DestinationLat, Lng: *req.DestinationLng}
	}

	order, err := h.orderService.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, orderResponse(order))
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// GetAll handles GET /v1/orders
func (h *OrderHandler) GetAll(c *gin.Context) {
	orders, err := h.orderService.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, orderResponse(o))
	}
	respondJSON(c, http.StatusOK, response)
}

// DispatchOrder handles POST /v1/orders/:id/dispatch
func (h *OrderHandler) DispatchOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.scheduler.Dispatch(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, orderResponse(order))
}

// AcceptOrder handles POST /v1/orders/:id/accept
func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	var req AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	orderID := c.Param("id")
	if err := h.scheduler.SubmitAcceptance(c.Request.Context(), orderID, req.VehicleID); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	orderID := c.Param("id")
	if err := h.scheduler.Cancel(c.Request.Context(), orderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// SubmitReply handles POST /v1/dispatch/replies
//
// The chat bridge forwards every message in the drivers' channel, so
// unrecognized or late replies are a normal part of traffic. They are logged
// and answered 200 with accepted=false; only malformed calls and internal
// failures surface as errors.
func (h *OrderHandler) SubmitReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	orderID, err := h.scheduler.SubmitReply(c.Request.Context(), req.Text, req.VehicleID)
	if err != nil {
		if replyOutcome(err) {
			log.Printf("chat reply from %s not accepted: %v", req.VehicleID, err)
			respondJSON(c, http.StatusOK, ReplyResponse{Accepted: false, Reason: err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, ReplyResponse{Accepted: true, OrderID: orderID})
}

// replyOutcome reports whether the error is an ordinary chat-intake outcome
// rather than a failure of the request itself.
func replyOutcome(err error) bool {
	for _, outcome := range []error{
		service.ErrUnrecognizedReply,
		service.ErrOrderNotDispatching,
		service.ErrStaleAcceptance,
		service.ErrAlreadyTerminal,
		service.ErrInsufficientFunds,
		service.ErrVehicleBusy,
	} {
		if errors.Is(err, outcome) {
			return true
		}
	}
	return false
}
