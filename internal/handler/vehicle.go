package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// VehicleHandler handles HTTP requests for the vehicle fleet.
type VehicleHandler struct {
	fleetService *service.FleetService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(fleetService *service.FleetService) *VehicleHandler {
	return &VehicleHandler{fleetService: fleetService}
}

// RegisterVehicleRequest is the HTTP request body for registering a vehicle.
type RegisterVehicleRequest struct {
	DriverName string `json:"driver_name"`
	Phone      string `json:"phone,omitempty"`
	Plate      string `json:"plate,omitempty"`
	Tier       string `json:"tier,omitempty"` // INTERNAL, PARTNER, LINE_BROADCAST
}

// LocationRequest is the HTTP request body for a location report.
type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VehicleResponse is the HTTP representation of a vehicle.
type VehicleResponse struct {
	ID             string  `json:"id"`
	DriverName     string  `json:"driver_name"`
	Phone          string  `json:"phone,omitempty"`
	Plate          string  `json:"plate,omitempty"`
	Status         string  `json:"status"`
	Tier           string  `json:"tier"`
	Balance        int64   `json:"balance"`
	MissedOffers   int     `json:"missed_offers"`
	SuspendedUntil string  `json:"suspended_until,omitempty"`
	Delinquent     bool    `json:"delinquent"`
	LastLat        float64 `json:"last_lat"`
	LastLng        float64 `json:"last_lng"`
}

func vehicleResponse(v *domain.Vehicle) VehicleResponse {
	resp := VehicleResponse{
		ID:           v.ID,
		DriverName:   v.DriverName,
		Phone:        v.Phone,
		Plate:        v.Plate,
		Status:       string(v.Status),
		Tier:         string(v.Tier),
		Balance:      v.Balance,
		MissedOffers: v.MissedOffers,
		Delinquent:   v.Delinquent,
		LastLat:      v.LastLat,
		LastLng:      v.LastLng,
	}
	if !v.SuspendedUntil.IsZero() {
		resp.SuspendedUntil = v.SuspendedUntil.Format(time.RFC3339)
	}
	return resp
}

// RegisterVehicle handles POST /v1/vehicles
func (h *VehicleHandler) RegisterVehicle(c *gin.Context) {
	var req RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	in := service.RegisterVehicleInput{
		DriverName: req.DriverName,
		Phone:      req.Phone,
		Plate:      req.Plate,
	}
	if req.Tier != "" {
		tier, err := domain.ParseVehicleTier(req.Tier)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		in.Tier = tier
	}

	vehicle, err := h.fleetService.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, vehicleResponse(vehicle))
}

// GetVehicle handles GET /v1/vehicles/:id
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.fleetService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, vehicleResponse(vehicle))
}

// GetAll handles GET /v1/vehicles
func (h *VehicleHandler) GetAll(c *gin.Context) {
	vehicles, err := h.fleetService.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		response = append(response, vehicleResponse(v))
	}
	respondJSON(c, http.StatusOK, response)
}

// ReportLocation handles PUT /v1/vehicles/:id/location
func (h *VehicleHandler) ReportLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.fleetService.ReportLocation(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GoOffline handles POST /v1/vehicles/:id/offline
func (h *VehicleHandler) GoOffline(c *gin.Context) {
	if err := h.fleetService.GoOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
