package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// WalletHandler handles HTTP requests for driver wallets.
type WalletHandler struct {
	ledger *service.WalletLedger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger *service.WalletLedger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// TopupRequest is the HTTP request body for a wallet top-up.
type TopupRequest struct {
	Amount int64 `json:"amount"`
}

// BalanceResponse is the HTTP response for a wallet balance.
type BalanceResponse struct {
	VehicleID string `json:"vehicle_id"`
	Balance   int64  `json:"balance"`
}

// WalletLogResponse is the HTTP representation of a wallet ledger entry.
type WalletLogResponse struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Type         string `json:"type"`
	RefOrderID   string `json:"ref_order_id,omitempty"`
	BalanceAfter int64  `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

// Topup handles POST /v1/vehicles/:id/wallet/topup
func (h *WalletHandler) Topup(c *gin.Context) {
	var req TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	vehicleID := c.Param("id")
	balance, err := h.ledger.Credit(c.Request.Context(), vehicleID, req.Amount, domain.WalletEntryTopup, "")
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BalanceResponse{VehicleID: vehicleID, Balance: balance})
}

// GetBalance handles GET /v1/vehicles/:id/wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	vehicleID := c.Param("id")
	balance, err := h.ledger.BalanceOf(c.Request.Context(), vehicleID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BalanceResponse{VehicleID: vehicleID, Balance: balance})
}

// GetLogs handles GET /v1/vehicles/:id/wallet/logs
func (h *WalletHandler) GetLogs(c *gin.Context) {
	entries, err := h.ledger.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]WalletLogResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, WalletLogResponse{
			ID:           e.ID,
			Amount:       e.Amount,
			Type:         string(e.Type),
			RefOrderID:   e.RefOrderID,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, response)
}
