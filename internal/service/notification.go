package service

import (
	"context"
	"log"

	"dispatch/internal/domain"
)

// Notifier delivers dispatch messages to drivers. The log implementation
// stands in for push or chat delivery in environments without a provider.
type Notifier interface {
	// NotifyOffer tells a single vehicle it holds the current offer.
	NotifyOffer(ctx context.Context, vehicle *domain.Vehicle, order *domain.Order) error
	// NotifyAssigned confirms the assignment to the winning vehicle.
	NotifyAssigned(ctx context.Context, vehicleID string, order *domain.Order) error
	// NotifyFundsRejected tells a vehicle its acceptance was refused for
	// insufficient wallet balance.
	NotifyFundsRejected(ctx context.Context, vehicleID string, order *domain.Order, required int64) error
	// NotifyCancelled tells the assigned vehicle the order was cancelled.
	NotifyCancelled(ctx context.Context, vehicleID string, order *domain.Order) error
	// NotifyGroup posts an operator-channel notice not tied to one vehicle.
	NotifyGroup(ctx context.Context, message string) error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyOffer(ctx context.Context, vehicle *domain.Vehicle, order *domain.Order) error {
	log.Printf("notify vehicle=%s driver=%s: offer for order %s (%s), reply before %s",
		vehicle.ID, vehicle.DriverName, order.ID, order.DisplayCode,
		order.OfferExpiresAt.Format("15:04:05"))
	return nil
}

func (n *LogNotifier) NotifyAssigned(ctx context.Context, vehicleID string, order *domain.Order) error {
	log.Printf("notify vehicle=%s: assigned order %s (%s)", vehicleID, order.ID, order.DisplayCode)
	return nil
}

func (n *LogNotifier) NotifyFundsRejected(ctx context.Context, vehicleID string, order *domain.Order, required int64) error {
	log.Printf("notify vehicle=%s: acceptance of order %s refused, wallet below commission %d",
		vehicleID, order.ID, required)
	return nil
}

func (n *LogNotifier) NotifyCancelled(ctx context.Context, vehicleID string, order *domain.Order) error {
	log.Printf("notify vehicle=%s: order %s cancelled", vehicleID, order.ID)
	return nil
}

func (n *LogNotifier) NotifyGroup(ctx context.Context, message string) error {
	log.Printf("notify group: %s", message)
	return nil
}
