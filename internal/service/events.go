package service

import (
	"sync"
	"time"
)

// DispatchEventType identifies what happened during an order's dispatch run.
type DispatchEventType string

const (
	EventOffered       DispatchEventType = "OFFERED"
	EventOfferExpired  DispatchEventType = "OFFER_EXPIRED"
	EventAssigned      DispatchEventType = "ASSIGNED"
	EventPoolExhausted DispatchEventType = "POOL_EXHAUSTED"
	EventFundsRejected DispatchEventType = "FUNDS_REJECTED"
	EventCancelled     DispatchEventType = "CANCELLED"
	EventCompleted     DispatchEventType = "COMPLETED"
)

// DispatchEvent is a notification emitted by the scheduler as an order moves
// through its dispatch run.
type DispatchEvent struct {
	Type      DispatchEventType
	OrderID   string
	VehicleID string
	At        time.Time
}

// EventBus fans dispatch events out to subscribers. Publishing never blocks;
// a subscriber that falls behind loses events rather than stalling the
// scheduler.
type EventBus struct {
	mu   sync.Mutex
	subs []chan DispatchEvent
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel that receives subsequent events.
func (b *EventBus) Subscribe() <-chan DispatchEvent {
	ch := make(chan DispatchEvent, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *EventBus) Publish(event DispatchEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
