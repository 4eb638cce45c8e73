package repository

import (
	"context"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetDispatchingByDisplayCode retrieves the most recent order in
	// DISPATCHING state whose display code matches. Display codes are
	// cosmetic and may collide; this resolves to the newest match.
	GetDispatchingByDisplayCode(ctx context.Context, code string) (*domain.Order, error)

	// GetAll retrieves all orders.
	GetAll(ctx context.Context) ([]*domain.Order, error)

	// Update updates an existing order.
	Update(ctx context.Context, order *domain.Order) error
}
