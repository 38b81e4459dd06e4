// Package repository defines typed data access over the generic object
// store. These interfaces abstract the collection operations, allowing for
// different implementations (store-backed, in-memory for testing) while
// keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/waverly-store/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create persists a new user and assigns its identifier.
	// Returns domain.ErrEmailAlreadyInUse if the normalized email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by identifier.
	// Returns domain.ErrUserNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns domain.ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a user with the normalized email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Update replaces the stored user with the given one (matched by ID).
	Update(ctx context.Context, user *domain.User) error

	// List returns all users.
	List(ctx context.Context) ([]*domain.User, error)
}

// =============================================================================
// Order Repository
// =============================================================================

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create persists a new order and assigns its identifier.
	// Returns domain.ErrOrderNumberInUse if the order number is taken.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by identifier.
	// Returns domain.ErrOrderNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	// ListByUser returns all orders of the user, sorted by order date
	// descending (newest first).
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)

	// Update replaces the stored order with the given one (matched by ID).
	Update(ctx context.Context, order *domain.Order) error

	// Delete removes an order by identifier. Absent identifiers are a no-op.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// Address Repository
// =============================================================================

// AddressRepository defines the interface for address data access.
type AddressRepository interface {
	// Create persists a new address and assigns its identifier.
	Create(ctx context.Context, address *domain.Address) error

	// GetByID retrieves an address by identifier.
	// Returns domain.ErrAddressNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.Address, error)

	// ListByUser returns all addresses of the user, unsorted.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error)

	// Update replaces the stored address with the given one (matched by ID).
	Update(ctx context.Context, address *domain.Address) error

	// Delete removes an address by identifier. Absent identifiers are a no-op.
	Delete(ctx context.Context, id int64) error
}
