// Package domain contains the core business entities for Waverly Store.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Constraint Errors
	// ===========================================

	// ErrConstraintViolation indicates a unique index would be duplicated
	// (duplicate email, duplicate order number).
	ErrConstraintViolation = errors.New("unique constraint violation")

	// ErrEmailAlreadyInUse indicates a user with the same normalized email exists.
	ErrEmailAlreadyInUse = fmt.Errorf("%w: email already in use", ErrConstraintViolation)

	// ErrOrderNumberInUse indicates an order with the same order number exists.
	ErrOrderNumberInUse = fmt.Errorf("%w: order number already in use", ErrConstraintViolation)

	// ===========================================
	// Lookup Errors
	// ===========================================

	// ErrNotFound indicates a referenced entity is absent for an operation
	// that requires it to exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)

	// ErrAddressNotFound indicates the requested address does not exist.
	ErrAddressNotFound = fmt.Errorf("address %w", ErrNotFound)

	// ===========================================
	// Authentication Errors
	// ===========================================

	// ErrInvalidCredentials indicates the recomputed password hash does not
	// match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated indicates a mutation was attempted with no active session.
	ErrUnauthenticated = errors.New("not authenticated")

	// ===========================================
	// Lifecycle Errors
	// ===========================================

	// ErrUninitialized indicates the store failed to open and no fallback exists.
	// Fatal to the operation, not to the process.
	ErrUninitialized = errors.New("store not initialized")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// StorageError wraps a failure of the underlying storage engine.
// It is always surfaced to the caller, never silently swallowed and
// never retried automatically.
type StorageError struct {
	// Op is the store operation that failed (e.g. "add", "get_all").
	Op string

	// Collection is the affected collection, if any.
	Collection string

	// Err is the engine's native error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying engine error for errors.Is/errors.As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(op, collection string, err error) *StorageError {
	return &StorageError{Op: op, Collection: collection, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
