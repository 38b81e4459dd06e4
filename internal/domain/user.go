// Package domain contains the core business entities for Waverly Store.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the storefront data engine.
package domain

import (
	"strings"
	"time"
)

// User represents a registered customer account.
// Users own orders and addresses and authenticate by email and password.
type User struct {
	// ID is the unique identifier for the user, assigned by the store
	// on creation (strictly increasing).
	ID int64 `json:"id"`

	// Email is the unique, normalized (lowercased, trimmed) email address.
	Email string `json:"email"`

	// PasswordHash is the one-way hash of the user's password. It is
	// persisted with the record but must never leave the repository layer
	// except inside User; callers receive the stripped Identity view.
	PasswordHash string `json:"password,omitempty"`

	// Name is the display name.
	Name string `json:"name"`

	// Phone is an optional, mutable phone number.
	Phone string `json:"phone"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeEmail applies the canonical email normalization used across
// registration, sign-in and uniqueness checks: trim whitespace, lowercase.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser creates a new User with a normalized email and stamped timestamps.
func NewUser(email, passwordHash, name string) *User {
	now := time.Now().UTC()
	return &User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Phone:        "",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identity returns the password-stripped view of the user, safe to hold
// in session state and to return to callers.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
