package domain

import "time"

// Identity is the password-stripped representation of a User.
// It is held by the session manager and mirrored into the short-lived and
// durable persistence scopes; it is not an entity in the store itself.
type Identity struct {
	// ID is the identifier of the underlying User.
	ID int64 `json:"id"`

	// Email is the normalized email address.
	Email string `json:"email"`

	// Name is the display name.
	Name string `json:"name"`

	// Phone is the optional phone number.
	Phone string `json:"phone"`

	// CreatedAt is the creation timestamp of the underlying User.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the last-update timestamp of the underlying User.
	UpdatedAt time.Time `json:"updatedAt"`
}
