package domain

import (
	"encoding/json"
	"time"
)

// Address represents a shipping or billing record owned by a user.
// The address payload itself (street, city, labels) is opaque to the store.
type Address struct {
	// ID is the unique identifier assigned by the store on creation.
	ID int64 `json:"id"`

	// UserID references the owning user, set at creation from the
	// current session.
	UserID int64 `json:"userId"`

	// Fields carries the address payload, opaque to the store.
	Fields json.RawMessage `json:"fields,omitempty"`

	// CreatedAt is the timestamp when the address was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the last update, if any.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
