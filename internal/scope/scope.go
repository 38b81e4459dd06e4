// Package scope provides pluggable key-value persistence scopes for session
// and local state. A scope models one browser-storage lifetime: the
// short-lived scope lasts for the process (tab session), while durable
// scopes (file, Redis) survive restarts. The session manager mirrors the
// current identity into one scope of each lifetime.
package scope

import (
	"context"
	"errors"
)

// Well-known scope keys.
const (
	// KeyCurrentUser holds the serialized, password-stripped identity.
	KeyCurrentUser = "currentUser"

	// KeyLanguage holds the language preference.
	KeyLanguage = "lang"

	// KeyCart holds the cart snapshot.
	KeyCart = "cart"

	// KeyWishlist holds the wishlist snapshot.
	KeyWishlist = "wishlist"
)

// ErrKeyNotFound indicates the key is not present in the scope.
var ErrKeyNotFound = errors.New("scope: key not found")

// Scope is a small key-value persistence backend. Implementations must be
// safe for concurrent use. Values are opaque byte slices (typically JSON).
type Scope interface {
	// Get retrieves the value for key.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value for key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Absent keys are a no-op.
	Delete(ctx context.Context, key string) error
}
