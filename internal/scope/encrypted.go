package scope

import (
	"context"
	"fmt"

	"github.com/prn-tf/waverly-store/internal/pkg/crypto"
)

// EncryptedScope wraps another scope and encrypts values at rest with
// AES-256-GCM. Intended for durable scopes whose backing medium (files,
// shared Redis) may be readable by others; the in-memory scope gains
// nothing from it.
type EncryptedScope struct {
	inner     Scope
	encryptor *crypto.Encryptor
}

// NewEncryptedScope wraps inner so that values pass through encryptor.
func NewEncryptedScope(inner Scope, encryptor *crypto.Encryptor) *EncryptedScope {
	return &EncryptedScope{inner: inner, encryptor: encryptor}
}

// Get retrieves and decrypts the value for key.
func (s *EncryptedScope) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	value, err := s.encryptor.Decrypt(string(sealed))
	if err != nil {
		return nil, fmt.Errorf("scope: decrypt %q: %w", key, err)
	}
	return value, nil
}

// Set encrypts and stores the value for key.
func (s *EncryptedScope) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("scope: encrypt %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, []byte(sealed))
}

// Delete removes the key from the inner scope.
func (s *EncryptedScope) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Ensure EncryptedScope implements Scope.
var _ Scope = (*EncryptedScope)(nil)
