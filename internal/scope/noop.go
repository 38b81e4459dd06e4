package scope

import "context"

// NoopScope implements Scope with no persistence at all. Useful in tests
// and for deployments that disable session restoration.
type NoopScope struct{}

// NewNoopScope creates a new no-op scope.
func NewNoopScope() *NoopScope {
	return &NoopScope{}
}

// Get always reports a missing key.
func (NoopScope) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrKeyNotFound
}

// Set discards the value.
func (NoopScope) Set(ctx context.Context, key string, value []byte) error {
	return nil
}

// Delete is a no-op.
func (NoopScope) Delete(ctx context.Context, key string) error {
	return nil
}

// Ensure NoopScope implements Scope.
var _ Scope = (*NoopScope)(nil)
