// Package session tracks the authenticated identity across process
// lifetimes. The identity is held in memory and mirrored into two
// persistence scopes of different lifetimes: a short-lived scope that lasts
// for the tab session and a durable scope that survives restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/scope"
)

// Manager holds the current identity and keeps both scopes in sync with it.
// The state machine is SignedOut -> SignedIn (register/sign-in) -> SignedOut
// (sign-out); there are no other states.
type Manager struct {
	mu         sync.RWMutex
	current    *domain.Identity
	shortLived scope.Scope
	durable    scope.Scope
	logger     zerolog.Logger
}

// NewManager creates a session manager over a short-lived and a durable
// scope.
func NewManager(shortLived, durable scope.Scope, logger zerolog.Logger) *Manager {
	return &Manager{
		shortLived: shortLived,
		durable:    durable,
		logger:     logger.With().Str("component", "session").Logger(),
	}
}

// Current returns the in-memory identity, or nil when signed out.
func (m *Manager) Current() *domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// Establish sets identity as the current identity and serializes it into
// both scopes. Called on every successful registration, sign-in and profile
// refresh affecting the current identity.
func (m *Manager) Establish(ctx context.Context, identity *domain.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	m.mu.Lock()
	cp := *identity
	m.current = &cp
	m.mu.Unlock()

	if err := m.shortLived.Set(ctx, scope.KeyCurrentUser, payload); err != nil {
		return fmt.Errorf("failed to persist identity to short-lived scope: %w", err)
	}
	if err := m.durable.Set(ctx, scope.KeyCurrentUser, payload); err != nil {
		return fmt.Errorf("failed to persist identity to durable scope: %w", err)
	}

	m.logger.Debug().Int64("user_id", identity.ID).Msg("session established")
	return nil
}

// Clear signs out: drops the in-memory identity and removes it from both
// scopes, so a later Restore finds nothing in either.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.shortLived.Delete(ctx, scope.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear short-lived scope: %w", err)
	}
	if err := m.durable.Delete(ctx, scope.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear durable scope: %w", err)
	}

	m.logger.Debug().Msg("session cleared")
	return nil
}

// Restore resolves the initial state at startup. Policy: prefer the
// short-lived scope; if absent, fall back to the durable scope and re-seed
// the short-lived scope from it. The durable scope is therefore
// authoritative across full restarts, while the short-lived scope is
// authoritative within one tab session (e.g. after a sign-out that cleared
// both).
func (m *Manager) Restore(ctx context.Context) (*domain.Identity, error) {
	payload, err := m.shortLived.Get(ctx, scope.KeyCurrentUser)
	if err == nil {
		return m.adopt(payload)
	}
	if !errors.Is(err, scope.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to read short-lived scope: %w", err)
	}

	payload, err = m.durable.Get(ctx, scope.KeyCurrentUser)
	if err != nil {
		if errors.Is(err, scope.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read durable scope: %w", err)
	}

	if err := m.shortLived.Set(ctx, scope.KeyCurrentUser, payload); err != nil {
		return nil, fmt.Errorf("failed to re-seed short-lived scope: %w", err)
	}
	return m.adopt(payload)
}

// adopt decodes a persisted identity and installs it in memory.
func (m *Manager) adopt(payload []byte) (*domain.Identity, error) {
	var identity domain.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode persisted identity: %w", err)
	}

	m.mu.Lock()
	m.current = &identity
	m.mu.Unlock()

	m.logger.Debug().Int64("user_id", identity.ID).Msg("session restored")
	cp := identity
	return &cp, nil
}
