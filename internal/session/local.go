package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prn-tf/waverly-store/internal/scope"
)

// DefaultLanguage is returned when no language preference is stored.
const DefaultLanguage = "en"

// LocalState exposes the standalone durable preferences that live beside the
// session: language, and the cart and wishlist snapshots the UI persists
// between visits. These are keys in the durable scope, not store entities.
type LocalState struct {
	durable scope.Scope
}

// NewLocalState creates a LocalState over the durable scope.
func NewLocalState(durable scope.Scope) *LocalState {
	return &LocalState{durable: durable}
}

// Language returns the stored language preference, or DefaultLanguage.
func (l *LocalState) Language(ctx context.Context) (string, error) {
	payload, err := l.durable.Get(ctx, scope.KeyLanguage)
	if err != nil {
		if errors.Is(err, scope.ErrKeyNotFound) {
			return DefaultLanguage, nil
		}
		return "", fmt.Errorf("failed to read language preference: %w", err)
	}

	var lang string
	if err := json.Unmarshal(payload, &lang); err != nil {
		return "", fmt.Errorf("failed to decode language preference: %w", err)
	}
	return lang, nil
}

// SetLanguage stores the language preference.
func (l *LocalState) SetLanguage(ctx context.Context, lang string) error {
	payload, err := json.Marshal(lang)
	if err != nil {
		return fmt.Errorf("failed to encode language preference: %w", err)
	}
	if err := l.durable.Set(ctx, scope.KeyLanguage, payload); err != nil {
		return fmt.Errorf("failed to store language preference: %w", err)
	}
	return nil
}

// Cart returns the stored cart snapshot, or nil if none.
func (l *LocalState) Cart(ctx context.Context) (json.RawMessage, error) {
	return l.snapshot(ctx, scope.KeyCart)
}

// SaveCart stores the cart snapshot. A nil snapshot clears it.
func (l *LocalState) SaveCart(ctx context.Context, snapshot json.RawMessage) error {
	return l.saveSnapshot(ctx, scope.KeyCart, snapshot)
}

// Wishlist returns the stored wishlist snapshot, or nil if none.
func (l *LocalState) Wishlist(ctx context.Context) (json.RawMessage, error) {
	return l.snapshot(ctx, scope.KeyWishlist)
}

// SaveWishlist stores the wishlist snapshot. A nil snapshot clears it.
func (l *LocalState) SaveWishlist(ctx context.Context, snapshot json.RawMessage) error {
	return l.saveSnapshot(ctx, scope.KeyWishlist, snapshot)
}

func (l *LocalState) snapshot(ctx context.Context, key string) (json.RawMessage, error) {
	payload, err := l.durable.Get(ctx, key)
	if err != nil {
		if errors.Is(err, scope.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s snapshot: %w", key, err)
	}
	return payload, nil
}

func (l *LocalState) saveSnapshot(ctx context.Context, key string, snapshot json.RawMessage) error {
	if snapshot == nil {
		if err := l.durable.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s snapshot: %w", key, err)
		}
		return nil
	}
	if err := l.durable.Set(ctx, key, snapshot); err != nil {
		return fmt.Errorf("failed to store %s snapshot: %w", key, err)
	}
	return nil
}
