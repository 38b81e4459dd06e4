package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/scope"
)

func testIdentity() *domain.Identity {
	return &domain.Identity{ID: 1, Email: "anna@example.com", Name: "Anna"}
}

func TestManager_EstablishAndCurrent(t *testing.T) {
	shortLived := scope.NewMemoryScope()
	durable := scope.NewMemoryScope()
	m := NewManager(shortLived, durable, zerolog.Nop())
	ctx := context.Background()

	require.Nil(t, m.Current())

	require.NoError(t, m.Establish(ctx, testIdentity()))
	current := m.Current()
	require.NotNil(t, current)
	require.Equal(t, int64(1), current.ID)

	// Both scopes carry the identity.
	_, err := shortLived.Get(ctx, scope.KeyCurrentUser)
	require.NoError(t, err)
	_, err = durable.Get(ctx, scope.KeyCurrentUser)
	require.NoError(t, err)

	// Current returns a copy; mutating it does not alter the session.
	current.Name = "Mallory"
	require.Equal(t, "Anna", m.Current().Name)
}

func TestManager_Clear(t *testing.T) {
	shortLived := scope.NewMemoryScope()
	durable := scope.NewMemoryScope()
	m := NewManager(shortLived, durable, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, m.Establish(ctx, testIdentity()))
	require.NoError(t, m.Clear(ctx))

	require.Nil(t, m.Current())
	_, err := shortLived.Get(ctx, scope.KeyCurrentUser)
	require.ErrorIs(t, err, scope.ErrKeyNotFound)
	_, err = durable.Get(ctx, scope.KeyCurrentUser)
	require.ErrorIs(t, err, scope.ErrKeyNotFound)

	// Clearing while signed out is a no-op.
	require.NoError(t, m.Clear(ctx))
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		m := NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
		identity, err := m.Restore(ctx)
		require.NoError(t, err)
		require.Nil(t, identity)
		require.Nil(t, m.Current())
	})

	t.Run("prefers short-lived scope", func(t *testing.T) {
		shortLived := scope.NewMemoryScope()
		durable := scope.NewMemoryScope()
		require.NoError(t, shortLived.Set(ctx, scope.KeyCurrentUser, []byte(`{"id":1,"name":"Short"}`)))
		require.NoError(t, durable.Set(ctx, scope.KeyCurrentUser, []byte(`{"id":2,"name":"Durable"}`)))

		m := NewManager(shortLived, durable, zerolog.Nop())
		identity, err := m.Restore(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), identity.ID)
	})

	t.Run("falls back to durable and re-seeds", func(t *testing.T) {
		shortLived := scope.NewMemoryScope()
		durable := scope.NewMemoryScope()
		require.NoError(t, durable.Set(ctx, scope.KeyCurrentUser, []byte(`{"id":2,"name":"Durable"}`)))

		m := NewManager(shortLived, durable, zerolog.Nop())
		identity, err := m.Restore(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2), identity.ID)

		// The short-lived scope now carries the identity too.
		payload, err := shortLived.Get(ctx, scope.KeyCurrentUser)
		require.NoError(t, err)
		require.NotEmpty(t, payload)
	})

	t.Run("corrupt payload fails", func(t *testing.T) {
		shortLived := scope.NewMemoryScope()
		require.NoError(t, shortLived.Set(ctx, scope.KeyCurrentUser, []byte(`{garbage`)))

		m := NewManager(shortLived, scope.NewMemoryScope(), zerolog.Nop())
		_, err := m.Restore(ctx)
		require.Error(t, err)
	})
}

func TestManager_RestoreAcrossInstances(t *testing.T) {
	ctx := context.Background()
	durable := scope.NewMemoryScope()

	first := NewManager(scope.NewMemoryScope(), durable, zerolog.Nop())
	require.NoError(t, first.Establish(ctx, testIdentity()))

	// A fresh manager with a fresh short-lived scope but the same durable
	// scope models a restart.
	second := NewManager(scope.NewMemoryScope(), durable, zerolog.Nop())
	identity, err := second.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, identity)
	require.Equal(t, int64(1), identity.ID)
}
