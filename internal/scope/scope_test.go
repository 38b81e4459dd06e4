package scope

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryScope(t *testing.T) {
	s := NewMemoryScope()
	ctx := context.Background()

	_, err := s.Get(ctx, KeyCurrentUser)
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, KeyCurrentUser, []byte(`{"id":1}`)))
	got, err := s.Get(ctx, KeyCurrentUser)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":1}`), got)

	// Stored values are isolated from caller mutations.
	payload := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", payload))
	payload[0] = 'x'
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	require.NoError(t, s.Delete(ctx, KeyCurrentUser))
	_, err = s.Get(ctx, KeyCurrentUser)
	require.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is a no-op.
	require.NoError(t, s.Delete(ctx, KeyCurrentUser))
}

func TestFileScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	ctx := context.Background()

	s, err := NewFileScope(path)
	require.NoError(t, err)

	_, err = s.Get(ctx, KeyCurrentUser)
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, KeyCurrentUser, []byte(`{"id":1}`)))
	require.NoError(t, s.Set(ctx, KeyLanguage, []byte(`"lv"`)))

	// A second scope over the same file sees the persisted state.
	reopened, err := NewFileScope(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, KeyCurrentUser)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":1}`), got)

	require.NoError(t, reopened.Delete(ctx, KeyCurrentUser))
	_, err = reopened.Get(ctx, KeyCurrentUser)
	require.ErrorIs(t, err, ErrKeyNotFound)

	// The other key survives the delete.
	got, err = reopened.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	require.Equal(t, []byte(`"lv"`), got)
}

func TestFileScope_ArbitraryBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	s, err := NewFileScope(path)
	require.NoError(t, err)

	// Values are opaque: ciphertext and raw binary must round-trip even
	// though the backing file is JSON.
	payload := []byte{0x00, 0xff, '{', 'n', 'o', 't', ' ', 'j', 's', 'o', 'n'}
	require.NoError(t, s.Set(ctx, KeyCurrentUser, payload))

	reopened, err := NewFileScope(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, KeyCurrentUser)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestNoopScope(t *testing.T) {
	s := NewNoopScope()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.NoError(t, s.Delete(ctx, "k"))
}
