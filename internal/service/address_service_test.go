package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/scope"
	"github.com/prn-tf/waverly-store/internal/session"
)

// MockAddressRepository is a mock implementation of
// repository.AddressRepository.
type MockAddressRepository struct {
	addresses map[int64]*domain.Address
	nextID    int64
	createErr error
}

func NewMockAddressRepository() *MockAddressRepository {
	return &MockAddressRepository{
		addresses: make(map[int64]*domain.Address),
		nextID:    1,
	}
}

func (m *MockAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	if m.createErr != nil {
		return m.createErr
	}
	address.ID = m.nextID
	m.nextID++
	cp := *address
	m.addresses[address.ID] = &cp
	return nil
}

func (m *MockAddressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	if a, ok := m.addresses[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrAddressNotFound
}

func (m *MockAddressRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	var result []*domain.Address
	for _, a := range m.addresses {
		if a.UserID == userID {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	if _, ok := m.addresses[address.ID]; !ok {
		return domain.ErrAddressNotFound
	}
	cp := *address
	m.addresses[address.ID] = &cp
	return nil
}

func (m *MockAddressRepository) Delete(ctx context.Context, id int64) error {
	delete(m.addresses, id)
	return nil
}

func newTestAddressService(t *testing.T, repo *MockAddressRepository) *AddressService {
	t.Helper()
	sessions := session.NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
	err := sessions.Establish(context.Background(), &domain.Identity{ID: 1, Email: "anna@example.com", Name: "Anna"})
	require.NoError(t, err)
	return NewAddressService(repo, sessions, zerolog.Nop())
}

// =============================================================================
// Tests
// =============================================================================

func TestAddressService_Add(t *testing.T) {
	repo := NewMockAddressRepository()
	svc := newTestAddressService(t, repo)

	fields := json.RawMessage(`{"label":"Home","street":"12 Main St","city":"Riga"}`)
	address, err := svc.Add(context.Background(), fields)
	require.NoError(t, err)
	require.NotZero(t, address.ID)
	require.Equal(t, int64(1), address.UserID)
	require.JSONEq(t, string(fields), string(address.Fields))
	require.False(t, address.CreatedAt.IsZero())
	require.Nil(t, address.UpdatedAt)
}

func TestAddressService_Add_RequiresSession(t *testing.T) {
	repo := NewMockAddressRepository()
	sessions := session.NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
	svc := NewAddressService(repo, sessions, zerolog.Nop())

	_, err := svc.Add(context.Background(), json.RawMessage(`{"label":"Home"}`))
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	require.Empty(t, repo.addresses)
}

func TestAddressService_Update_MergesFields(t *testing.T) {
	repo := NewMockAddressRepository()
	svc := newTestAddressService(t, repo)

	address, err := svc.Add(context.Background(), json.RawMessage(`{"label":"Home","street":"12 Main St","city":"Riga"}`))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), address.ID, json.RawMessage(`{"street":"7 Oak Ave"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"label":"Home","street":"7 Oak Ave","city":"Riga"}`, string(updated.Fields))
	require.NotNil(t, updated.UpdatedAt)

	_, err = svc.Update(context.Background(), 99, json.RawMessage(`{"street":"x"}`))
	require.ErrorIs(t, err, domain.ErrAddressNotFound)

	_, err = svc.Update(context.Background(), address.ID, json.RawMessage(`not-json`))
	require.Error(t, err)
}

func TestAddressService_ListByUser(t *testing.T) {
	repo := NewMockAddressRepository()
	svc := newTestAddressService(t, repo)

	_, err := svc.Add(context.Background(), json.RawMessage(`{"label":"Home"}`))
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), json.RawMessage(`{"label":"Work"}`))
	require.NoError(t, err)

	addresses, err := svc.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, addresses, 2)

	addresses, err = svc.ListByUser(context.Background(), 99)
	require.NoError(t, err)
	require.Empty(t, addresses)
}

func TestAddressService_Delete(t *testing.T) {
	repo := NewMockAddressRepository()
	svc := newTestAddressService(t, repo)

	address, err := svc.Add(context.Background(), json.RawMessage(`{"label":"Home"}`))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), address.ID))
	_, err = repo.GetByID(context.Background(), address.ID)
	require.ErrorIs(t, err, domain.ErrAddressNotFound)

	require.NoError(t, svc.Delete(context.Background(), address.ID))
}
