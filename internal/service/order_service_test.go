package service

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/scope"
	"github.com/prn-tf/waverly-store/internal/session"
)

// MockOrderRepository is a mock implementation of repository.OrderRepository.
type MockOrderRepository struct {
	orders map[int64]*domain.Order
	nextID int64

	// conflictsLeft makes the next N Create calls fail with a duplicate
	// order number, regardless of the actual number.
	conflictsLeft int

	createErr error
	getErr    error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[int64]*domain.Order),
		nextID: 1,
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return domain.ErrOrderNumberInUse
	}
	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return domain.ErrOrderNumberInUse
		}
	}
	order.ID = m.nextID
	m.nextID++
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	var result []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			result = append(result, &cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrderDate.After(result[j].OrderDate)
	})
	return result, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	if _, ok := m.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepository) Delete(ctx context.Context, id int64) error {
	delete(m.orders, id)
	return nil
}

// newTestOrderService returns an order service with a signed-in session
// for user 1.
func newTestOrderService(t *testing.T, repo *MockOrderRepository) *OrderService {
	t.Helper()
	sessions := session.NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
	err := sessions.Establish(context.Background(), &domain.Identity{ID: 1, Email: "anna@example.com", Name: "Anna"})
	require.NoError(t, err)
	return NewOrderService(repo, sessions, zerolog.Nop())
}

// =============================================================================
// Tests
// =============================================================================

func TestOrderService_Place(t *testing.T) {
	items := json.RawMessage(`[{"sku":"W-100","qty":2}]`)

	tests := []struct {
		name  string
		input PlaceOrderInput
		check func(t *testing.T, order *domain.Order)
	}{
		{
			name:  "defaults applied",
			input: PlaceOrderInput{Total: 129.99, Items: items},
			check: func(t *testing.T, order *domain.Order) {
				require.Equal(t, domain.OrderStatusPending, order.Status)
				require.Regexp(t, `^ORD-\d+-\d{3}$`, order.OrderNumber)
				require.False(t, order.OrderDate.IsZero())
				require.Equal(t, 129.99, order.Total)
				require.JSONEq(t, string(items), string(order.Items))
			},
		},
		{
			name: "caller-supplied fields kept",
			input: PlaceOrderInput{
				OrderNumber: "ORD-CUSTOM-1",
				OrderDate:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
				Status:      "Shipped",
				Total:       50,
			},
			check: func(t *testing.T, order *domain.Order) {
				require.Equal(t, "ORD-CUSTOM-1", order.OrderNumber)
				require.Equal(t, "Shipped", order.Status)
				require.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), order.OrderDate)
			},
		},
		{
			name:  "string total normalized",
			input: PlaceOrderInput{Total: "$1,299.99"},
			check: func(t *testing.T, order *domain.Order) {
				require.Equal(t, 1299.99, order.Total)
			},
		},
		{
			name:  "unparseable total coerces to zero",
			input: PlaceOrderInput{Total: "free"},
			check: func(t *testing.T, order *domain.Order) {
				require.Equal(t, 0.0, order.Total)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockOrderRepository()
			svc := newTestOrderService(t, repo)

			order, err := svc.Place(context.Background(), tt.input)
			require.NoError(t, err)
			require.NotZero(t, order.ID)
			require.Equal(t, int64(1), order.UserID)
			tt.check(t, order)
		})
	}
}

func TestOrderService_Place_RequiresSession(t *testing.T) {
	repo := NewMockOrderRepository()
	sessions := session.NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
	svc := NewOrderService(repo, sessions, zerolog.Nop())

	_, err := svc.Place(context.Background(), PlaceOrderInput{Total: 10})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	require.Empty(t, repo.orders)
}

func TestOrderService_Place_RetriesGeneratedNumber(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.conflictsLeft = 2
	svc := newTestOrderService(t, repo)

	order, err := svc.Place(context.Background(), PlaceOrderInput{Total: 10})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.Zero(t, repo.conflictsLeft)
}

func TestOrderService_Place_ExhaustedRetries(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.conflictsLeft = orderNumberRetries + 1
	svc := newTestOrderService(t, repo)

	_, err := svc.Place(context.Background(), PlaceOrderInput{Total: 10})
	require.ErrorIs(t, err, domain.ErrOrderNumberInUse)
}

func TestOrderService_Place_CallerNumberNeverRetried(t *testing.T) {
	repo := NewMockOrderRepository()
	repo.conflictsLeft = 1
	svc := newTestOrderService(t, repo)

	_, err := svc.Place(context.Background(), PlaceOrderInput{OrderNumber: "ORD-CUSTOM-1", Total: 10})
	require.ErrorIs(t, err, domain.ErrOrderNumberInUse)
	// The single injected conflict was the only Create attempt.
	require.Zero(t, repo.conflictsLeft)
	require.Empty(t, repo.orders)
}

func TestOrderService_ListByUser(t *testing.T) {
	repo := NewMockOrderRepository()
	svc := newTestOrderService(t, repo)

	dates := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		_, err := svc.Place(context.Background(), PlaceOrderInput{
			OrderNumber: domain.GenerateOrderNumber(time.Now().Add(time.Duration(i) * time.Millisecond)),
			OrderDate:   d,
			Total:       10,
		})
		require.NoError(t, err)
	}

	orders, err := svc.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	// Newest first.
	require.Equal(t, dates[1], orders[0].OrderDate)
	require.Equal(t, dates[2], orders[1].OrderDate)
	require.Equal(t, dates[0], orders[2].OrderDate)

	orders, err = svc.ListByUser(context.Background(), 99)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	repo := NewMockOrderRepository()
	svc := newTestOrderService(t, repo)

	placed, err := svc.Place(context.Background(), PlaceOrderInput{Total: 10})
	require.NoError(t, err)
	require.Nil(t, placed.UpdatedAt)

	updated, err := svc.UpdateStatus(context.Background(), placed.ID, "Shipped")
	require.NoError(t, err)
	require.Equal(t, "Shipped", updated.Status)
	require.NotNil(t, updated.UpdatedAt)

	_, err = svc.UpdateStatus(context.Background(), placed.ID, "  ")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(context.Background(), 99, "Shipped")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_Delete(t *testing.T) {
	repo := NewMockOrderRepository()
	svc := newTestOrderService(t, repo)

	placed, err := svc.Place(context.Background(), PlaceOrderInput{Total: 10})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), placed.ID))
	_, err = svc.Get(context.Background(), placed.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	// Deleting an absent order is a no-op.
	require.NoError(t, svc.Delete(context.Background(), placed.ID))
}
