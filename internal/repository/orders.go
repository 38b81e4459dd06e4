package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/store"
)

// orderRepository implements OrderRepository on the object store.
type orderRepository struct {
	store store.Store
}

// NewOrderRepository creates a store-backed order repository.
func NewOrderRepository(s store.Store) OrderRepository {
	return &orderRepository{store: s}
}

// Create persists a new order and assigns its identifier.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	doc, err := toRecord(order)
	if err != nil {
		return domain.NewStorageError("add", store.CollectionOrders, err)
	}

	id, err := r.store.Add(ctx, store.CollectionOrders, doc)
	if err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return domain.ErrOrderNumberInUse
		}
		return err
	}
	order.ID = id
	return nil
}

// GetByID retrieves an order by identifier.
func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	doc, err := r.store.Get(ctx, store.CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrOrderNotFound
	}

	order := &domain.Order{}
	if err := fromRecord(doc, order); err != nil {
		return nil, domain.NewStorageError("get", store.CollectionOrders, err)
	}
	return order, nil
}

// ListByUser returns all orders of the user, newest first. The index scan
// pre-sorts on the order_date column; the final sort on parsed timestamps
// guarantees strict descending order regardless of text encoding.
func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	docs, err := r.store.ListByIndex(ctx, store.CollectionOrders, "user_id", userID,
		store.ListOptions{OrderBy: "order_date", Descending: true})
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := &domain.Order{}
		if err := fromRecord(doc, order); err != nil {
			return nil, domain.NewStorageError("list_by_index", store.CollectionOrders, err)
		}
		orders = append(orders, order)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	return orders, nil
}

// Update replaces the stored order with the given one.
func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	doc, err := toRecord(order)
	if err != nil {
		return domain.NewStorageError("put", store.CollectionOrders, err)
	}

	if err := r.store.Put(ctx, store.CollectionOrders, order.ID, doc); err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return domain.ErrOrderNumberInUse
		}
		return err
	}
	return nil
}

// Delete removes an order by identifier.
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, store.CollectionOrders, id)
}

// Ensure orderRepository implements OrderRepository.
var _ OrderRepository = (*orderRepository)(nil)
