package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/repository"
	"github.com/prn-tf/waverly-store/internal/session"
)

// orderNumberRetries bounds how many times a generated order number is
// regenerated after colliding with an existing one. Collisions require two
// orders in the same millisecond with the same random suffix, so even one
// retry is almost never taken.
const orderNumberRetries = 3

// OrderService handles order placement and lifecycle management.
type OrderService struct {
	orderRepo repository.OrderRepository
	sessions  *session.Manager
	logger    zerolog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repository.OrderRepository, sessions *session.Manager, logger zerolog.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		sessions:  sessions,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// PlaceOrderInput contains the data needed to place an order.
// OrderNumber, OrderDate and Status are optional; absent values are
// generated or defaulted. Total accepts any representation a caller might
// hold (number or currency string) and is normalized at ingestion.
type PlaceOrderInput struct {
	OrderNumber string
	OrderDate   time.Time
	Status      string
	Total       any
	Items       json.RawMessage
}

// Place records a new order for the signed-in user. Requires an active
// session; returns domain.ErrUnauthenticated otherwise. When no order
// number is supplied one is generated, and a collision on the generated
// number is retried with a fresh number. A caller-supplied number that
// collides is never retried: the conflict is the caller's to resolve.
func (s *OrderService) Place(ctx context.Context, input PlaceOrderInput) (*domain.Order, error) {
	current := s.sessions.Current()
	if current == nil {
		return nil, domain.ErrUnauthenticated
	}

	now := time.Now().UTC()
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = domain.OrderStatusPending
	}

	generated := input.OrderNumber == ""
	orderNumber := input.OrderNumber
	if generated {
		orderNumber = domain.GenerateOrderNumber(now)
	}

	order := &domain.Order{
		UserID:      current.ID,
		OrderNumber: orderNumber,
		OrderDate:   orderDate,
		Status:      status,
		Total:       domain.ParseTotal(input.Total),
		Items:       input.Items,
		CreatedAt:   now,
	}

	for attempt := 0; ; attempt++ {
		err := s.orderRepo.Create(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrOrderNumberInUse) {
			if !generated || attempt >= orderNumberRetries {
				return nil, fmt.Errorf("%w: %s", domain.ErrOrderNumberInUse, order.OrderNumber)
			}
			order.OrderNumber = domain.GenerateOrderNumber(time.Now().UTC())
			continue
		}
		s.logger.Error().Err(err).Int64("user_id", current.ID).Msg("failed to create order")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("order_id", order.ID).
		Int64("user_id", order.UserID).
		Str("order_number", order.OrderNumber).
		Msg("order placed")

	return order, nil
}

// Get retrieves an order by identifier.
func (s *OrderService) Get(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to load order")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return orders, nil
}

// UpdateStatus transitions an order to the given status and stamps
// UpdatedAt. The status set is open-ended; any non-empty value is accepted.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, ErrInvalidStatus
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to load order")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := time.Now().UTC()
	order.Status = status
	order.UpdatedAt = &now

	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to update order")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("order_id", id).Str("status", status).Msg("order status updated")
	return order, nil
}

// Delete removes an order. Deleting an absent order is a no-op.
func (s *OrderService) Delete(ctx context.Context, id int64) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to delete order")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Int64("order_id", id).Msg("order deleted")
	return nil
}
