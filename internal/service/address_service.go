package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/repository"
	"github.com/prn-tf/waverly-store/internal/session"
)

// AddressService handles the user's saved addresses.
type AddressService struct {
	addressRepo repository.AddressRepository
	sessions    *session.Manager
	logger      zerolog.Logger
}

// NewAddressService creates a new AddressService.
func NewAddressService(addressRepo repository.AddressRepository, sessions *session.Manager, logger zerolog.Logger) *AddressService {
	return &AddressService{
		addressRepo: addressRepo,
		sessions:    sessions,
		logger:      logger.With().Str("service", "address").Logger(),
	}
}

// Add saves a new address for the signed-in user. Requires an active
// session; returns domain.ErrUnauthenticated otherwise. The address payload
// is stored opaquely.
func (s *AddressService) Add(ctx context.Context, fields json.RawMessage) (*domain.Address, error) {
	current := s.sessions.Current()
	if current == nil {
		return nil, domain.ErrUnauthenticated
	}

	address := &domain.Address{
		UserID:    current.ID,
		Fields:    fields,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.addressRepo.Create(ctx, address); err != nil {
		s.logger.Error().Err(err).Int64("user_id", current.ID).Msg("failed to create address")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("address_id", address.ID).
		Int64("user_id", address.UserID).
		Msg("address added")

	return address, nil
}

// ListByUser returns all addresses of the user.
func (s *AddressService) ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	addresses, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list addresses")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return addresses, nil
}

// Update merges the given payload into the stored address. Keys present in
// fields replace the stored keys; absent keys are left untouched. UpdatedAt
// is stamped on every successful update.
func (s *AddressService) Update(ctx context.Context, id int64, fields json.RawMessage) (*domain.Address, error) {
	address, err := s.addressRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			return nil, domain.ErrAddressNotFound
		}
		s.logger.Error().Err(err).Int64("address_id", id).Msg("failed to load address")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	merged, err := mergeFields(address.Fields, fields)
	if err != nil {
		return nil, fmt.Errorf("invalid address payload: %w", err)
	}

	now := time.Now().UTC()
	address.Fields = merged
	address.UpdatedAt = &now

	if err := s.addressRepo.Update(ctx, address); err != nil {
		s.logger.Error().Err(err).Int64("address_id", id).Msg("failed to update address")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("address_id", id).Msg("address updated")
	return address, nil
}

// Delete removes an address. Deleting an absent address is a no-op.
func (s *AddressService) Delete(ctx context.Context, id int64) error {
	if err := s.addressRepo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("address_id", id).Msg("failed to delete address")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	s.logger.Info().Int64("address_id", id).Msg("address deleted")
	return nil
}

// mergeFields overlays patch onto base at the top level of the JSON object.
func mergeFields(base, patch json.RawMessage) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, err
		}
	}
	if len(patch) > 0 {
		overlay := map[string]any{}
		if err := json.Unmarshal(patch, &overlay); err != nil {
			return nil, err
		}
		for k, v := range overlay {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
