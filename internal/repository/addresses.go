package repository

import (
	"context"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/store"
)

// addressRepository implements AddressRepository on the object store.
type addressRepository struct {
	store store.Store
}

// NewAddressRepository creates a store-backed address repository.
func NewAddressRepository(s store.Store) AddressRepository {
	return &addressRepository{store: s}
}

// Create persists a new address and assigns its identifier.
func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	doc, err := toRecord(address)
	if err != nil {
		return domain.NewStorageError("add", store.CollectionAddresses, err)
	}

	id, err := r.store.Add(ctx, store.CollectionAddresses, doc)
	if err != nil {
		return err
	}
	address.ID = id
	return nil
}

// GetByID retrieves an address by identifier.
func (r *addressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	doc, err := r.store.Get(ctx, store.CollectionAddresses, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrAddressNotFound
	}

	address := &domain.Address{}
	if err := fromRecord(doc, address); err != nil {
		return nil, domain.NewStorageError("get", store.CollectionAddresses, err)
	}
	return address, nil
}

// ListByUser returns all addresses of the user, unsorted.
func (r *addressRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	docs, err := r.store.ListByIndex(ctx, store.CollectionAddresses, "user_id", userID, store.ListOptions{})
	if err != nil {
		return nil, err
	}

	addresses := make([]*domain.Address, 0, len(docs))
	for _, doc := range docs {
		address := &domain.Address{}
		if err := fromRecord(doc, address); err != nil {
			return nil, domain.NewStorageError("list_by_index", store.CollectionAddresses, err)
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// Update replaces the stored address with the given one.
func (r *addressRepository) Update(ctx context.Context, address *domain.Address) error {
	doc, err := toRecord(address)
	if err != nil {
		return domain.NewStorageError("put", store.CollectionAddresses, err)
	}
	return r.store.Put(ctx, store.CollectionAddresses, address.ID, doc)
}

// Delete removes an address by identifier.
func (r *addressRepository) Delete(ctx context.Context, id int64) error {
	return r.store.Delete(ctx, store.CollectionAddresses, id)
}

// Ensure addressRepository implements AddressRepository.
var _ AddressRepository = (*addressRepository)(nil)
