package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/store"
)

// userRepository implements UserRepository on the object store.
type userRepository struct {
	store store.Store
}

// NewUserRepository creates a store-backed user repository.
func NewUserRepository(s store.Store) UserRepository {
	return &userRepository{store: s}
}

// Create persists a new user and assigns its identifier.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)

	doc, err := toRecord(user)
	if err != nil {
		return domain.NewStorageError("add", store.CollectionUsers, err)
	}

	id, err := r.store.Add(ctx, store.CollectionUsers, doc)
	if err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return domain.ErrEmailAlreadyInUse
		}
		return err
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by identifier.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	doc, err := r.store.Get(ctx, store.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrUserNotFound
	}

	user := &domain.User{}
	if err := fromRecord(doc, user); err != nil {
		return nil, domain.NewStorageError("get", store.CollectionUsers, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := r.store.GetByIndex(ctx, store.CollectionUsers, "email", domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrUserNotFound
	}

	user := &domain.User{}
	if err := fromRecord(doc, user); err != nil {
		return nil, domain.NewStorageError("get_by_index", store.CollectionUsers, err)
	}
	return user, nil
}

// ExistsByEmail checks if a user with the normalized email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	doc, err := r.store.GetByIndex(ctx, store.CollectionUsers, "email", domain.NormalizeEmail(email))
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Update replaces the stored user with the given one.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		return fmt.Errorf("%w: user has no identifier", domain.ErrUserNotFound)
	}
	user.Email = domain.NormalizeEmail(user.Email)

	doc, err := toRecord(user)
	if err != nil {
		return domain.NewStorageError("put", store.CollectionUsers, err)
	}

	if err := r.store.Put(ctx, store.CollectionUsers, user.ID, doc); err != nil {
		if errors.Is(err, domain.ErrConstraintViolation) {
			return domain.ErrEmailAlreadyInUse
		}
		return err
	}
	return nil
}

// List returns all users.
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	docs, err := r.store.GetAll(ctx, store.CollectionUsers)
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(docs))
	for _, doc := range docs {
		user := &domain.User{}
		if err := fromRecord(doc, user); err != nil {
			return nil, domain.NewStorageError("get_all", store.CollectionUsers, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// Ensure userRepository implements UserRepository.
var _ UserRepository = (*userRepository)(nil)
