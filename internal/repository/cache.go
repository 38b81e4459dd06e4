package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
)

// Cache defines the subset of caching operations the repositories use.
type Cache interface {
	// Get retrieves a value by key. Any error counts as a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// DeleteMulti removes multiple values.
	DeleteMulti(ctx context.Context, keys ...string) error
}

// =============================================================================
// Cache Keys
// =============================================================================

func userIDKey(id int64) string {
	return "cache:user:id:" + strconv.FormatInt(id, 10)
}

func userEmailKey(email string) string {
	return "cache:user:email:" + email
}

// =============================================================================
// Cached User Repository
// =============================================================================

// cachedUserRepository decorates a UserRepository with read-through
// caching of single-user lookups. Sign-in and session restore hit
// GetByEmail and GetByID on every request; caching them keeps those
// paths off the store. List and existence checks always go to the
// source.
type cachedUserRepository struct {
	source UserRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedUserRepository wraps source with a read-through cache.
func NewCachedUserRepository(source UserRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) UserRepository {
	return &cachedUserRepository{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("repository", "cached_users").Logger(),
	}
}

// Create delegates to the source and primes the cache with the new user.
func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.source.Create(ctx, user); err != nil {
		return err
	}
	r.prime(ctx, user)
	return nil
}

// GetByID retrieves a user by identifier, consulting the cache first.
func (r *cachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if user, ok := r.lookup(ctx, userIDKey(id)); ok {
		return user, nil
	}

	user, err := r.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.prime(ctx, user)
	return user, nil
}

// GetByEmail retrieves a user by normalized email, consulting the cache
// first.
func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if user, ok := r.lookup(ctx, userEmailKey(email)); ok {
		return user, nil
	}

	user, err := r.source.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.prime(ctx, user)
	return user, nil
}

// ExistsByEmail always hits the source: the answer feeds uniqueness
// checks, where a stale positive or negative would be misleading.
func (r *cachedUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.source.ExistsByEmail(ctx, email)
}

// Update delegates to the source and invalidates both key forms. The
// stored email may have changed, so the previous email entry is dropped
// too.
func (r *cachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	var staleEmail string
	if prev, ok := r.lookup(ctx, userIDKey(user.ID)); ok {
		staleEmail = prev.Email
	}

	if err := r.source.Update(ctx, user); err != nil {
		return err
	}

	keys := []string{userIDKey(user.ID), userEmailKey(user.Email)}
	if staleEmail != "" && staleEmail != user.Email {
		keys = append(keys, userEmailKey(staleEmail))
	}
	if err := r.cache.DeleteMulti(ctx, keys...); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to invalidate cache")
	}
	return nil
}

// List always hits the source.
func (r *cachedUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	return r.source.List(ctx)
}

// lookup fetches and decodes a cached user. A decode failure is treated
// as a miss.
func (r *cachedUserRepository) lookup(ctx context.Context, key string) (*domain.User, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return &user, true
}

// prime stores the user under both key forms. Cache write failures are
// logged, not surfaced: the source remains authoritative.
func (r *cachedUserRepository) prime(ctx context.Context, user *domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	for _, key := range []string{userIDKey(user.ID), userEmailKey(user.Email)} {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to prime cache")
		}
	}
}

// Ensure cachedUserRepository implements UserRepository.
var _ UserRepository = (*cachedUserRepository)(nil)
