// Package storefront assembles the storage engine, session scopes and
// services into a single facade with an explicit lifecycle. Callers open
// the storefront once, use its operations, and close it; every operation
// before a successful open fails with domain.ErrUninitialized rather than
// touching a half-wired engine.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/backup"
	"github.com/prn-tf/waverly-store/internal/cache/memory"
	"github.com/prn-tf/waverly-store/internal/config"
	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/lock"
	"github.com/prn-tf/waverly-store/internal/pkg/crypto"
	"github.com/prn-tf/waverly-store/internal/repository"
	"github.com/prn-tf/waverly-store/internal/scope"
	"github.com/prn-tf/waverly-store/internal/service"
	"github.com/prn-tf/waverly-store/internal/session"
	"github.com/prn-tf/waverly-store/internal/store"
	"github.com/prn-tf/waverly-store/internal/store/postgres"
	"github.com/prn-tf/waverly-store/internal/store/sqlite"
)

// State is the lifecycle state of the storefront.
type State int

const (
	// StateUninitialized is the state before the first Open.
	StateUninitialized State = iota

	// StateInitializing is the state while an Open is in flight.
	StateInitializing

	// StateReady is the state after a successful Open.
	StateReady

	// StateFailed is the state after a failed Open. A later Open retries
	// initialization from scratch.
	StateFailed

	// StateClosed is the terminal state after Close.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Storefront is the facade over the storage engine and services.
type Storefront struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	initErr  error
	initDone chan struct{}

	store       store.Store
	schema      store.Schema
	redisClient *redis.Client
	userCache   *memory.Cache
	locker      lock.Locker
	sessions    *session.Manager
	local       *session.LocalState

	auth      *service.AuthService
	orders    *service.OrderService
	addresses *service.AddressService
	stats     *service.StatsService
}

// New creates an unopened storefront. No engine resources are touched
// until Open.
func New(cfg *config.Config, logger zerolog.Logger) *Storefront {
	return &Storefront{
		cfg:    cfg,
		schema: store.DefaultSchema(),
		logger: logger.With().Str("component", "storefront").Logger(),
	}
}

// Open initializes the storefront: connects the engine, migrates the
// schema, wires the scopes and services, and restores any persisted
// session. Open is idempotent; concurrent callers share one in-flight
// initialization and observe its outcome. After a failure a later Open
// retries from scratch.
func (s *Storefront) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateClosed:
		s.mu.Unlock()
		return domain.ErrClosed
	case StateInitializing:
		done := s.initDone
		s.mu.Unlock()
		select {
		case <-done:
			// Re-check: the shared attempt may have failed.
			s.mu.Lock()
			state, err := s.state, s.initErr
			s.mu.Unlock()
			if state == StateReady {
				return nil
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Uninitialized or Failed: this caller runs the initialization.
	s.state = StateInitializing
	s.initErr = nil
	s.initDone = make(chan struct{})
	done := s.initDone
	s.mu.Unlock()

	err := s.initialize(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.initErr = err
		s.teardownLocked()
	} else {
		s.state = StateReady
	}
	close(done)
	s.mu.Unlock()
	return err
}

// State returns the current lifecycle state.
func (s *Storefront) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the engine and scope resources. Close is terminal: a
// closed storefront cannot be reopened.
func (s *Storefront) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	err := s.teardownLocked()
	s.logger.Info().Msg("storefront closed")
	return err
}

// teardownLocked releases engine resources. Caller holds s.mu.
func (s *Storefront) teardownLocked() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.store = nil
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.redisClient = nil
	}
	if s.userCache != nil {
		s.userCache.Stop()
		s.userCache = nil
	}
	if ml, ok := s.locker.(*lock.MemoryLocker); ok {
		ml.Stop()
	}
	s.locker = nil
	return firstErr
}

// initialize performs the one-time wiring: engine, schema migration,
// scopes, session restore, services.
func (s *Storefront) initialize(ctx context.Context) error {
	s.logger.Info().
		Str("driver", s.cfg.Database.Driver).
		Int("schema_version", s.schema.Version).
		Msg("opening storefront")

	st, err := s.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.store = st

	durable, err := s.openDurableScope()
	if err != nil {
		return fmt.Errorf("failed to open durable scope: %w", err)
	}

	s.sessions = session.NewManager(scope.NewMemoryScope(), durable, s.logger)
	s.local = session.NewLocalState(durable)

	sink, err := s.openBackupSink(ctx)
	if err != nil {
		return fmt.Errorf("failed to open backup sink: %w", err)
	}

	hasher, err := s.newHasher()
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(st)
	if s.cfg.Cache.Enabled {
		s.userCache = memory.NewCache()
		userRepo = repository.NewCachedUserRepository(userRepo, s.userCache, s.cfg.Cache.TTL, s.logger)
	}
	orderRepo := repository.NewOrderRepository(st)
	addressRepo := repository.NewAddressRepository(st)

	// Exports coordinate through Redis when it is available, so two
	// instances sharing a database do not export concurrently.
	if s.redisClient != nil {
		s.locker = lock.NewRedisLocker(s.redisClient)
	} else {
		s.locker = lock.NewMemoryLocker()
	}

	s.auth = service.NewAuthService(userRepo, hasher, s.sessions, s.logger)
	s.orders = service.NewOrderService(orderRepo, s.sessions, s.logger)
	s.addresses = service.NewAddressService(addressRepo, s.sessions, s.logger)
	s.stats = service.NewStatsService(st, s.schema, sink, s.locker, s.logger)

	if _, err := s.sessions.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	s.logger.Info().Msg("storefront ready")
	return nil
}

// openStore connects the configured engine and migrates the schema.
func (s *Storefront) openStore(ctx context.Context) (store.Store, error) {
	switch s.cfg.Database.Driver {
	case "sqlite":
		cfg := sqlite.DefaultConfig(s.cfg.Database.Path)
		if s.cfg.Database.JournalMode != "" {
			cfg.JournalMode = s.cfg.Database.JournalMode
		}
		if s.cfg.Database.BusyTimeout > 0 {
			cfg.BusyTimeout = s.cfg.Database.BusyTimeout
		}
		if s.cfg.Database.CacheSize != 0 {
			cfg.CacheSize = s.cfg.Database.CacheSize
		}
		if s.cfg.Database.SynchronousMode != "" {
			cfg.SynchronousMode = s.cfg.Database.SynchronousMode
		}

		db, err := sqlite.NewDB(ctx, cfg, s.logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, s.schema); err != nil {
			db.Close()
			return nil, err
		}
		return sqlite.NewStore(db, s.schema, s.logger), nil

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            s.cfg.Database.Host,
			Port:            s.cfg.Database.Port,
			User:            s.cfg.Database.User,
			Password:        s.cfg.Database.Password,
			Database:        s.cfg.Database.Database,
			SSLMode:         s.cfg.Database.SSLMode,
			MaxOpenConns:    s.cfg.Database.MaxOpenConns,
			MaxIdleConns:    s.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: s.cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: s.cfg.Database.ConnMaxIdleTime,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, s.schema); err != nil {
			db.Close()
			return nil, err
		}
		return postgres.NewStore(db, s.schema, s.logger), nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", s.cfg.Database.Driver)
	}
}

// openDurableScope builds the durable session scope from configuration,
// optionally wrapping it with at-rest encryption.
func (s *Storefront) openDurableScope() (scope.Scope, error) {
	var durable scope.Scope
	switch s.cfg.Session.DurableBackend {
	case "file":
		fs, err := scope.NewFileScope(s.cfg.Session.FilePath)
		if err != nil {
			return nil, err
		}
		durable = fs
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        s.cfg.Redis.Addr(),
			Password:    s.cfg.Redis.Password,
			DB:          s.cfg.Redis.DB,
			PoolSize:    s.cfg.Redis.PoolSize,
			DialTimeout: s.cfg.Redis.DialTimeout,
		})
		s.redisClient = client
		durable = scope.NewRedisScope(client, s.cfg.Session.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", s.cfg.Session.DurableBackend)
	}

	if key := s.cfg.Session.EncryptionKey; key != "" {
		encryptor, err := crypto.NewEncryptorFromHex(key)
		if err != nil {
			return nil, fmt.Errorf("invalid session encryption key: %w", err)
		}
		durable = scope.NewEncryptedScope(durable, encryptor)
	}
	return durable, nil
}

// openBackupSink builds the export sink from configuration.
func (s *Storefront) openBackupSink(ctx context.Context) (backup.Sink, error) {
	switch s.cfg.Backup.Sink {
	case "file":
		return backup.NewFileSink(s.cfg.Backup.Dir, s.logger), nil
	case "s3":
		return backup.NewS3Sink(ctx, backup.S3Config{
			Endpoint:        s.cfg.Backup.S3.Endpoint,
			Region:          s.cfg.Backup.S3.Region,
			Bucket:          s.cfg.Backup.S3.Bucket,
			Prefix:          s.cfg.Backup.S3.Prefix,
			AccessKeyID:     s.cfg.Backup.S3.AccessKeyID,
			SecretAccessKey: s.cfg.Backup.S3.SecretAccessKey,
		}, s.logger)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported backup sink: %s", s.cfg.Backup.Sink)
	}
}

// newHasher builds the password hasher from configuration.
func (s *Storefront) newHasher() (crypto.PasswordHasher, error) {
	switch s.cfg.Auth.Hasher {
	case "legacy":
		return crypto.NewLegacyHasher(s.cfg.Auth.Salt), nil
	case "bcrypt":
		return crypto.NewBcryptHasher(s.cfg.Auth.BcryptCost), nil
	default:
		return nil, fmt.Errorf("unsupported password hasher: %s", s.cfg.Auth.Hasher)
	}
}

// ready guards every operation against use before a successful Open.
func (s *Storefront) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return domain.ErrClosed
	default:
		return domain.ErrUninitialized
	}
}

// =============================================================================
// User operations
// =============================================================================

// RegisterUser creates an account and signs it in.
func (s *Storefront) RegisterUser(ctx context.Context, input service.RegisterInput) (*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.Register(ctx, input)
}

// SignInUser verifies credentials and signs the user in.
func (s *Storefront) SignInUser(ctx context.Context, email, password string) (*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.SignIn(ctx, email, password)
}

// SignOut clears the session from memory and both scopes.
func (s *Storefront) SignOut(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.auth.SignOut(ctx)
}

// CurrentUser returns the signed-in identity, or nil when signed out.
func (s *Storefront) CurrentUser() (*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.Current(), nil
}

// RestoreSession re-resolves the session from the persistence scopes.
// Open already restores once; this re-runs the policy on demand.
func (s *Storefront) RestoreSession(ctx context.Context) (*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.Restore(ctx)
}

// ListUsers returns all registered accounts, password-stripped.
func (s *Storefront) ListUsers(ctx context.Context) ([]*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.ListUsers(ctx)
}

// UpdateProfile applies a partial profile update.
func (s *Storefront) UpdateProfile(ctx context.Context, userID int64, input service.UpdateProfileInput) (*domain.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.auth.UpdateProfile(ctx, userID, input)
}

// =============================================================================
// Order operations
// =============================================================================

// AddOrder places an order for the signed-in user.
func (s *Storefront) AddOrder(ctx context.Context, input service.PlaceOrderInput) (*domain.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.orders.Place(ctx, input)
}

// GetUserOrders returns the user's orders, newest first.
func (s *Storefront) GetUserOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.orders.ListByUser(ctx, userID)
}

// GetOrder retrieves a single order.
func (s *Storefront) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, id)
}

// UpdateOrderStatus transitions an order to the given status.
func (s *Storefront) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.orders.UpdateStatus(ctx, id, status)
}

// DeleteOrder removes an order.
func (s *Storefront) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.orders.Delete(ctx, id)
}

// =============================================================================
// Address operations
// =============================================================================

// AddAddress saves an address for the signed-in user.
func (s *Storefront) AddAddress(ctx context.Context, fields json.RawMessage) (*domain.Address, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.addresses.Add(ctx, fields)
}

// GetUserAddresses returns the user's addresses.
func (s *Storefront) GetUserAddresses(ctx context.Context, userID int64) ([]*domain.Address, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.addresses.ListByUser(ctx, userID)
}

// UpdateAddress merges the payload into the stored address.
func (s *Storefront) UpdateAddress(ctx context.Context, id int64, fields json.RawMessage) (*domain.Address, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.addresses.Update(ctx, id, fields)
}

// DeleteAddress removes an address.
func (s *Storefront) DeleteAddress(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.addresses.Delete(ctx, id)
}

// =============================================================================
// Aggregates
// =============================================================================

// Stats summarizes the store contents.
func (s *Storefront) Stats(ctx context.Context) (*service.Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.stats.Stats(ctx)
}

// Export dumps the store into the configured sink.
func (s *Storefront) Export(ctx context.Context) (*service.ExportResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.stats.Export(ctx)
}

// Local exposes the durable client-local state (language, cart,
// wishlist).
func (s *Storefront) Local() (*session.LocalState, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.local, nil
}
