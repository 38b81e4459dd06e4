package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/pkg/crypto"
	"github.com/prn-tf/waverly-store/internal/repository"
	"github.com/prn-tf/waverly-store/internal/session"
)

// AuthService handles account registration, credential verification and the
// session lifecycle around them.
type AuthService struct {
	userRepo repository.UserRepository
	hasher   crypto.PasswordHasher
	sessions *session.Manager
	logger   zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, hasher crypto.PasswordHasher, sessions *session.Manager, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// RegisterInput contains the data needed to register a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Register creates a new user account, establishes a session for it and
// returns the password-stripped identity. The email uniqueness check runs
// twice: a pre-check for a friendly error, and the store's unique index as
// the authoritative guard against races.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Identity, error) {
	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(input.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyInUse, email)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(email, passwordHash, input.Name)
	user.Phone = strings.TrimSpace(input.Phone)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyInUse) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyInUse, email)
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	identity := user.Identity()
	if err := s.sessions.Establish(ctx, identity); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to establish session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("email", user.Email).
		Msg("user registered")

	return identity, nil
}

// SignIn verifies credentials, establishes a session and returns the
// identity. An unknown email yields domain.ErrUserNotFound; a wrong
// password for a known email yields domain.ErrInvalidCredentials. The two
// cases are deliberately distinguishable to the caller.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to look up user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Warn().Str("email", email).Msg("sign-in rejected: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	identity := user.Identity()
	if err := s.sessions.Establish(ctx, identity); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to establish session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user signed in")
	return identity, nil
}

// SignOut clears the session from memory and from both persistence scopes.
// Signing out while signed out is a no-op.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear session")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return nil
}

// Current returns the identity of the signed-in user, or nil when signed
// out. It never touches the repositories.
func (s *AuthService) Current() *domain.Identity {
	return s.sessions.Current()
}

// Restore resolves the session state from the persistence scopes at
// startup. Returns (nil, nil) when no persisted session exists.
func (s *AuthService) Restore(ctx context.Context) (*domain.Identity, error) {
	identity, err := s.sessions.Restore(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to restore session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return identity, nil
}

// ListUsers returns the password-stripped identities of all accounts,
// for administrative listing.
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.Identity, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	identities := make([]*domain.Identity, 0, len(users))
	for _, user := range users {
		identities = append(identities, user.Identity())
	}
	return identities, nil
}

// UpdateProfileInput contains the partial profile changes to apply.
// Nil fields are left untouched.
type UpdateProfileInput struct {
	Name  *string
	Phone *string
	Email *string
}

// UpdateProfile applies a partial update to a user's profile and stamps
// UpdatedAt. When the updated user is the currently signed-in one, the
// session identity is refreshed so both scopes see the new profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*domain.Identity, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if input.Name == nil && input.Phone == nil && input.Email == nil {
		return nil, ErrEmptyUpdate
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyInUse) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyInUse, user.Email)
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	identity := user.Identity()
	if current := s.sessions.Current(); current != nil && current.ID == userID {
		if err := s.sessions.Establish(ctx, identity); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to refresh session")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	s.logger.Info().Int64("user_id", userID).Msg("profile updated")
	return identity, nil
}

// validateRegisterInput validates registration input.
func (s *AuthService) validateRegisterInput(input RegisterInput) error {
	if _, err := mail.ParseAddress(domain.NormalizeEmail(input.Email)); err != nil {
		return ErrInvalidEmail
	}
	if len(input.Password) < 6 {
		return ErrInvalidPassword
	}
	if strings.TrimSpace(input.Name) == "" {
		return ErrInvalidName
	}
	return nil
}
