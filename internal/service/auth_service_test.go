package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/domain"
	"github.com/prn-tf/waverly-store/internal/pkg/crypto"
	"github.com/prn-tf/waverly-store/internal/scope"
	"github.com/prn-tf/waverly-store/internal/session"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
	updateErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrEmailAlreadyInUse
		}
	}
	user.ID = m.nextID
	m.nextID++
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ID != user.ID && u.Email == user.Email {
			return domain.ErrEmailAlreadyInUse
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		result = append(result, &cp)
	}
	return result, nil
}

// newTestAuthService wires an AuthService over the mock repository, the
// legacy hasher and a session manager backed by two in-memory scopes.
func newTestAuthService(repo *MockUserRepository) (*AuthService, *session.Manager) {
	sessions := session.NewManager(scope.NewMemoryScope(), scope.NewMemoryScope(), zerolog.Nop())
	svc := NewAuthService(repo, crypto.NewLegacyHasher(""), sessions, zerolog.Nop())
	return svc, sessions
}

// =============================================================================
// Tests
// =============================================================================

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name      string
		input     RegisterInput
		wantErr   error
		setupRepo func(*MockUserRepository)
	}{
		{
			name: "success",
			input: RegisterInput{
				Email:    "anna@example.com",
				Password: "secret123",
				Name:     "Anna",
			},
			wantErr: nil,
		},
		{
			name: "email is normalized",
			input: RegisterInput{
				Email:    "  Anna@Example.COM  ",
				Password: "secret123",
				Name:     "Anna",
			},
			wantErr: nil,
		},
		{
			name: "invalid email",
			input: RegisterInput{
				Email:    "not-an-email",
				Password: "secret123",
				Name:     "Anna",
			},
			wantErr: ErrInvalidEmail,
		},
		{
			name: "password too short",
			input: RegisterInput{
				Email:    "anna@example.com",
				Password: "abc",
				Name:     "Anna",
			},
			wantErr: ErrInvalidPassword,
		},
		{
			name: "empty name",
			input: RegisterInput{
				Email:    "anna@example.com",
				Password: "secret123",
				Name:     "   ",
			},
			wantErr: ErrInvalidName,
		},
		{
			name: "email already in use",
			input: RegisterInput{
				Email:    "taken@example.com",
				Password: "secret123",
				Name:     "Anna",
			},
			wantErr: domain.ErrEmailAlreadyInUse,
			setupRepo: func(m *MockUserRepository) {
				m.users[1] = &domain.User{ID: 1, Email: "taken@example.com"}
				m.nextID = 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			svc, _ := newTestAuthService(repo)

			identity, err := svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, svc.Current())
				return
			}

			require.NoError(t, err)
			require.NotNil(t, identity)
			require.Equal(t, domain.NormalizeEmail(tt.input.Email), identity.Email)
			require.NotZero(t, identity.ID)

			// Registration signs the user in.
			current := svc.Current()
			require.NotNil(t, current)
			require.Equal(t, identity.ID, current.ID)

			// The stored record carries a hash, never the plaintext.
			stored := repo.users[identity.ID]
			require.NotEqual(t, tt.input.Password, stored.PasswordHash)
			require.NotEmpty(t, stored.PasswordHash)
		})
	}
}

func TestAuthService_SignIn(t *testing.T) {
	hasher := crypto.NewLegacyHasher("")
	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	seed := func(m *MockUserRepository) {
		m.users[1] = &domain.User{
			ID:           1,
			Email:        "anna@example.com",
			PasswordHash: hash,
			Name:         "Anna",
		}
		m.nextID = 2
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{
			name:     "success",
			email:    "anna@example.com",
			password: "secret123",
			wantErr:  nil,
		},
		{
			name:     "email case-insensitive",
			email:    "ANNA@example.com",
			password: "secret123",
			wantErr:  nil,
		},
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "secret123",
			wantErr:  domain.ErrUserNotFound,
		},
		{
			name:     "wrong password",
			email:    "anna@example.com",
			password: "wrong",
			wantErr:  domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			seed(repo)
			svc, _ := newTestAuthService(repo)

			identity, err := svc.SignIn(context.Background(), tt.email, tt.password)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, svc.Current())
				return
			}

			require.NoError(t, err)
			require.Equal(t, int64(1), identity.ID)
			require.NotNil(t, svc.Current())
		})
	}
}

func TestAuthService_SignOut(t *testing.T) {
	repo := NewMockUserRepository()
	svc, sessions := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "anna@example.com",
		Password: "secret123",
		Name:     "Anna",
	})
	require.NoError(t, err)
	require.NotNil(t, svc.Current())

	require.NoError(t, svc.SignOut(context.Background()))
	require.Nil(t, svc.Current())

	// After sign-out nothing restores from either scope.
	identity, err := sessions.Restore(context.Background())
	require.NoError(t, err)
	require.Nil(t, identity)

	// Signing out while signed out is a no-op.
	require.NoError(t, svc.SignOut(context.Background()))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name    string
		userID  int64
		input   UpdateProfileInput
		wantErr error
		check   func(t *testing.T, identity *domain.Identity)
	}{
		{
			name:   "update name and phone",
			userID: 1,
			input: UpdateProfileInput{
				Name:  strPtr("Anna B."),
				Phone: strPtr("+1 555 0100"),
			},
			check: func(t *testing.T, identity *domain.Identity) {
				require.Equal(t, "Anna B.", identity.Name)
				require.Equal(t, "+1 555 0100", identity.Phone)
				require.Equal(t, "anna@example.com", identity.Email)
			},
		},
		{
			name:   "update email normalizes",
			userID: 1,
			input: UpdateProfileInput{
				Email: strPtr("  New@Example.COM "),
			},
			check: func(t *testing.T, identity *domain.Identity) {
				require.Equal(t, "new@example.com", identity.Email)
			},
		},
		{
			name:    "empty update rejected",
			userID:  1,
			input:   UpdateProfileInput{},
			wantErr: ErrEmptyUpdate,
		},
		{
			name:    "blank name rejected",
			userID:  1,
			input:   UpdateProfileInput{Name: strPtr("  ")},
			wantErr: ErrInvalidName,
		},
		{
			name:    "unknown user",
			userID:  99,
			input:   UpdateProfileInput{Name: strPtr("Anna")},
			wantErr: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			svc, _ := newTestAuthService(repo)

			registered, err := svc.Register(context.Background(), RegisterInput{
				Email:    "anna@example.com",
				Password: "secret123",
				Name:     "Anna",
			})
			require.NoError(t, err)
			require.Equal(t, int64(1), registered.ID)

			identity, err := svc.UpdateProfile(context.Background(), tt.userID, tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, identity)

			// The session reflects the update when it targets the
			// signed-in user.
			current := svc.Current()
			require.NotNil(t, current)
			require.Equal(t, identity.Name, current.Name)
			require.Equal(t, identity.Email, current.Email)
			require.True(t, identity.UpdatedAt.After(registered.UpdatedAt) || identity.UpdatedAt.Equal(registered.UpdatedAt))
		})
	}
}

func TestAuthService_UpdateProfile_OtherUserKeepsSession(t *testing.T) {
	repo := NewMockUserRepository()
	svc, _ := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "anna@example.com",
		Password: "secret123",
		Name:     "Anna",
	})
	require.NoError(t, err)

	other := domain.NewUser("bob@example.com", "hash", "Bob")
	require.NoError(t, repo.Create(context.Background(), other))

	name := "Robert"
	_, err = svc.UpdateProfile(context.Background(), other.ID, UpdateProfileInput{Name: &name})
	require.NoError(t, err)

	// Anna is still the signed-in user.
	current := svc.Current()
	require.NotNil(t, current)
	require.Equal(t, "Anna", current.Name)
}

func TestAuthService_Restore(t *testing.T) {
	shortLived := scope.NewMemoryScope()
	durable := scope.NewMemoryScope()
	sessions := session.NewManager(shortLived, durable, zerolog.Nop())
	repo := NewMockUserRepository()
	svc := NewAuthService(repo, crypto.NewLegacyHasher(""), sessions, zerolog.Nop())

	// Nothing persisted: restore resolves to signed-out.
	identity, err := svc.Restore(context.Background())
	require.NoError(t, err)
	require.Nil(t, identity)

	registered, err := svc.Register(context.Background(), RegisterInput{
		Email:    "anna@example.com",
		Password: "secret123",
		Name:     "Anna",
	})
	require.NoError(t, err)

	// A fresh manager over the same scopes models a process restart.
	restartedSessions := session.NewManager(scope.NewMemoryScope(), durable, zerolog.Nop())
	restarted := NewAuthService(repo, crypto.NewLegacyHasher(""), restartedSessions, zerolog.Nop())

	identity, err = restarted.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	require.Equal(t, registered.ID, identity.ID)
	require.Equal(t, registered.Email, identity.Email)
}

func TestAuthService_ListUsers(t *testing.T) {
	svc, _ := newTestAuthService(NewMockUserRepository())

	identities, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Empty(t, identities)

	for _, email := range []string{"anna@example.com", "bob@example.com"} {
		_, err := svc.Register(context.Background(), RegisterInput{
			Email:    email,
			Password: "secret123",
			Name:     "User",
		})
		require.NoError(t, err)
	}

	identities, err = svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, identities, 2)
	for _, identity := range identities {
		require.NotZero(t, identity.ID)
		require.NotEmpty(t, identity.Email)
	}
}
