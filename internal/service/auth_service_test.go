package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/domain"
	"gin-gorm-user-service/internal/repo"
)

// UserRepoMock lets tests script store failures.
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepoMock) List(ctx context.Context, offset, limit int) ([]domain.User, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *UserRepoMock) UpdateProfile(ctx context.Context, id uint, ch domain.ProfileChanges) error {
	return m.Called(ctx, id, ch).Error(0)
}

func (m *UserRepoMock) UpdatePassword(ctx context.Context, id uint, hash string, reactivate bool) error {
	return m.Called(ctx, id, hash, reactivate).Error(0)
}

func (m *UserRepoMock) UpdateRole(ctx context.Context, id uint, role domain.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *UserRepoMock) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

const testSecret = "test_secret_key_1234567890"

func testHasher() *auth.Argon2Hasher {
	return auth.NewArgon2Hasher(auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
}

func testJWTer(t *testing.T) *auth.JWTer {
	t.Helper()
	j, err := auth.NewJWTer(testSecret, "user-service", "user-clients")
	require.NoError(t, err)
	return j
}

func newAuthService(t *testing.T, users domain.UserRepository) *AuthService {
	t.Helper()
	s, err := NewAuthService(users, testHasher(), testJWTer(t), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	u, err := s.Register(ctx, "Ann", "ann@x.com", "pw1")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.Active)
	assert.False(t, u.CreatedAt.IsZero())
	assert.NotEqual(t, "pw1", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)

	tok, err := s.Login(ctx, "ann@x.com", "pw1")
	require.NoError(t, err)

	claims, err := testJWTer(t).Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "Ann", claims.Name)
	assert.Equal(t, "ann@x.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)

	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ann", "ann@x.com", "pw1")
	require.NoError(t, err)
	inactive, err := s.Register(ctx, "Ina", "ina@x.com", "pw2")
	require.NoError(t, err)
	off := false
	require.NoError(t, users.UpdateProfile(ctx, inactive.ID, domain.ProfileChanges{Active: &off}))

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "ann@x.com", password: "wrong"},
		{name: "unknown email", email: "bob@x.com", password: "pw1"},
		{name: "inactive account with correct password", email: "ina@x.com", password: "pw2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := s.Login(ctx, tt.email, tt.password)
			assert.Empty(t, tok)
			assert.Equal(t, domain.ErrInvalidCredentials, err)
		})
	}
}

func TestAuthService_LoginEmptyStoredHash(t *testing.T) {
	users := new(UserRepoMock)
	s := newAuthService(t, users)
	users.On("FindByEmail", mock.Anything, "ann@x.com").
		Return(&domain.User{ID: 1, FullName: "Ann", Email: "ann@x.com", Role: domain.RoleUser, Active: true}, nil)

	_, err := s.Login(context.Background(), "ann@x.com", "pw")
	assert.ErrorIs(t, err, auth.ErrEmptyDigest)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_LoginStoreError(t *testing.T) {
	users := new(UserRepoMock)
	s := newAuthService(t, users)
	boom := errors.New("db down")
	users.On("FindByEmail", mock.Anything, "ann@x.com").Return(nil, boom)

	_, err := s.Login(context.Background(), "ann@x.com", "pw")
	assert.ErrorIs(t, err, boom)
}

func TestAuthService_LoginUpgradesLegacyDigest(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("pw1"))
	legacy := base64.StdEncoding.EncodeToString(sum[:])
	u := &domain.User{FullName: "Old", Email: "old@x.com", PasswordHash: legacy, Role: domain.RoleUser, Active: true}
	require.NoError(t, users.Create(ctx, u))

	_, err := s.Login(ctx, "old@x.com", "pw1")
	require.NoError(t, err)

	stored, err := users.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, legacy, stored.PasswordHash)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")

	_, err = s.Login(ctx, "old@x.com", "pw1")
	assert.NoError(t, err, "upgraded digest still verifies")
}

func TestAuthService_LoginSurvivesFailedUpgrade(t *testing.T) {
	users := new(UserRepoMock)
	s := newAuthService(t, users)
	sum := sha256.Sum256([]byte("pw1"))
	u := &domain.User{ID: 3, FullName: "Old", Email: "old@x.com", PasswordHash: base64.StdEncoding.EncodeToString(sum[:]), Role: domain.RoleUser, Active: true}
	users.On("FindByEmail", mock.Anything, "old@x.com").Return(u, nil)
	users.On("UpdatePassword", mock.Anything, uint(3), mock.Anything, false).Return(errors.New("read only"))

	tok, err := s.Login(context.Background(), "old@x.com", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	users.AssertExpectations(t)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	first, err := s.Register(ctx, "Ann", "ann@x.com", "pw1")
	require.NoError(t, err)

	_, err = s.Register(ctx, "Impostor", "ann@x.com", "pw2")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	stored, err := users.FindByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, first, stored, "existing record is untouched")
}

func TestAuthService_RegisterStoreRejectsDuplicate(t *testing.T) {
	users := new(UserRepoMock)
	s := newAuthService(t, users)
	users.On("FindByEmail", mock.Anything, "ann@x.com").Return(nil, nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "ann@x.com" && u.Role == domain.RoleUser && u.Active && u.PasswordHash != ""
	})).Return(errors.Join(domain.ErrDuplicateEmail, errors.New("23505")))

	_, err := s.Register(context.Background(), "Ann", "ann@x.com", "pw1")
	assert.Equal(t, domain.ErrDuplicateEmail, err)
	users.AssertExpectations(t)
}

func TestAuthService_ResetPassword(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	u, err := s.Register(ctx, "Ann", "ann@x.com", "pw1")
	require.NoError(t, err)
	off := false
	require.NoError(t, users.UpdateProfile(ctx, u.ID, domain.ProfileChanges{Active: &off}))

	require.NoError(t, s.ResetPassword(ctx, "ann@x.com", "pw-new"))

	stored, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	_, err = s.Login(ctx, "ann@x.com", "pw1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = s.Login(ctx, "ann@x.com", "pw-new")
	assert.NoError(t, err)
}

func TestAuthService_ResetPasswordUnknownEmail(t *testing.T) {
	s := newAuthService(t, repo.NewMemoryUserRepo())
	err := s.ResetPassword(context.Background(), "ghost@x.com", "pw")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthService_BootstrapAdmin(t *testing.T) {
	users := repo.NewMemoryUserRepo()
	s := newAuthService(t, users)
	ctx := context.Background()

	admin, created, err := s.BootstrapAdmin(ctx, "Root", "root@x.com", "rootpw")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	u, err := s.Register(ctx, "Ann", "ann@x.com", "pw1")
	require.NoError(t, err)
	promoted, created, err := s.BootstrapAdmin(ctx, "", "ann@x.com", "adminpw")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, promoted.ID)
	assert.Equal(t, "Ann", promoted.FullName)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)
	assert.True(t, promoted.Active)

	tok, err := s.Login(ctx, "ann@x.com", "adminpw")
	require.NoError(t, err)
	claims, err := testJWTer(t).Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	unnamed, created, err := s.BootstrapAdmin(ctx, "", "ops@x.com", "opspw")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ops", unnamed.FullName)
}

func TestAuthService_BootstrapAdminWritesOnlyPromotionColumns(t *testing.T) {
	users := new(UserRepoMock)
	s := newAuthService(t, users)
	ctx := context.Background()
	existing := &domain.User{ID: 4, FullName: "Ann", Email: "ann@x.com", PasswordHash: "old", Role: domain.RoleUser}
	users.On("FindByEmail", mock.Anything, "ann@x.com").Return(existing, nil)
	users.On("UpdateRole", mock.Anything, uint(4), domain.RoleAdmin).Return(nil)
	users.On("UpdatePassword", mock.Anything, uint(4), mock.MatchedBy(func(h string) bool { return h != "old" && h != "" }), true).Return(nil)
	users.On("FindByID", mock.Anything, uint(4)).
		Return(&domain.User{ID: 4, FullName: "Ann", Email: "ann@x.com", Role: domain.RoleAdmin, Active: true}, nil)

	u, created, err := s.BootstrapAdmin(ctx, "", "ann@x.com", "adminpw")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	users.AssertExpectations(t)
	users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

// deactivateAfterLookup deactivates the account right after a login has read
// it, before the digest upgrade is written.
type deactivateAfterLookup struct {
	*repo.MemoryUserRepo
	once sync.Once
}

func (r *deactivateAfterLookup) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := r.MemoryUserRepo.FindByEmail(ctx, email)
	if u != nil {
		r.once.Do(func() {
			off := false
			_ = r.MemoryUserRepo.UpdateProfile(ctx, u.ID, domain.ProfileChanges{Active: &off})
		})
	}
	return u, err
}

func TestAuthService_DigestUpgradeKeepsConcurrentDeactivation(t *testing.T) {
	mem := repo.NewMemoryUserRepo()
	sum := sha256.Sum256([]byte("pw1"))
	u := &domain.User{FullName: "Old", Email: "old@x.com", PasswordHash: base64.StdEncoding.EncodeToString(sum[:]), Role: domain.RoleUser, Active: true}
	require.NoError(t, mem.Create(context.Background(), u))

	users := &deactivateAfterLookup{MemoryUserRepo: mem}
	s := newAuthService(t, users)
	_, err := s.Login(context.Background(), "old@x.com", "pw1")
	require.NoError(t, err, "the login read an active account")

	stored, err := mem.FindByEmail(context.Background(), "old@x.com")
	require.NoError(t, err)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")
	assert.False(t, stored.Active, "the upgrade does not reactivate")
}
