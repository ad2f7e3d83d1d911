// Package service holds the orchestration between the record store, the
// password hasher, the token issuer and the access policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/domain"
)

var loginTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "auth_login_total", Help: "Login attempts by outcome"},
	[]string{"outcome"},
)

func init() { prometheus.MustRegister(loginTotal) }

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Mint(u *domain.User) (string, error)
}

// rehasher is implemented by hashers that can tell when a stored digest is outdated.
type rehasher interface {
	NeedsRehash(digest string) bool
}

type AuthService struct {
	users  domain.UserRepository
	hasher auth.PasswordHasher
	tokens TokenIssuer
	log    *zap.Logger
	now    func() time.Time

	// verified against when the email is unknown so both paths cost the same
	dummyDigest string
}

func NewAuthService(users domain.UserRepository, hasher auth.PasswordHasher, tokens TokenIssuer, log *zap.Logger) (*AuthService, error) {
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}
	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		log:         log.Named("auth"),
		now:         time.Now,
		dummyDigest: dummy,
	}, nil
}

// Login returns a bearer token for an active account whose password matches.
// Unknown email, wrong password and inactive account all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("find user: %w", err)
	}
	if u == nil || !u.Active {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
		loginTotal.WithLabelValues("rejected").Inc()
		if u != nil {
			s.log.Debug("login rejected: inactive account", zap.Uint("user_id", u.ID))
		}
		return "", domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("verify password of user %d: %w", u.ID, err)
	}
	if !ok {
		loginTotal.WithLabelValues("rejected").Inc()
		s.log.Debug("login rejected: wrong password", zap.Uint("user_id", u.ID))
		return "", domain.ErrInvalidCredentials
	}

	s.upgradeHash(ctx, u, password)

	tok, err := s.tokens.Mint(u)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("mint token: %w", err)
	}
	loginTotal.WithLabelValues("ok").Inc()
	return tok, nil
}

// upgradeHash replaces a legacy or weaker digest after a successful login.
// Failure only costs the upgrade, never the login.
func (s *AuthService) upgradeHash(ctx context.Context, u *domain.User, password string) {
	rh, ok := s.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(u.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn("rehash password", zap.Uint("user_id", u.ID), zap.Error(err))
		return
	}
	if err := s.users.UpdatePassword(ctx, u.ID, digest, false); err != nil {
		s.log.Warn("store rehashed password", zap.Uint("user_id", u.ID), zap.Error(err))
		return
	}
	u.PasswordHash = digest
	s.log.Info("password digest upgraded", zap.Uint("user_id", u.ID))
}

// Register creates an active account with role User. The email pre-check is a
// fast path only; the store's unique index decides concurrent registrations.
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: digest,
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC(),
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID))
	return u, nil
}

// ResetPassword overwrites the password of the account with email and reactivates it.
//
// It takes no proof of ownership: whoever knows an email can take over the
// account. Deployments exposing it publicly need a verified reset token in front.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return domain.ErrNotFound
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, digest, true); err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	s.log.Warn("password reset without ownership proof", zap.Uint("user_id", u.ID))
	return nil
}

// BootstrapAdmin creates an active Admin, or promotes the account with email to
// Admin, reactivates it and sets its password. An empty fullName keeps the
// existing name, or defaults to the email's local part for a new account.
func (s *AuthService) BootstrapAdmin(ctx context.Context, fullName, email, password string) (*domain.User, bool, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	if u != nil {
		promoted, err := s.promote(ctx, u.ID, fullName, digest)
		if err != nil {
			return nil, false, fmt.Errorf("promote user %d: %w", u.ID, err)
		}
		s.log.Info("user promoted to admin", zap.Uint("user_id", u.ID))
		return promoted, false, nil
	}

	if fullName == "" {
		fullName, _, _ = strings.Cut(email, "@")
	}
	u = &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: digest,
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now().UTC(),
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("admin created", zap.Uint("user_id", u.ID))
	return u, true, nil
}

// promote touches role, password_hash and active, plus full_name when given.
func (s *AuthService) promote(ctx context.Context, id uint, fullName, digest string) (*domain.User, error) {
	if err := s.users.UpdateRole(ctx, id, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, id, digest, true); err != nil {
		return nil, err
	}
	if fullName != "" {
		if err := s.users.UpdateProfile(ctx, id, domain.ProfileChanges{FullName: fullName}); err != nil {
			return nil, err
		}
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
