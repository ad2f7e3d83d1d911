package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/domain"
)

// UserChanges is the writable part of a profile. A nil Active leaves the flag
// unchanged. Only these columns are written, never role or password.
type UserChanges struct {
	FullName string
	Email    string
	Active   *bool
}

// UserService guards every user read and write with the access policy. The
// policy runs before the store is touched.
type UserService struct {
	users domain.UserRepository
	log   *zap.Logger
}

func NewUserService(users domain.UserRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log.Named("users")}
}

func (s *UserService) Get(ctx context.Context, p domain.Principal, id uint) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionRead, id); err != nil {
		return nil, err
	}
	return s.mustFind(ctx, id)
}

// List returns ErrNotFound when there is nothing to list.
func (s *UserService) List(ctx context.Context, p domain.Principal, offset, limit int) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.ActionList, 0); err != nil {
		return nil, err
	}
	us, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if len(us) == 0 {
		return nil, domain.ErrNotFound
	}
	return us, nil
}

func (s *UserService) Update(ctx context.Context, p domain.Principal, id uint, ch UserChanges) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionUpdate, id); err != nil {
		return nil, err
	}
	u, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	if ch.Email != u.Email {
		other, err := s.users.FindByEmail(ctx, ch.Email)
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if other != nil && other.ID != u.ID {
			return nil, domain.ErrDuplicateEmail
		}
	}

	err = s.users.UpdateProfile(ctx, id, domain.ProfileChanges{FullName: ch.FullName, Email: ch.Email, Active: ch.Active})
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return nil, domain.ErrDuplicateEmail
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	s.log.Info("user updated", zap.Uint("user_id", id), zap.Uint("by", p.UserID))
	return s.mustFind(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, p domain.Principal, id uint) error {
	if err := auth.Authorize(p, auth.ActionDelete, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", p.UserID))
	return nil
}

func (s *UserService) mustFind(ctx context.Context, id uint) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}
