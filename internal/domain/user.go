package domain

import (
	"context"
	"time"
)

type User struct {
	ID           uint      `json:"userId"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdDate"`
	Active       bool      `json:"isActive"`
}

// ProfileChanges names the profile columns to write. An empty string or a nil
// Active leaves that column as stored.
type ProfileChanges struct {
	FullName string
	Email    string
	Active   *bool
}

func (ch ProfileChanges) Empty() bool {
	return ch.FullName == "" && ch.Email == "" && ch.Active == nil
}

// UserRepository is the record store. Create and UpdateProfile report a unique
// email violation as ErrDuplicateEmail; Find* return (nil, nil) when nothing
// matches. FindByID is a profile read and leaves PasswordHash empty; credential
// checks go through FindByEmail.
//
// Updates touch only the columns they name, so concurrent writers of disjoint
// columns never undo each other.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
	UpdateProfile(ctx context.Context, id uint, ch ProfileChanges) error
	// UpdatePassword stores hash and, when reactivate is set, marks the account active.
	UpdatePassword(ctx context.Context, id uint, hash string, reactivate bool) error
	UpdateRole(ctx context.Context, id uint, role Role) error
	Delete(ctx context.Context, id uint) error
}
