package user

import (
	"time"

	"gin-gorm-user-service/internal/domain"
)

// UserModel is the persisted row. Email carries the unique index that is the
// real guarantee of email uniqueness. PasswordHash is left out of the JSON form
// that the redis cache stores.
type UserModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	FullName     string    `gorm:"size:100;not null"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:50;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime;<-:create"`
	Active       bool      `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

func FromDomain(u *domain.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		Active:       u.Active,
	}
}

// ToDomain fails on a role outside the closed set instead of passing it on.
func (m *UserModel) ToDomain() (*domain.User, error) {
	role, err := domain.ParseRole(m.Role)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           m.ID,
		FullName:     m.FullName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		Active:       m.Active,
	}, nil
}
