package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"gin-gorm-user-service/internal/domain"
)

// MemoryUserRepo is a process-local store for development and tests. It enforces
// the same unique email constraint as the database schema.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	nextID uint
	byID   map[uint]domain.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{nextID: 1, byID: make(map[uint]domain.User)}
}

var _ domain.UserRepository = (*MemoryUserRepo)(nil)

func (r *MemoryUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(u.Email, 0) {
		return domain.ErrDuplicateEmail
	}
	u.ID = r.nextID
	r.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.byID[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	u.PasswordHash = ""
	return &u, nil
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepo) List(_ context.Context, offset, limit int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return []domain.User{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryUserRepo) UpdateProfile(_ context.Context, id uint, ch domain.ProfileChanges) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if ch.Email != "" && r.emailTaken(ch.Email, id) {
		return domain.ErrDuplicateEmail
	}
	if ch.FullName != "" {
		u.FullName = ch.FullName
	}
	if ch.Email != "" {
		u.Email = ch.Email
	}
	if ch.Active != nil {
		u.Active = *ch.Active
	}
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepo) UpdatePassword(_ context.Context, id uint, hash string, reactivate bool) error {
	if hash == "" {
		return errEmptyHash
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	if reactivate {
		u.Active = true
	}
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepo) UpdateRole(_ context.Context, id uint, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryUserRepo) emailTaken(email string, except uint) bool {
	for id, u := range r.byID {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}
