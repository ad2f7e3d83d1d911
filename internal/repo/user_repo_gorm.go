package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gin-gorm-user-service/internal/core/cache"
	"gin-gorm-user-service/internal/domain"
	"gin-gorm-user-service/internal/feature/user"
)

// UserRepo implements domain.UserRepository on gorm. When a cache is set,
// FindByID is served read-through from redis and writes invalidate the entry.
// Cached entries never carry the password hash.
type UserRepo struct {
	db    *gorm.DB
	log   *zap.Logger
	cache *cache.Cache
	ttl   time.Duration
}

func NewUserRepo(db *gorm.DB, l *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: l.Named("user_repo")}
}

func (r *UserRepo) WithCache(c *cache.Cache, ttl time.Duration) *UserRepo {
	r.cache, r.ttl = c, ttl
	return r
}

var _ domain.UserRepository = (*UserRepo)(nil)

func cacheKey(id uint) string { return fmt.Sprintf("user:%d", id) }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	m := user.FromDomain(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	u.ID, u.CreatedAt = m.ID, m.CreatedAt
	r.invalidate(ctx, m.ID)
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if r.cache == nil {
		u, err := r.findBy(ctx, "id = ?", id)
		if u != nil {
			u.PasswordHash = ""
		}
		return u, err
	}
	m, err := cache.GetOrLoadJSON(r.cache, ctx, cacheKey(id), r.ttl, func(ctx context.Context) (*user.UserModel, error) {
		return r.first(ctx, "id = ?", id)
	})
	if err != nil || m == nil {
		return nil, err
	}
	return m.ToDomain()
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findBy(ctx, "email = ?", email)
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&user.UserModel{}).Order("id")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []user.UserModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(ms))
	for i := range ms {
		u, err := ms[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", ms[i].ID, err)
		}
		out = append(out, *u)
	}
	return out, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint, ch domain.ProfileChanges) error {
	cols := map[string]any{}
	if ch.FullName != "" {
		cols["full_name"] = ch.FullName
	}
	if ch.Email != "" {
		cols["email"] = ch.Email
	}
	if ch.Active != nil {
		cols["active"] = *ch.Active
	}
	return r.updateColumns(ctx, id, cols)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint, hash string, reactivate bool) error {
	if hash == "" {
		return errEmptyHash
	}
	cols := map[string]any{"password_hash": hash}
	if reactivate {
		cols["active"] = true
	}
	return r.updateColumns(ctx, id, cols)
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uint, role domain.Role) error {
	return r.updateColumns(ctx, id, map[string]any{"role": string(role)})
}

// updateColumns writes exactly cols on row id. There is no RowsAffected check:
// mysql reports 0 for an update that changes nothing.
func (r *UserRepo) updateColumns(ctx context.Context, id uint, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&user.UserModel{}).Where("id = ?", id).Updates(cols).Error
	if err != nil {
		return translate(err)
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&user.UserModel{})
	if res.Error != nil {
		return res.Error
	}
	r.invalidate(ctx, id)
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) findBy(ctx context.Context, cond string, arg any) (*domain.User, error) {
	m, err := r.first(ctx, cond, arg)
	if err != nil || m == nil {
		return nil, err
	}
	return m.ToDomain()
}

func (r *UserRepo) first(ctx context.Context, cond string, arg any) (*user.UserModel, error) {
	var m user.UserModel
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *UserRepo) invalidate(ctx context.Context, id uint) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, cacheKey(id)); err != nil {
		// the entry stays readable until its ttl runs out
		r.log.Warn("invalidate cached user", zap.Uint("user_id", id), zap.Duration("ttl", r.ttl), zap.Error(err))
	}
}

var errEmptyHash = errors.New("refusing to store an empty password hash")

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDupKey(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateEmail, err)
	}
	return err
}

// isDupKey covers drivers whose errors gorm does not translate.
func isDupKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
