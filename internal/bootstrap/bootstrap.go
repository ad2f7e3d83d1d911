// Package bootstrap turns a loaded Config into the process-wide pieces both
// binaries need: logger, password hasher and user store.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/core/cache"
	"gin-gorm-user-service/internal/core/config"
	"gin-gorm-user-service/internal/core/database"
	"gin-gorm-user-service/internal/core/logger"
	"gin-gorm-user-service/internal/domain"
	"gin-gorm-user-service/internal/feature/user"
	"gin-gorm-user-service/internal/repo"
)

func Logger(cfg *config.Config) (*zap.Logger, func()) {
	return logger.New(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: cfg.App.Env == "local",
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.File.Enable,
			Filename:   cfg.Log.File.Filename,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

func Hasher(cfg *config.Config) *auth.Argon2Hasher {
	return auth.NewArgon2Hasher(auth.Argon2Params{
		MemoryKiB:   cfg.Password.MemoryKiB,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
	})
}

// Store is the configured user repository plus its lifecycle hooks.
type Store struct {
	Users domain.UserRepository
	// Ready pings the database; nil for the memory driver.
	Ready func(ctx context.Context) error
	Close func()
}

// OpenStore opens the database named by db.driver, migrates the users table
// when db.auto_migrate is set and, when redis.addr is set, puts a read-through
// cache in front of lookups by id. An unreachable redis only disables the cache.
func OpenStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Store, error) {
	if cfg.DB.Driver == "memory" {
		l.Warn("using in-memory user store; data is lost on exit")
		return &Store{Users: repo.NewMemoryUserRepo(), Close: func() {}}, nil
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&user.UserModel{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	users := repo.NewUserRepo(db, l)
	closers := []func(){func() { _ = sqlDB.Close() }}

	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			l.Warn("redis unreachable, user cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = c.Close()
		} else {
			users.WithCache(c, time.Duration(cfg.Redis.TTLSec)*time.Second)
			closers = append(closers, func() { _ = c.Close() })
			l.Info("user cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Int("ttl_sec", cfg.Redis.TTLSec))
		}
	}

	return &Store{
		Users: users,
		Ready: sqlDB.PingContext,
		Close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}
