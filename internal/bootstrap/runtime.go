// Package bootstrap connects the runtime dependencies and prepares the
// database before the server accepts traffic.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"campuschat/internal/cache"
	"campuschat/internal/config"
	"campuschat/internal/database"
	"campuschat/internal/repository"
	"campuschat/internal/seed"
	"campuschat/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoSettings fills empty demo settings in development.
	SeedDemoSettings bool
}

// InitRuntime connects to the database and Redis, then runs Prepare.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(ctx, cfg.RedisURL)

	if err := Prepare(ctx, cfg, db, opts); err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

// Prepare inserts missing default settings and creates the super admin on
// first boot.
func Prepare(ctx context.Context, cfg *config.Config, db *gorm.DB, opts Options) error {
	if err := database.EnsureDefaultSettings(ctx, db); err != nil {
		return err
	}

	if err := ensureSuperAdmin(ctx, cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap super admin: %w", err)
	}

	if opts.SeedDemoSettings && strings.EqualFold(cfg.Env, "development") {
		if err := seed.DemoSettings(db); err != nil {
			return err
		}
	}
	return nil
}

func ensureSuperAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	username := strings.TrimSpace(cfg.SuperAdminUsername)
	if username == "" {
		username = "520"
	}

	admins := repository.NewAdminRepository(db)
	if cfg.SuperAdminPassword == "" && !cfg.IsProduction() {
		exists, err := admins.HasSuperAdmin(ctx)
		if err != nil {
			return err
		}
		if !exists {
			log.Printf("WARNING: SUPER_ADMIN_PASSWORD is empty; no super admin was created")
		}
		return nil
	}

	auth := service.NewAuthService(repository.NewUserRepository(db, nil), admins, cfg.EmailDomain)
	return auth.EnsureSuperAdmin(ctx, username, cfg.SuperAdminPassword)
}
