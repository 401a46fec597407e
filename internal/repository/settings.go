package repository

import (
	"context"
	"time"

	"campuschat/internal/cache"
	"campuschat/internal/models"
	"campuschat/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository reads and writes admin-editable settings. Reads go
// through a cache-aside snapshot of the whole table that every write invalidates.
type SettingsRepository interface {
	All(ctx context.Context) (map[string]string, error)
	// Get returns the value for key and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration
	log *observability.RepoLogger
}

// NewSettingsRepository returns a SettingsRepository. A non-positive ttl uses cache.SettingsTTL.
func NewSettingsRepository(db *gorm.DB, rdb *redis.Client, ttl time.Duration) SettingsRepository {
	if ttl <= 0 {
		ttl = cache.SettingsTTL
	}
	return &settingsRepository{db: db, rdb: rdb, ttl: ttl, log: observability.NewRepoLogger("settings")}
}

func (r *settingsRepository) All(ctx context.Context) (map[string]string, error) {
	settings := map[string]string{}
	err := cache.CacheAside(ctx, r.rdb, cache.SettingsKey, &settings, r.ttl, func() error {
		var rows []models.Setting
		if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, row := range rows {
			settings[row.Key] = row.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	all, err := r.All(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	row := models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		r.log.LogError(ctx, err, "set")
		return models.NewInternalError(err)
	}
	cache.InvalidateSettings(ctx, r.rdb)
	r.log.LogWrite(ctx, "set", map[string]any{"key": key})
	return nil
}
