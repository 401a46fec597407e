package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys written by the cache-aside helpers. Ticket, revocation and
// rate-limit keys live with the auth middleware.
const (
	userKeyPrefix = "user:"
	SettingsKey   = "settings:all"
)

// UserTTL bounds how stale a cached user row may get. Writes invalidate it
// eagerly, so this only matters for writers that bypass the repository.
const UserTTL = 5 * time.Minute

// SettingsTTL is the default lifetime of the cached settings map.
const SettingsTTL = 30 * time.Second

// UserKey is the cache key of one user row.
func UserKey(userID uint) string {
	return userKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Invalidate deletes keys. A nil client is a no-op.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	rdb.Del(ctx, keys...)
}

// InvalidateUser drops the cached rows of the given users.
func InvalidateUser(ctx context.Context, rdb *redis.Client, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UserKey(id))
	}
	Invalidate(ctx, rdb, keys...)
}

// InvalidateSettings drops the cached settings map.
func InvalidateSettings(ctx context.Context, rdb *redis.Client) {
	Invalidate(ctx, rdb, SettingsKey)
}
