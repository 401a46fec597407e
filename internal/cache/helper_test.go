package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheAside_MissThenHit(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 3, Name: "Aysel"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, CacheAside(ctx, rdb, UserKey(3), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "Aysel", first.Name)
	assert.True(t, mr.Exists("user:3"))
	assert.Equal(t, UserTTL, mr.TTL("user:3"))

	var second cachedUser
	require.NoError(t, CacheAside(ctx, rdb, UserKey(3), &second, UserTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	InvalidateUser(ctx, rdb, 3)
	assert.False(t, mr.Exists("user:3"))
}

func TestCacheAside_FetchErrorNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	boom := errors.New("boom")

	var dest cachedUser
	err := CacheAside(context.Background(), rdb, UserKey(9), &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:9"))
}

func TestCacheAside_NilClientFallsThrough(t *testing.T) {
	var dest cachedUser
	calls := 0
	for i := 0; i < 2; i++ {
		err := CacheAside(context.Background(), nil, SettingsKey, &dest, SettingsTTL, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	InvalidateSettings(context.Background(), nil)
}

func TestCacheAside_CorruptEntryRefetched(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set(SettingsKey, "{not json"))

	var dest map[string]string
	err := CacheAside(context.Background(), rdb, SettingsKey, &dest, SettingsTTL, func() error {
		dest = map[string]string{"filter_words": "x"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "x", dest["filter_words"])

	got, err := mr.Get(SettingsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"filter_words":"x"}`, got)
}
