// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"campuschat/internal/database"
	"campuschat/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var phoneSeq atomic.Uint32

// NewSQLiteDB opens a migrated in-memory database private to t.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to :memory: would get its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// NewMiniRedis starts an in-process Redis and returns a client bound to it.
func NewMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// FakeUser returns an unsaved active student of faculty with random identity fields.
func FakeUser(faculty string) *models.User {
	n := phoneSeq.Add(1)
	return &models.User{
		Email:    fmt.Sprintf("%s.%d@bsu.edu.az", gofakeit.Username(), n),
		Phone:    fmt.Sprintf("+99450%07d", n),
		Password: "x",
		FullName: gofakeit.Name(),
		Faculty:  faculty,
		Degree:   "bakalavr",
		Course:   gofakeit.Number(1, 6),
		Avatar:   "🦉",
		IsActive: true,
	}
}

// CreateUser persists a FakeUser of faculty and returns it.
func CreateUser(t *testing.T, db *gorm.DB, faculty string) *models.User {
	t.Helper()
	u := FakeUser(faculty)
	require.NoError(t, db.Create(u).Error)
	return u
}
