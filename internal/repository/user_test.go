package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"campuschat/internal/cache"
	"campuschat/internal/models"
	"campuschat/internal/testutil"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_FindActive(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	active := testutil.CreateUser(t, db, "Fizika")
	inactive := testutil.CreateUser(t, db, "Fizika")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	got, err := repo.FindActive(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.FullName, got.FullName)

	_, err = repo.FindActive(ctx, inactive.ID)
	assert.ErrorIs(t, err, models.ErrUserUnavailable)

	_, err = repo.FindActive(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrUserUnavailable)
}

func TestUserRepository_ToggleActiveInvalidatesCache(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr, rdb := testutil.NewMiniRedis(t)
	repo := NewUserRepository(db, rdb)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Kimya")

	_, err := repo.FindActive(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.UserKey(u.ID)))

	toggled, err := repo.ToggleActive(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	_, err = repo.FindActive(ctx, u.ID)
	assert.ErrorIs(t, err, models.ErrUserUnavailable, "cached active row must not survive a toggle")

	toggled, err = repo.ToggleActive(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	_, err = repo.ToggleActive(ctx, 4242)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestUserRepository_CreateAndUniqueness(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	u := testutil.FakeUser("Fizika")
	u.Email = "Leyla@BSU.edu.az"
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, "leyla@bsu.edu.az", u.Email)

	emailTaken, phoneTaken, err := repo.ExistsByEmailOrPhone(ctx, "leyla@bsu.edu.az", "+994000000000")
	require.NoError(t, err)
	assert.True(t, emailTaken)
	assert.False(t, phoneTaken)

	emailTaken, phoneTaken, err = repo.ExistsByEmailOrPhone(ctx, "other@bsu.edu.az", u.Phone)
	require.NoError(t, err)
	assert.False(t, emailTaken)
	assert.True(t, phoneTaken)

	dup := testutil.FakeUser("Fizika")
	dup.Email = u.Email
	err = repo.Create(ctx, dup)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)

	found, err := repo.GetByEmail(ctx, "LEYLA@bsu.edu.az")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := repo.GetByEmail(ctx, "nobody@bsu.edu.az")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr, rdb := testutil.NewMiniRedis(t)
	repo := NewUserRepository(db, rdb)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Fizika")
	_, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)

	updated, err := repo.UpdateProfile(ctx, u.ID, ProfileUpdate{
		FullName: "Rauf Mammadov", Faculty: "Kimya", Degree: "magistr", Course: 1, Avatar: "🐼",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rauf Mammadov", updated.FullName)
	assert.Equal(t, "Kimya", updated.Faculty)
	assert.True(t, mr.Exists(cache.UserKey(u.ID)), "re-read repopulates the cache")

	_, err = repo.UpdateProfile(ctx, 999, ProfileUpdate{FullName: "x"})
	assert.Error(t, err)
}

func TestUserRepository_ListFacultyPeers(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "Fizika")
	b := testutil.FakeUser("Fizika")
	b.FullName = "Zaur"
	require.NoError(t, db.Create(b).Error)
	a := testutil.FakeUser("Fizika")
	a.FullName = "Aynur"
	require.NoError(t, db.Create(a).Error)
	gone := testutil.CreateUser(t, db, "Fizika")
	require.NoError(t, db.Model(gone).Update("is_active", false).Error)
	testutil.CreateUser(t, db, "Kimya")

	peers, err := repo.ListFacultyPeers(ctx, "Fizika", me.ID)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "Aynur", peers[0].FullName)
	assert.Equal(t, "Zaur", peers[1].FullName)
}

func TestUserRepository_ReportThreshold(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	mod := NewModerationRepository(db)
	ctx := context.Background()

	seven := testutil.CreateUser(t, db, "Fizika")
	eight := testutil.CreateUser(t, db, "Fizika")
	ten := testutil.CreateUser(t, db, "Kimya")
	for i := 0; i < 7; i++ {
		require.NoError(t, mod.InsertReport(ctx, 1, seven.ID))
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, mod.InsertReport(ctx, 1, eight.ID))
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, mod.InsertReport(ctx, 1, ten.ID))
	}

	reported, err := repo.ListReported(ctx, models.ReportThreshold)
	require.NoError(t, err)
	require.Len(t, reported, 2)
	assert.Equal(t, ten.ID, reported[0].ID)
	assert.Equal(t, int64(10), reported[0].ReportCount)
	assert.Equal(t, eight.ID, reported[1].ID)
	assert.Equal(t, int64(8), reported[1].ReportCount)

	all, total, err := repo.ListWithReportCounts(ctx, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	counts := map[uint]int64{}
	for _, u := range all {
		counts[u.ID] = u.ReportCount
	}
	assert.Equal(t, int64(7), counts[seven.ID])
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueConstraintError(fmt.Errorf("create: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: users.phone")))
	assert.False(t, isUniqueConstraintError(errors.New("connection reset")))
}
