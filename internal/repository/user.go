// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campuschat/internal/cache"
	"campuschat/internal/models"
	"campuschat/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProfileUpdate carries the user-editable profile fields.
type ProfileUpdate struct {
	FullName string
	Faculty  string
	Degree   string
	Course   int
	Avatar   string
}

// UserRepository is the user directory: the authoritative store of identity,
// faculty and active status.
type UserRepository interface {
	// FindActive returns the user when it exists and is active. Otherwise the
	// error wraps models.ErrUserUnavailable.
	FindActive(ctx context.Context, id uint) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (emailTaken, phoneTaken bool, err error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) (*models.User, error)
	ListFacultyPeers(ctx context.Context, faculty string, excludeID uint) ([]models.User, error)
	ListWithReportCounts(ctx context.Context, limit, offset int) ([]models.UserWithReports, int64, error)
	ListReported(ctx context.Context, threshold int) ([]models.UserWithReports, error)
	ToggleActive(ctx context.Context, id uint) (*models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
	log *observability.RepoLogger
}

// NewUserRepository returns a UserRepository backed by db, caching rows in rdb when non-nil.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.CacheAside(ctx, r.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindActive(ctx context.Context, id uint) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			return nil, fmt.Errorf("user %d: %w", id, models.ErrUserUnavailable)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrUserUnavailable)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, bool, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Select("email", "phone").
		Where("email = ? OR phone = ?", strings.ToLower(email), phone).
		Find(&rows).Error
	if err != nil {
		return false, false, models.NewInternalError(err)
	}
	var emailTaken, phoneTaken bool
	for _, u := range rows {
		emailTaken = emailTaken || u.Email == strings.ToLower(email)
		phoneTaken = phoneTaken || u.Phone == phone
	}
	return emailTaken, phoneTaken, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogWrite(ctx, "create", map[string]any{"user_id": user.ID, "faculty": user.Faculty})
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"full_name": p.FullName,
		"faculty":   p.Faculty,
		"degree":    p.Degree,
		"course":    p.Course,
		"avatar":    p.Avatar,
	})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_profile")
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, r.rdb, id)
	return r.GetByID(ctx, id)
}

func (r *userRepository) ListFacultyPeers(ctx context.Context, faculty string, excludeID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("faculty = ? AND is_active = ? AND id <> ?", faculty, true, excludeID).
		Order("full_name").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) reportCounts() *gorm.DB {
	return r.db.Model(&models.User{}).
		Select("users.*, COUNT(reports.id) AS report_count").
		Joins("LEFT JOIN reports ON reports.reported_id = users.id").
		Group("users.id")
}

func (r *userRepository) ListWithReportCounts(ctx context.Context, limit, offset int) ([]models.UserWithReports, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.UserWithReports
	err := r.reportCounts().WithContext(ctx).
		Order("users.created_at DESC, users.id DESC").
		Limit(limit).Offset(offset).
		Scan(&users).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) ListReported(ctx context.Context, threshold int) ([]models.UserWithReports, error) {
	var users []models.UserWithReports
	err := r.reportCounts().WithContext(ctx).
		Having("COUNT(reports.id) >= ?", threshold).
		Order("report_count DESC, users.id").
		Scan(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ToggleActive(ctx context.Context, id uint) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", gorm.Expr("NOT is_active"))
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "toggle_active")
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, r.rdb, id)

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.log.LogWrite(ctx, "toggle_active", map[string]any{"user_id": id, "is_active": user.IsActive})
	return user, nil
}

const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite reports constraint failures as plain text.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
