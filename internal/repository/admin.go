package repository

import (
	"context"
	"errors"

	"campuschat/internal/models"
	"campuschat/internal/observability"

	"gorm.io/gorm"
)

// AdminRepository stores moderator accounts.
type AdminRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Admin, error)
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	ListSubAdmins(ctx context.Context) ([]models.Admin, error)
	Create(ctx context.Context, admin *models.Admin) error
	// DeleteSubAdmin removes a non-super admin. Super admins are never deleted.
	DeleteSubAdmin(ctx context.Context, id uint) error
	HasSuperAdmin(ctx context.Context) (bool, error)
}

type adminRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAdminRepository returns an AdminRepository backed by db.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db, log: observability.NewRepoLogger("admins")}
}

func (r *adminRepository) GetByID(ctx context.Context, id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Admin", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &admin, nil
}

func (r *adminRepository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &admin, nil
}

func (r *adminRepository) ListSubAdmins(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	err := r.db.WithContext(ctx).
		Where("is_super_admin = ?", false).
		Order("created_at DESC, id DESC").
		Find(&admins).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return admins, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *models.Admin) error {
	if err := r.db.WithContext(ctx).Create(admin).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogWrite(ctx, "create", map[string]any{"admin_id": admin.ID, "super": admin.IsSuperAdmin})
	return nil
}

func (r *adminRepository) DeleteSubAdmin(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND is_super_admin = ?", id, false).
		Delete(&models.Admin{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Admin", id)
	}
	r.log.LogWrite(ctx, "delete", map[string]any{"admin_id": id})
	return nil
}

func (r *adminRepository) HasSuperAdmin(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Admin{}).Where("is_super_admin = ?", true).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
