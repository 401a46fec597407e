package service

import (
	"context"
	"strconv"
	"strings"

	"campuschat/internal/models"
	"campuschat/internal/repository"
	"campuschat/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// AdminService backs the moderation console.
type AdminService struct {
	users    repository.UserRepository
	admins   repository.AdminRepository
	settings repository.SettingsRepository
	cost     int
}

func NewAdminService(users repository.UserRepository, admins repository.AdminRepository, settings repository.SettingsRepository) *AdminService {
	return &AdminService{users: users, admins: admins, settings: settings, cost: bcrypt.DefaultCost}
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]models.UserWithReports, int64, error) {
	return s.users.ListWithReportCounts(ctx, limit, offset)
}

// ToggleUserStatus flips is_active. A deactivated student's next send is dropped.
func (s *AdminService) ToggleUserStatus(ctx context.Context, id uint) (*models.User, error) {
	return s.users.ToggleActive(ctx, id)
}

// ReportedUsers lists users with at least models.ReportThreshold reports, most reported first.
func (s *AdminService) ReportedUsers(ctx context.Context) ([]models.UserWithReports, error) {
	return s.users.ListReported(ctx, models.ReportThreshold)
}

func (s *AdminService) Settings(ctx context.Context) (map[string]string, error) {
	return s.settings.All(ctx)
}

// UpdateSetting stores value under one of the known setting keys. Lifetimes
// must be positive whole hours.
func (s *AdminService) UpdateSetting(ctx context.Context, key, value string) error {
	if _, known := models.DefaultSettings()[key]; !known {
		return models.NewValidationError("unknown setting: " + key)
	}
	switch key {
	case models.SettingGroupLifetimeHours, models.SettingPrivateLifetimeHours:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return models.NewValidationError("lifetime must be a positive number of hours")
		}
		value = strconv.Itoa(n)
	}
	return s.settings.Set(ctx, key, value)
}

func (s *AdminService) ListSubAdmins(ctx context.Context) ([]models.Admin, error) {
	return s.admins.ListSubAdmins(ctx)
}

// CreateSubAdmin adds a non-super admin account.
func (s *AdminService) CreateSubAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	admin := &models.Admin{Username: username, Password: string(hash)}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// DeleteSubAdmin removes a sub-admin. The super admin cannot be deleted.
func (s *AdminService) DeleteSubAdmin(ctx context.Context, id uint) error {
	admin, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if admin.IsSuperAdmin {
		return models.NewForbiddenError("the super admin cannot be deleted")
	}
	return s.admins.DeleteSubAdmin(ctx, id)
}
