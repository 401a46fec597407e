package service

import (
	"context"
	"errors"
	"strings"

	"campuschat/internal/models"
	"campuschat/internal/repository"
	"campuschat/internal/validation"
)

// UserService serves the signed-in student's profile pages.
type UserService struct {
	users      repository.UserRepository
	moderation repository.ModerationRepository
	settings   repository.SettingsRepository
}

type UpdateProfileInput struct {
	FullName string `json:"fullName"`
	Faculty  string `json:"faculty"`
	Degree   string `json:"degree"`
	Course   int    `json:"course"`
	Avatar   string `json:"avatar"`
}

func NewUserService(users repository.UserRepository, moderation repository.ModerationRepository, settings repository.SettingsRepository) *UserService {
	return &UserService{users: users, moderation: moderation, settings: settings}
}

func (s *UserService) Profile(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile replaces the editable fields. Messages already sent keep the
// display fields they were sent with.
func (s *UserService) UpdateProfile(ctx context.Context, id uint, in UpdateProfileInput) (*models.User, error) {
	const maxAvatarLen = 10

	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCourse(in.Course); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if strings.TrimSpace(in.Faculty) == "" || strings.TrimSpace(in.Degree) == "" {
		return nil, models.NewValidationError("faculty and degree are required")
	}
	if len([]rune(in.Avatar)) > maxAvatarLen {
		return nil, models.NewValidationError("avatar too long")
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	avatar := in.Avatar
	if avatar == "" {
		avatar = current.Avatar
	}

	return s.users.UpdateProfile(ctx, id, repository.ProfileUpdate{
		FullName: strings.TrimSpace(in.FullName),
		Faculty:  strings.TrimSpace(in.Faculty),
		Degree:   strings.TrimSpace(in.Degree),
		Course:   in.Course,
		Avatar:   avatar,
	})
}

// FacultyUsers lists the other active students of the caller's faculty, by name.
func (s *UserService) FacultyUsers(ctx context.Context, id uint) ([]models.User, error) {
	me, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.users.ListFacultyPeers(ctx, me.Faculty, id)
}

// ActiveUser returns another student's public profile. Deactivated accounts are not found.
func (s *UserService) ActiveUser(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.users.FindActive(ctx, id)
	if errors.Is(err, models.ErrUserUnavailable) {
		return nil, models.NewNotFoundError("User", id)
	}
	return u, err
}

// IsBlocked reports whether either user blocked the other.
func (s *UserService) IsBlocked(ctx context.Context, me, other uint) (bool, error) {
	return s.moderation.IsBlocked(ctx, me, other)
}

// PublicSettings returns the settings shown to students.
func (s *UserService) PublicSettings(ctx context.Context) (map[string]string, error) {
	all, err := s.settings.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(models.PublicSettingKeys))
	for _, k := range models.PublicSettingKeys {
		out[k] = all[k]
	}
	return out, nil
}
