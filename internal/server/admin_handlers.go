package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"campuschat/internal/featureflags"
	"campuschat/internal/models"
	"campuschat/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/admin/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := parsePagination(c, 50)

	users, total, err := s.adminService.ListUsers(ctx, page.Limit, page.Offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Request timeout",
			})
		}
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(fiber.Map{
		"users":  users,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// ToggleUserStatus handles POST /api/admin/users/:id/toggle-status
func (s *Server) ToggleUserStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.adminService.ToggleUserStatus(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	// Deactivated students lose their live sockets.
	if !user.IsActive {
		notice, _ := models.EncodeEvent(models.EventAccountDisabled, fiber.Map{"message": "Your account has been disabled"})
		s.chatHub.DisconnectUser(user.ID, notice)
	}

	return c.JSON(user)
}

// GetReportedUsers handles GET /api/admin/reported-users
func (s *Server) GetReportedUsers(c *fiber.Ctx) error {
	users, err := s.adminService.ReportedUsers(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(users)
}

// GetSettings handles GET /api/admin/settings
func (s *Server) GetSettings(c *fiber.Ctx) error {
	settings, err := s.adminService.Settings(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(settings)
}

// UpdateSetting handles POST /api/admin/settings/:key
func (s *Server) UpdateSetting(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	key := c.Params("key")
	if err := s.adminService.UpdateSetting(c.UserContext(), key, req.Value); err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(fiber.Map{"success": true, "key": key})
}

// GetSubAdmins handles GET /api/admin/sub-admins
func (s *Server) GetSubAdmins(c *fiber.Ctx) error {
	admins, err := s.adminService.ListSubAdmins(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.JSON(admins)
}

// CreateSubAdmin handles POST /api/admin/sub-admins
func (s *Server) CreateSubAdmin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	admin, err := s.adminService.CreateSubAdmin(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(admin)
}

// DeleteSubAdmin handles DELETE /api/admin/sub-admins/:id
func (s *Server) DeleteSubAdmin(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.adminService.DeleteSubAdmin(c.UserContext(), id); err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetFeatureFlags returns configured flags and their state for an optional
// ?userId= and ?faculty= subject.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	subj := featureflags.Subject{
		UserID:  uint(max(c.QueryInt("userId", 0), 0)),
		Faculty: c.Query("faculty"),
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(subj),
	})
}

// UpdateFeatureFlag handles POST /api/admin/feature-flags/:name
func (s *Server) UpdateFeatureFlag(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	name := c.Params("name")
	if err := s.featureFlags.Set(name, req.Value); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	observability.GlobalLogger.InfoContext(c.UserContext(), "feature flag updated",
		slog.String("flag", name), slog.String("value", req.Value))

	return c.JSON(fiber.Map{"success": true, "flag": name})
}
