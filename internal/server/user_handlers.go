package server

import (
	"context"
	"time"

	"campuschat/internal/middleware"
	"campuschat/internal/models"
	"campuschat/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/user/profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals(middleware.UserIDLocal).(uint)

	user, err := s.userService.Profile(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(user)
}

// UpdateMyProfile handles POST /api/user/profile
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals(middleware.UserIDLocal).(uint)

	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(user)
}

// GetFacultyUsers handles GET /api/user/faculty-users
func (s *Server) GetFacultyUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	userID := c.Locals(middleware.UserIDLocal).(uint)
	users, err := s.userService.FacultyUsers(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(users)
}

// GetUserProfile handles GET /api/user/user/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.ActiveUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	return c.JSON(user)
}

// GetIsBlocked handles GET /api/user/is-blocked/:userId
func (s *Server) GetIsBlocked(c *fiber.Ctx) error {
	other, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	userID := c.Locals(middleware.UserIDLocal).(uint)

	blocked, err := s.userService.IsBlocked(c.UserContext(), userID, other)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{"blocked": blocked})
}

// GetPublicSettings handles GET /api/user/settings
func (s *Server) GetPublicSettings(c *fiber.Ctx) error {
	settings, err := s.userService.PublicSettings(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(settings)
}
