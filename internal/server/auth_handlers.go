package server

import (
	"strconv"
	"time"

	"campuschat/internal/middleware"
	"campuschat/internal/models"
	"campuschat/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	tokenTTL    = 7 * 24 * time.Hour
	wsTicketTTL = 30 * time.Second
)

// GetVerificationQuestions handles GET /api/auth/verification-questions
func (s *Server) GetVerificationQuestions(c *fiber.Ctx) error {
	return c.JSON(s.authService.VerificationQuestions())
}

// VerifyAnswers handles POST /api/auth/verify-answers
func (s *Server) VerifyAnswers(c *fiber.Ctx) error {
	var req struct {
		Answers []service.VerificationAnswer `json:"answers"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	return c.JSON(s.authService.VerifyAnswers(req.Answers))
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	token, err := s.issueToken(middleware.Principal{ID: user.ID, Role: middleware.RoleUser})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	token, err := s.issueToken(middleware.Principal{ID: user.ID, Role: middleware.RoleUser})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// AdminLogin handles POST /api/auth/admin/login
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	admin, err := s.authService.AdminLogin(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}

	token, err := s.issueToken(middleware.Principal{
		ID:    admin.ID,
		Role:  middleware.RoleAdmin,
		Super: admin.IsSuperAdmin,
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"admin": admin,
	})
}

// Logout handles POST /api/auth/logout by revoking the presented token until it expires.
func (s *Server) Logout(c *fiber.Ctx) error {
	p := principalFrom(c)
	if p != nil && p.JTI != "" && s.redis != nil {
		ttl := time.Until(p.ExpiresAt)
		if ttl > 0 {
			if err := s.redis.Set(c.UserContext(), middleware.RevokedTokenKey(p.JTI), "1", ttl).Err(); err != nil {
				return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
			}
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

// CheckSession handles GET /api/auth/check-session
func (s *Server) CheckSession(c *fiber.Ctx) error {
	p := principalFrom(c)
	if p == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	if p.IsAdmin() {
		admin, err := s.adminRepo.GetByID(c.UserContext(), p.ID)
		if err != nil {
			if models.StatusFor(err) == fiber.StatusNotFound {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account no longer exists"))
			}
			return models.RespondWithError(c, models.StatusFor(err), err)
		}
		return c.JSON(fiber.Map{"authenticated": true, "role": p.Role, "admin": admin})
	}

	user, err := s.userService.ActiveUser(c.UserContext(), p.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Account is unavailable"))
	}
	return c.JSON(fiber.Map{"authenticated": true, "role": p.Role, "user": user})
}

// IssueWSTicket handles POST /api/ws/ticket. The ticket is valid once, for a short window.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: "UNAVAILABLE", Message: "WebSocket tickets are unavailable"})
	}
	userID := c.Locals(middleware.UserIDLocal).(uint)

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), middleware.WSTicketKey(ticket),
		strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

func (s *Server) issueToken(p middleware.Principal) (string, error) {
	token, _, err := middleware.GenerateToken(s.config.JWTSecret, p, tokenTTL)
	return token, err
}
