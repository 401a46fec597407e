package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"campuschat/internal/middleware"
	"campuschat/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const principalLocal = "principal"

// AuthRequired returns the authentication middleware. WebSocket routes accept
// a single-use ticket; everything else needs a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws/") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.redeemWSTicket(c.UserContext(), ticket)
			if err == nil {
				setPrincipal(c, &middleware.Principal{ID: userID, Role: middleware.RoleUser})
				return c.Next()
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		tokenString, ok := middleware.BearerToken(c.Get("Authorization"))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		principal, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if principal.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), middleware.RevokedTokenKey(principal.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		setPrincipal(c, principal)
		return c.Next()
	}
}

// UserRequired rejects admin principals. Must follow AuthRequired.
func (s *Server) UserRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := principalFrom(c)
		if p == nil || p.Role != middleware.RoleUser {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Student access required"))
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin principals with 403.
// Must be placed after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := principalFrom(c)
		if p == nil || !p.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// SuperAdminRequired limits a route to the super admin.
func (s *Server) SuperAdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := principalFrom(c)
		if p == nil || !p.IsAdmin() || !p.Super {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Super admin access required"))
		}
		return c.Next()
	}
}

// redeemWSTicket consumes ticket and returns the user it was issued to.
func (s *Server) redeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errors.New("ticket store unavailable")
	}
	raw, err := s.redis.GetDel(ctx, middleware.WSTicketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, errors.New("unknown ticket")
		}
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("malformed ticket")
	}
	return uint(id), nil
}

func setPrincipal(c *fiber.Ctx, p *middleware.Principal) {
	c.Locals(principalLocal, p)
	c.Locals(middleware.UserIDLocal, p.ID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), p.ID))
}

func principalFrom(c *fiber.Ctx) *middleware.Principal {
	p, _ := c.Locals(principalLocal).(*middleware.Principal)
	return p
}
