package server

import (
	"errors"

	"campuschat/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already sent the 400. Handlers return nil
// so the ErrorHandler does not overwrite it.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination clamps limit to [1, maxPaginationLimit] and offset to >= 0.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	return Pagination{
		Limit:  min(limit, maxPaginationLimit),
		Offset: max(c.QueryInt("offset", 0), 0),
	}
}

var paramLabels = map[string]string{
	"id":     "ID",
	"userId": "user ID",
}

// parseID reads a positive numeric route parameter.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		label, ok := paramLabels[param]
		if !ok {
			label = param
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid "+label))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}
