// handlers/admin/admin.go - Admin handler wiring
package admin

import (
	"studyhub/apperrors"
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	svc    *services.Services
	logger = zap.NewNop()
)

// Init wires the admin handlers to the service layer.
func Init(s *services.Services, log *zap.Logger) {
	svc = s
	if log != nil {
		logger = log
	}
}

func respondError(c *fiber.Ctx, err error) error {
	if apperrors.As(err).Status >= fiber.StatusInternalServerError {
		logger.Error("admin request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return utils.AppError(c, err)
}

func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	return utils.Validate(dst)
}
