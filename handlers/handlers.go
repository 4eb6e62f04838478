// handlers/handlers.go - Shared handler state and request helpers
package handlers

import (
	"studyhub/apperrors"
	"studyhub/handlers/admin"
	"studyhub/middleware"
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	svc    *services.Services
	authn  *middleware.Auth
	logger = zap.NewNop()
)

// Init wires the handlers and the admin handlers to the service layer. It
// must run before routes are registered.
func Init(s *services.Services, auth *middleware.Auth, log *zap.Logger) {
	if s == nil || auth == nil {
		panic("handlers.Init called without services or auth")
	}
	svc = s
	authn = auth
	authn.SetAdminLookup(s.Users)
	if log != nil {
		logger = log
	}
	admin.Init(s, log)
}

// respondError maps err onto the JSON error envelope. Backend failures are
// logged with their cause before the generic message goes out.
func respondError(c *fiber.Ctx, err error) error {
	appErr := apperrors.As(err)
	if appErr.Status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return utils.AppError(c, err)
}

// parseBody decodes the JSON body into dst and runs struct validation.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	return utils.Validate(dst)
}

// currentUser returns the authenticated user id or an Unauthenticated error.
func currentUser(c *fiber.Ctx) (uint, error) {
	return middleware.GetUserID(c)
}
