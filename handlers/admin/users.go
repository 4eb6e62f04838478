package admin

import (
	"studyhub/middleware"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// GetUsers returns users with pagination
// GET /api/admin/users?page=&limit=&search=
func GetUsers(c *fiber.Ctx) error {
	page := utils.QueryInt(c, "page", 1, 1, 1<<20)
	limit := utils.QueryInt(c, "limit", 20, 1, 100)

	users, total, err := svc.Users.List(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetUser returns a single user with profile, stats and achievements
// GET /api/admin/users/:id
func GetUser(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	user, err := svc.Users.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := svc.Stats.UserStats(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"user": user, "stats": stats.Stats, "achievements": stats.Achievements})
}

// SetAdmin grants or revokes admin rights. Admins cannot demote themselves.
// PUT /api/admin/users/:id/admin
func SetAdmin(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req SetAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if !req.IsAdmin && id == middleware.OptionalUserID(c) {
		return utils.JSONError(c, fiber.StatusBadRequest, "Cannot remove your own admin rights")
	}
	if err := svc.Users.SetAdmin(c.UserContext(), id, req.IsAdmin); err != nil {
		return respondError(c, err)
	}

	logger.Info("🔐 Admin flag changed", zap.Uint("user_id", id), zap.Bool("is_admin", req.IsAdmin))
	return utils.JSONSuccess(c, fiber.Map{"user_id": id, "is_admin": req.IsAdmin})
}
