package admin

import (
	"time"

	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ResetStreaks runs the lapsed-streak reset the scheduler runs nightly
// POST /api/admin/maintenance/reset-streaks
func ResetStreaks(c *fiber.Ctx) error {
	reset, err := svc.Streaks.ResetLapsed(c.UserContext(), time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	logger.Info("🧹 Manual streak reset", zap.Int64("reset", reset))
	return utils.JSONSuccess(c, fiber.Map{"message": "Streaks reset", "reset": reset})
}

// RefreshLeaderboard drops cached leaderboard pages and warms the first one
// POST /api/admin/maintenance/refresh-leaderboard
func RefreshLeaderboard(c *fiber.Ctx) error {
	if err := svc.Leaderboard.Refresh(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Leaderboard refreshed"})
}
