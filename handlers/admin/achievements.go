package admin

import (
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type achievementOverview struct {
	services.AchievementDefinition
	Granted int64 `json:"granted"`
}

// GetAchievements returns every achievement definition with how many
// learners hold it. Secret ones are shown unmasked here.
// GET /api/admin/achievements
func GetAchievements(c *fiber.Ctx) error {
	counts, err := svc.Achievements.GrantCounts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	defs := services.AchievementDefinitions()
	out := make([]achievementOverview, 0, len(defs))
	for _, def := range defs {
		out = append(out, achievementOverview{AchievementDefinition: def, Granted: counts[def.Type]})
	}
	return utils.JSONSuccess(c, fiber.Map{"achievements": out})
}
