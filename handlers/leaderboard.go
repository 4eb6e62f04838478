// handlers/leaderboard.go
package handlers

import (
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// GetLeaderboard returns the global leaderboard
// GET /api/leaderboard?category=xp&limit=50&offset=0
func GetLeaderboard(c *fiber.Ctx) error {
	page, err := svc.Leaderboard.Top(c.UserContext(),
		c.Query("category", services.LeaderboardXP),
		utils.QueryInt(c, "limit", 50, 1, 100),
		utils.QueryInt(c, "offset", 0, 0, 1<<20))
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"category": page.Category,
		"entries":  page.Entries,
		"total":    page.Total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// GetFriendsLeaderboard ranks the caller among accepted friends
// GET /api/leaderboard/friends?category=xp
func GetFriendsLeaderboard(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	entries, err := svc.Leaderboard.FriendsLeaderboard(c.UserContext(), userID, c.Query("category", services.LeaderboardXP))
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"entries": entries})
}

// GetUserRank returns a learner's position. Rank 0 means unranked.
// GET /api/leaderboard/user/:id?category=xp
func GetUserRank(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	category := c.Query("category", services.LeaderboardXP)
	rank, err := svc.Leaderboard.Rank(c.UserContext(), id, category)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"user_id":  id,
		"category": category,
		"rank":     rank,
	})
}
