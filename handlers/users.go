// handlers/users.go - Learner search and public profiles
package handlers

import (
	"studyhub/apperrors"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers finds registered learners by username or name
// GET /api/users/search?q=&limit=
func SearchUsers(c *fiber.Ctx) error {
	users, err := svc.Users.Search(c.UserContext(), c.Query("q"), utils.QueryInt(c, "limit", 20, 1, 50))
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"users": users})
}

// GetUserProfile returns another learner's public card
// GET /api/users/:id
func GetUserProfile(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	summaries, err := svc.Users.Summaries(c.UserContext(), []uint{id})
	if err != nil {
		return respondError(c, err)
	}
	summary, ok := summaries[id]
	if !ok {
		return respondError(c, apperrors.NotFound("User"))
	}

	response := fiber.Map{"user": summary}
	if presence != nil {
		response["online"] = presence.IsOnline(id)
	}
	return utils.JSONSuccess(c, response)
}
