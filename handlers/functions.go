// handlers/functions.go - The submit-answer and get-user-stats functions
package handlers

import (
	"studyhub/services"

	"github.com/gofiber/fiber/v2"
)

// SubmitAnswer grades one answer and returns the unwrapped result object
// clients of the functions endpoint expect.
// POST /functions/v1/submit-answer
func SubmitAnswer(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req services.SubmitRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := svc.Submissions.Submit(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetUserStats returns profile, stats, achievements and progress.
// GET|POST /functions/v1/get-user-stats
func GetUserStats(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	stats, err := svc.Stats.UserStats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
