// handlers/progression.go - Progress ledger, achievements, streak and review
package handlers

import (
	"strings"

	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// GetProgress returns every progress record of the caller
// GET /api/progress
func GetProgress(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	records, err := svc.Ledger.GetAllForUser(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"progress": records})
}

// SubmitProgress is the enveloped twin of the submit-answer function
// POST /api/progress/submit
func SubmitProgress(c *fiber.Ctx) error {
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
	return utils.JSONSuccess(c, fiber.Map{"result": result})
}

// GetAchievements lists every achievement with the caller's progress on it.
// Secret ones stay masked until earned.
// GET /api/achievements
func GetAchievements(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	progress, err := svc.Achievements.Progress(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	earned := 0
	for _, p := range progress {
		if p.Earned {
			earned++
		}
	}
	return utils.JSONSuccess(c, fiber.Map{
		"achievements": progress,
		"earned":       earned,
		"total":        len(progress),
	})
}

// GetStreak returns the caller's daily streak
// GET /api/streak
func GetStreak(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	streak, err := svc.Streaks.Get(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"streak": streak})
}

// GetIncorrectAnswers lists wrong attempts for review
// GET /api/review/incorrect?subject=&difficulty=&limit=
func GetIncorrectAnswers(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	items, err := svc.Review.IncorrectAnswers(c.UserContext(), userID, services.ReviewFilter{
		Subject:    strings.TrimSpace(c.Query("subject")),
		Difficulty: strings.TrimSpace(c.Query("difficulty")),
		Limit:      utils.QueryInt(c, "limit", 50, 1, 100),
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"items": items, "count": len(items)})
}
