package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Presence reports who holds an open realtime connection. realtime.Hub
// implements it.
type Presence interface {
	IsOnline(userID uint) bool
	OnlineCount() int
}

var presence Presence

// SetPresence enables the online counters. Without it they report zero.
func SetPresence(p Presence) {
	presence = p
}

// GetOnlineCount returns the number of learners currently connected
// GET /api/stats/online
func GetOnlineCount(c *fiber.Ctx) error {
	count := 0
	if presence != nil {
		count = presence.OnlineCount()
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   count,
	})
}
