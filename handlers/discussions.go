// handlers/discussions.go - Community discussions, replies and likes
package handlers

import (
	"strings"

	"studyhub/middleware"
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// GetDiscussions lists discussions, pinned first then newest
// GET /api/discussions?category=&limit=&offset=
func GetDiscussions(c *fiber.Ctx) error {
	filter := services.DiscussionFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Limit:    utils.QueryInt(c, "limit", 20, 1, 100),
		Offset:   utils.QueryInt(c, "offset", 0, 0, 1<<20),
	}
	list, err := svc.Discussions.List(c.UserContext(), middleware.OptionalUserID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"discussions": list,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// GetDiscussion returns one discussion with its replies
// GET /api/discussions/:id
func GetDiscussion(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	view, err := svc.Discussions.Get(c.UserContext(), middleware.OptionalUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"discussion": view})
}

// CreateDiscussion
// POST /api/discussions
func CreateDiscussion(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var in services.DiscussionInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	view, err := svc.Discussions.Create(c.UserContext(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "discussion": view})
}

// DeleteDiscussion removes the caller's own discussion. Admins may delete any.
// DELETE /api/discussions/:id
func DeleteDiscussion(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Discussions.Delete(c.UserContext(), userID, id, middleware.IsAdmin(c)); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Discussion deleted"})
}

// ToggleDiscussionLike likes or unlikes
// POST /api/discussions/:id/like
func ToggleDiscussionLike(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	liked, count, err := svc.Discussions.ToggleLike(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"liked": liked, "likes_count": count})
}

// CreateReply
// POST /api/discussions/:id/replies
func CreateReply(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in services.ReplyInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	reply, err := svc.Discussions.Reply(c.UserContext(), userID, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "reply": reply})
}

// ToggleReplyLike
// POST /api/replies/:id/like
func ToggleReplyLike(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	liked, count, err := svc.Discussions.ToggleReplyLike(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"liked": liked, "likes_count": count})
}
