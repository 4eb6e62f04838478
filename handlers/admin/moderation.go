package admin

import (
	"studyhub/middleware"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type FlagRequest struct {
	Value bool `json:"value"`
}

// PinDiscussion
// PUT /api/admin/discussions/:id/pin
func PinDiscussion(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req FlagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := svc.Discussions.SetPinned(c.UserContext(), id, req.Value); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"id": id, "is_pinned": req.Value})
}

// LockDiscussion stops or reopens replies
// PUT /api/admin/discussions/:id/lock
func LockDiscussion(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req FlagRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := svc.Discussions.SetLocked(c.UserContext(), id, req.Value); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"id": id, "is_locked": req.Value})
}

// DeleteDiscussion removes any discussion
// DELETE /api/admin/discussions/:id
func DeleteDiscussion(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Discussions.Delete(c.UserContext(), middleware.OptionalUserID(c), id, true); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Discussion deleted"})
}
