// handlers/groups.go - Study group endpoints
package handlers

import (
	"strings"

	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

type TransferOwnershipRequest struct {
	NewOwnerID uint `json:"new_owner_id" validate:"required"`
}

type GroupMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// ================== GROUP CRUD ENDPOINTS ==================

// CreateGroup creates a study group owned by the caller
// POST /api/groups
func CreateGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var in services.GroupInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	group, err := svc.Groups.Create(c.UserContext(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	logger.Info("✅ Study group created", zap.Uint("group_id", group.ID), zap.Uint("owner_id", userID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "group": group})
}

// GetGroup
// GET /api/groups/:id
func GetGroup(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	group, err := svc.Groups.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"group": group})
}

// DeleteGroup (owner only)
// DELETE /api/groups/:id
func DeleteGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Groups.Delete(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Group deleted"})
}

// GetPublicGroups lists discoverable groups
// GET /api/groups/public?category=&limit=
func GetPublicGroups(c *fiber.Ctx) error {
	groups, err := svc.Groups.PublicGroups(c.UserContext(),
		strings.TrimSpace(c.Query("category")),
		utils.QueryInt(c, "limit", 50, 1, 100))
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"groups": groups})
}

// GetUserGroups lists groups the caller belongs to
// GET /api/groups
func GetUserGroups(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	groups, err := svc.Groups.UserGroups(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"groups": groups})
}

// ================== MEMBERSHIP ENDPOINTS ==================

// JoinGroup joins by invite code
// POST /api/groups/join
func JoinGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req JoinGroupRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	group, err := svc.Groups.Join(c.UserContext(), userID, req.InviteCode)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"group": group})
}

// LeaveGroup
// POST /api/groups/:id/leave
func LeaveGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Groups.Leave(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Left group"})
}

// TransferOwnership hands the group to another member
// PUT /api/groups/:id/transfer
func TransferOwnership(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req TransferOwnershipRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := svc.Groups.TransferOwnership(c.UserContext(), id, userID, req.NewOwnerID); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Ownership transferred"})
}

// GetGroupMembers
// GET /api/groups/:id/members
func GetGroupMembers(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	members, err := svc.Groups.Members(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"members": members})
}

// ================== GROUP CHAT ENDPOINTS ==================

// PostGroupMessage
// POST /api/groups/:id/messages
func PostGroupMessage(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req GroupMessageRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	msg, err := svc.Groups.PostMessage(c.UserContext(), userID, id, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg})
}

// GetGroupMessages
// GET /api/groups/:id/messages?limit=
func GetGroupMessages(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	msgs, err := svc.Groups.Messages(c.UserContext(), userID, id, utils.QueryInt(c, "limit", 50, 1, 200))
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"messages": msgs})
}
