// handlers/friends.go - Friend requests and friend lists
package handlers

import (
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

type FriendRequestBody struct {
	FriendID uint `json:"friend_id" validate:"required"`
}

type FriendRequestAction struct {
	RequestID uint `json:"request_id" validate:"required"`
}

type BlockRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// GetFriends lists accepted friends in both directions
// GET /api/friends
func GetFriends(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	friends, err := svc.Friends.Friends(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"friends": friends, "count": len(friends)})
}

// GetFriendRequests lists pending requests addressed to the caller
// GET /api/friends/requests
func GetFriendRequests(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	requests, err := svc.Friends.PendingRequests(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"requests": requests})
}

// SendFriendRequest
// POST /api/friends/request
func SendFriendRequest(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req FriendRequestBody
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	friendship, err := svc.Friends.SendRequest(c.UserContext(), userID, req.FriendID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "request": friendship})
}

// AcceptFriendRequest
// POST /api/friends/accept
func AcceptFriendRequest(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req FriendRequestAction
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	friendship, err := svc.Friends.Accept(c.UserContext(), userID, req.RequestID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"friendship": friendship})
}

// DeclineFriendRequest
// POST /api/friends/decline
func DeclineFriendRequest(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req FriendRequestAction
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := svc.Friends.Decline(c.UserContext(), userID, req.RequestID); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Request declined"})
}

// BlockUser
// POST /api/friends/block
func BlockUser(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req BlockRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	friendship, err := svc.Friends.Block(c.UserContext(), userID, req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"friendship": friendship})
}

// RemoveFriend deletes a friendship or unblocks
// DELETE /api/friends/:id
func RemoveFriend(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Friends.Remove(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Friend removed"})
}
