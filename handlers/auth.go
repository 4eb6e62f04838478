// handlers/auth.go - Registration, login, guest sessions and the learner profile
package handlers

import (
	"fmt"
	"strings"
	"time"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=100"`
}

type GuestLoginRequest struct {
	GuestName string `json:"guest_name,omitempty"`
}

type UpgradeGuestRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token,omitempty"`
	User    UserInfo `json:"user"`
}

type UserInfo struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsGuest   bool      `json:"is_guest"`
	IsAdmin   bool      `json:"is_admin"`
	XP        int       `json:"xp"`
	CreatedAt time.Time `json:"created_at"`
}

func userInfo(user *models.User) UserInfo {
	info := UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		IsGuest:   user.IsGuest,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
	if user.Email != nil {
		info.Email = *user.Email
	}
	if user.Profile != nil {
		info.Name = user.Profile.Name
		info.XP = user.Profile.XP
	}
	return info
}

func authResponse(c *fiber.Ctx, status int, user *models.User) error {
	token, err := authn.IssueToken(user)
	if err != nil {
		return respondError(c, apperrors.Internal("Failed to generate token", err))
	}
	return c.Status(status).JSON(AuthResponse{
		Success: true,
		Token:   token,
		User:    userInfo(user),
	})
}

func optionalEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}

// GuestLogin creates a new guest session
// POST /api/auth/guest
func GuestLogin(c *fiber.Ctx) error {
	var req GuestLoginRequest
	// an empty body is fine here
	_ = c.BodyParser(&req)

	suffix := uuid.New().String()[:8]
	guestName := strings.TrimSpace(req.GuestName)
	if guestName == "" || len(guestName) > 50 {
		guestName = fmt.Sprintf("Guest_%s", suffix)
	}

	user := &models.User{
		Username:  fmt.Sprintf("guest_%s", suffix),
		IsGuest:   true,
		LastLogin: time.Now().UTC(),
	}
	if err := svc.Users.CreateUser(c.UserContext(), user, guestName); err != nil {
		return respondError(c, err)
	}

	logger.Info("👤 Guest session created", zap.Uint("user_id", user.ID))
	return authResponse(c, fiber.StatusOK, user)
}

// Login authenticates a registered user
// POST /api/auth/login
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	invalid := apperrors.Unauthorized("Invalid credentials")

	user, err := svc.Users.FindByUsername(c.UserContext(), req.Username)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return respondError(c, invalid)
	}
	if err != nil {
		return respondError(c, err)
	}
	if user.IsGuest || user.Password == "" {
		return respondError(c, invalid)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return respondError(c, invalid)
	}

	if err := svc.Users.TouchLogin(c.UserContext(), user.ID); err != nil {
		logger.Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	full, err := svc.Users.FindByID(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return authResponse(c, fiber.StatusOK, full)
}

// Register creates a new user account with its profile and streak
// POST /api/auth/register
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, apperrors.Internal("Failed to hash password", err))
	}

	user := &models.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     optionalEmail(req.Email),
		Password:  string(hashedPassword),
		LastLogin: time.Now().UTC(),
	}
	if err := svc.Users.CreateUser(c.UserContext(), user, strings.TrimSpace(req.Name)); err != nil {
		return respondError(c, err)
	}

	logger.Info("✅ User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return authResponse(c, fiber.StatusCreated, user)
}

// UpgradeGuest converts a guest account to a registered account
// POST /api/auth/upgrade
func UpgradeGuest(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req UpgradeGuestRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, apperrors.Internal("Failed to hash password", err))
	}

	user, err := svc.Users.UpgradeGuest(c.UserContext(), userID, strings.TrimSpace(req.Username),
		optionalEmail(req.Email), string(hashedPassword))
	if err != nil {
		return respondError(c, err)
	}
	return authResponse(c, fiber.StatusOK, user)
}

// GetCurrentUser returns the account behind the token
// GET /api/auth/me
func GetCurrentUser(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := svc.Users.FindByID(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"user": userInfo(user)})
}

// GetProfile returns the learner profile
// GET /api/profile
func GetProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	profile, err := svc.Users.Profile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if profile == nil {
		return respondError(c, apperrors.NotFound("Profile"))
	}
	return utils.JSONSuccess(c, fiber.Map{"profile": profile})
}

// UpdateProfile changes name, bio or avatar
// PUT /api/profile
func UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var upd services.ProfileUpdate
	if err := parseBody(c, &upd); err != nil {
		return respondError(c, err)
	}

	profile, err := svc.Users.UpdateProfile(c.UserContext(), userID, upd)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"profile": profile})
}
