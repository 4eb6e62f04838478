// middleware/auth.go - JWT authentication for Fiber routes
package middleware

import (
	"context"
	"strings"
	"time"

	"studyhub/apperrors"
	"studyhub/config"
	"studyhub/models"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Auth issues and checks HS256 tokens carrying user_id, username, is_guest,
// is_admin and exp.
type Auth struct {
	secret []byte
	ttl    time.Duration
	admins AdminLookup
}

// AdminLookup reports a user's current admin flag. When set, Admin trusts it
// over the is_admin claim so revoked rights take effect before the token
// expires.
type AdminLookup interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

func NewAuth(cfg config.AuthConfig) *Auth {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Auth{secret: []byte(cfg.JWTSecret), ttl: ttl}
}

func (a *Auth) SetAdminLookup(l AdminLookup) {
	a.admins = l
}

// IssueToken signs a token for user.
func (a *Auth) IssueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"is_guest": user.IsGuest,
		"is_admin": user.IsAdmin,
		"exp":      time.Now().Add(a.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

type claimsInfo struct {
	UserID   uint
	Username string
	IsGuest  bool
	IsAdmin  bool
}

func (a *Auth) parse(tokenString string) (*claimsInfo, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.Unauthorized("Invalid token claims")
	}
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return nil, apperrors.Unauthorized("Invalid token claims")
	}

	info := &claimsInfo{UserID: uint(id)}
	info.Username, _ = claims["username"].(string)
	info.IsGuest, _ = claims["is_guest"].(bool)
	info.IsAdmin, _ = claims["is_admin"].(bool)
	return info, nil
}

func setLocals(c *fiber.Ctx, info *claimsInfo) {
	c.Locals("userId", info.UserID)
	c.Locals("username", info.Username)
	c.Locals("isGuest", info.IsGuest)
	c.Locals("isAdmin", info.IsAdmin)
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.Unauthorized("Missing authorization header")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperrors.Unauthorized("Invalid authorization header format")
	}
	return parts[1], nil
}

// Required rejects requests without a valid bearer token.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.AppError(c, err)
		}
		info, err := a.parse(tokenString)
		if err != nil {
			return utils.AppError(c, err)
		}
		setLocals(c, info)
		return c.Next()
	}
}

// Optional identifies the caller when a valid token is present and lets
// anonymous requests through.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, err := bearerToken(c); err == nil {
			if info, err := a.parse(tokenString); err == nil {
				setLocals(c, info)
			}
		}
		return c.Next()
	}
}

// Admin requires a valid token whose user is an admin, checked against the
// AdminLookup when one is set and against the is_admin claim otherwise.
func (a *Auth) Admin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.AppError(c, err)
		}
		info, err := a.parse(tokenString)
		if err != nil {
			return utils.AppError(c, err)
		}
		if a.admins != nil {
			info.IsAdmin, err = a.admins.IsAdmin(c.UserContext(), info.UserID)
			if err != nil {
				return utils.AppError(c, err)
			}
		}
		if !info.IsAdmin {
			return utils.AppError(c, apperrors.Forbidden("Access denied. Admin privileges required."))
		}
		setLocals(c, info)
		return c.Next()
	}
}

// WebSocket accepts the token from the Authorization header, a "token"
// query parameter or a "token" cookie, since browsers cannot set headers
// on websocket upgrades.
func (a *Auth) WebSocket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			tokenString = c.Cookies("token")
		}
		if tokenString == "" {
			return utils.AppError(c, apperrors.ErrUnauthenticated)
		}
		info, err := a.parse(tokenString)
		if err != nil {
			return utils.AppError(c, err)
		}
		setLocals(c, info)
		return c.Next()
	}
}

// GetUserID returns the authenticated user's id, or ErrUnauthenticated.
func GetUserID(c *fiber.Ctx) (uint, error) {
	if id, ok := c.Locals("userId").(uint); ok && id > 0 {
		return id, nil
	}
	return 0, apperrors.ErrUnauthenticated
}

// OptionalUserID is 0 for anonymous callers.
func OptionalUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userId").(uint)
	return id
}

func GetUsername(c *fiber.Ctx) (string, error) {
	if name, ok := c.Locals("username").(string); ok {
		return name, nil
	}
	return "", apperrors.ErrUnauthenticated
}

func IsGuest(c *fiber.Ctx) bool {
	guest, _ := c.Locals("isGuest").(bool)
	return guest
}

func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals("isAdmin").(bool)
	return admin
}
