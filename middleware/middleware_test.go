package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"studyhub/config"
	"studyhub/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuth() *Auth {
	return NewAuth(config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour})
}

func whoAmI(c *fiber.Ctx) error {
	id, err := GetUserID(c)
	if err != nil {
		return c.SendStatus(fiber.StatusTeapot)
	}
	name, _ := GetUsername(c)
	return c.JSON(fiber.Map{"id": id, "name": name, "guest": IsGuest(c), "admin": IsAdmin(c)})
}

func TestRequiredAuth(t *testing.T) {
	auth := newAuth()
	app := fiber.New()
	app.Get("/me", auth.Required(), whoAmI)

	token, err := auth.IssueToken(&models.User{ID: 7, Username: "ana"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Token " + token, fiber.StatusUnauthorized},
		{"garbage token", "Bearer nope", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	auth := newAuth()
	app := fiber.New()
	app.Get("/me", auth.Required(), whoAmI)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "username": "ana", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredStr, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "username": "ana", "exp": time.Now().Add(time.Hour).Unix(),
	})
	foreignStr, err := foreign.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	noExpStr, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	for _, tok := range []string{expiredStr, foreignStr, noExpStr} {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
}

func TestOptionalAuth(t *testing.T) {
	auth := newAuth()
	app := fiber.New()
	app.Get("/who", auth.Optional(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": OptionalUserID(c)})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/who", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/who", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "bad tokens fall back to anonymous")
}

func TestAdminAuth(t *testing.T) {
	auth := newAuth()
	app := fiber.New()
	app.Get("/admin", auth.Admin(), whoAmI)

	learner, err := auth.IssueToken(&models.User{ID: 1, Username: "ana"})
	require.NoError(t, err)
	admin, err := auth.IssueToken(&models.User{ID: 2, Username: "root", IsAdmin: true})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+learner)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

type adminFlags map[uint]bool

func (f adminFlags) IsAdmin(_ context.Context, id uint) (bool, error) {
	return f[id], nil
}

func TestAdminAuthPrefersLookupOverClaim(t *testing.T) {
	auth := newAuth()
	flags := adminFlags{2: true}
	auth.SetAdminLookup(flags)
	app := fiber.New()
	app.Get("/admin", auth.Admin(), whoAmI)

	demoted, err := auth.IssueToken(&models.User{ID: 1, Username: "ana", IsAdmin: true})
	require.NoError(t, err)
	promoted, err := auth.IssueToken(&models.User{ID: 2, Username: "root"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+demoted)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+promoted)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebSocketTokenFromQuery(t *testing.T) {
	auth := newAuth()
	app := fiber.New()
	app.Get("/ws", auth.WebSocket(), whoAmI)

	token, err := auth.IssueToken(&models.User{ID: 3, Username: "bia"})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(2, 0)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimit(config.RateLimitConfig{Enabled: true, MaxRequests: 100, WindowSeconds: 900, AuthMaxRequests: 2, AuthWindowSeconds: 300})
	app := fiber.New()
	app.Post("/login", rl.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		require.NoError(t, err)
		codes[i] = resp.StatusCode
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	disabled := NewRateLimit(config.RateLimitConfig{Enabled: false, AuthMaxRequests: 0, AuthWindowSeconds: 300})
	app = fiber.New()
	app.Post("/login", disabled.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, 60)
	rl.Allow("1.2.3.4")
	time.Sleep(2 * time.Millisecond)
	rl.Cleanup(time.Millisecond)
	assert.Empty(t, rl.buckets)
}

func TestRequestLogger(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrBadRequest })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
