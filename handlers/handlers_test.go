package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"studyhub/config"
	"studyhub/database"
	"studyhub/middleware"
	"studyhub/models"
	"studyhub/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fiber.App
	svcs      *services.Services
	db        *gorm.DB
	auth      *middleware.Auth
	staticDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	svcs := services.New(services.Deps{DB: db})
	auth := middleware.NewAuth(config.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef", TokenTTL: time.Hour})
	Init(svcs, auth, nil)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>studyhub</html>"), 0o644))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
	SetupRoutes(app, RouteOptions{StaticDir: staticDir})
	app.Use(NotFound(staticDir))

	return &testEnv{app: app, svcs: svcs, db: db, auth: auth, staticDir: staticDir}
}

// do sends a JSON request and decodes the JSON response into a map.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (e *testEnv) userToken(t *testing.T, username string, admin bool) (*models.User, string) {
	t.Helper()
	user := &models.User{Username: username, Password: "x", IsAdmin: admin}
	require.NoError(t, e.svcs.Users.CreateUser(context.Background(), user, ""))
	token, err := e.auth.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

func idOf(t *testing.T, body map[string]interface{}, key string) uint {
	t.Helper()
	obj, ok := body[key].(map[string]interface{})
	require.True(t, ok, "missing %q in %v", key, body)
	return uint(obj["id"].(float64))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"username": "ana", "password": "segredo123", "email": "ana@example.com", "name": "Ana",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "Ana", body["user"].(map[string]interface{})["name"])

	status, _ = env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "ana", "password": "outrasenha"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = env.do(t, "POST", "/api/auth/register", "", fiber.Map{"username": "bo", "password": "123"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	status, _ = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "ana", "password": "errada"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "ana", "password": "segredo123"})
	require.Equal(t, fiber.StatusOK, status)
	token := body["token"].(string)

	status, body = env.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ana", body["user"].(map[string]interface{})["username"])

	status, body = env.do(t, "PUT", "/api/profile", token, fiber.Map{"bio": "Estudando para o ENEM"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Estudando para o ENEM", body["profile"].(map[string]interface{})["bio"])

	status, _ = env.do(t, "PUT", "/api/profile", token, fiber.Map{"name": "   "})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.do(t, "GET", "/api/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGuestLoginAndUpgrade(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "POST", "/api/auth/guest", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, true, user["is_guest"])
	assert.Regexp(t, `^Guest_[0-9a-f]{8}$`, user["name"])
	token := body["token"].(string)

	status, body = env.do(t, "POST", "/api/auth/upgrade", token, fiber.Map{"username": "carla", "password": "segredo123"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, false, body["user"].(map[string]interface{})["is_guest"])
	upgraded := body["token"].(string)

	status, _ = env.do(t, "POST", "/api/auth/upgrade", upgraded, fiber.Map{"username": "carla2", "password": "segredo123"})
	assert.Equal(t, fiber.StatusConflict, status, "already registered")

	status, _ = env.do(t, "POST", "/api/auth/login", "", fiber.Map{"username": "carla", "password": "segredo123"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestSubmitAnswerFunction(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.userToken(t, "root", true)
	_, learner := env.userToken(t, "ana", false)

	status, body := env.do(t, "POST", "/api/admin/courses", adminToken, fiber.Map{"name": "Matemática"})
	require.Equal(t, fiber.StatusCreated, status, body)
	courseID := idOf(t, body, "course")

	status, body = env.do(t, "POST", "/api/admin/lessons", adminToken, fiber.Map{
		"title": "Frações", "course_id": courseID, "mastery_threshold": 80, "xp_reward": 10,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	first := idOf(t, body, "lesson")

	status, body = env.do(t, "POST", "/api/admin/lessons", adminToken, fiber.Map{
		"title": "Porcentagem", "course_id": courseID, "order": 1, "mastery_threshold": 80, "xp_reward": 10,
		"prerequisite_lesson_id": first,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	second := idOf(t, body, "lesson")

	status, body = env.do(t, "POST", "/api/admin/exercises", adminToken, fiber.Map{
		"lesson_id": first, "prompt": "Quanto é 1/2 + 1/2?", "type": "numeric", "correct_answer": "1",
		"explanation": "Mesma base.",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	exercise := idOf(t, body, "exercise")

	status, body = env.do(t, "POST", "/api/admin/exercises", adminToken, fiber.Map{
		"lesson_id": second, "prompt": "10% de 50?", "type": "numeric", "correct_answer": "5",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	locked := idOf(t, body, "exercise")

	status, _ = env.do(t, "POST", "/api/admin/courses", learner, fiber.Map{"name": "Física"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = env.do(t, "GET", "/api/lessons/"+itoa(first), learner, nil)
	require.Equal(t, fiber.StatusOK, status)
	lessonBody := body["lesson"].(map[string]interface{})
	assert.Equal(t, "unlocked", lessonBody["status"])
	ex := lessonBody["exercises"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, ex, "correct_answer")

	status, body = env.do(t, "POST", "/functions/v1/submit-answer", learner, fiber.Map{
		"exerciseId": exercise, "userAnswer": " 1 ", "timeSpent": 12,
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["correct"])
	assert.Equal(t, float64(10), body["xpGained"])
	assert.Equal(t, "Mesma base.", body["explanation"])

	status, body = env.do(t, "POST", "/functions/v1/submit-answer", learner, fiber.Map{"exerciseId": locked, "userAnswer": "5"})
	assert.Equal(t, fiber.StatusForbidden, status, body)

	status, body = env.do(t, "POST", "/functions/v1/submit-answer", learner, fiber.Map{"userAnswer": "5"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "error")

	status, _ = env.do(t, "POST", "/functions/v1/submit-answer", learner, fiber.Map{"exerciseId": 999, "userAnswer": "5"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.do(t, "POST", "/functions/v1/submit-answer", "", fiber.Map{"exerciseId": exercise, "userAnswer": "1"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	for _, method := range []string{"GET", "POST"} {
		status, body = env.do(t, method, "/functions/v1/get-user-stats", learner, nil)
		require.Equal(t, fiber.StatusOK, status, body)
		stats := body["stats"].(map[string]interface{})
		assert.Equal(t, float64(10), stats["totalXP"])
		assert.Equal(t, float64(2), stats["totalLessons"])
		assert.Equal(t, float64(0), stats["completionRate"])
		assert.Equal(t, float64(1), stats["currentStreak"])
		assert.Len(t, body["progress"], 1)
	}

	status, body = env.do(t, "GET", "/api/learning-path?course_id="+itoa(courseID), learner, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["current_index"])
	assert.Len(t, body["lessons"], 2)
}

func TestDiscussionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, ana := env.userToken(t, "ana", false)
	_, bia := env.userToken(t, "bia", false)
	_, adminToken := env.userToken(t, "root", true)

	status, body := env.do(t, "POST", "/api/discussions", ana, fiber.Map{"title": "Dúvida", "content": "Como somar frações?"})
	require.Equal(t, fiber.StatusCreated, status, body)
	discussion := idOf(t, body, "discussion")
	path := "/api/discussions/" + itoa(discussion)

	status, body = env.do(t, "POST", path+"/like", bia, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(1), body["likes_count"])

	status, body = env.do(t, "POST", path+"/like", bia, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["liked"])
	assert.Equal(t, float64(0), body["likes_count"])

	status, _ = env.do(t, "POST", path+"/replies", bia, fiber.Map{"content": "Use o MMC"})
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = env.do(t, "PUT", "/api/admin/discussions/"+itoa(discussion)+"/lock", adminToken, fiber.Map{"value": true})
	require.Equal(t, fiber.StatusOK, status)
	status, _ = env.do(t, "POST", path+"/replies", bia, fiber.Map{"content": "mais uma"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = env.do(t, "GET", path, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["discussion"].(map[string]interface{})["replies_count"])

	status, _ = env.do(t, "DELETE", path, bia, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = env.do(t, "DELETE", path, ana, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestFriendEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ana, anaToken := env.userToken(t, "ana", false)
	bia, biaToken := env.userToken(t, "bia", false)

	status, body := env.do(t, "POST", "/api/friends/request", anaToken, fiber.Map{"friend_id": bia.ID})
	require.Equal(t, fiber.StatusCreated, status, body)
	request := idOf(t, body, "request")

	status, _ = env.do(t, "POST", "/api/friends/request", anaToken, fiber.Map{"friend_id": ana.ID})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = env.do(t, "GET", "/api/friends/requests", biaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["requests"], 1)

	status, _ = env.do(t, "POST", "/api/friends/accept", biaToken, fiber.Map{"request_id": request})
	require.Equal(t, fiber.StatusOK, status)

	status, body = env.do(t, "GET", "/api/friends", anaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = env.do(t, "GET", "/api/leaderboard/friends", anaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["entries"], 2)

	status, body = env.do(t, "GET", "/api/users/search?q=bi", anaToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["users"], 1)
}

func TestClientRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/auth", "/course/3", "/lesson/7", "/profile", "/practice", "/community", "/enem", "/subjects"} {
		resp, err := env.app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(raw), "studyhub", path)
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/mathematics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/subjects", resp.Header.Get("Location"))

	status, body := env.do(t, "GET", "/api/does-not-exist", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, body["success"])

	resp, err = env.app.Test(httptest.NewRequest("GET", "/nowhere", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGroupEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.userToken(t, "dona", false)
	_, member := env.userToken(t, "edu", false)

	status, body := env.do(t, "POST", "/api/groups", owner, fiber.Map{"name": "ENEM 2026", "category": "enem"})
	require.Equal(t, fiber.StatusCreated, status, body)
	groupID := idOf(t, body, "group")
	code := body["group"].(map[string]interface{})["invite_code"].(string)
	require.NotEmpty(t, code)

	status, body = env.do(t, "GET", "/api/groups/public", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["groups"], 1)

	status, _ = env.do(t, "POST", "/api/groups/join", member, fiber.Map{"invite_code": code})
	assert.Equal(t, fiber.StatusOK, status)
	status, body = env.do(t, "POST", "/api/groups/join", member, fiber.Map{"invite_code": code})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])

	status, body = env.do(t, "GET", "/api/groups/"+itoa(groupID)+"/members", member, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["members"], 2)

	status, _ = env.do(t, "POST", "/api/groups/"+itoa(groupID)+"/messages", member, fiber.Map{"content": "Bora estudar?"})
	assert.Equal(t, fiber.StatusCreated, status)
	status, body = env.do(t, "GET", "/api/groups/"+itoa(groupID)+"/messages", owner, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["messages"], 1)

	status, _ = env.do(t, "DELETE", "/api/groups/"+itoa(groupID), member, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = env.do(t, "POST", "/api/groups/"+itoa(groupID)+"/leave", owner, nil)
	assert.Equal(t, fiber.StatusConflict, status, "owner must transfer first")

	status, body = env.do(t, "GET", "/api/groups", member, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["groups"], 1)

	status, _ = env.do(t, "GET", "/api/groups", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLeaderboardAndMaintenance(t *testing.T) {
	env := newTestEnv(t)
	top, _ := env.userToken(t, "fabi", false)
	_, learner := env.userToken(t, "gui", false)
	_, adminToken := env.userToken(t, "root", true)
	require.NoError(t, env.db.Model(&models.Profile{}).Where("user_id = ?", top.ID).Update("xp", 500).Error)

	status, body := env.do(t, "GET", "/api/leaderboard", "", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	entries := body["entries"].([]interface{})
	require.NotEmpty(t, entries)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, float64(top.ID), first["user_id"])
	assert.Equal(t, float64(1), first["rank"])

	status, body = env.do(t, "GET", "/api/leaderboard/user/"+itoa(top.ID), "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["rank"])

	status, _ = env.do(t, "POST", "/api/admin/maintenance/reset-streaks", learner, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body = env.do(t, "POST", "/api/admin/maintenance/reset-streaks", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Contains(t, body, "reset")
	status, _ = env.do(t, "POST", "/api/admin/maintenance/refresh-leaderboard", adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = env.do(t, "GET", "/api/admin/achievements", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["achievements"])
}

func TestRevokedAdminLosesAccessWithOldToken(t *testing.T) {
	env := newTestEnv(t)
	_, rootToken := env.userToken(t, "root", true)
	deputy, deputyToken := env.userToken(t, "vice", true)

	status, _ := env.do(t, "GET", "/api/admin/users", deputyToken, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := env.do(t, "PUT", "/api/admin/users/"+itoa(deputy.ID)+"/admin", rootToken, fiber.Map{"is_admin": false})
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = env.do(t, "GET", "/api/admin/users", deputyToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = env.do(t, "POST", "/api/admin/courses", deputyToken, fiber.Map{"name": "Física"})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
