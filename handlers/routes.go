// handlers/routes.go - Route table
package handlers

import (
	"studyhub/handlers/admin"
	"studyhub/middleware"

	"github.com/gofiber/fiber/v2"
)

// RouteOptions carries what the route table needs beyond the handlers.
type RouteOptions struct {
	RateLimit *middleware.RateLimit
	StaticDir string
}

// SetupRoutes registers the functions endpoints, the REST API, admin routes
// and the client routes. Init must have run first. The not-found handler is
// not registered here so callers can mount more routes before it.
func SetupRoutes(app *fiber.App, opts RouteOptions) {
	required := authn.Required()
	optional := authn.Optional()

	// Functions
	functions := app.Group("/functions/v1", required)
	functions.Post("/submit-answer", SubmitAnswer)
	functions.Get("/get-user-stats", GetUserStats)
	functions.Post("/get-user-stats", GetUserStats)

	api := app.Group("/api")

	// Auth
	authGroup := api.Group("/auth")
	if opts.RateLimit != nil {
		authGroup.Use(opts.RateLimit.Auth())
	}
	authGroup.Post("/guest", GuestLogin)
	authGroup.Post("/login", Login)
	authGroup.Post("/register", Register)
	authGroup.Post("/upgrade", required, UpgradeGuest)
	authGroup.Get("/me", required, GetCurrentUser)

	api.Get("/profile", required, GetProfile)
	api.Put("/profile", required, UpdateProfile)

	// Catalog
	api.Get("/courses", GetCourses)
	api.Get("/courses/:id", GetCourse)
	api.Get("/lessons", GetLessons)
	api.Get("/lessons/:id", optional, GetLesson)
	api.Get("/lessons/:id/prerequisites", GetLessonPrerequisites)
	api.Post("/lessons/:id/open", required, OpenLesson)
	api.Get("/learning-path", required, GetLearningPath)
	api.Get("/exercises/:id/hints", optional, GetHints)
	api.Post("/exercises/:id/hints/use", required, UseHint)

	// Progress
	api.Get("/progress", required, GetProgress)
	api.Post("/progress/submit", required, SubmitProgress)
	api.Get("/achievements", required, GetAchievements)
	api.Get("/streak", required, GetStreak)
	api.Get("/review/incorrect", required, GetIncorrectAnswers)

	// Friends
	friendGroup := api.Group("/friends", required)
	friendGroup.Get("/", GetFriends)
	friendGroup.Get("/requests", GetFriendRequests)
	friendGroup.Post("/request", SendFriendRequest)
	friendGroup.Post("/accept", AcceptFriendRequest)
	friendGroup.Post("/decline", DeclineFriendRequest)
	friendGroup.Post("/block", BlockUser)
	friendGroup.Delete("/:id", RemoveFriend)

	// Discussions
	api.Get("/discussions", optional, GetDiscussions)
	api.Get("/discussions/:id", optional, GetDiscussion)
	api.Post("/discussions", required, CreateDiscussion)
	api.Delete("/discussions/:id", required, DeleteDiscussion)
	api.Post("/discussions/:id/like", required, ToggleDiscussionLike)
	api.Post("/discussions/:id/replies", required, CreateReply)
	api.Post("/replies/:id/like", required, ToggleReplyLike)

	// Study groups
	api.Get("/groups/public", GetPublicGroups)
	groupGroup := api.Group("/groups", required)
	groupGroup.Get("/", GetUserGroups)
	groupGroup.Post("/", CreateGroup)
	groupGroup.Post("/join", JoinGroup)
	groupGroup.Get("/:id", GetGroup)
	groupGroup.Delete("/:id", DeleteGroup)
	groupGroup.Post("/:id/leave", LeaveGroup)
	groupGroup.Put("/:id/transfer", TransferOwnership)
	groupGroup.Get("/:id/members", GetGroupMembers)
	groupGroup.Get("/:id/messages", GetGroupMessages)
	groupGroup.Post("/:id/messages", PostGroupMessage)

	// Users
	api.Get("/users/search", required, SearchUsers)
	api.Get("/users/:id", GetUserProfile)
	api.Get("/stats/online", GetOnlineCount)

	// Leaderboard
	api.Get("/leaderboard", GetLeaderboard)
	api.Get("/leaderboard/friends", required, GetFriendsLeaderboard)
	api.Get("/leaderboard/user/:id", GetUserRank)

	// Admin
	adminGroup := api.Group("/admin", authn.Admin())
	adminGroup.Get("/users", admin.GetUsers)
	adminGroup.Get("/users/:id", admin.GetUser)
	adminGroup.Put("/users/:id/admin", admin.SetAdmin)
	adminGroup.Get("/achievements", admin.GetAchievements)
	adminGroup.Post("/courses", admin.CreateCourse)
	adminGroup.Put("/courses/:id", admin.UpdateCourse)
	adminGroup.Delete("/courses/:id", admin.DeleteCourse)
	adminGroup.Post("/lessons", admin.CreateLesson)
	adminGroup.Put("/lessons/:id", admin.UpdateLesson)
	adminGroup.Delete("/lessons/:id", admin.DeleteLesson)
	adminGroup.Put("/lessons/:id/prerequisites", admin.SetPrerequisites)
	adminGroup.Post("/exercises", admin.CreateExercise)
	adminGroup.Put("/exercises/:id", admin.UpdateExercise)
	adminGroup.Delete("/exercises/:id", admin.DeleteExercise)
	adminGroup.Post("/hints", admin.CreateHint)
	adminGroup.Delete("/hints/:id", admin.DeleteHint)
	adminGroup.Put("/discussions/:id/pin", admin.PinDiscussion)
	adminGroup.Put("/discussions/:id/lock", admin.LockDiscussion)
	adminGroup.Delete("/discussions/:id", admin.DeleteDiscussion)
	adminGroup.Post("/maintenance/reset-streaks", admin.ResetStreaks)
	adminGroup.Post("/maintenance/refresh-leaderboard", admin.RefreshLeaderboard)

	RegisterClientRoutes(app, opts.StaticDir)
}
