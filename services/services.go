// services/services.go - Service wiring
package services

import (
	"studyhub/cache"
	"studyhub/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier pushes events to connected learners. realtime.Hub implements it.
type Notifier interface {
	SendToUser(userID uint, msgType string, payload interface{})
	SendToUsers(userIDs []uint, msgType string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) SendToUser(uint, string, interface{})    {}
func (noopNotifier) SendToUsers([]uint, string, interface{}) {}

// Services holds every domain service built over one database handle.
type Services struct {
	Users        *UserService
	Catalog      *CatalogService
	Ledger       *ProgressLedger
	Streaks      *StreakService
	Achievements *AchievementService
	Submissions  *SubmissionService
	Stats        *StatsService
	Review       *ReviewService
	Friends      *FriendService
	Discussions  *DiscussionService
	Groups       *StudyGroupService
	Leaderboard  *LeaderboardService
}

type Deps struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Cache    *cache.LeaderboardCache
}

func New(d Deps) *Services {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}

	users := NewUserService(d.DB)
	ledger := NewProgressLedger(d.DB)
	streaks := NewStreakService(d.DB, d.Log)
	achievements := NewAchievementService(d.DB)
	leaderboard := NewLeaderboardService(d.DB, d.Cache, d.Log)

	return &Services{
		Users:        users,
		Catalog:      NewCatalogService(d.DB, ledger),
		Ledger:       ledger,
		Streaks:      streaks,
		Achievements: achievements,
		Submissions: NewSubmissionService(SubmissionDeps{
			DB:           d.DB,
			Ledger:       ledger,
			Streaks:      streaks,
			Achievements: achievements,
			Users:        users,
			Leaderboard:  leaderboard,
			Metrics:      d.Metrics,
			Notifier:     d.Notifier,
			Log:          d.Log,
		}),
		Stats:       NewStatsService(d.DB),
		Review:      NewReviewService(d.DB),
		Friends:     NewFriendService(d.DB, d.Notifier),
		Discussions: NewDiscussionService(d.DB, d.Notifier),
		Groups:      NewStudyGroupService(d.DB, d.Notifier),
		Leaderboard: leaderboard,
	}
}
