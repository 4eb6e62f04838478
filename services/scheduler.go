// services/scheduler.go - Background jobs (streak resets, leaderboard refresh)
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const (
	leaderboardRefreshEvery = 10 * time.Minute
	jobTimeout              = 2 * time.Minute
)

// Scheduler runs the periodic maintenance jobs in UTC.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	streaks     *StreakService
	leaderboard *LeaderboardService
	log         *zap.Logger
	resetAt     string
}

// NewScheduler builds the scheduler. resetAt is the daily streak reset time
// as HH:MM.
func NewScheduler(svcs *Services, resetAt string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		streaks:     svcs.Streaks,
		leaderboard: svcs.Leaderboard,
		log:         log,
		resetAt:     resetAt,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.resetAt).Do(s.resetStreaks); err != nil {
		return fmt.Errorf("schedule streak reset: %w", err)
	}
	if _, err := s.scheduler.Every(leaderboardRefreshEvery).WaitForSchedule().Do(s.refreshLeaderboard); err != nil {
		return fmt.Errorf("schedule leaderboard refresh: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("⏰ Scheduler started", zap.String("streak_reset_at", s.resetAt))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) resetStreaks() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.streaks.ResetLapsed(ctx, time.Now().UTC()); err != nil {
		s.log.Error("streak reset failed", zap.Error(err))
	}
}

func (s *Scheduler) refreshLeaderboard() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.leaderboard.Refresh(ctx); err != nil {
		s.log.Error("leaderboard refresh failed", zap.Error(err))
	}
}
