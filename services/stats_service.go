// services/stats_service.go - Learner dashboard stats
package services

import (
	"context"
	"math"

	"studyhub/apperrors"
	"studyhub/models"

	"gorm.io/gorm"
)

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

type StatsSummary struct {
	CompletedLessons int `json:"completedLessons"`
	TotalLessons     int `json:"totalLessons"`
	CompletionRate   int `json:"completionRate"`
	TotalXP          int `json:"totalXP"`
	CurrentStreak    int `json:"currentStreak"`
	MaxStreak        int `json:"maxStreak"`
	Achievements     int `json:"achievements"`
}

type UserStats struct {
	Profile      *models.Profile         `json:"profile"`
	Stats        StatsSummary            `json:"stats"`
	Achievements []models.Achievement    `json:"achievements"`
	Progress     []models.ProgressRecord `json:"progress"`
}

// UserStats aggregates the dashboard for one learner. XP already includes
// achievement bonuses, which are credited when granted.
func (s *StatsService) UserStats(ctx context.Context, userID uint) (*UserStats, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	db := s.db.WithContext(ctx)

	out := &UserStats{Achievements: []models.Achievement{}, Progress: []models.ProgressRecord{}}

	var profile models.Profile
	res := db.Where("user_id = ?", userID).Limit(1).Find(&profile)
	if res.Error != nil {
		return nil, apperrors.Internal("Failed to load profile", res.Error)
	}
	if res.RowsAffected > 0 {
		out.Profile = &profile
		out.Stats.TotalXP = profile.XP
		out.Stats.CurrentStreak = profile.CurrentStreak
	}

	var streak models.Streak
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&streak).Error; err != nil {
		return nil, apperrors.Internal("Failed to load streak", err)
	}
	out.Stats.MaxStreak = streak.LongestDays
	if streak.CurrentDays > out.Stats.CurrentStreak {
		out.Stats.CurrentStreak = streak.CurrentDays
	}

	if err := db.Where("user_id = ?", userID).Order("lesson_id ASC").Find(&out.Progress).Error; err != nil {
		return nil, apperrors.Internal("Failed to load progress", err)
	}
	for _, p := range out.Progress {
		if p.Completed {
			out.Stats.CompletedLessons++
		}
	}

	var total int64
	if err := db.Model(&models.Lesson{}).Count(&total).Error; err != nil {
		return nil, apperrors.Internal("Failed to count lessons", err)
	}
	out.Stats.TotalLessons = int(total)
	out.Stats.CompletionRate = completionRate(out.Stats.CompletedLessons, out.Stats.TotalLessons)

	if err := db.Where("user_id = ?", userID).Order("earned_at DESC").Find(&out.Achievements).Error; err != nil {
		return nil, apperrors.Internal("Failed to load achievements", err)
	}
	out.Stats.Achievements = len(out.Achievements)
	return out, nil
}

func completionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
