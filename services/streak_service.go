// services/streak_service.go - Daily study streaks
package services

import (
	"context"
	"errors"
	"time"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/progression"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStreakService(db *gorm.DB, log *zap.Logger) *StreakService {
	return &StreakService{db: db, log: log}
}

// Get returns a zero streak when the learner never studied.
func (s *StreakService) Get(ctx context.Context, userID uint) (*models.Streak, error) {
	var streak models.Streak
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load streak", err)
	}
	return &streak, nil
}

// RecordActivity counts a study action at now. It keeps the profile's
// current_streak equal to the streak row.
func (s *StreakService) RecordActivity(ctx context.Context, tx *gorm.DB, userID uint, now time.Time) (*models.Streak, error) {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	streak := models.Streak{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&streak).Error; err != nil {
		return nil, apperrors.Internal("Failed to create streak", err)
	}
	if err := tx.Where("user_id = ?", userID).First(&streak).Error; err != nil {
		return nil, apperrors.Internal("Failed to load streak", err)
	}

	current, longest, changed := progression.NextStreak(streak.CurrentDays, streak.LongestDays, streak.LastActivityDate, now)
	if !changed {
		return &streak, nil
	}

	today := now.UTC()
	streak.CurrentDays = current
	streak.LongestDays = longest
	streak.LastActivityDate = &today
	if err := tx.Model(&models.Streak{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"current_days":       current,
		"longest_days":       longest,
		"last_activity_date": today,
	}).Error; err != nil {
		return nil, apperrors.Internal("Failed to update streak", err)
	}
	if err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).
		Update("current_streak", current).Error; err != nil {
		return nil, apperrors.Internal("Failed to update profile streak", err)
	}
	return &streak, nil
}

// ResetLapsed zeroes every streak with no activity today or yesterday and
// returns how many were reset.
func (s *StreakService) ResetLapsed(ctx context.Context, now time.Time) (int64, error) {
	u := now.UTC()
	cutoff := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	var reset int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lapsed := tx.Model(&models.Streak{}).Select("user_id").
			Where("current_days > 0 AND (last_activity_date IS NULL OR last_activity_date < ?)", cutoff)

		if err := tx.Model(&models.Profile{}).Where("user_id IN (?)", lapsed).
			Update("current_streak", 0).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Streak{}).
			Where("current_days > 0 AND (last_activity_date IS NULL OR last_activity_date < ?)", cutoff).
			Update("current_days", 0)
		if res.Error != nil {
			return res.Error
		}
		reset = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperrors.Internal("Failed to reset streaks", err)
	}
	if reset > 0 {
		s.log.Info("🔥 Reset lapsed streaks", zap.Int64("count", reset))
	}
	return reset, nil
}
