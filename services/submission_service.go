// services/submission_service.go - Answer submission
package services

import (
	"context"
	"errors"
	"time"

	"studyhub/apperrors"
	"studyhub/metrics"
	"studyhub/models"
	"studyhub/progression"
	"studyhub/realtime"
	"studyhub/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmitRequest struct {
	ExerciseID uint   `json:"exerciseId" validate:"required"`
	UserAnswer string `json:"userAnswer"`
	TimeSpent  int    `json:"timeSpent" validate:"min=0"`
	HintsUsed  int    `json:"hintsUsed" validate:"min=0"`
}

type SubmitResult struct {
	Correct         bool                 `json:"correct"`
	XPGained        int                  `json:"xpGained"`
	Explanation     string               `json:"explanation"`
	MasteryScore    float64              `json:"masteryScore"`
	Status          progression.Status   `json:"status"`
	Completed       bool                 `json:"completed"`
	NewAchievements []models.Achievement `json:"newAchievements"`
	BonusXP         int                  `json:"bonusXp"`
	CurrentStreak   int                  `json:"currentStreak"`
}

type SubmissionDeps struct {
	DB           *gorm.DB
	Ledger       *ProgressLedger
	Streaks      *StreakService
	Achievements *AchievementService
	Users        *UserService
	Leaderboard  *LeaderboardService
	Metrics      *metrics.Metrics
	Notifier     Notifier
	Log          *zap.Logger
}

type SubmissionService struct {
	SubmissionDeps
	now func() time.Time
}

func NewSubmissionService(d SubmissionDeps) *SubmissionService {
	return &SubmissionService{SubmissionDeps: d, now: func() time.Time { return time.Now().UTC() }}
}

// Submit grades one answer and applies everything it causes in a single
// transaction: progress counters and mastery, completion, XP, the daily
// streak, the attempt log, achievements and dependent unlocks. Events and
// metrics go out only after commit.
func (s *SubmissionService) Submit(ctx context.Context, userID uint, req SubmitRequest) (*SubmitResult, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	if req.ExerciseID == 0 {
		return nil, apperrors.Validation("Validation failed", "exerciseid is required")
	}
	if req.TimeSpent < 0 {
		req.TimeSpent = 0
	}
	if req.HintsUsed < 0 {
		req.HintsUsed = 0
	}

	var exercise models.Exercise
	if err := s.DB.WithContext(ctx).First(&exercise, req.ExerciseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Exercise")
		}
		return nil, apperrors.Internal("Failed to load exercise", err)
	}

	correct := utils.AnswersMatch(req.UserAnswer, exercise.CorrectAnswer)
	now := s.now()
	result := &SubmitResult{Correct: correct, Explanation: exercise.Explanation, NewAchievements: []models.Achievement{}}
	var lesson *models.Lesson
	newlyCompleted := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lesson, err = loadLesson(tx, exercise.LessonID)
		if err != nil {
			return err
		}

		before, err := s.Ledger.stateFor(ctx, tx, userID, *lesson)
		if err != nil {
			return err
		}
		if before.Status == progression.StatusLocked {
			return apperrors.Forbidden("Lesson is locked")
		}

		if err := s.Users.EnsureProfile(tx, userID); err != nil {
			return err
		}

		rec, err := s.Ledger.lockRecord(tx, userID, lesson.ID)
		if err != nil {
			return err
		}

		attempts := rec.AttemptCount + 1
		correctCount := rec.CorrectCount
		consecutive := 0
		if correct {
			correctCount++
			consecutive = rec.ConsecutiveCorrect + 1
		}
		hintUsage := rec.HintUsage + req.HintsUsed
		score := progression.MasteryScore(attempts, correctCount, consecutive)

		fields := map[string]interface{}{
			"attempt_count":          gorm.Expr("attempt_count + 1"),
			"hint_usage":             gorm.Expr("hint_usage + ?", req.HintsUsed),
			"mastery_score":          score,
			"comfort_zone_indicator": progression.ComfortZone(attempts, correctCount, hintUsage),
			"time_per_problem":       progression.RunningMean(rec.TimePerProblem, rec.TimedAttempts, float64(req.TimeSpent)),
			"is_unlocked":            true,
			"last_accessed_at":       now,
		}
		if req.TimeSpent > 0 {
			fields["timed_attempts"] = gorm.Expr("timed_attempts + 1")
		}
		if correct {
			fields["correct_count"] = gorm.Expr("correct_count + 1")
			fields["consecutive_correct"] = gorm.Expr("consecutive_correct + 1")
		} else {
			fields["consecutive_correct"] = 0
		}
		if !rec.Completed && progression.IsMastered(score, lesson.MasteryThreshold) {
			newlyCompleted = true
			fields["completed"] = true
			fields["completed_at"] = now
		}

		updated, err := s.Ledger.Upsert(ctx, tx, userID, lesson.ID, fields)
		if err != nil {
			return err
		}

		if correct {
			result.XPGained = lesson.XPReward
			if err := s.Users.AddXP(tx, userID, lesson.XPReward); err != nil {
				return err
			}
		}

		streak, err := s.Streaks.RecordActivity(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		result.CurrentStreak = streak.CurrentDays

		attempt := models.AnswerAttempt{
			UserID:     userID,
			ExerciseID: exercise.ID,
			LessonID:   lesson.ID,
			UserAnswer: req.UserAnswer,
			IsCorrect:  correct,
			TimeSpent:  req.TimeSpent,
			HintsUsed:  req.HintsUsed,
			XPEarned:   result.XPGained,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return apperrors.Internal("Failed to log attempt", err)
		}

		granted, err := s.Achievements.CheckAndGrant(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, a := range granted {
			result.BonusXP += a.XPBonus
		}
		result.NewAchievements = append(result.NewAchievements, granted...)

		if newlyCompleted {
			if err := s.Ledger.markDependentsUnlocked(ctx, tx, userID, lesson.ID); err != nil {
				return err
			}
		}

		after, err := s.Ledger.stateFor(ctx, tx, userID, *lesson)
		if err != nil {
			return err
		}
		result.MasteryScore = updated.MasteryScore
		result.Completed = updated.Completed
		result.Status = after.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, userID, lesson, result, newlyCompleted)
	return result, nil
}

func (s *SubmissionService) afterCommit(ctx context.Context, userID uint, lesson *models.Lesson, result *SubmitResult, newlyCompleted bool) {
	s.Metrics.AnswerSubmitted(result.Correct)
	s.Metrics.XPAwarded(result.XPGained + result.BonusXP)
	if newlyCompleted {
		s.Metrics.LessonCompleted()
		s.Notifier.SendToUser(userID, realtime.EventLessonCompleted, map[string]interface{}{
			"lesson_id":     lesson.ID,
			"title":         lesson.Title,
			"mastery_score": result.MasteryScore,
		})
		s.Log.Info("🎓 Lesson completed", zap.Uint("user_id", userID), zap.Uint("lesson_id", lesson.ID))
	}
	for _, a := range result.NewAchievements {
		s.Metrics.AchievementGranted(string(a.Type))
		s.Notifier.SendToUser(userID, realtime.EventAchievementUnlocked, a)
		s.Log.Info("🏆 Achievement unlocked", zap.Uint("user_id", userID), zap.String("type", string(a.Type)))
	}

	if result.XPGained+result.BonusXP > 0 || newlyCompleted {
		s.Leaderboard.Invalidate(ctx)
	}
}
