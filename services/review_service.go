// services/review_service.go - Review of incorrectly answered exercises
package services

import (
	"context"
	"time"

	"studyhub/apperrors"
	"studyhub/models"

	"gorm.io/gorm"
)

type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

type ReviewFilter struct {
	Subject    string
	Difficulty string
	Limit      int
}

// ReviewItem is a wrong attempt with the context needed to study it. The
// correct answer is included since the attempt was already made.
type ReviewItem struct {
	AttemptID     uint      `json:"attempt_id"`
	ExerciseID    uint      `json:"exercise_id"`
	LessonID      uint      `json:"lesson_id"`
	LessonTitle   string    `json:"lesson_title"`
	Subject       string    `json:"subject"`
	Prompt        string    `json:"prompt"`
	Difficulty    string    `json:"difficulty"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	AnsweredAt    time.Time `json:"answered_at"`
}

func (s *ReviewService) IncorrectAnswers(ctx context.Context, userID uint, filter ReviewFilter) ([]ReviewItem, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.AnswerAttempt{}).
		Select(`answer_attempts.id AS attempt_id, answer_attempts.exercise_id, answer_attempts.lesson_id,
			lessons.title AS lesson_title, COALESCE(courses.name, lessons.category) AS subject,
			exercises.prompt, exercises.difficulty, answer_attempts.user_answer,
			exercises.correct_answer, exercises.explanation, answer_attempts.created_at AS answered_at`).
		Joins("JOIN exercises ON exercises.id = answer_attempts.exercise_id").
		Joins("JOIN lessons ON lessons.id = answer_attempts.lesson_id").
		Joins("LEFT JOIN courses ON courses.id = lessons.course_id").
		Where("answer_attempts.user_id = ? AND answer_attempts.is_correct = ?", userID, false)

	if filter.Subject != "" {
		q = q.Where("COALESCE(courses.name, lessons.category) = ?", filter.Subject)
	}
	if filter.Difficulty != "" {
		q = q.Where("exercises.difficulty = ?", filter.Difficulty)
	}

	var items []ReviewItem
	if err := q.Order("answer_attempts.created_at DESC, answer_attempts.id DESC").Limit(limit).Scan(&items).Error; err != nil {
		return nil, apperrors.Internal("Failed to load review items", err)
	}
	if items == nil {
		items = []ReviewItem{}
	}
	return items, nil
}
