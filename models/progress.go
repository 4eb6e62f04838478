// models/progress.go - Per-learner progress, attempt log and streaks
package models

import "time"

// ProgressRecord is the ledger row for one (user, lesson) pair.
type ProgressRecord struct {
	ID                   uint       `json:"id" gorm:"primaryKey"`
	UserID               uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_progress_user_lesson"`
	LessonID             uint       `json:"lesson_id" gorm:"not null;uniqueIndex:idx_progress_user_lesson;index"`
	Lesson               *Lesson    `json:"lesson,omitempty" gorm:"foreignKey:LessonID"`
	AttemptCount         int        `json:"attempt_count" gorm:"not null;default:0"`
	CorrectCount         int        `json:"correct_count" gorm:"not null;default:0"`
	ConsecutiveCorrect   int        `json:"consecutive_correct" gorm:"not null;default:0"`
	MasteryScore         float64    `json:"mastery_score" gorm:"not null;default:0"`
	IsUnlocked           bool       `json:"is_unlocked" gorm:"default:false"`
	HintUsage            int        `json:"hint_usage" gorm:"not null;default:0"`
	TimePerProblem       float64    `json:"time_per_problem" gorm:"default:0"`
	TimedAttempts        int        `json:"timed_attempts" gorm:"not null;default:0"` // attempts averaged into TimePerProblem
	ComfortZoneIndicator float64    `json:"comfort_zone_indicator" gorm:"default:0"`
	Completed            bool       `json:"completed" gorm:"default:false;index"`
	CompletedAt          *time.Time `json:"completed_at"`
	LastAccessedAt       time.Time  `json:"last_accessed_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AnswerAttempt is the append-only submission log.
type AnswerAttempt struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	ExerciseID uint      `json:"exercise_id" gorm:"not null;index"`
	Exercise   *Exercise `json:"exercise,omitempty" gorm:"foreignKey:ExerciseID"`
	LessonID   uint      `json:"lesson_id" gorm:"not null;index"`
	UserAnswer string    `json:"user_answer" gorm:"type:text"`
	IsCorrect  bool      `json:"is_correct" gorm:"index"`
	TimeSpent  int       `json:"time_spent" gorm:"default:0"` // in seconds
	HintsUsed  int       `json:"hints_used" gorm:"default:0"`
	XPEarned   int       `json:"xp_earned" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

type Streak struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex"`
	CurrentDays      int        `json:"current_days" gorm:"not null;default:0"`
	LongestDays      int        `json:"longest_days" gorm:"not null;default:0"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (ProgressRecord) TableName() string {
	return "user_progress"
}

func (AnswerAttempt) TableName() string {
	return "answer_attempts"
}

func (Streak) TableName() string {
	return "streaks"
}
