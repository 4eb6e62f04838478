// models/achievement.go
package models

import "time"

type AchievementType string

const (
	AchievementFirstLesson   AchievementType = "first_lesson"
	AchievementStreak7       AchievementType = "streak_7"
	AchievementStreak30      AchievementType = "streak_30"
	AchievementMathMaster    AchievementType = "math_master"
	AchievementPhysicsExpert AchievementType = "physics_expert"
	AchievementChemistryPro  AchievementType = "chemistry_pro"
	AchievementBiologyAce    AchievementType = "biology_ace"
)

// Achievement is a grant. (user_id, type) is unique, so a type is earned once.
type Achievement struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;uniqueIndex:idx_achievement_user_type" json:"user_id"`
	Type            AchievementType `gorm:"not null;size:50;uniqueIndex:idx_achievement_user_type" json:"type"`
	Title           string          `gorm:"not null;size:100" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	XPBonus         int             `gorm:"default:0" json:"xp_bonus"`
	Secret          bool            `gorm:"default:false" json:"secret"`
	ProgressCurrent int             `gorm:"default:0" json:"progress_current"`
	ProgressTarget  int             `gorm:"default:0" json:"progress_target"`
	EarnedAt        time.Time       `json:"earned_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}
