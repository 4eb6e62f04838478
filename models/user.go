// models/user.go
package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:50" json:"username"`
	Email     *string   `gorm:"uniqueIndex" json:"email,omitempty"`
	Password  string    `gorm:"not null" json:"-"`
	IsGuest   bool      `gorm:"default:false" json:"is_guest"`
	IsAdmin   bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastLogin time.Time `json:"last_login"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// Profile is the learner-facing side of a user. XP and the current streak
// live here so the stats and leaderboard reads stay on one table.
type Profile struct {
	UserID        uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Name          string    `gorm:"not null;size:100" json:"name"`
	Bio           *string   `gorm:"type:text" json:"bio"`
	Avatar        *string   `gorm:"size:500" json:"avatar"`
	XP            int       `gorm:"not null;default:0;check:xp >= 0" json:"xp"`
	CurrentStreak int       `gorm:"not null;default:0;check:current_streak >= 0" json:"current_streak"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (Profile) TableName() string {
	return "users_profile"
}
