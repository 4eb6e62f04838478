// models/study_group.go
package models

import "time"

type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

type StudyGroup struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	Name        string        `json:"name" gorm:"not null;size:100"`
	Description string        `json:"description" gorm:"type:text"`
	Category    string        `json:"category" gorm:"size:50;index"`
	CreatorID   uint          `json:"creator_id" gorm:"not null"`
	InviteCode  string        `json:"invite_code" gorm:"uniqueIndex;size:12"`
	IsPublic    bool          `json:"is_public" gorm:"default:true;index"`
	MaxMembers  int           `json:"max_members" gorm:"default:50"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Members     []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`
}

type GroupMember struct {
	ID       uint        `json:"id" gorm:"primaryKey"`
	GroupID  uint        `json:"group_id" gorm:"not null;uniqueIndex:idx_group_member_pair"`
	Group    *StudyGroup `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	UserID   uint        `json:"user_id" gorm:"not null;uniqueIndex:idx_group_member_pair;index"`
	Role     GroupRole   `json:"role" gorm:"not null;default:'member';size:20"`
	JoinedAt time.Time   `json:"joined_at" gorm:"not null"`
}

type GroupMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	GroupID     uint      `json:"group_id" gorm:"not null;index"`
	UserID      uint      `json:"user_id" gorm:"not null"`
	Content     string    `json:"content" gorm:"not null;type:text"`
	MessageType string    `json:"message_type" gorm:"default:'text';size:20"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (StudyGroup) TableName() string {
	return "study_groups"
}

func (GroupMember) TableName() string {
	return "group_members"
}

func (GroupMessage) TableName() string {
	return "group_messages"
}
