// models/social.go - Friends and discussions
package models

import "time"

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendBlocked  FriendStatus = "blocked"
)

// Friendship is directed: UserID sent the request (or blocked), FriendID received it.
type Friendship struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	UserID    uint         `json:"user_id" gorm:"not null;uniqueIndex:idx_friend_pair"`
	FriendID  uint         `json:"friend_id" gorm:"not null;uniqueIndex:idx_friend_pair;index"`
	Status    FriendStatus `json:"status" gorm:"not null;default:'pending';size:20"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type Discussion struct {
	ID           uint              `json:"id" gorm:"primaryKey"`
	UserID       uint              `json:"user_id" gorm:"not null;index"`
	Title        string            `json:"title" gorm:"not null;size:200"`
	Content      string            `json:"content" gorm:"not null;type:text"`
	Category     string            `json:"category" gorm:"not null;default:'geral';size:50;index"`
	Tags         []string          `json:"tags" gorm:"serializer:json;type:text"`
	LikesCount   int               `json:"likes_count" gorm:"not null;default:0"`
	RepliesCount int               `json:"replies_count" gorm:"not null;default:0"`
	IsPinned     bool              `json:"is_pinned" gorm:"default:false"`
	IsLocked     bool              `json:"is_locked" gorm:"default:false"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Replies      []DiscussionReply `json:"replies,omitempty" gorm:"foreignKey:DiscussionID"`
}

type DiscussionLike struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_discussion_like_pair"`
	DiscussionID uint      `json:"discussion_id" gorm:"not null;uniqueIndex:idx_discussion_like_pair;index"`
	CreatedAt    time.Time `json:"created_at"`
}

type DiscussionReply struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	DiscussionID  uint      `json:"discussion_id" gorm:"not null;index"`
	UserID        uint      `json:"user_id" gorm:"not null;index"`
	ParentReplyID *uint     `json:"parent_reply_id" gorm:"index"`
	Content       string    `json:"content" gorm:"not null;type:text"`
	LikesCount    int       `json:"likes_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ReplyLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_reply_like_pair"`
	ReplyID   uint      `json:"reply_id" gorm:"not null;uniqueIndex:idx_reply_like_pair;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (Friendship) TableName() string {
	return "user_friends"
}

func (Discussion) TableName() string {
	return "discussions"
}

func (DiscussionLike) TableName() string {
	return "discussion_likes"
}

func (DiscussionReply) TableName() string {
	return "discussion_replies"
}

func (ReplyLike) TableName() string {
	return "reply_likes"
}
