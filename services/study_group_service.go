// services/study_group_service.go - Study groups, membership and group chat
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	inviteCodeLength     = 8
	maxInviteCodeRetries = 5
	defaultGroupLimit    = 50
)

type StudyGroupService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewStudyGroupService(db *gorm.DB, notifier Notifier) *StudyGroupService {
	return &StudyGroupService{db: db, notifier: notifier}
}

type GroupInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"max=50"`
	IsPublic    *bool  `json:"is_public"`
	MaxMembers  int    `json:"max_members" validate:"omitempty,min=2,max=500"`
}

type GroupView struct {
	models.StudyGroup
	MemberCount int `json:"member_count"`
}

type MemberView struct {
	UserID   uint             `json:"user_id"`
	Role     models.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joined_at"`
	Profile  *AuthorSummary   `json:"profile"`
}

type MessageView struct {
	models.GroupMessage
	Author *AuthorSummary `json:"author"`
}

// ================== GROUP CRUD OPERATIONS ==================

// Create stores the group and makes the creator its owner.
func (s *StudyGroupService) Create(ctx context.Context, creatorID uint, in GroupInput) (*models.StudyGroup, error) {
	if creatorID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("Validation failed", "name is required")
	}
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	maxMembers := in.MaxMembers
	if maxMembers <= 0 {
		maxMembers = defaultGroupLimit
	}

	group := &models.StudyGroup{
		Name:        name,
		Description: in.Description,
		Category:    in.Category,
		CreatorID:   creatorID,
		IsPublic:    isPublic,
		MaxMembers:  maxMembers,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := uniqueInviteCode(tx)
		if err != nil {
			return err
		}
		group.InviteCode = code
		if err := tx.Create(group).Error; err != nil {
			return apperrors.Internal("Failed to create group", err)
		}
		// IsPublic=false is a zero value and would otherwise take the column default
		if !isPublic {
			if err := tx.Model(group).Update("is_public", false).Error; err != nil {
				return apperrors.Internal("Failed to create group", err)
			}
		}
		owner := models.GroupMember{GroupID: group.ID, UserID: creatorID, Role: models.GroupRoleOwner, JoinedAt: time.Now().UTC()}
		if err := tx.Create(&owner).Error; err != nil {
			return apperrors.Internal("Failed to add group owner", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *StudyGroupService) Get(ctx context.Context, groupID uint) (*GroupView, error) {
	db := s.db.WithContext(ctx)
	var group models.StudyGroup
	if err := db.First(&group, groupID).Error; err != nil {
		return nil, notFoundOr(err, "Group")
	}
	counts, err := memberCounts(db, []uint{groupID})
	if err != nil {
		return nil, err
	}
	return &GroupView{StudyGroup: group, MemberCount: counts[groupID]}, nil
}

// Delete removes the group with its members and messages. Owner only.
func (s *StudyGroupService) Delete(ctx context.Context, userID, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := membership(tx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil || member.Role != models.GroupRoleOwner {
			return apperrors.Forbidden("Only the group owner can delete the group")
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMessage{}).Error; err != nil {
			return apperrors.Internal("Failed to delete messages", err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return apperrors.Internal("Failed to delete members", err)
		}
		if err := tx.Delete(&models.StudyGroup{}, groupID).Error; err != nil {
			return apperrors.Internal("Failed to delete group", err)
		}
		return nil
	})
}

// ================== MEMBERSHIP OPERATIONS ==================

// Join adds the user to the group behind an invite code.
func (s *StudyGroupService) Join(ctx context.Context, userID uint, inviteCode string) (*models.StudyGroup, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, apperrors.Validation("Validation failed", "invite_code is required")
	}

	var group models.StudyGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invite_code = ?", code).First(&group).Error; err != nil {
			return notFoundOr(err, "Group")
		}
		existing, err := membership(tx, group.ID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Conflict("Already a member of this group")
		}
		counts, err := memberCounts(tx, []uint{group.ID})
		if err != nil {
			return err
		}
		if counts[group.ID] >= group.MaxMembers {
			return apperrors.Conflict("Group is full")
		}
		member := models.GroupMember{GroupID: group.ID, UserID: userID, Role: models.GroupRoleMember, JoinedAt: time.Now().UTC()}
		if err := tx.Create(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("Already a member of this group")
			}
			return apperrors.Internal("Failed to join group", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Leave removes the user. The owner must transfer ownership first.
func (s *StudyGroupService) Leave(ctx context.Context, userID, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := membership(tx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.NotFound("Membership")
		}
		if member.Role == models.GroupRoleOwner {
			return apperrors.Conflict("Group owner must transfer ownership before leaving")
		}
		return tx.Delete(member).Error
	})
}

// TransferOwnership makes another member the owner and demotes the current
// owner to admin.
func (s *StudyGroupService) TransferOwnership(ctx context.Context, groupID, ownerID, newOwnerID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := membership(tx, groupID, ownerID)
		if err != nil {
			return err
		}
		if owner == nil || owner.Role != models.GroupRoleOwner {
			return apperrors.Forbidden("Only the group owner can transfer ownership")
		}
		target, err := membership(tx, groupID, newOwnerID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperrors.Validation("Invalid transfer", "new owner must be a group member")
		}

		if err := tx.Model(owner).Update("role", models.GroupRoleAdmin).Error; err != nil {
			return apperrors.Internal("Failed to demote owner", err)
		}
		if err := tx.Model(target).Update("role", models.GroupRoleOwner).Error; err != nil {
			return apperrors.Internal("Failed to promote owner", err)
		}
		return tx.Model(&models.StudyGroup{}).Where("id = ?", groupID).Update("creator_id", newOwnerID).Error
	})
}

// Members lists owner first, then admins, then members by join date.
func (s *StudyGroupService) Members(ctx context.Context, groupID uint) ([]MemberView, error) {
	db := s.db.WithContext(ctx)
	var members []models.GroupMember
	err := db.Where("group_id = ?", groupID).
		Order("CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to load members", err)
	}

	ids := make([]uint, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	summaries, err := loadSummaries(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]MemberView, len(members))
	for i, m := range members {
		out[i] = MemberView{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt, Profile: summaryFor(summaries, m.UserID)}
	}
	return out, nil
}

// ================== DISCOVERY ==================

func (s *StudyGroupService) PublicGroups(ctx context.Context, category string, limit int) ([]GroupView, error) {
	if limit <= 0 {
		limit = defaultGroupLimit
	}
	q := s.db.WithContext(ctx).Where("is_public = ?", true).Order("created_at DESC").Limit(limit)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var groups []models.StudyGroup
	if err := q.Find(&groups).Error; err != nil {
		return nil, apperrors.Internal("Failed to load groups", err)
	}
	return s.withCounts(ctx, groups)
}

func (s *StudyGroupService) UserGroups(ctx context.Context, userID uint) ([]GroupView, error) {
	var groups []models.StudyGroup
	err := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = study_groups.id").
		Where("group_members.user_id = ?", userID).
		Order("study_groups.created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to load groups", err)
	}
	return s.withCounts(ctx, groups)
}

// ================== MESSAGES ==================

// PostMessage stores a message from a member and pushes it to the rest of
// the group.
func (s *StudyGroupService) PostMessage(ctx context.Context, userID, groupID uint, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("Validation failed", "content is required")
	}

	db := s.db.WithContext(ctx)
	var msg models.GroupMessage
	var recipients []uint
	err := db.Transaction(func(tx *gorm.DB) error {
		member, err := membership(tx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperrors.Forbidden("Only group members can post messages")
		}
		msg = models.GroupMessage{GroupID: groupID, UserID: userID, Content: content, MessageType: "text"}
		if err := tx.Create(&msg).Error; err != nil {
			return apperrors.Internal("Failed to post message", err)
		}
		return tx.Model(&models.GroupMember{}).Where("group_id = ? AND user_id <> ?", groupID, userID).
			Pluck("user_id", &recipients).Error
	})
	if err != nil {
		return nil, err
	}

	summaries, err := loadSummaries(db, []uint{userID})
	if err != nil {
		return nil, err
	}
	view := &MessageView{GroupMessage: msg, Author: summaryFor(summaries, userID)}
	s.notifier.SendToUsers(recipients, realtime.EventGroupMessage, view)
	return view, nil
}

// Messages returns the newest messages in chronological order. Members only.
func (s *StudyGroupService) Messages(ctx context.Context, userID, groupID uint, limit int) ([]MessageView, error) {
	db := s.db.WithContext(ctx)
	member, err := membership(db, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperrors.Forbidden("Only group members can read messages")
	}
	if limit <= 0 || limit > 200 {
		limit = defaultGroupLimit
	}

	var msgs []models.GroupMessage
	if err := db.Where("group_id = ?", groupID).Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, apperrors.Internal("Failed to load messages", err)
	}
	authorIDs := make([]uint, len(msgs))
	for i, m := range msgs {
		authorIDs[i] = m.UserID
	}
	summaries, err := loadSummaries(db, uniq(authorIDs))
	if err != nil {
		return nil, err
	}

	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = MessageView{GroupMessage: m, Author: summaryFor(summaries, m.UserID)}
	}
	return out, nil
}

// ================== HELPER FUNCTIONS ==================

func (s *StudyGroupService) withCounts(ctx context.Context, groups []models.StudyGroup) ([]GroupView, error) {
	ids := make([]uint, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	counts, err := memberCounts(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	out := make([]GroupView, len(groups))
	for i, g := range groups {
		out[i] = GroupView{StudyGroup: g, MemberCount: counts[g.ID]}
	}
	return out, nil
}

func membership(tx *gorm.DB, groupID, userID uint) (*models.GroupMember, error) {
	var m models.GroupMember
	res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, apperrors.Internal("Failed to load membership", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &m, nil
}

func memberCounts(db *gorm.DB, groupIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		GroupID uint
		Count   int
	}
	if err := db.Model(&models.GroupMember{}).Select("group_id, COUNT(*) AS count").
		Where("group_id IN ?", groupIDs).Group("group_id").Scan(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to count members", err)
	}
	for _, r := range rows {
		out[r.GroupID] = r.Count
	}
	return out, nil
}

// uniqueInviteCode draws short uppercase codes until one is unused.
func uniqueInviteCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxInviteCodeRetries; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:inviteCodeLength])
		var count int64
		if err := tx.Model(&models.StudyGroup{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", apperrors.Internal("Failed to check invite code", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", apperrors.Internal("Failed to generate invite code", nil)
}
