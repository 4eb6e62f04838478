// services/discussion_service.go - Community discussions, replies and likes
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/realtime"

	"gorm.io/gorm"
)

const DefaultDiscussionCategory = "geral"

type DiscussionService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewDiscussionService(db *gorm.DB, notifier Notifier) *DiscussionService {
	return &DiscussionService{db: db, notifier: notifier}
}

type DiscussionInput struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category" validate:"max=50"`
	Tags     []string `json:"tags" validate:"max=10,dive,max=30"`
}

type ReplyInput struct {
	Content       string `json:"content" validate:"required"`
	ParentReplyID *uint  `json:"parent_reply_id"`
}

type DiscussionView struct {
	models.Discussion
	Author  *AuthorSummary `json:"author"`
	Liked   bool           `json:"liked"`
	Replies []ReplyView    `json:"replies,omitempty"`
}

type ReplyView struct {
	models.DiscussionReply
	Author *AuthorSummary `json:"author"`
	Liked  bool           `json:"liked"`
}

type DiscussionFilter struct {
	Category string
	Limit    int
	Offset   int
}

func (s *DiscussionService) Create(ctx context.Context, userID uint, in DiscussionInput) (*DiscussionView, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, apperrors.Validation("Validation failed", "title and content are required")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultDiscussionCategory
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	d := models.Discussion{UserID: userID, Title: title, Content: content, Category: category, Tags: tags}
	db := s.db.WithContext(ctx)
	if err := db.Create(&d).Error; err != nil {
		return nil, apperrors.Internal("Failed to create discussion", err)
	}
	summaries, err := loadSummaries(db, []uint{userID})
	if err != nil {
		return nil, err
	}
	return &DiscussionView{Discussion: d, Author: summaryFor(summaries, userID)}, nil
}

// List returns pinned discussions first, then newest.
func (s *DiscussionService) List(ctx context.Context, viewerID uint, filter DiscussionFilter) ([]DiscussionView, error) {
	db := s.db.WithContext(ctx)
	q := db.Order("is_pinned DESC, created_at DESC, id DESC")
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []models.Discussion
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to load discussions", err)
	}

	authorIDs := make([]uint, len(rows))
	discussionIDs := make([]uint, len(rows))
	for i, d := range rows {
		authorIDs[i] = d.UserID
		discussionIDs[i] = d.ID
	}
	summaries, err := loadSummaries(db, uniq(authorIDs))
	if err != nil {
		return nil, err
	}
	liked, err := likedSet(db, &models.DiscussionLike{}, "discussion_id", viewerID, discussionIDs)
	if err != nil {
		return nil, err
	}

	out := make([]DiscussionView, len(rows))
	for i, d := range rows {
		out[i] = DiscussionView{Discussion: d, Author: summaryFor(summaries, d.UserID), Liked: liked[d.ID]}
	}
	return out, nil
}

// Get returns a discussion with its replies in posting order.
func (s *DiscussionService) Get(ctx context.Context, viewerID, id uint) (*DiscussionView, error) {
	db := s.db.WithContext(ctx)
	var d models.Discussion
	if err := db.First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "Discussion")
	}
	var replies []models.DiscussionReply
	if err := db.Where("discussion_id = ?", id).Order("created_at ASC, id ASC").Find(&replies).Error; err != nil {
		return nil, apperrors.Internal("Failed to load replies", err)
	}

	authorIDs := []uint{d.UserID}
	replyIDs := make([]uint, len(replies))
	for i, r := range replies {
		authorIDs = append(authorIDs, r.UserID)
		replyIDs[i] = r.ID
	}
	summaries, err := loadSummaries(db, uniq(authorIDs))
	if err != nil {
		return nil, err
	}
	likedDiscussion, err := likedSet(db, &models.DiscussionLike{}, "discussion_id", viewerID, []uint{id})
	if err != nil {
		return nil, err
	}
	likedReplies, err := likedSet(db, &models.ReplyLike{}, "reply_id", viewerID, replyIDs)
	if err != nil {
		return nil, err
	}

	view := &DiscussionView{
		Discussion: d,
		Author:     summaryFor(summaries, d.UserID),
		Liked:      likedDiscussion[id],
		Replies:    make([]ReplyView, len(replies)),
	}
	for i, r := range replies {
		view.Replies[i] = ReplyView{DiscussionReply: r, Author: summaryFor(summaries, r.UserID), Liked: likedReplies[r.ID]}
	}
	return view, nil
}

// Delete removes a discussion with its replies and likes. Only the author
// or an admin may delete.
func (s *DiscussionService) Delete(ctx context.Context, userID, id uint, isAdmin bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Discussion
		if err := tx.First(&d, id).Error; err != nil {
			return notFoundOr(err, "Discussion")
		}
		if d.UserID != userID && !isAdmin {
			return apperrors.Forbidden("Only the author can delete this discussion")
		}
		replyIDs := tx.Model(&models.DiscussionReply{}).Select("id").Where("discussion_id = ?", id)
		if err := tx.Where("reply_id IN (?)", replyIDs).Delete(&models.ReplyLike{}).Error; err != nil {
			return apperrors.Internal("Failed to delete reply likes", err)
		}
		if err := tx.Where("discussion_id = ?", id).Delete(&models.DiscussionReply{}).Error; err != nil {
			return apperrors.Internal("Failed to delete replies", err)
		}
		if err := tx.Where("discussion_id = ?", id).Delete(&models.DiscussionLike{}).Error; err != nil {
			return apperrors.Internal("Failed to delete likes", err)
		}
		if err := tx.Delete(&d).Error; err != nil {
			return apperrors.Internal("Failed to delete discussion", err)
		}
		return nil
	})
}

// ToggleLike likes the discussion, or unlikes it when already liked, and
// returns the new state with the updated counter.
func (s *DiscussionService) ToggleLike(ctx context.Context, userID, discussionID uint) (bool, int, error) {
	if userID == 0 {
		return false, 0, apperrors.ErrUnauthenticated
	}
	var liked bool
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Discussion
		if err := tx.Select("id").First(&d, discussionID).Error; err != nil {
			return notFoundOr(err, "Discussion")
		}

		res := tx.Where("user_id = ? AND discussion_id = ?", userID, discussionID).Delete(&models.DiscussionLike{})
		if res.Error != nil {
			return apperrors.Internal("Failed to update like", res.Error)
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.DiscussionLike{UserID: userID, DiscussionID: discussionID}).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperrors.Conflict("Like already recorded")
				}
				return apperrors.Internal("Failed to like discussion", err)
			}
			delta = 1
		}
		liked = delta > 0

		if err := bumpCounter(tx, &models.Discussion{}, discussionID, "likes_count", delta); err != nil {
			return err
		}
		return tx.Model(&models.Discussion{}).Select("likes_count").Where("id = ?", discussionID).Scan(&count).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// Reply adds a reply and bumps the discussion's reply counter. Locked
// discussions take no replies.
func (s *DiscussionService) Reply(ctx context.Context, userID, discussionID uint, in ReplyInput) (*ReplyView, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.Validation("Validation failed", "content is required")
	}

	var d models.Discussion
	var reply models.DiscussionReply
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, discussionID).Error; err != nil {
			return notFoundOr(err, "Discussion")
		}
		if d.IsLocked {
			return apperrors.Forbidden("Discussion is locked")
		}
		if in.ParentReplyID != nil {
			var parent models.DiscussionReply
			if err := tx.Select("id", "discussion_id").First(&parent, *in.ParentReplyID).Error; err != nil {
				return notFoundOr(err, "Reply")
			}
			if parent.DiscussionID != discussionID {
				return apperrors.Validation("Invalid reply", "parent reply belongs to another discussion")
			}
		}

		reply = models.DiscussionReply{DiscussionID: discussionID, UserID: userID, ParentReplyID: in.ParentReplyID, Content: content}
		if err := tx.Create(&reply).Error; err != nil {
			return apperrors.Internal("Failed to create reply", err)
		}
		if err := bumpCounter(tx, &models.Discussion{}, discussionID, "replies_count", 1); err != nil {
			return err
		}
		return tx.Model(&models.Discussion{}).Where("id = ?", discussionID).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}

	if d.UserID != userID {
		s.notifier.SendToUser(d.UserID, realtime.EventDiscussionReply, map[string]interface{}{
			"discussion_id": discussionID,
			"reply_id":      reply.ID,
			"from_id":       userID,
		})
	}

	summaries, err := loadSummaries(s.db.WithContext(ctx), []uint{userID})
	if err != nil {
		return nil, err
	}
	return &ReplyView{DiscussionReply: reply, Author: summaryFor(summaries, userID)}, nil
}

func (s *DiscussionService) ToggleReplyLike(ctx context.Context, userID, replyID uint) (bool, int, error) {
	if userID == 0 {
		return false, 0, apperrors.ErrUnauthenticated
	}
	var liked bool
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.DiscussionReply
		if err := tx.Select("id").First(&r, replyID).Error; err != nil {
			return notFoundOr(err, "Reply")
		}

		res := tx.Where("user_id = ? AND reply_id = ?", userID, replyID).Delete(&models.ReplyLike{})
		if res.Error != nil {
			return apperrors.Internal("Failed to update like", res.Error)
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.ReplyLike{UserID: userID, ReplyID: replyID}).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperrors.Conflict("Like already recorded")
				}
				return apperrors.Internal("Failed to like reply", err)
			}
			delta = 1
		}
		liked = delta > 0

		if err := bumpCounter(tx, &models.DiscussionReply{}, replyID, "likes_count", delta); err != nil {
			return err
		}
		return tx.Model(&models.DiscussionReply{}).Select("likes_count").Where("id = ?", replyID).Scan(&count).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (s *DiscussionService) SetPinned(ctx context.Context, id uint, pinned bool) error {
	return s.setFlag(ctx, id, "is_pinned", pinned)
}

func (s *DiscussionService) SetLocked(ctx context.Context, id uint, locked bool) error {
	return s.setFlag(ctx, id, "is_locked", locked)
}

func (s *DiscussionService) setFlag(ctx context.Context, id uint, column string, value bool) error {
	res := s.db.WithContext(ctx).Model(&models.Discussion{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return apperrors.Internal("Failed to update discussion", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("Discussion")
	}
	return nil
}

// bumpCounter moves a counter column by delta in SQL, never below zero.
func bumpCounter(tx *gorm.DB, model interface{}, id uint, column string, delta int) error {
	q := tx.Model(model).Where("id = ?", id)
	var expr interface{}
	if delta < 0 {
		q = q.Where(column + " > 0")
		expr = gorm.Expr(column+" - ?", -delta)
	} else {
		expr = gorm.Expr(column+" + ?", delta)
	}
	if err := q.Update(column, expr).Error; err != nil {
		return apperrors.Internal("Failed to update "+column, err)
	}
	return nil
}

// likedSet reports which of ids the viewer has liked.
func likedSet(db *gorm.DB, model interface{}, column string, viewerID uint, ids []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if viewerID == 0 || len(ids) == 0 {
		return out, nil
	}
	var liked []uint
	if err := db.Model(model).Where("user_id = ? AND "+column+" IN ?", viewerID, ids).
		Pluck(column, &liked).Error; err != nil {
		return nil, apperrors.Internal("Failed to load likes", err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}
