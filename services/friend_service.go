// services/friend_service.go - Friend requests and friend lists
package services

import (
	"context"
	"errors"
	"time"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/realtime"

	"gorm.io/gorm"
)

type FriendService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewFriendService(db *gorm.DB, notifier Notifier) *FriendService {
	return &FriendService{db: db, notifier: notifier}
}

type FriendView struct {
	FriendshipID uint           `json:"friendship_id"`
	UserID       uint           `json:"user_id"`
	Since        time.Time      `json:"since"`
	Friend       *AuthorSummary `json:"friend"`
}

type FriendRequestView struct {
	ID        uint           `json:"id"`
	From      *AuthorSummary `json:"from"`
	FromID    uint           `json:"from_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// SendRequest creates a pending request from userID to friendID. Any
// existing row between the pair, in either direction, is a conflict.
func (s *FriendService) SendRequest(ctx context.Context, userID, friendID uint) (*models.Friendship, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}
	if userID == friendID {
		return nil, apperrors.Validation("Invalid friend request", "cannot add yourself as a friend")
	}

	var req models.Friendship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", friendID).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to load user", err)
		}
		if count == 0 {
			return apperrors.NotFound("User")
		}

		existing, err := findFriendship(tx, userID, friendID)
		if err != nil {
			return err
		}
		if existing != nil {
			switch existing.Status {
			case models.FriendAccepted:
				return apperrors.Conflict("Already friends")
			case models.FriendBlocked:
				return apperrors.Conflict("Friend request not allowed")
			default:
				return apperrors.Conflict("Friend request already pending")
			}
		}

		req = models.Friendship{UserID: userID, FriendID: friendID, Status: models.FriendPending}
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("Friend request already pending")
			}
			return apperrors.Internal("Failed to create friend request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendToUser(friendID, realtime.EventFriendRequest, map[string]interface{}{
		"request_id": req.ID,
		"from_id":    userID,
	})
	return &req, nil
}

// Accept turns a pending request addressed to userID into a friendship.
func (s *FriendService) Accept(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	var req models.Friendship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, requestID).Error; err != nil {
			return notFoundOr(err, "Friend request")
		}
		if req.FriendID != userID {
			return apperrors.Forbidden("Only the recipient can accept this request")
		}
		if req.Status != models.FriendPending {
			return apperrors.Conflict("Friend request is not pending")
		}
		req.Status = models.FriendAccepted
		return tx.Model(&req).Update("status", models.FriendAccepted).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendToUser(req.UserID, realtime.EventFriendAccepted, map[string]interface{}{
		"friendship_id": req.ID,
		"friend_id":     userID,
	})
	return &req, nil
}

// Decline deletes a pending request addressed to userID.
func (s *FriendService) Decline(ctx context.Context, userID, requestID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.Friendship
		if err := tx.First(&req, requestID).Error; err != nil {
			return notFoundOr(err, "Friend request")
		}
		if req.FriendID != userID {
			return apperrors.Forbidden("Only the recipient can decline this request")
		}
		if req.Status != models.FriendPending {
			return apperrors.Conflict("Friend request is not pending")
		}
		return tx.Delete(&req).Error
	})
}

// Remove deletes a friendship or request. Either party may remove it.
func (s *FriendService) Remove(ctx context.Context, userID, friendshipID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f models.Friendship
		if err := tx.First(&f, friendshipID).Error; err != nil {
			return notFoundOr(err, "Friendship")
		}
		if f.UserID != userID && f.FriendID != userID {
			return apperrors.Forbidden("Not part of this friendship")
		}
		if f.Status == models.FriendBlocked && f.UserID != userID {
			return apperrors.Forbidden("Only the blocker can remove a block")
		}
		return tx.Delete(&f).Error
	})
}

// Block replaces any row between the pair with a block owned by userID.
func (s *FriendService) Block(ctx context.Context, userID, targetID uint) (*models.Friendship, error) {
	if userID == targetID {
		return nil, apperrors.Validation("Invalid block", "cannot block yourself")
	}
	var row models.Friendship
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", targetID).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to load user", err)
		}
		if count == 0 {
			return apperrors.NotFound("User")
		}
		if err := tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, targetID, targetID, userID).Delete(&models.Friendship{}).Error; err != nil {
			return apperrors.Internal("Failed to clear friendship", err)
		}
		row = models.Friendship{UserID: userID, FriendID: targetID, Status: models.FriendBlocked}
		if err := tx.Create(&row).Error; err != nil {
			return apperrors.Internal("Failed to block user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Friends lists accepted friendships in both directions.
func (s *FriendService) Friends(ctx context.Context, userID uint) ([]FriendView, error) {
	db := s.db.WithContext(ctx)
	var rows []models.Friendship
	if err := db.Where("(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, models.FriendAccepted).
		Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to load friends", err)
	}

	ids := make([]uint, len(rows))
	for i, f := range rows {
		ids[i] = otherParty(f, userID)
	}
	summaries, err := loadSummaries(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FriendView, len(rows))
	for i, f := range rows {
		out[i] = FriendView{
			FriendshipID: f.ID,
			UserID:       ids[i],
			Since:        f.UpdatedAt,
			Friend:       summaryFor(summaries, ids[i]),
		}
	}
	return out, nil
}

// FriendIDs returns the ids of accepted friends.
func (s *FriendService) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return friendIDs(s.db.WithContext(ctx), userID)
}

// PendingRequests lists incoming requests waiting on userID.
func (s *FriendService) PendingRequests(ctx context.Context, userID uint) ([]FriendRequestView, error) {
	db := s.db.WithContext(ctx)
	var rows []models.Friendship
	if err := db.Where("friend_id = ? AND status = ?", userID, models.FriendPending).
		Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to load friend requests", err)
	}

	ids := make([]uint, len(rows))
	for i, f := range rows {
		ids[i] = f.UserID
	}
	summaries, err := loadSummaries(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FriendRequestView, len(rows))
	for i, f := range rows {
		out[i] = FriendRequestView{ID: f.ID, FromID: f.UserID, From: summaryFor(summaries, f.UserID), CreatedAt: f.CreatedAt}
	}
	return out, nil
}

func findFriendship(tx *gorm.DB, a, b uint) (*models.Friendship, error) {
	var f models.Friendship
	res := tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Limit(1).Find(&f)
	if res.Error != nil {
		return nil, apperrors.Internal("Failed to load friendship", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &f, nil
}

func friendIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var rows []models.Friendship
	if err := db.Where("(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, models.FriendAccepted).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to load friends", err)
	}
	ids := make([]uint, len(rows))
	for i, f := range rows {
		ids[i] = otherParty(f, userID)
	}
	return ids, nil
}

func otherParty(f models.Friendship, userID uint) uint {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}
