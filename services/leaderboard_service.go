// services/leaderboard_service.go - XP and streak rankings
package services

import (
	"context"

	"studyhub/apperrors"
	"studyhub/cache"
	"studyhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	LeaderboardXP     = "xp"
	LeaderboardStreak = "streak"

	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        uint    `json:"user_id"`
	Name          string  `json:"name"`
	Avatar        *string `json:"avatar"`
	XP            int     `json:"xp"`
	CurrentStreak int     `json:"current_streak"`
}

type LeaderboardPage struct {
	Category string             `json:"category"`
	Entries  []LeaderboardEntry `json:"entries"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

type LeaderboardService struct {
	db    *gorm.DB
	cache *cache.LeaderboardCache
	log   *zap.Logger
}

func NewLeaderboardService(db *gorm.DB, c *cache.LeaderboardCache, log *zap.Logger) *LeaderboardService {
	return &LeaderboardService{db: db, cache: c, log: log}
}

// Top ranks non-guest learners. Pages are served from redis when a cache is
// configured; cache failures fall through to the database.
func (s *LeaderboardService) Top(ctx context.Context, category string, limit, offset int) (*LeaderboardPage, error) {
	category = normalizeCategory(category)
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.LeaderboardKey(category, limit, offset)
	var cached LeaderboardPage
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("leaderboard cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	db := s.db.WithContext(ctx)
	var entries []LeaderboardEntry
	if err := rankedProfiles(db, category).Limit(limit).Offset(offset).Scan(&entries).Error; err != nil {
		return nil, apperrors.Internal("Failed to fetch leaderboard", err)
	}
	for i := range entries {
		entries[i].Rank = offset + i + 1
	}

	var total int64
	if err := db.Model(&models.Profile{}).
		Joins("JOIN users ON users.id = users_profile.user_id").
		Where("users.is_guest = ?", false).
		Count(&total).Error; err != nil {
		return nil, apperrors.Internal("Failed to count leaderboard", err)
	}

	page := &LeaderboardPage{Category: category, Entries: nonNilEntries(entries), Total: total, Limit: limit, Offset: offset}
	if err := s.cache.Set(ctx, key, page); err != nil {
		s.log.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return page, nil
}

// FriendsLeaderboard ranks the learner together with accepted friends.
func (s *LeaderboardService) FriendsLeaderboard(ctx context.Context, userID uint, category string) ([]LeaderboardEntry, error) {
	category = normalizeCategory(category)
	db := s.db.WithContext(ctx)

	ids, err := friendIDs(db, userID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, userID)

	var entries []LeaderboardEntry
	if err := rankedProfiles(db, category).Where("users_profile.user_id IN ?", ids).Scan(&entries).Error; err != nil {
		return nil, apperrors.Internal("Failed to fetch friends leaderboard", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return nonNilEntries(entries), nil
}

// Rank is the learner's 1-based position among non-guests, 0 without a profile.
func (s *LeaderboardService) Rank(ctx context.Context, userID uint, category string) (int, error) {
	category = normalizeCategory(category)
	db := s.db.WithContext(ctx)

	var profile models.Profile
	res := db.Where("user_id = ?", userID).Limit(1).Find(&profile)
	if res.Error != nil {
		return 0, apperrors.Internal("Failed to load profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}

	column, value := "users_profile.xp", profile.XP
	if category == LeaderboardStreak {
		column, value = "users_profile.current_streak", profile.CurrentStreak
	}
	var ahead int64
	if err := db.Model(&models.Profile{}).
		Joins("JOIN users ON users.id = users_profile.user_id").
		Where("users.is_guest = ? AND "+column+" > ?", false, value).
		Count(&ahead).Error; err != nil {
		return 0, apperrors.Internal("Failed to compute rank", err)
	}
	return int(ahead) + 1, nil
}

// Invalidate drops cached pages. Errors are logged, not returned: a stale
// page expires on its own.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}

// Refresh rebuilds the default pages.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	s.Invalidate(ctx)
	for _, category := range []string{LeaderboardXP, LeaderboardStreak} {
		if _, err := s.Top(ctx, category, defaultLeaderboardLimit, 0); err != nil {
			return err
		}
	}
	return nil
}

func rankedProfiles(db *gorm.DB, category string) *gorm.DB {
	order := "users_profile.xp DESC, users_profile.current_streak DESC, users_profile.user_id ASC"
	if category == LeaderboardStreak {
		order = "users_profile.current_streak DESC, users_profile.xp DESC, users_profile.user_id ASC"
	}
	return db.Model(&models.Profile{}).
		Select("users_profile.user_id, users_profile.name, users_profile.avatar, users_profile.xp, users_profile.current_streak").
		Joins("JOIN users ON users.id = users_profile.user_id").
		Where("users.is_guest = ?", false).
		Order(order)
}

func normalizeCategory(category string) string {
	if category == LeaderboardStreak {
		return LeaderboardStreak
	}
	return LeaderboardXP
}

func nonNilEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	if entries == nil {
		return []LeaderboardEntry{}
	}
	return entries
}
