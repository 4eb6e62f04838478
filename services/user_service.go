// services/user_service.go - Accounts and learner profiles
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"studyhub/apperrors"
	"studyhub/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser stores the account with its profile and streak rows in one
// transaction. Password must already be hashed.
func (s *UserService) CreateUser(ctx context.Context, user *models.User, displayName string) error {
	if displayName == "" {
		displayName = user.Username
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to check username", err)
		}
		if count > 0 {
			return apperrors.Conflict("Username already taken")
		}
		if user.Email != nil {
			if err := tx.Model(&models.User{}).Where("email = ?", *user.Email).Count(&count).Error; err != nil {
				return apperrors.Internal("Failed to check email", err)
			}
			if count > 0 {
				return apperrors.Conflict("Email already registered")
			}
		}

		if err := tx.Create(user).Error; err != nil {
			return apperrors.Internal("Failed to create user", err)
		}
		profile := models.Profile{UserID: user.ID, Name: displayName}
		if err := tx.Create(&profile).Error; err != nil {
			return apperrors.Internal("Failed to create profile", err)
		}
		if err := tx.Create(&models.Streak{UserID: user.ID}).Error; err != nil {
			return apperrors.Internal("Failed to create streak", err)
		}
		user.Profile = &profile
		return nil
	})
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return &user, nil
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Profile").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load user", err)
	}
	return &user, nil
}

func (s *UserService) TouchLogin(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login", time.Now().UTC()).Error
}

// UpgradeGuest turns a guest account into a registered one, keeping its
// progress. Password must already be hashed.
func (s *UserService) UpgradeGuest(ctx context.Context, userID uint, username string, email *string, password string) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("User")
			}
			return apperrors.Internal("Failed to load user", err)
		}
		if !user.IsGuest {
			return apperrors.Conflict("Account is already registered")
		}

		var count int64
		if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, userID).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to check username", err)
		}
		if count > 0 {
			return apperrors.Conflict("Username already taken")
		}

		err := tx.Model(&user).Updates(map[string]interface{}{
			"username": username,
			"email":    email,
			"password": password,
			"is_guest": false,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("Email already registered")
		}
		if err != nil {
			return apperrors.Internal("Failed to upgrade account", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, userID)
}

// Search finds registered learners by username or display name, for adding
// friends.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]AuthorSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperrors.Validation("Validation failed", "q must be at least 2 characters")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	like := "%" + strings.ToLower(query) + "%"
	var profiles []models.Profile
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Joins("JOIN users ON users.id = users_profile.user_id").
		Where("users.is_guest = ?", false).
		Where("LOWER(users.username) LIKE ? OR LOWER(users_profile.name) LIKE ?", like, like).
		Order("users_profile.xp DESC, users_profile.user_id ASC").
		Limit(limit).Find(&profiles).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to search users", err)
	}

	out := make([]AuthorSummary, len(profiles))
	for i, p := range profiles {
		out[i] = AuthorSummary{UserID: p.UserID, Name: p.Name, Avatar: p.Avatar, XP: p.XP}
	}
	return out, nil
}

// ================== ADMIN OPERATIONS ==================

// List pages through accounts, newest first, optionally matching username or
// email.
func (s *UserService) List(ctx context.Context, search string, page, limit int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q = q.Where("username LIKE ? OR email LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("Failed to count users", err)
	}
	var users []models.User
	if err := q.Preload("Profile").Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, apperrors.Internal("Failed to fetch users", err)
	}
	return users, total, nil
}

// IsAdmin reads the stored flag; unknown users are not admins.
func (s *UserService) IsAdmin(ctx context.Context, id uint) (bool, error) {
	var flags []bool
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Pluck("is_admin", &flags).Error
	if err != nil {
		return false, apperrors.Internal("Failed to load user", err)
	}
	return len(flags) == 1 && flags[0], nil
}

func (s *UserService) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return apperrors.Internal("Failed to update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("User")
	}
	return nil
}

// Profile returns nil without error when the user has no profile row.
func (s *UserService) Profile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load profile", err)
	}
	return &profile, nil
}

type ProfileUpdate struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio    *string `json:"bio" validate:"omitempty,max=1000"`
	Avatar *string `json:"avatar" validate:"omitempty,max=500"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.Profile, error) {
	updates := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperrors.Validation("Validation failed", "name is required")
		}
		updates["name"] = name
	}
	if upd.Bio != nil {
		updates["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		updates["avatar"] = *upd.Avatar
	}

	db := s.db.WithContext(ctx)
	if err := s.EnsureProfile(db, userID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := db.Model(&models.Profile{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return nil, apperrors.Internal("Failed to update profile", err)
		}
	}
	return s.Profile(ctx, userID)
}

// EnsureProfile creates a missing profile named after the account. XP writes
// go through it so an increment never lands on zero rows.
func (s *UserService) EnsureProfile(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.Select("id", "username").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("User")
		}
		return apperrors.Internal("Failed to load user", err)
	}
	profile := models.Profile{UserID: userID, Name: user.Username}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error; err != nil {
		return apperrors.Internal("Failed to create profile", err)
	}
	return nil
}

// AddXP increments profile XP with a single SQL expression.
func (s *UserService) AddXP(tx *gorm.DB, userID uint, amount int) error {
	if amount <= 0 {
		return nil
	}
	if err := s.EnsureProfile(tx, userID); err != nil {
		return err
	}
	err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).
		Update("xp", gorm.Expr("xp + ?", amount)).Error
	if err != nil {
		return apperrors.Internal("Failed to award XP", err)
	}
	return nil
}

// Summaries loads author cards for a set of users. Users without a profile
// are absent from the map.
func (s *UserService) Summaries(ctx context.Context, userIDs []uint) (map[uint]AuthorSummary, error) {
	return loadSummaries(s.db.WithContext(ctx), userIDs)
}

type AuthorSummary struct {
	UserID uint    `json:"user_id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
	XP     int     `json:"xp"`
}

func loadSummaries(db *gorm.DB, userIDs []uint) (map[uint]AuthorSummary, error) {
	out := make(map[uint]AuthorSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	if err := db.Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, apperrors.Internal("Failed to load profiles", err)
	}
	for _, p := range profiles {
		out[p.UserID] = AuthorSummary{UserID: p.UserID, Name: p.Name, Avatar: p.Avatar, XP: p.XP}
	}
	return out, nil
}

func summaryFor(m map[uint]AuthorSummary, id uint) *AuthorSummary {
	if s, ok := m[id]; ok {
		return &s
	}
	return nil
}
