// services/achievement_service.go - Achievement rules and grants
package services

import (
	"context"
	"time"

	"studyhub/apperrors"
	"studyhub/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementDefinition describes one earnable achievement. Course is set
// for subject achievements and names the course whose lessons count.
type AchievementDefinition struct {
	Type        models.AchievementType `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	XPBonus     int                    `json:"xp_bonus"`
	Target      int                    `json:"target"`
	Secret      bool                   `json:"secret"`
	Course      string                 `json:"course,omitempty"`
	Streak      bool                   `json:"streak"`
}

var achievementDefinitions = []AchievementDefinition{
	{Type: models.AchievementFirstLesson, Title: "Primeira Lição", Description: "Complete sua primeira lição", XPBonus: 50, Target: 1},
	{Type: models.AchievementMathMaster, Title: "Mestre da Matemática", Description: "Complete 10 lições de Matemática", XPBonus: 200, Target: 10, Course: "Matemática"},
	{Type: models.AchievementPhysicsExpert, Title: "Especialista em Física", Description: "Complete 10 lições de Física", XPBonus: 200, Target: 10, Course: "Física"},
	{Type: models.AchievementChemistryPro, Title: "Profissional da Química", Description: "Complete 10 lições de Química", XPBonus: 200, Target: 10, Course: "Química"},
	{Type: models.AchievementBiologyAce, Title: "Ás da Biologia", Description: "Complete 10 lições de Biologia", XPBonus: 200, Target: 10, Course: "Biologia"},
	{Type: models.AchievementStreak7, Title: "Semana Dedicada", Description: "Estude 7 dias seguidos", XPBonus: 100, Target: 7, Streak: true},
	{Type: models.AchievementStreak30, Title: "Mês Imparável", Description: "Estude 30 dias seguidos", XPBonus: 500, Target: 30, Streak: true, Secret: true},
}

func AchievementDefinitions() []AchievementDefinition {
	return append([]AchievementDefinition(nil), achievementDefinitions...)
}

// AchievementProgress is one definition as a learner sees it. Secret
// achievements are masked until earned.
type AchievementProgress struct {
	Type        models.AchievementType `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	XPBonus     int                    `json:"xp_bonus"`
	Secret      bool                   `json:"secret"`
	Current     int                    `json:"current"`
	Target      int                    `json:"target"`
	Earned      bool                   `json:"earned"`
	EarnedAt    *time.Time             `json:"earned_at,omitempty"`
}

type AchievementService struct {
	db *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{db: db}
}

// achievementCounters is the state the rules read.
type achievementCounters struct {
	completed       int
	completedCourse map[string]int
	streak          int
}

func (c achievementCounters) value(def AchievementDefinition) int {
	switch {
	case def.Streak:
		return c.streak
	case def.Course != "":
		return c.completedCourse[def.Course]
	default:
		return c.completed
	}
}

func (s *AchievementService) counters(tx *gorm.DB, userID uint) (achievementCounters, error) {
	c := achievementCounters{completedCourse: make(map[string]int)}

	var completed int64
	if err := tx.Model(&models.ProgressRecord{}).Where("user_id = ? AND completed = ?", userID, true).
		Count(&completed).Error; err != nil {
		return c, apperrors.Internal("Failed to count completed lessons", err)
	}
	c.completed = int(completed)

	var perCourse []struct {
		Name  string
		Count int
	}
	err := tx.Table("user_progress").
		Select("courses.name AS name, COUNT(*) AS count").
		Joins("JOIN lessons ON lessons.id = user_progress.lesson_id").
		Joins("JOIN courses ON courses.id = lessons.course_id").
		Where("user_progress.user_id = ? AND user_progress.completed = ?", userID, true).
		Group("courses.name").
		Scan(&perCourse).Error
	if err != nil {
		return c, apperrors.Internal("Failed to count course progress", err)
	}
	for _, row := range perCourse {
		c.completedCourse[row.Name] += row.Count
	}

	var streak models.Streak
	res := tx.Where("user_id = ?", userID).Limit(1).Find(&streak)
	if res.Error != nil {
		return c, apperrors.Internal("Failed to load streak", res.Error)
	}
	c.streak = streak.CurrentDays
	return c, nil
}

// CheckAndGrant evaluates every rule and inserts the achievements the learner
// now qualifies for. Only newly inserted rows are returned and only their
// XP bonus is credited, so repeated calls with the same state grant nothing.
func (s *AchievementService) CheckAndGrant(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Achievement, error) {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	c, err := s.counters(tx, userID)
	if err != nil {
		return nil, err
	}

	var granted []models.Achievement
	now := time.Now().UTC()
	for _, def := range achievementDefinitions {
		current := c.value(def)
		if current < def.Target {
			continue
		}
		a := models.Achievement{
			UserID:          userID,
			Type:            def.Type,
			Title:           def.Title,
			Description:     def.Description,
			XPBonus:         def.XPBonus,
			Secret:          def.Secret,
			ProgressCurrent: def.Target,
			ProgressTarget:  def.Target,
			EarnedAt:        now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
			DoNothing: true,
		}).Create(&a)
		if res.Error != nil {
			return nil, apperrors.Internal("Failed to grant achievement", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		if def.XPBonus > 0 {
			if err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).
				Update("xp", gorm.Expr("xp + ?", def.XPBonus)).Error; err != nil {
				return nil, apperrors.Internal("Failed to credit achievement XP", err)
			}
		}
		granted = append(granted, a)
	}
	return granted, nil
}

func (s *AchievementService) ListForUser(ctx context.Context, userID uint) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at DESC, id DESC").
		Find(&achievements).Error; err != nil {
		return nil, apperrors.Internal("Failed to load achievements", err)
	}
	return achievements, nil
}

// Progress lists every definition with the learner's current count.
func (s *AchievementService) Progress(ctx context.Context, userID uint) ([]AchievementProgress, error) {
	db := s.db.WithContext(ctx)
	c, err := s.counters(db, userID)
	if err != nil {
		return nil, err
	}
	earned, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byType := make(map[models.AchievementType]models.Achievement, len(earned))
	for _, a := range earned {
		byType[a.Type] = a
	}

	out := make([]AchievementProgress, 0, len(achievementDefinitions))
	for _, def := range achievementDefinitions {
		p := AchievementProgress{
			Type:        def.Type,
			Title:       def.Title,
			Description: def.Description,
			XPBonus:     def.XPBonus,
			Secret:      def.Secret,
			Current:     minInt(c.value(def), def.Target),
			Target:      def.Target,
		}
		if a, ok := byType[def.Type]; ok {
			p.Earned = true
			p.Current = def.Target
			earnedAt := a.EarnedAt
			p.EarnedAt = &earnedAt
		} else if def.Secret {
			p.Title = "???"
			p.Description = "Conquista secreta"
			p.Current = 0
		}
		out = append(out, p)
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GrantCounts reports how many learners hold each achievement type.
func (s *AchievementService) GrantCounts(ctx context.Context) (map[models.AchievementType]int64, error) {
	var rows []struct {
		Type  models.AchievementType
		Count int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Achievement{}).
		Select("type, COUNT(*) AS count").Group("type").Scan(&rows).Error; err != nil {
		return nil, apperrors.Internal("Failed to count achievements", err)
	}
	out := make(map[models.AchievementType]int64, len(rows))
	for _, r := range rows {
		out[r.Type] = r.Count
	}
	return out, nil
}
