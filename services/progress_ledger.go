// services/progress_ledger.go - Per-learner lesson progress
package services

import (
	"context"
	"errors"
	"time"

	"studyhub/apperrors"
	"studyhub/database"
	"studyhub/models"
	"studyhub/progression"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressLedger owns the user_progress table. Rows are created on first
// interaction and merge-written afterwards; they are never deleted here.
type ProgressLedger struct {
	db *gorm.DB
}

func NewProgressLedger(db *gorm.DB) *ProgressLedger {
	return &ProgressLedger{db: db}
}

// LessonState is a lesson as one learner sees it.
type LessonState struct {
	Lesson          models.Lesson          `json:"lesson"`
	Status          progression.Status     `json:"status"`
	ProgressPercent float64                `json:"progress_percent"`
	Progress        *models.ProgressRecord `json:"progress"`
}

// Get returns nil, nil when the learner has no record for the lesson.
func (l *ProgressLedger) Get(ctx context.Context, userID, lessonID uint) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := l.db.WithContext(ctx).Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load progress", err)
	}
	return &rec, nil
}

func (l *ProgressLedger) GetAllForUser(ctx context.Context, userID uint) ([]models.ProgressRecord, error) {
	var records []models.ProgressRecord
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).Order("lesson_id ASC").Find(&records).Error; err != nil {
		return nil, apperrors.Internal("Failed to load progress", err)
	}
	return records, nil
}

// Upsert merge-writes fields onto the (user, lesson) row, creating it first
// when absent. Pass a transaction to make it part of a larger write.
func (l *ProgressLedger) Upsert(ctx context.Context, tx *gorm.DB, userID, lessonID uint, fields map[string]interface{}) (*models.ProgressRecord, error) {
	if tx == nil {
		tx = l.db
	}
	tx = tx.WithContext(ctx)

	if err := l.ensure(tx, userID, lessonID); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		err := tx.Model(&models.ProgressRecord{}).
			Where("user_id = ? AND lesson_id = ?", userID, lessonID).
			Updates(fields).Error
		if err != nil {
			return nil, apperrors.Internal("Failed to update progress", err)
		}
	}

	var rec models.ProgressRecord
	if err := tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&rec).Error; err != nil {
		return nil, apperrors.Internal("Failed to load progress", err)
	}
	return &rec, nil
}

// lockRecord creates the row if needed and reads it back, holding a row lock
// on postgres for the rest of the transaction.
func (l *ProgressLedger) lockRecord(tx *gorm.DB, userID, lessonID uint) (*models.ProgressRecord, error) {
	if err := l.ensure(tx, userID, lessonID); err != nil {
		return nil, err
	}
	q := tx
	if database.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec models.ProgressRecord
	if err := q.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&rec).Error; err != nil {
		return nil, apperrors.Internal("Failed to load progress", err)
	}
	return &rec, nil
}

func (l *ProgressLedger) ensure(tx *gorm.DB, userID, lessonID uint) error {
	rec := models.ProgressRecord{UserID: userID, LessonID: lessonID, LastAccessedAt: time.Now().UTC()}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return apperrors.Internal("Failed to create progress", err)
	}
	return nil
}

// Touch records that the learner opened a lesson. Locked lessons are refused
// and get no record.
func (l *ProgressLedger) Touch(ctx context.Context, userID, lessonID uint) (*LessonState, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}

	var state *LessonState
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := l.requireUnlocked(ctx, tx, userID, lessonID)
		if err != nil {
			return err
		}
		rec, err := l.Upsert(ctx, tx, userID, lessonID, map[string]interface{}{
			"is_unlocked":      true,
			"last_accessed_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		st.Progress = rec
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// RecordHintUsage counts one revealed hint against the exercise's lesson.
// Like Touch, it refuses locked lessons without creating a record.
func (l *ProgressLedger) RecordHintUsage(ctx context.Context, userID, exerciseID uint) (*models.ProgressRecord, error) {
	if userID == 0 {
		return nil, apperrors.ErrUnauthenticated
	}

	var out *models.ProgressRecord
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exercise models.Exercise
		if err := tx.Select("id", "lesson_id").First(&exercise, exerciseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Exercise")
			}
			return apperrors.Internal("Failed to load exercise", err)
		}
		if _, err := l.requireUnlocked(ctx, tx, userID, exercise.LessonID); err != nil {
			return err
		}
		rec, err := l.Upsert(ctx, tx, userID, exercise.LessonID, map[string]interface{}{
			"hint_usage":       gorm.Expr("hint_usage + 1"),
			"last_accessed_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// States evaluates every lesson for one learner in a few queries: the
// prerequisite edges, the prerequisite lessons' thresholds, the learner's
// records and the first lesson of each sequence.
func (l *ProgressLedger) States(ctx context.Context, tx *gorm.DB, userID uint, lessons []models.Lesson) ([]LessonState, error) {
	if tx == nil {
		tx = l.db
	}
	tx = tx.WithContext(ctx)
	if len(lessons) == 0 {
		return []LessonState{}, nil
	}

	lessonIDs := make([]uint, len(lessons))
	for i, lesson := range lessons {
		lessonIDs[i] = lesson.ID
	}

	prereqs, err := prerequisiteMap(tx, lessons)
	if err != nil {
		return nil, err
	}

	needed := append([]uint{}, lessonIDs...)
	for _, ids := range prereqs {
		needed = append(needed, ids...)
	}

	thresholds := make(map[uint]float64)
	var prereqLessons []models.Lesson
	if err := tx.Select("id", "mastery_threshold").Where("id IN ?", uniq(needed)).Find(&prereqLessons).Error; err != nil {
		return nil, apperrors.Internal("Failed to load lessons", err)
	}
	for _, pl := range prereqLessons {
		thresholds[pl.ID] = pl.MasteryThreshold
	}

	records := make(map[uint]*models.ProgressRecord)
	if userID != 0 {
		var rows []models.ProgressRecord
		if err := tx.Where("user_id = ? AND lesson_id IN ?", userID, uniq(needed)).Find(&rows).Error; err != nil {
			return nil, apperrors.Internal("Failed to load progress", err)
		}
		for i := range rows {
			records[rows[i].LessonID] = &rows[i]
		}
	}

	firsts, err := firstLessonIDs(tx, lessons)
	if err != nil {
		return nil, err
	}

	states := make([]LessonState, len(lessons))
	for i, lesson := range lessons {
		own := records[lesson.ID]
		var ps []progression.Prerequisite
		for _, pid := range prereqs[lesson.ID] {
			ps = append(ps, progression.Prerequisite{
				LessonID:  pid,
				Threshold: thresholds[pid],
				Record:    toRecord(records[pid]),
			})
		}
		rule := progression.LessonRule{
			ID:               lesson.ID,
			MasteryThreshold: lesson.MasteryThreshold,
			FirstInSequence:  firsts[lesson.ID],
		}
		status := progression.Evaluate(rule, toRecord(own), ps)

		var pct float64
		if own != nil {
			pct = progression.ProgressPercent(own.MasteryScore, lesson.MasteryThreshold)
		}
		states[i] = LessonState{Lesson: lesson, Status: status, ProgressPercent: pct, Progress: own}
	}
	return states, nil
}

// requireUnlocked evaluates the lesson for userID (0 for anonymous) and
// returns Forbidden when it is locked.
func (l *ProgressLedger) requireUnlocked(ctx context.Context, tx *gorm.DB, userID, lessonID uint) (*LessonState, error) {
	lesson, err := loadLesson(tx, lessonID)
	if err != nil {
		return nil, err
	}
	st, err := l.stateFor(ctx, tx, userID, *lesson)
	if err != nil {
		return nil, err
	}
	if st.Status == progression.StatusLocked {
		return nil, apperrors.Forbidden("Lesson is locked")
	}
	return st, nil
}

func (l *ProgressLedger) stateFor(ctx context.Context, tx *gorm.DB, userID uint, lesson models.Lesson) (*LessonState, error) {
	states, err := l.States(ctx, tx, userID, []models.Lesson{lesson})
	if err != nil {
		return nil, err
	}
	return &states[0], nil
}

// markDependentsUnlocked flips is_unlocked on existing records of lessons
// whose prerequisites are now all met. It never creates records.
func (l *ProgressLedger) markDependentsUnlocked(ctx context.Context, tx *gorm.DB, userID, lessonID uint) error {
	var dependents []models.Lesson
	err := tx.Where("prerequisite_lesson_id = ? OR id IN (?)", lessonID,
		tx.Model(&models.LessonPrerequisite{}).Select("lesson_id").Where("prerequisite_id = ?", lessonID)).
		Find(&dependents).Error
	if err != nil {
		return apperrors.Internal("Failed to load dependent lessons", err)
	}
	if len(dependents) == 0 {
		return nil
	}

	states, err := l.States(ctx, tx, userID, dependents)
	if err != nil {
		return err
	}
	var unlocked []uint
	for _, st := range states {
		if st.Status != progression.StatusLocked {
			unlocked = append(unlocked, st.Lesson.ID)
		}
	}
	if len(unlocked) == 0 {
		return nil
	}
	return tx.Model(&models.ProgressRecord{}).
		Where("user_id = ? AND lesson_id IN ?", userID, unlocked).
		Update("is_unlocked", true).Error
}

// prerequisiteMap merges the single prerequisite column with the adjacency
// table into one set per lesson.
func prerequisiteMap(tx *gorm.DB, lessons []models.Lesson) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(lessons))
	ids := make([]uint, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.ID)
		if lesson.PrerequisiteLessonID != nil && *lesson.PrerequisiteLessonID != lesson.ID {
			out[lesson.ID] = append(out[lesson.ID], *lesson.PrerequisiteLessonID)
		}
	}

	var edges []models.LessonPrerequisite
	if err := tx.Where("lesson_id IN ?", ids).Find(&edges).Error; err != nil {
		return nil, apperrors.Internal("Failed to load prerequisites", err)
	}
	for _, e := range edges {
		if e.PrerequisiteID == e.LessonID {
			continue
		}
		out[e.LessonID] = append(out[e.LessonID], e.PrerequisiteID)
	}
	for id, list := range out {
		out[id] = uniq(list)
	}
	return out, nil
}

// firstLessonIDs finds, for each sequence touched by lessons, the lesson that
// comes first (lowest order, then lowest id). A sequence is a course, or a
// category for lessons without one.
func firstLessonIDs(tx *gorm.DB, lessons []models.Lesson) (map[uint]bool, error) {
	firsts := make(map[uint]bool)
	seenCourse := make(map[uint]bool)
	seenCategory := make(map[string]bool)

	for _, lesson := range lessons {
		var first models.Lesson
		q := tx.Select("id").Order("sort_order ASC, id ASC")
		switch {
		case lesson.CourseID != nil:
			if seenCourse[*lesson.CourseID] {
				continue
			}
			seenCourse[*lesson.CourseID] = true
			q = q.Where("course_id = ?", *lesson.CourseID)
		default:
			if seenCategory[lesson.Category] {
				continue
			}
			seenCategory[lesson.Category] = true
			q = q.Where("course_id IS NULL AND category = ?", lesson.Category)
		}
		if err := q.First(&first).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, apperrors.Internal("Failed to load lesson order", err)
		}
		firsts[first.ID] = true
	}
	return firsts, nil
}

func loadLesson(tx *gorm.DB, lessonID uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := tx.First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Lesson")
		}
		return nil, apperrors.Internal("Failed to load lesson", err)
	}
	return &lesson, nil
}

func toRecord(rec *models.ProgressRecord) *progression.Record {
	if rec == nil {
		return nil
	}
	return &progression.Record{MasteryScore: rec.MasteryScore, Completed: rec.Completed}
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
