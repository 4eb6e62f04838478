// services/catalog_service.go - Courses, lessons, exercises and hints
package services

import (
	"context"
	"errors"
	"strings"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/progression"

	"gorm.io/gorm"
)

type CatalogService struct {
	db     *gorm.DB
	ledger *ProgressLedger
}

func NewCatalogService(db *gorm.DB, ledger *ProgressLedger) *CatalogService {
	return &CatalogService{db: db, ledger: ledger}
}

// ExerciseView is an exercise as shown before answering: no correct answer,
// no explanation, only how many hints exist.
type ExerciseView struct {
	ID         uint                `json:"id"`
	LessonID   uint                `json:"lesson_id"`
	Prompt     string              `json:"prompt"`
	Type       models.ExerciseType `json:"type"`
	Options    []string            `json:"options"`
	Order      int                 `json:"order"`
	Difficulty string              `json:"difficulty"`
	HintCount  int                 `json:"hint_count"`
}

type LessonDetail struct {
	LessonState
	Prerequisites []uint         `json:"prerequisites"`
	Exercises     []ExerciseView `json:"exercises"`
}

type LessonFilter struct {
	CourseID *uint
	Category string
}

type LearningPath struct {
	Lessons      []LessonState `json:"lessons"`
	CurrentIndex int           `json:"current_index"`
}

// ================== READS ==================

func (s *CatalogService) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := s.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&courses).Error; err != nil {
		return nil, apperrors.Internal("Failed to load courses", err)
	}
	return courses, nil
}

func (s *CatalogService) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := s.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Course")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load course", err)
	}
	return &course, nil
}

func (s *CatalogService) ListLessons(ctx context.Context, filter LessonFilter) ([]models.Lesson, error) {
	q := s.db.WithContext(ctx).Order("sort_order ASC, id ASC")
	if filter.CourseID != nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	var lessons []models.Lesson
	if err := q.Find(&lessons).Error; err != nil {
		return nil, apperrors.Internal("Failed to load lessons", err)
	}
	return lessons, nil
}

// GetLesson returns the lesson with its status for userID (0 for anonymous)
// and its exercises stripped of answers.
func (s *CatalogService) GetLesson(ctx context.Context, userID, lessonID uint) (*LessonDetail, error) {
	db := s.db.WithContext(ctx)
	lesson, err := loadLesson(db, lessonID)
	if err != nil {
		return nil, err
	}

	states, err := s.ledger.States(ctx, nil, userID, []models.Lesson{*lesson})
	if err != nil {
		return nil, err
	}

	var exercises []models.Exercise
	if err := db.Where("lesson_id = ?", lessonID).Order("sort_order ASC, id ASC").Find(&exercises).Error; err != nil {
		return nil, apperrors.Internal("Failed to load exercises", err)
	}

	hintCounts := make(map[uint]int)
	if len(exercises) > 0 {
		ids := make([]uint, len(exercises))
		for i, ex := range exercises {
			ids[i] = ex.ID
		}
		var rows []struct {
			ExerciseID uint
			Count      int
		}
		if err := db.Model(&models.Hint{}).Select("exercise_id, COUNT(*) AS count").
			Where("exercise_id IN ?", ids).Group("exercise_id").Scan(&rows).Error; err != nil {
			return nil, apperrors.Internal("Failed to count hints", err)
		}
		for _, r := range rows {
			hintCounts[r.ExerciseID] = r.Count
		}
	}

	prereqs, err := prerequisiteMap(db, []models.Lesson{*lesson})
	if err != nil {
		return nil, err
	}

	detail := &LessonDetail{
		LessonState:   states[0],
		Prerequisites: prereqs[lesson.ID],
		Exercises:     make([]ExerciseView, len(exercises)),
	}
	if detail.Prerequisites == nil {
		detail.Prerequisites = []uint{}
	}
	for i, ex := range exercises {
		detail.Exercises[i] = ExerciseView{
			ID:         ex.ID,
			LessonID:   ex.LessonID,
			Prompt:     ex.Prompt,
			Type:       ex.Type,
			Options:    ex.Options,
			Order:      ex.Order,
			Difficulty: ex.Difficulty,
			HintCount:  hintCounts[ex.ID],
		}
	}
	return detail, nil
}

// Prerequisites returns the lessons that must be met before lessonID.
func (s *CatalogService) Prerequisites(ctx context.Context, lessonID uint) ([]models.Lesson, error) {
	db := s.db.WithContext(ctx)
	lesson, err := loadLesson(db, lessonID)
	if err != nil {
		return nil, err
	}
	prereqs, err := prerequisiteMap(db, []models.Lesson{*lesson})
	if err != nil {
		return nil, err
	}
	lessons := []models.Lesson{}
	if ids := prereqs[lessonID]; len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Order("sort_order ASC, id ASC").Find(&lessons).Error; err != nil {
			return nil, apperrors.Internal("Failed to load prerequisites", err)
		}
	}
	return lessons, nil
}

// LearningPath lists lessons in order with each one's status for the learner
// and the index of the first lesson not yet mastered.
func (s *CatalogService) LearningPath(ctx context.Context, userID uint, filter LessonFilter) (*LearningPath, error) {
	lessons, err := s.ListLessons(ctx, filter)
	if err != nil {
		return nil, err
	}
	states, err := s.ledger.States(ctx, nil, userID, lessons)
	if err != nil {
		return nil, err
	}

	statuses := make([]progression.Status, len(states))
	for i, st := range states {
		statuses[i] = st.Status
	}
	return &LearningPath{Lessons: states, CurrentIndex: progression.CurrentLessonIndex(statuses)}, nil
}

// Hints reveals hints up to and including level upTo, in order. Hints of a
// lesson that is locked for userID (0 for anonymous) are refused.
func (s *CatalogService) Hints(ctx context.Context, userID, exerciseID uint, upTo int) ([]models.Hint, error) {
	db := s.db.WithContext(ctx)
	var exercise models.Exercise
	if err := db.Select("id", "lesson_id").First(&exercise, exerciseID).Error; err != nil {
		return nil, notFoundOr(err, "Exercise")
	}
	if _, err := s.ledger.requireUnlocked(ctx, db, userID, exercise.LessonID); err != nil {
		return nil, err
	}

	q := db.Where("exercise_id = ?", exerciseID).Order("level ASC, sort_order ASC, id ASC")
	if upTo > 0 {
		q = q.Where("level <= ?", upTo)
	}
	var hints []models.Hint
	if err := q.Find(&hints).Error; err != nil {
		return nil, apperrors.Internal("Failed to load hints", err)
	}
	return hints, nil
}

// ================== ADMIN WRITES ==================

type CourseInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Color       string `json:"color" validate:"max=20"`
	Icon        string `json:"icon" validate:"max=50"`
	Order       int    `json:"order"`
}

type LessonInput struct {
	Title                string  `json:"title" validate:"required,max=200"`
	TheoryContent        string  `json:"theory_content"`
	Order                int     `json:"order"`
	CourseID             *uint   `json:"course_id"`
	Category             string  `json:"category" validate:"max=100"`
	Level                string  `json:"level" validate:"max=50"`
	PrerequisiteLessonID *uint   `json:"prerequisite_lesson_id"`
	MasteryThreshold     float64 `json:"mastery_threshold" validate:"min=0,max=100"`
	DifficultyLevel      int     `json:"difficulty_level"`
	IsCheckpoint         bool    `json:"is_checkpoint"`
	XPReward             int     `json:"xp_reward" validate:"min=0"`
}

type ExerciseInput struct {
	LessonID      uint                `json:"lesson_id" validate:"required"`
	Prompt        string              `json:"prompt" validate:"required"`
	Type          models.ExerciseType `json:"type" validate:"required,oneof=multiple_choice true_false numeric text"`
	Options       []string            `json:"options"`
	CorrectAnswer string              `json:"correct_answer" validate:"required"`
	Explanation   string              `json:"explanation"`
	Order         int                 `json:"order"`
	Difficulty    string              `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

type HintInput struct {
	ExerciseID uint   `json:"exercise_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	Level      int    `json:"level" validate:"min=0"`
	Order      int    `json:"order"`
}

func (s *CatalogService) CreateCourse(ctx context.Context, in CourseInput) (*models.Course, error) {
	if err := checkCourseInput(in); err != nil {
		return nil, err
	}
	course := models.Course{Name: strings.TrimSpace(in.Name), Description: in.Description, Color: in.Color, Icon: in.Icon, Order: in.Order}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, apperrors.Internal("Failed to create course", err)
	}
	return &course, nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, id uint, in CourseInput) (*models.Course, error) {
	if err := checkCourseInput(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var course models.Course
	if err := db.First(&course, id).Error; err != nil {
		return nil, notFoundOr(err, "Course")
	}
	err := db.Model(&course).Updates(map[string]interface{}{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"color":       in.Color,
		"icon":        in.Icon,
		"sort_order":  in.Order,
	}).Error
	if err != nil {
		return nil, apperrors.Internal("Failed to update course", err)
	}
	return &course, nil
}

// DeleteCourse detaches its lessons instead of deleting them.
func (s *CatalogService) DeleteCourse(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Course{}, id)
		if res.Error != nil {
			return apperrors.Internal("Failed to delete course", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("Course")
		}
		return tx.Model(&models.Lesson{}).Where("course_id = ?", id).Update("course_id", nil).Error
	})
}

func (s *CatalogService) CreateLesson(ctx context.Context, in LessonInput) (*models.Lesson, error) {
	lesson := lessonFromInput(in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkLessonRefs(tx, 0, in); err != nil {
			return err
		}
		if err := tx.Create(&lesson).Error; err != nil {
			return apperrors.Internal("Failed to create lesson", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (s *CatalogService) UpdateLesson(ctx context.Context, id uint, in LessonInput) (*models.Lesson, error) {
	var lesson models.Lesson
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lesson, id).Error; err != nil {
			return notFoundOr(err, "Lesson")
		}
		if err := checkLessonRefs(tx, id, in); err != nil {
			return err
		}
		if in.PrerequisiteLessonID != nil {
			if err := rejectCycle(tx, id, []uint{*in.PrerequisiteLessonID}); err != nil {
				return err
			}
		}
		threshold := in.MasteryThreshold
		if threshold == 0 {
			threshold = lesson.MasteryThreshold
		}
		return tx.Model(&lesson).Updates(map[string]interface{}{
			"title":                  in.Title,
			"theory_content":         in.TheoryContent,
			"sort_order":             in.Order,
			"course_id":              in.CourseID,
			"category":               in.Category,
			"level":                  in.Level,
			"prerequisite_lesson_id": in.PrerequisiteLessonID,
			"mastery_threshold":      threshold,
			"difficulty_level":       in.DifficultyLevel,
			"is_checkpoint":          in.IsCheckpoint,
			"xp_reward":              in.XPReward,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// DeleteLesson removes the lesson with its exercises, hints, edges, progress
// and attempt rows.
func (s *CatalogService) DeleteLesson(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadLesson(tx, id); err != nil {
			return err
		}
		exerciseIDs := tx.Model(&models.Exercise{}).Select("id").Where("lesson_id = ?", id)
		steps := []*gorm.DB{
			tx.Where("exercise_id IN (?)", exerciseIDs).Delete(&models.Hint{}),
			tx.Where("lesson_id = ?", id).Delete(&models.AnswerAttempt{}),
			tx.Where("lesson_id = ?", id).Delete(&models.Exercise{}),
			tx.Where("lesson_id = ? OR prerequisite_id = ?", id, id).Delete(&models.LessonPrerequisite{}),
			tx.Where("lesson_id = ?", id).Delete(&models.ProgressRecord{}),
			tx.Model(&models.Lesson{}).Where("prerequisite_lesson_id = ?", id).Update("prerequisite_lesson_id", nil),
			tx.Delete(&models.Lesson{}, id),
		}
		for _, step := range steps {
			if step.Error != nil {
				return apperrors.Internal("Failed to delete lesson", step.Error)
			}
		}
		return nil
	})
}

// SetPrerequisites replaces the lesson's adjacency rows. Self references and
// cycles are rejected.
func (s *CatalogService) SetPrerequisites(ctx context.Context, lessonID uint, prereqIDs []uint) error {
	prereqIDs = uniq(prereqIDs)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadLesson(tx, lessonID); err != nil {
			return err
		}
		for _, pid := range prereqIDs {
			if pid == lessonID {
				return apperrors.Validation("Invalid prerequisites", "a lesson cannot require itself")
			}
		}
		if len(prereqIDs) > 0 {
			var count int64
			if err := tx.Model(&models.Lesson{}).Where("id IN ?", prereqIDs).Count(&count).Error; err != nil {
				return apperrors.Internal("Failed to check prerequisites", err)
			}
			if int(count) != len(prereqIDs) {
				return apperrors.NotFound("Prerequisite lesson")
			}
			if err := rejectCycle(tx, lessonID, prereqIDs); err != nil {
				return err
			}
		}

		if err := tx.Where("lesson_id = ?", lessonID).Delete(&models.LessonPrerequisite{}).Error; err != nil {
			return apperrors.Internal("Failed to replace prerequisites", err)
		}
		for _, pid := range prereqIDs {
			if err := tx.Create(&models.LessonPrerequisite{LessonID: lessonID, PrerequisiteID: pid}).Error; err != nil {
				return apperrors.Internal("Failed to save prerequisite", err)
			}
		}
		return nil
	})
}

func (s *CatalogService) CreateExercise(ctx context.Context, in ExerciseInput) (*models.Exercise, error) {
	if err := checkExerciseInput(in); err != nil {
		return nil, err
	}
	ex := models.Exercise{
		LessonID:      in.LessonID,
		Prompt:        in.Prompt,
		Type:          in.Type,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		Explanation:   in.Explanation,
		Order:         in.Order,
		Difficulty:    in.Difficulty,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadLesson(tx, in.LessonID); err != nil {
			return err
		}
		if err := tx.Create(&ex).Error; err != nil {
			return apperrors.Internal("Failed to create exercise", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *CatalogService) UpdateExercise(ctx context.Context, id uint, in ExerciseInput) (*models.Exercise, error) {
	if err := checkExerciseInput(in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var ex models.Exercise
	if err := db.First(&ex, id).Error; err != nil {
		return nil, notFoundOr(err, "Exercise")
	}
	ex.Prompt = in.Prompt
	ex.Type = in.Type
	ex.Options = in.Options
	ex.CorrectAnswer = in.CorrectAnswer
	ex.Explanation = in.Explanation
	ex.Order = in.Order
	if in.Difficulty != "" {
		ex.Difficulty = in.Difficulty
	}
	if err := db.Save(&ex).Error; err != nil {
		return nil, apperrors.Internal("Failed to update exercise", err)
	}
	return &ex, nil
}

func (s *CatalogService) DeleteExercise(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exercise_id = ?", id).Delete(&models.Hint{}).Error; err != nil {
			return apperrors.Internal("Failed to delete hints", err)
		}
		if err := tx.Where("exercise_id = ?", id).Delete(&models.AnswerAttempt{}).Error; err != nil {
			return apperrors.Internal("Failed to delete attempts", err)
		}
		res := tx.Delete(&models.Exercise{}, id)
		if res.Error != nil {
			return apperrors.Internal("Failed to delete exercise", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("Exercise")
		}
		return nil
	})
}

func (s *CatalogService) CreateHint(ctx context.Context, in HintInput) (*models.Hint, error) {
	hint := models.Hint{ExerciseID: in.ExerciseID, Content: in.Content, Level: in.Level, Order: in.Order}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Exercise{}).Where("id = ?", in.ExerciseID).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to load exercise", err)
		}
		if count == 0 {
			return apperrors.NotFound("Exercise")
		}
		if err := tx.Create(&hint).Error; err != nil {
			return apperrors.Internal("Failed to create hint", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &hint, nil
}

func (s *CatalogService) DeleteHint(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Hint{}, id)
	if res.Error != nil {
		return apperrors.Internal("Failed to delete hint", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("Hint")
	}
	return nil
}

// ================== HELPERS ==================

func checkCourseInput(in CourseInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("Validation failed", "name is required")
	}
	return nil
}

// checkExerciseInput holds the rules shared by create and update; the lesson
// reference is checked separately since updates cannot move an exercise.
func checkExerciseInput(in ExerciseInput) error {
	switch {
	case strings.TrimSpace(in.Prompt) == "":
		return apperrors.Validation("Validation failed", "prompt is required")
	case strings.TrimSpace(in.CorrectAnswer) == "":
		return apperrors.Validation("Validation failed", "correct_answer is required")
	case !in.Type.Valid():
		return apperrors.Validation("Validation failed", "type is invalid")
	case in.Type == models.ExerciseMultipleChoice && len(in.Options) < 2:
		return apperrors.Validation("Validation failed", "multiple_choice needs at least two options")
	}
	return nil
}

func lessonFromInput(in LessonInput) models.Lesson {
	return models.Lesson{
		Title:                strings.TrimSpace(in.Title),
		TheoryContent:        in.TheoryContent,
		Order:                in.Order,
		CourseID:             in.CourseID,
		Category:             in.Category,
		Level:                in.Level,
		PrerequisiteLessonID: in.PrerequisiteLessonID,
		MasteryThreshold:     in.MasteryThreshold,
		DifficultyLevel:      in.DifficultyLevel,
		IsCheckpoint:         in.IsCheckpoint,
		XPReward:             in.XPReward,
	}
}

func checkLessonRefs(tx *gorm.DB, selfID uint, in LessonInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.Validation("Validation failed", "title is required")
	}
	if in.CourseID != nil {
		var count int64
		if err := tx.Model(&models.Course{}).Where("id = ?", *in.CourseID).Count(&count).Error; err != nil {
			return apperrors.Internal("Failed to load course", err)
		}
		if count == 0 {
			return apperrors.NotFound("Course")
		}
	}
	if in.PrerequisiteLessonID != nil {
		if selfID != 0 && *in.PrerequisiteLessonID == selfID {
			return apperrors.Validation("Invalid prerequisites", "a lesson cannot require itself")
		}
		if _, err := loadLesson(tx, *in.PrerequisiteLessonID); err != nil {
			return err
		}
	}
	return nil
}

// rejectCycle walks prerequisites from each candidate; reaching lessonID
// means the new edges would close a loop.
func rejectCycle(tx *gorm.DB, lessonID uint, candidates []uint) error {
	visited := make(map[uint]bool)
	queue := append([]uint{}, candidates...)
	for len(queue) > 0 {
		batch := uniq(queue)
		queue = nil
		var fresh []models.Lesson
		for _, id := range batch {
			if id == lessonID {
				return apperrors.Validation("Invalid prerequisites", "prerequisites would form a cycle")
			}
			if !visited[id] {
				visited[id] = true
				fresh = append(fresh, models.Lesson{ID: id})
			}
		}
		if len(fresh) == 0 {
			break
		}
		var loaded []models.Lesson
		ids := make([]uint, len(fresh))
		for i, l := range fresh {
			ids[i] = l.ID
		}
		if err := tx.Select("id", "prerequisite_lesson_id").Where("id IN ?", ids).Find(&loaded).Error; err != nil {
			return apperrors.Internal("Failed to walk prerequisites", err)
		}
		next, err := prerequisiteMap(tx, loaded)
		if err != nil {
			return err
		}
		for _, ps := range next {
			queue = append(queue, ps...)
		}
	}
	return nil
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource)
	}
	return apperrors.Internal("Failed to load "+strings.ToLower(resource), err)
}
