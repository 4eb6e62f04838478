// models/catalog.go - Courses, lessons, exercises and hints
package models

import "time"

type ExerciseType string

const (
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseTrueFalse      ExerciseType = "true_false"
	ExerciseNumeric        ExerciseType = "numeric"
	ExerciseText           ExerciseType = "text"
)

func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseMultipleChoice, ExerciseTrueFalse, ExerciseNumeric, ExerciseText:
		return true
	}
	return false
}

type Course struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:100;index"`
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"size:20"`
	Icon        string    `json:"icon" gorm:"size:50"`
	Order       int       `json:"order" gorm:"column:sort_order;default:0;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Lessons     []Lesson  `json:"lessons,omitempty" gorm:"foreignKey:CourseID"`
}

type Lesson struct {
	ID                   uint       `json:"id" gorm:"primaryKey"`
	Title                string     `json:"title" gorm:"not null;size:200"`
	TheoryContent        string     `json:"theory_content" gorm:"type:text"`
	Order                int        `json:"order" gorm:"column:sort_order;default:0;index"`
	CourseID             *uint      `json:"course_id" gorm:"index"`
	Course               *Course    `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Category             string     `json:"category" gorm:"size:100;index"`
	Level                string     `json:"level" gorm:"size:50"`
	PrerequisiteLessonID *uint      `json:"prerequisite_lesson_id" gorm:"index"`
	MasteryThreshold     float64    `json:"mastery_threshold" gorm:"not null;default:80"`
	DifficultyLevel      int        `json:"difficulty_level" gorm:"default:1"`
	IsCheckpoint         bool       `json:"is_checkpoint" gorm:"default:false"`
	XPReward             int        `json:"xp_reward" gorm:"not null;default:10"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Exercises            []Exercise `json:"exercises,omitempty" gorm:"foreignKey:LessonID"`
}

// LessonPrerequisite is one edge of the prerequisite graph. A lesson's full
// prerequisite set is these rows plus Lesson.PrerequisiteLessonID.
type LessonPrerequisite struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	LessonID       uint `json:"lesson_id" gorm:"not null;uniqueIndex:idx_lesson_prereq_pair"`
	PrerequisiteID uint `json:"prerequisite_id" gorm:"not null;uniqueIndex:idx_lesson_prereq_pair;index"`
}

type Exercise struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	LessonID      uint         `json:"lesson_id" gorm:"not null;index"`
	Lesson        *Lesson      `json:"lesson,omitempty" gorm:"foreignKey:LessonID"`
	Prompt        string       `json:"prompt" gorm:"not null;type:text"`
	Type          ExerciseType `json:"type" gorm:"not null;size:30"`
	Options       []string     `json:"options" gorm:"serializer:json;type:text"`
	CorrectAnswer string       `json:"correct_answer" gorm:"not null;size:500"`
	Explanation   string       `json:"explanation" gorm:"type:text"`
	Order         int          `json:"order" gorm:"column:sort_order;default:0"`
	Difficulty    string       `json:"difficulty" gorm:"default:'medium';size:20;index"`
	CreatedAt     time.Time    `json:"created_at"`
	Hints         []Hint       `json:"hints,omitempty" gorm:"foreignKey:ExerciseID"`
}

type Hint struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ExerciseID uint   `json:"exercise_id" gorm:"not null;index"`
	Content    string `json:"content" gorm:"not null;type:text"`
	Level      int    `json:"level" gorm:"default:1"`
	Order      int    `json:"order" gorm:"column:sort_order;default:0"`
}

func (Course) TableName() string {
	return "courses"
}

func (Lesson) TableName() string {
	return "lessons"
}

func (LessonPrerequisite) TableName() string {
	return "lesson_prerequisites"
}

func (Exercise) TableName() string {
	return "exercises"
}

func (Hint) TableName() string {
	return "hints"
}
