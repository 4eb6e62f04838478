// importer/catalog.go - Catalog document shared by the JSON, YAML and XLSX readers
package importer

import (
	"fmt"
	"strings"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/utils"
)

const (
	defaultMasteryThreshold = 80
	defaultXPReward         = 10
)

// Catalog is a full course tree. Lessons outside any course sit in Lessons
// and are sequenced by category.
type Catalog struct {
	Courses []CourseDoc `json:"courses" yaml:"courses"`
	Lessons []LessonDoc `json:"lessons" yaml:"lessons"`
}

type CourseDoc struct {
	Name        string      `json:"name" yaml:"name" validate:"required,max=100"`
	Description string      `json:"description" yaml:"description"`
	Color       string      `json:"color" yaml:"color" validate:"max=20"`
	Icon        string      `json:"icon" yaml:"icon" validate:"max=50"`
	Order       int         `json:"order" yaml:"order"`
	Lessons     []LessonDoc `json:"lessons" yaml:"lessons"`
}

// LessonDoc is one lesson. Key identifies it inside the document and
// defaults to Title; Requires lists the keys of its prerequisites.
type LessonDoc struct {
	Key              string        `json:"key" yaml:"key"`
	Title            string        `json:"title" yaml:"title" validate:"required,max=200"`
	TheoryContent    string        `json:"theory_content" yaml:"theory_content"`
	Order            int           `json:"order" yaml:"order"`
	Category         string        `json:"category" yaml:"category" validate:"max=100"`
	Level            string        `json:"level" yaml:"level" validate:"max=50"`
	MasteryThreshold float64       `json:"mastery_threshold" yaml:"mastery_threshold" validate:"min=0,max=100"`
	DifficultyLevel  int           `json:"difficulty_level" yaml:"difficulty_level"`
	IsCheckpoint     bool          `json:"is_checkpoint" yaml:"is_checkpoint"`
	XPReward         int           `json:"xp_reward" yaml:"xp_reward" validate:"min=0"`
	Requires         []string      `json:"requires" yaml:"requires"`
	Exercises        []ExerciseDoc `json:"exercises" yaml:"exercises"`
}

type ExerciseDoc struct {
	Prompt        string              `json:"prompt" yaml:"prompt" validate:"required"`
	Type          models.ExerciseType `json:"type" yaml:"type" validate:"required"`
	Options       []string            `json:"options" yaml:"options"`
	CorrectAnswer string              `json:"correct_answer" yaml:"correct_answer" validate:"required"`
	Explanation   string              `json:"explanation" yaml:"explanation"`
	Order         int                 `json:"order" yaml:"order"`
	Difficulty    string              `json:"difficulty" yaml:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Hints         []HintDoc           `json:"hints" yaml:"hints"`
}

type HintDoc struct {
	Content string `json:"content" yaml:"content" validate:"required"`
	Level   int    `json:"level" yaml:"level" validate:"min=0"`
}

// LessonKey returns the key other lessons use to require this one.
func (l LessonDoc) LessonKey() string {
	if k := strings.TrimSpace(l.Key); k != "" {
		return k
	}
	return strings.TrimSpace(l.Title)
}

// Counts returns the number of courses, lessons and exercises in the document.
func (c *Catalog) Counts() (courses, lessons, exercises int) {
	courses = len(c.Courses)
	c.eachLesson(func(_ *CourseDoc, l *LessonDoc) {
		lessons++
		exercises += len(l.Exercises)
	})
	return
}

func (c *Catalog) eachLesson(fn func(course *CourseDoc, lesson *LessonDoc)) {
	for i := range c.Courses {
		for j := range c.Courses[i].Lessons {
			fn(&c.Courses[i], &c.Courses[i].Lessons[j])
		}
	}
	for j := range c.Lessons {
		fn(nil, &c.Lessons[j])
	}
}

// Problems lists everything wrong with the document. An empty result means
// Import can run it.
func (c *Catalog) Problems() []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	courseNames := make(map[string]bool)
	for _, course := range c.Courses {
		if err := utils.Validate(course); err != nil {
			add("course %q: %s", course.Name, apperrors.As(err).Details)
		}
		name := strings.ToLower(strings.TrimSpace(course.Name))
		if courseNames[name] {
			add("course %q: listed twice", course.Name)
		}
		courseNames[name] = true
	}

	keys := make(map[string]bool)
	c.eachLesson(func(_ *CourseDoc, l *LessonDoc) {
		key := l.LessonKey()
		if err := utils.Validate(l); err != nil {
			add("lesson %q: %s", key, apperrors.As(err).Details)
		}
		if key == "" {
			return
		}
		if keys[key] {
			add("lesson %q: duplicate key", key)
		}
		keys[key] = true
	})

	c.eachLesson(func(_ *CourseDoc, l *LessonDoc) {
		key := l.LessonKey()
		for _, req := range l.Requires {
			req = strings.TrimSpace(req)
			switch {
			case req == key:
				add("lesson %q: cannot require itself", key)
			case !keys[req]:
				add("lesson %q: requires unknown lesson %q", key, req)
			}
		}
		for i, ex := range l.Exercises {
			if err := utils.Validate(ex); err != nil {
				add("lesson %q exercise %d: %s", key, i+1, apperrors.As(err).Details)
			}
			if ex.Type != "" && !ex.Type.Valid() {
				add("lesson %q exercise %d: unknown type %q", key, i+1, ex.Type)
			}
			if ex.Type == models.ExerciseMultipleChoice && len(ex.Options) < 2 {
				add("lesson %q exercise %d: multiple_choice needs at least two options", key, i+1)
			}
			for j, h := range ex.Hints {
				if err := utils.Validate(h); err != nil {
					add("lesson %q exercise %d hint %d: %s", key, i+1, j+1, apperrors.As(err).Details)
				}
			}
		}
	})
	return problems
}

// Validate returns a Validation error carrying every problem, or nil.
func Validate(c *Catalog) error {
	if c == nil {
		return apperrors.Validation("Invalid catalog", "catalog is empty")
	}
	problems := c.Problems()
	if len(problems) == 0 {
		return nil
	}
	return apperrors.Validation("Invalid catalog", strings.Join(problems, "; "))
}
