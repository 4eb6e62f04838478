// importer/importer.go - Writes a parsed catalog through the catalog service
package importer

import (
	"context"
	"strings"

	"studyhub/models"
	"studyhub/services"

	"go.uber.org/zap"
)

// Result counts what an import touched. Lessons already present under the
// same course (or, for course-less lessons, the same category) with the same
// title are skipped together with their exercises.
type Result struct {
	CoursesCreated    int `json:"courses_created"`
	CoursesReused     int `json:"courses_reused"`
	LessonsCreated    int `json:"lessons_created"`
	LessonsSkipped    int `json:"lessons_skipped"`
	ExercisesCreated  int `json:"exercises_created"`
	HintsCreated      int `json:"hints_created"`
	PrerequisiteEdges int `json:"prerequisite_edges"`
}

type Importer struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func New(catalog *services.CatalogService, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{catalog: catalog, log: log}
}

// Import validates cat and writes it. Nothing is written when validation
// fails. Prerequisites are linked in a second pass so a lesson may require
// one that appears later in the document.
func (im *Importer) Import(ctx context.Context, cat *Catalog) (*Result, error) {
	if err := Validate(cat); err != nil {
		return nil, err
	}

	res := &Result{}
	ids := make(map[string]uint)
	created := make(map[string]bool)

	existing, err := im.catalog.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	courseIDs := make(map[string]uint, len(existing))
	for _, c := range existing {
		courseIDs[strings.ToLower(c.Name)] = c.ID
	}

	for _, doc := range cat.Courses {
		courseID, ok := courseIDs[strings.ToLower(strings.TrimSpace(doc.Name))]
		if ok {
			res.CoursesReused++
		} else {
			course, err := im.catalog.CreateCourse(ctx, services.CourseInput{
				Name:        doc.Name,
				Description: doc.Description,
				Color:       doc.Color,
				Icon:        doc.Icon,
				Order:       doc.Order,
			})
			if err != nil {
				return res, err
			}
			courseID = course.ID
			res.CoursesCreated++
		}

		if err := im.importLessons(ctx, &courseID, doc.Lessons, ids, created, res); err != nil {
			return res, err
		}
		im.log.Info("📚 Imported course",
			zap.String("course", doc.Name),
			zap.Uint("course_id", courseID),
			zap.Int("lessons", len(doc.Lessons)))
	}

	if err := im.importLessons(ctx, nil, cat.Lessons, ids, created, res); err != nil {
		return res, err
	}

	var linkErr error
	cat.eachLesson(func(_ *CourseDoc, l *LessonDoc) {
		key := l.LessonKey()
		if linkErr != nil || !created[key] || len(l.Requires) == 0 {
			return
		}
		prereqs := make([]uint, 0, len(l.Requires))
		for _, req := range l.Requires {
			prereqs = append(prereqs, ids[strings.TrimSpace(req)])
		}
		if err := im.catalog.SetPrerequisites(ctx, ids[key], prereqs); err != nil {
			linkErr = err
			return
		}
		res.PrerequisiteEdges += len(prereqs)
	})
	if linkErr != nil {
		return res, linkErr
	}

	im.log.Info("✅ Catalog import finished",
		zap.Int("courses_created", res.CoursesCreated),
		zap.Int("courses_reused", res.CoursesReused),
		zap.Int("lessons_created", res.LessonsCreated),
		zap.Int("lessons_skipped", res.LessonsSkipped),
		zap.Int("exercises_created", res.ExercisesCreated),
		zap.Int("hints_created", res.HintsCreated),
		zap.Int("prerequisite_edges", res.PrerequisiteEdges))
	return res, nil
}

func (im *Importer) importLessons(ctx context.Context, courseID *uint, docs []LessonDoc, ids map[string]uint, created map[string]bool, res *Result) error {
	if len(docs) == 0 {
		return nil
	}

	for i, doc := range docs {
		key := doc.LessonKey()
		if id, ok, err := im.findLesson(ctx, courseID, doc); err != nil {
			return err
		} else if ok {
			ids[key] = id
			res.LessonsSkipped++
			im.log.Debug("Lesson already present, skipping", zap.String("lesson", key), zap.Uint("lesson_id", id))
			continue
		}

		in := services.LessonInput{
			Title:            doc.Title,
			TheoryContent:    doc.TheoryContent,
			Order:            doc.Order,
			CourseID:         courseID,
			Category:         doc.Category,
			Level:            doc.Level,
			MasteryThreshold: doc.MasteryThreshold,
			DifficultyLevel:  doc.DifficultyLevel,
			IsCheckpoint:     doc.IsCheckpoint,
			XPReward:         doc.XPReward,
		}
		if in.Order == 0 {
			in.Order = i + 1
		}
		if in.MasteryThreshold == 0 {
			in.MasteryThreshold = defaultMasteryThreshold
		}
		if in.XPReward == 0 {
			in.XPReward = defaultXPReward
		}

		lesson, err := im.catalog.CreateLesson(ctx, in)
		if err != nil {
			return err
		}
		ids[key] = lesson.ID
		created[key] = true
		res.LessonsCreated++

		if err := im.importExercises(ctx, lesson.ID, doc.Exercises, res); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) findLesson(ctx context.Context, courseID *uint, doc LessonDoc) (uint, bool, error) {
	filter := services.LessonFilter{CourseID: courseID}
	if courseID == nil {
		filter.Category = doc.Category
	}
	lessons, err := im.catalog.ListLessons(ctx, filter)
	if err != nil {
		return 0, false, err
	}
	title := strings.TrimSpace(doc.Title)
	for _, l := range lessons {
		if courseID == nil && l.CourseID != nil {
			continue
		}
		if strings.EqualFold(l.Title, title) {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

func (im *Importer) importExercises(ctx context.Context, lessonID uint, docs []ExerciseDoc, res *Result) error {
	for i, doc := range docs {
		in := services.ExerciseInput{
			LessonID:      lessonID,
			Prompt:        doc.Prompt,
			Type:          doc.Type,
			Options:       doc.Options,
			CorrectAnswer: doc.CorrectAnswer,
			Explanation:   doc.Explanation,
			Order:         doc.Order,
			Difficulty:    doc.Difficulty,
		}
		if in.Order == 0 {
			in.Order = i + 1
		}
		if in.Type == models.ExerciseTrueFalse && len(in.Options) == 0 {
			in.Options = []string{"true", "false"}
		}

		ex, err := im.catalog.CreateExercise(ctx, in)
		if err != nil {
			return err
		}
		res.ExercisesCreated++

		for j, h := range doc.Hints {
			level := h.Level
			if level == 0 {
				level = j + 1
			}
			if _, err := im.catalog.CreateHint(ctx, services.HintInput{
				ExerciseID: ex.ID,
				Content:    h.Content,
				Level:      level,
				Order:      j + 1,
			}); err != nil {
				return err
			}
			res.HintsCreated++
		}
	}
	return nil
}
