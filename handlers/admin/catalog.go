// handlers/admin/catalog.go - Course, lesson, exercise and hint management
package admin

import (
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PrerequisitesRequest struct {
	LessonIDs []uint `json:"lesson_ids"`
}

// ================== COURSES ==================

// CreateCourse
// POST /api/admin/courses
func CreateCourse(c *fiber.Ctx) error {
	var in services.CourseInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	course, err := svc.Catalog.CreateCourse(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	logger.Info("📚 Course created", zap.Uint("course_id", course.ID), zap.String("name", course.Name))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "course": course})
}

// UpdateCourse
// PUT /api/admin/courses/:id
func UpdateCourse(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in services.CourseInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	course, err := svc.Catalog.UpdateCourse(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"course": course})
}

// DeleteCourse detaches its lessons and removes the course
// DELETE /api/admin/courses/:id
func DeleteCourse(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Catalog.DeleteCourse(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Course deleted"})
}

// ================== LESSONS ==================

// CreateLesson
// POST /api/admin/lessons
func CreateLesson(c *fiber.Ctx) error {
	var in services.LessonInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	lesson, err := svc.Catalog.CreateLesson(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "lesson": lesson})
}

// UpdateLesson
// PUT /api/admin/lessons/:id
func UpdateLesson(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in services.LessonInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	lesson, err := svc.Catalog.UpdateLesson(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"lesson": lesson})
}

// DeleteLesson removes the lesson with its exercises, hints and progress
// DELETE /api/admin/lessons/:id
func DeleteLesson(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Catalog.DeleteLesson(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Lesson deleted"})
}

// SetPrerequisites replaces the lesson's prerequisite set
// PUT /api/admin/lessons/:id/prerequisites
func SetPrerequisites(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req PrerequisitesRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := svc.Catalog.SetPrerequisites(c.UserContext(), id, req.LessonIDs); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"lesson_id": id, "prerequisites": req.LessonIDs})
}

// ================== EXERCISES & HINTS ==================

// CreateExercise
// POST /api/admin/exercises
func CreateExercise(c *fiber.Ctx) error {
	var in services.ExerciseInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	exercise, err := svc.Catalog.CreateExercise(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "exercise": exercise})
}

// UpdateExercise
// PUT /api/admin/exercises/:id
func UpdateExercise(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in services.ExerciseInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	exercise, err := svc.Catalog.UpdateExercise(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"exercise": exercise})
}

// DeleteExercise
// DELETE /api/admin/exercises/:id
func DeleteExercise(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Catalog.DeleteExercise(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Exercise deleted"})
}

// CreateHint
// POST /api/admin/hints
func CreateHint(c *fiber.Ctx) error {
	var in services.HintInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	hint, err := svc.Catalog.CreateHint(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "hint": hint})
}

// DeleteHint
// DELETE /api/admin/hints/:id
func DeleteHint(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := svc.Catalog.DeleteHint(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"message": "Hint deleted"})
}
