// handlers/catalog.go - Courses, lessons, learning path and hints
package handlers

import (
	"strconv"
	"strings"

	"studyhub/apperrors"
	"studyhub/middleware"
	"studyhub/services"
	"studyhub/utils"

	"github.com/gofiber/fiber/v2"
)

// lessonFilter reads ?course_id= and ?category= from the query string.
func lessonFilter(c *fiber.Ctx) (services.LessonFilter, error) {
	filter := services.LessonFilter{Category: strings.TrimSpace(c.Query("category"))}
	if raw := c.Query("course_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			return filter, apperrors.BadRequest("Invalid course_id")
		}
		id := uint(n)
		filter.CourseID = &id
	}
	return filter, nil
}

// GetCourses lists every course
// GET /api/courses
func GetCourses(c *fiber.Ctx) error {
	courses, err := svc.Catalog.ListCourses(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"courses": courses})
}

// GetCourse returns a course with its lessons in order
// GET /api/courses/:id
func GetCourse(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	course, err := svc.Catalog.GetCourse(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"course": course})
}

// GetLessons lists lessons, optionally by course or category
// GET /api/lessons?course_id=&category=
func GetLessons(c *fiber.Ctx) error {
	filter, err := lessonFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	lessons, err := svc.Catalog.ListLessons(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"lessons": lessons})
}

// GetLesson returns the lesson, its exercises without answers, and the
// caller's status when signed in.
// GET /api/lessons/:id
func GetLesson(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	detail, err := svc.Catalog.GetLesson(c.UserContext(), middleware.OptionalUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"lesson": detail})
}

// GetLessonPrerequisites lists the lessons gating this one
// GET /api/lessons/:id/prerequisites
func GetLessonPrerequisites(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	lessons, err := svc.Catalog.Prerequisites(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"prerequisites": lessons})
}

// OpenLesson records that the learner opened an unlocked lesson
// POST /api/lessons/:id/open
func OpenLesson(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	state, err := svc.Ledger.Touch(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"lesson": state})
}

// GetLearningPath returns lessons in order with the caller's status on each
// GET /api/learning-path?course_id=&category=
func GetLearningPath(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := lessonFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	path, err := svc.Catalog.LearningPath(c.UserContext(), userID, filter)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"lessons":       path.Lessons,
		"current_index": path.CurrentIndex,
	})
}

// GetHints reveals hints up to ?level=
// GET /api/exercises/:id/hints
func GetHints(c *fiber.Ctx) error {
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	level := utils.QueryInt(c, "level", 0, 0, 100)
	hints, err := svc.Catalog.Hints(c.UserContext(), middleware.OptionalUserID(c), id, level)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"hints": hints})
}

// UseHint counts a hint against the learner's progress on the lesson
// POST /api/exercises/:id/hints/use
func UseHint(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := utils.ParamUint(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	record, err := svc.Ledger.RecordHintUsage(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"progress": record})
}
