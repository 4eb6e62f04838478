package services

import (
	"context"
	"testing"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearningPathFirstLessonPerCourse(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "ana")

	math := createCourse(t, db, "Matemática")
	physics := createCourse(t, db, "Física")
	m1 := createLesson(t, db, "Números", 5, inCourse(math.ID))
	createLesson(t, db, "Frações", 6, inCourse(math.ID), requires(m1.ID))
	// order 0 alone does not unlock: only the lowest lesson of each course does
	p1 := createLesson(t, db, "Cinemática", 0, inCourse(physics.ID))
	createLesson(t, db, "Dinâmica", 0, inCourse(physics.ID), requires(p1.ID))

	path, err := svcs.Catalog.LearningPath(ctx, user.ID, LessonFilter{})
	require.NoError(t, err)
	require.Len(t, path.Lessons, 4)

	statuses := map[string]progression.Status{}
	for _, st := range path.Lessons {
		statuses[st.Lesson.Title] = st.Status
	}
	assert.Equal(t, progression.StatusUnlocked, statuses["Números"])
	assert.Equal(t, progression.StatusLocked, statuses["Frações"])
	assert.Equal(t, progression.StatusUnlocked, statuses["Cinemática"])
	assert.Equal(t, progression.StatusLocked, statuses["Dinâmica"])

	onlyMath, err := svcs.Catalog.LearningPath(ctx, user.ID, LessonFilter{CourseID: &math.ID})
	require.NoError(t, err)
	assert.Len(t, onlyMath.Lessons, 2)
	assert.Equal(t, 0, onlyMath.CurrentIndex)
}

func TestLessonWithoutPrerequisitesIsUnlocked(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "bia")
	createLesson(t, db, "Primeira", 0)
	free := createLesson(t, db, "Avulsa", 3)

	detail, err := svcs.Catalog.GetLesson(ctx, user.ID, free.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.StatusUnlocked, detail.Status)
	assert.Nil(t, detail.Progress)
}

func TestGetLessonHidesAnswers(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	lesson := createLesson(t, db, "Frações", 0)
	ex := createExercise(t, db, lesson.ID, "4")
	require.NoError(t, db.Create(&models.Hint{ExerciseID: ex.ID, Content: "Conte nos dedos", Level: 1}).Error)
	require.NoError(t, db.Create(&models.Hint{ExerciseID: ex.ID, Content: "2 e 2", Level: 2}).Error)

	detail, err := svcs.Catalog.GetLesson(ctx, 0, lesson.ID)
	require.NoError(t, err)
	require.Len(t, detail.Exercises, 1)
	assert.Equal(t, 2, detail.Exercises[0].HintCount)
	assert.Equal(t, ex.Prompt, detail.Exercises[0].Prompt)

	hints, err := svcs.Catalog.Hints(ctx, 0, ex.ID, 1)
	require.NoError(t, err)
	require.Len(t, hints, 1)
	assert.Equal(t, "Conte nos dedos", hints[0].Content)

	_, err = svcs.Catalog.Hints(ctx, 0, 999, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = svcs.Catalog.GetLesson(ctx, 0, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSetPrerequisitesRejectsCycles(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	a := createLesson(t, db, "A", 0)
	b := createLesson(t, db, "B", 1, requires(a.ID))
	c := createLesson(t, db, "C", 2)

	require.NoError(t, svcs.Catalog.SetPrerequisites(ctx, c.ID, []uint{b.ID}))

	err := svcs.Catalog.SetPrerequisites(ctx, a.ID, []uint{c.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "A <- C <- B <- A")

	err = svcs.Catalog.SetPrerequisites(ctx, a.ID, []uint{a.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	err = svcs.Catalog.SetPrerequisites(ctx, a.ID, []uint{999})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	prereqs, err := svcs.Catalog.Prerequisites(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, b.ID, prereqs[0].ID)
}

func TestMultiplePrerequisitesAllRequired(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "caio")
	a := createLesson(t, db, "A", 0)
	b := createLesson(t, db, "B", 1)
	c := createLesson(t, db, "C", 2)
	require.NoError(t, svcs.Catalog.SetPrerequisites(ctx, c.ID, []uint{a.ID, b.ID}))

	require.NoError(t, db.Create(&models.ProgressRecord{UserID: user.ID, LessonID: a.ID, MasteryScore: 100, Completed: true}).Error)
	detail, err := svcs.Catalog.GetLesson(ctx, user.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.StatusLocked, detail.Status)

	require.NoError(t, db.Create(&models.ProgressRecord{UserID: user.ID, LessonID: b.ID, MasteryScore: 85}).Error)
	detail, err = svcs.Catalog.GetLesson(ctx, user.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.StatusUnlocked, detail.Status)
}

func TestDeleteLessonRemovesDependents(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "duda")
	a := createLesson(t, db, "A", 0)
	b := createLesson(t, db, "B", 1, requires(a.ID))
	ex := createExercise(t, db, a.ID, "4")
	_, err := svcs.Submissions.Submit(ctx, user.ID, SubmitRequest{ExerciseID: ex.ID, UserAnswer: "4"})
	require.NoError(t, err)

	require.NoError(t, svcs.Catalog.DeleteLesson(ctx, a.ID))

	var count int64
	require.NoError(t, db.Model(&models.Exercise{}).Where("lesson_id = ?", a.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.AnswerAttempt{}).Where("lesson_id = ?", a.ID).Count(&count).Error)
	assert.Zero(t, count)

	var reloaded models.Lesson
	require.NoError(t, db.First(&reloaded, b.ID).Error)
	assert.Nil(t, reloaded.PrerequisiteLessonID)

	assert.True(t, apperrors.HasCode(svcs.Catalog.DeleteLesson(ctx, a.ID), apperrors.CodeNotFound))
}

func TestTouchRefusesLockedLesson(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "edu")
	a := createLesson(t, db, "A", 0)
	b := createLesson(t, db, "B", 1, requires(a.ID))

	_, err := svcs.Ledger.Touch(ctx, user.ID, b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	rec, err := svcs.Ledger.Get(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	state, err := svcs.Ledger.Touch(ctx, user.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Progress)
	assert.True(t, state.Progress.IsUnlocked)

	// touching twice keeps a single row
	_, err = svcs.Ledger.Touch(ctx, user.ID, a.ID)
	require.NoError(t, err)
	all, err := svcs.Ledger.GetAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordHintUsage(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "fabi")
	lesson := createLesson(t, db, "A", 0)
	ex := createExercise(t, db, lesson.ID, "4")

	_, err := svcs.Ledger.RecordHintUsage(ctx, user.ID, ex.ID)
	require.NoError(t, err)
	rec, err := svcs.Ledger.RecordHintUsage(ctx, user.ID, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.HintUsage)

	_, err = svcs.Ledger.RecordHintUsage(ctx, user.ID, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestHintsRefusedOnLockedLesson(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "gabi")
	a := createLesson(t, db, "A", 0)
	b := createLesson(t, db, "B", 1, requires(a.ID))
	exB := createExercise(t, db, b.ID, "4")
	require.NoError(t, db.Create(&models.Hint{ExerciseID: exB.ID, Content: "Some", Level: 1}).Error)

	_, err := svcs.Ledger.RecordHintUsage(ctx, user.ID, exB.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	rec, err := svcs.Ledger.Get(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "a refused hint leaves no progress row")

	_, err = svcs.Catalog.Hints(ctx, user.ID, exB.ID, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = svcs.Catalog.Hints(ctx, 0, exB.ID, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	// mastering A opens B and its hints
	_, err = svcs.Ledger.Upsert(ctx, nil, user.ID, a.ID, map[string]interface{}{"mastery_score": 100.0, "completed": true})
	require.NoError(t, err)
	hints, err := svcs.Catalog.Hints(ctx, user.ID, exB.ID, 0)
	require.NoError(t, err)
	assert.Len(t, hints, 1)
	rec, err = svcs.Ledger.RecordHintUsage(ctx, user.ID, exB.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.HintUsage)
}

func TestCreateExerciseValidation(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	lesson := createLesson(t, db, "A", 0)

	_, err := svcs.Catalog.CreateExercise(ctx, ExerciseInput{LessonID: lesson.ID, Prompt: "?", Type: "essay", CorrectAnswer: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svcs.Catalog.CreateExercise(ctx, ExerciseInput{LessonID: lesson.ID, Prompt: "?", Type: models.ExerciseMultipleChoice, Options: []string{"a"}, CorrectAnswer: "a"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	ex, err := svcs.Catalog.CreateExercise(ctx, ExerciseInput{LessonID: lesson.ID, Prompt: "?", Type: models.ExerciseMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ex.Options)

	_, err = svcs.Catalog.CreateExercise(ctx, ExerciseInput{LessonID: 999, Prompt: "?", Type: models.ExerciseText, CorrectAnswer: "a"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdatesApplyCreateRules(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	course := createCourse(t, db, "Biologia")
	lesson := createLesson(t, db, "Células", 0)
	ex := createExercise(t, db, lesson.ID, "4")

	_, err := svcs.Catalog.UpdateCourse(ctx, course.ID, CourseInput{Name: "   "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	cases := map[string]ExerciseInput{
		"invalid type":         {Prompt: "?", Type: "essay", CorrectAnswer: "x"},
		"single option":        {Prompt: "?", Type: models.ExerciseMultipleChoice, Options: []string{"a"}, CorrectAnswer: "a"},
		"blank prompt":         {Prompt: " ", Type: models.ExerciseText, CorrectAnswer: "a"},
		"blank correct answer": {Prompt: "?", Type: models.ExerciseText},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svcs.Catalog.UpdateExercise(ctx, ex.ID, in)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		})
	}

	var stored models.Course
	require.NoError(t, db.First(&stored, course.ID).Error)
	assert.Equal(t, "Biologia", stored.Name)

	var storedEx models.Exercise
	require.NoError(t, db.First(&storedEx, ex.ID).Error)
	assert.Equal(t, models.ExerciseNumeric, storedEx.Type)
	assert.Equal(t, "4", storedEx.CorrectAnswer)

	updated, err := svcs.Catalog.UpdateExercise(ctx, ex.ID, ExerciseInput{Prompt: "Escolha", Type: models.ExerciseMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, updated.Options)
}
