package services

import (
	"context"
	"sync"
	"testing"

	"studyhub/database"
	"studyhub/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentEvent struct {
	UserID  uint
	Type    string
	Payload interface{}
}

// recordingNotifier captures pushed events instead of writing to sockets.
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) SendToUser(userID uint, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{UserID: userID, Type: msgType, Payload: payload})
}

func (n *recordingNotifier) SendToUsers(userIDs []uint, msgType string, payload interface{}) {
	for _, id := range userIDs {
		n.SendToUser(id, msgType, payload)
	}
}

func (n *recordingNotifier) ofType(msgType string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.Type == msgType {
			out = append(out, e)
		}
	}
	return out
}

func setup(t *testing.T) (*Services, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	return New(Deps{DB: db, Notifier: notifier}), db, notifier
}

func createUser(t *testing.T, svcs *Services, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Password: "hashed"}
	require.NoError(t, svcs.Users.CreateUser(context.Background(), user, ""))
	return user
}

func createGuest(t *testing.T, svcs *Services, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Password: "hashed", IsGuest: true}
	require.NoError(t, svcs.Users.CreateUser(context.Background(), user, ""))
	return user
}

func createCourse(t *testing.T, db *gorm.DB, name string) *models.Course {
	t.Helper()
	course := &models.Course{Name: name}
	require.NoError(t, db.Create(course).Error)
	return course
}

type lessonOpt func(*models.Lesson)

func inCourse(id uint) lessonOpt {
	return func(l *models.Lesson) { l.CourseID = &id }
}

func requires(id uint) lessonOpt {
	return func(l *models.Lesson) { l.PrerequisiteLessonID = &id }
}

func createLesson(t *testing.T, db *gorm.DB, title string, order int, opts ...lessonOpt) *models.Lesson {
	t.Helper()
	lesson := &models.Lesson{
		Title:            title,
		Order:            order,
		Category:         "matematica",
		MasteryThreshold: 80,
		XPReward:         10,
	}
	for _, opt := range opts {
		opt(lesson)
	}
	require.NoError(t, db.Create(lesson).Error)
	return lesson
}

func createExercise(t *testing.T, db *gorm.DB, lessonID uint, answer string) *models.Exercise {
	t.Helper()
	ex := &models.Exercise{
		LessonID:      lessonID,
		Prompt:        "Quanto é 2 + 2?",
		Type:          models.ExerciseNumeric,
		CorrectAnswer: answer,
		Explanation:   "Soma simples.",
		Difficulty:    "easy",
	}
	require.NoError(t, db.Create(ex).Error)
	return ex
}

func profileXP(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var p models.Profile
	require.NoError(t, db.Where("user_id = ?", userID).First(&p).Error)
	return p.XP
}
