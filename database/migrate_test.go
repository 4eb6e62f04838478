package database

import (
	"path/filepath"
	"sync"
	"testing"

	"studyhub/config"
	"studyhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMigrationsCreatesTables(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	for _, table := range []string{
		"users", "users_profile", "courses", "lessons", "lesson_prerequisites", "exercises",
		"hints", "user_progress", "answer_attempts", "achievements", "streaks",
		"user_friends", "discussions", "discussion_likes", "discussion_replies", "reply_likes",
		"study_groups", "group_members", "group_messages",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.False(t, IsPostgres(conn))
}

func TestProgressUniquePerUserLesson(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.ProgressRecord{UserID: 1, LessonID: 1}).Error)
	assert.Error(t, conn.Create(&models.ProgressRecord{UserID: 1, LessonID: 1}).Error)
}

func TestOptionsRoundTripAsJSON(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	ex := models.Exercise{LessonID: 1, Prompt: "2+2", Type: models.ExerciseMultipleChoice, Options: []string{"3", "4"}, CorrectAnswer: "4"}
	require.NoError(t, conn.Create(&ex).Error)

	var got models.Exercise
	require.NoError(t, conn.First(&got, ex.ID).Error)
	assert.Equal(t, []string{"3", "4"}, got.Options)
}

func TestInitDBSQLiteSerialisesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "studyhub.db")
	conn, err := InitDB(config.DatabaseConfig{Type: "sqlite", SQLitePath: path, LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB() })

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	var timeout int
	require.NoError(t, conn.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 5000, timeout)

	var mode string
	require.NoError(t, conn.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- conn.Create(&models.ProgressRecord{UserID: uint(i + 1), LessonID: 1}).Error
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_journal_mode=WAL", SQLiteDSN("a.db"))
	assert.Equal(t, "a.db?cache=shared&_busy_timeout=5000&_journal_mode=WAL", SQLiteDSN("a.db?cache=shared"))
}
