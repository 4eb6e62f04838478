// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"

	"studyhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(conn *gorm.DB, log *zap.Logger) error {
	log.Info("🔄 running database migrations")

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Course{},
		&models.Lesson{},
		&models.LessonPrerequisite{},
		&models.Exercise{},
		&models.Hint{},
		&models.ProgressRecord{},
		&models.AnswerAttempt{},
		&models.Achievement{},
		&models.Streak{},
	); err != nil {
		return fmt.Errorf("failed to run core migrations: %w", err)
	}

	if err := RunCommunityMigrations(conn); err != nil {
		return fmt.Errorf("failed to run community migrations: %w", err)
	}

	createCoreIndexes(conn)

	log.Info("✅ all migrations completed")
	return nil
}

// RunCommunityMigrations creates friends, discussions and study group tables
func RunCommunityMigrations(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&models.Friendship{},
		&models.Discussion{},
		&models.DiscussionLike{},
		&models.DiscussionReply{},
		&models.ReplyLike{},
		&models.StudyGroup{},
		&models.GroupMember{},
		&models.GroupMessage{},
	); err != nil {
		return err
	}

	createCommunityIndexes(conn)
	return nil
}

func createCoreIndexes(conn *gorm.DB) {
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_profile_xp ON users_profile(xp DESC)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_profile_streak ON users_profile(current_streak DESC)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_lessons_course_order ON lessons(course_id, sort_order)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_exercises_lesson_order ON exercises(lesson_id, sort_order)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_progress_user_completed ON user_progress(user_id, completed)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_attempts_user_correct ON answer_attempts(user_id, is_correct)")
}

func createCommunityIndexes(conn *gorm.DB) {
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_friends_status ON user_friends(status)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_discussions_pinned_created ON discussions(is_pinned DESC, created_at DESC)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_replies_discussion_created ON discussion_replies(discussion_id, created_at)")
	conn.Exec("CREATE INDEX IF NOT EXISTS idx_group_messages_group_created ON group_messages(group_id, created_at DESC)")
}
