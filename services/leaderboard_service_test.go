package services

import (
	"context"
	"testing"
	"time"

	"studyhub/cache"
	"studyhub/database"
	"studyhub/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardRanksNonGuests(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")
	guest := createGuest(t, svcs, "guest_1")

	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", ana.ID).Updates(map[string]interface{}{"xp": 120, "current_streak": 1}).Error)
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", bia.ID).Updates(map[string]interface{}{"xp": 300, "current_streak": 0}).Error)
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", guest.ID).Update("xp", 999).Error)

	page, err := svcs.Leaderboard.Top(ctx, "xp", 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, bia.ID, page.Entries[0].UserID)
	assert.Equal(t, 1, page.Entries[0].Rank)
	assert.Equal(t, "ana", page.Entries[1].Name)

	streaks, err := svcs.Leaderboard.Top(ctx, "streak", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, streaks.Entries[0].UserID)

	rank, err := svcs.Leaderboard.Rank(ctx, ana.ID, "xp")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	rank, err = svcs.Leaderboard.Rank(ctx, 999, "xp")
	require.NoError(t, err)
	assert.Zero(t, rank)

	require.NoError(t, svcs.Leaderboard.Refresh(ctx))
}

func TestFriendsLeaderboard(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")
	createUser(t, svcs, "carla")

	req, err := svcs.Friends.SendRequest(ctx, ana.ID, bia.ID)
	require.NoError(t, err)
	_, err = svcs.Friends.Accept(ctx, bia.ID, req.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", bia.ID).Update("xp", 40).Error)

	entries, err := svcs.Leaderboard.FriendsLeaderboard(ctx, ana.ID, "xp")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, bia.ID, entries[0].UserID)
	assert.Equal(t, ana.ID, entries[1].UserID)
}

func TestIncorrectAnswersReview(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	user := createUser(t, svcs, "ana")
	course := createCourse(t, db, "Matemática")
	lesson := createLesson(t, db, "Frações", 0, inCourse(course.ID))
	ex := createExercise(t, db, lesson.ID, "4")

	_, err := svcs.Submissions.Submit(ctx, user.ID, SubmitRequest{ExerciseID: ex.ID, UserAnswer: "5"})
	require.NoError(t, err)
	_, err = svcs.Submissions.Submit(ctx, user.ID, SubmitRequest{ExerciseID: ex.ID, UserAnswer: "4"})
	require.NoError(t, err)

	items, err := svcs.Review.IncorrectAnswers(ctx, user.ID, ReviewFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "5", items[0].UserAnswer)
	assert.Equal(t, "4", items[0].CorrectAnswer)
	assert.Equal(t, "Matemática", items[0].Subject)
	assert.Equal(t, "Frações", items[0].LessonTitle)

	items, err = svcs.Review.IncorrectAnswers(ctx, user.ID, ReviewFilter{Subject: "Física"})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = svcs.Review.IncorrectAnswers(ctx, user.ID, ReviewFilter{Difficulty: "easy"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCachedLeaderboardRefreshesAfterSubmit(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	db, err := database.OpenMemory()
	require.NoError(t, err)
	svcs := New(Deps{DB: db, Cache: cache.NewLeaderboardCache(client, time.Minute)})
	ctx := context.Background()

	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", ana.ID).Update("xp", 40).Error)

	page, err := svcs.Leaderboard.Top(ctx, "xp", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, ana.ID, page.Entries[0].UserID)
	assert.True(t, mr.Exists(cache.LeaderboardKey("xp", 10, 0)))

	// writes that skip invalidation are hidden behind the cached page
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", ana.ID).Update("xp", 45).Error)
	page, err = svcs.Leaderboard.Top(ctx, "xp", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, page.Entries[0].XP)

	lesson := createLesson(t, db, "Potências", 0)
	ex := createExercise(t, db, lesson.ID, "8")
	res, err := svcs.Submissions.Submit(ctx, bia.ID, SubmitRequest{ExerciseID: ex.ID, UserAnswer: "8"})
	require.NoError(t, err)
	require.True(t, res.Correct)
	assert.False(t, mr.Exists(cache.LeaderboardKey("xp", 10, 0)))

	page, err = svcs.Leaderboard.Top(ctx, "xp", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, bia.ID, page.Entries[0].UserID)
	assert.Equal(t, profileXP(t, db, bia.ID), page.Entries[0].XP)
	assert.Equal(t, 45, page.Entries[1].XP)
}
