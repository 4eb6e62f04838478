package services

import (
	"context"
	"testing"

	"studyhub/apperrors"
	"studyhub/models"
	"studyhub/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequests(t *testing.T) {
	svcs, _, notifier := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")

	req, err := svcs.Friends.SendRequest(ctx, ana.ID, bia.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendPending, req.Status)
	assert.Len(t, notifier.ofType(realtime.EventFriendRequest), 1)

	tests := []struct {
		name     string
		from, to uint
		code     string
	}{
		{"duplicate request", ana.ID, bia.ID, apperrors.CodeConflict},
		{"reverse direction", bia.ID, ana.ID, apperrors.CodeConflict},
		{"self", ana.ID, ana.ID, apperrors.CodeValidation},
		{"unknown user", ana.ID, 999, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.Friends.SendRequest(ctx, tt.from, tt.to)
			assert.True(t, apperrors.HasCode(err, tt.code), err)
		})
	}

	pending, err := svcs.Friends.PendingRequests(ctx, bia.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].From)
	assert.Equal(t, "ana", pending[0].From.Name)

	_, err = svcs.Friends.Accept(ctx, ana.ID, req.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "only the addressee accepts")

	_, err = svcs.Friends.Accept(ctx, bia.ID, req.ID)
	require.NoError(t, err)
	assert.Len(t, notifier.ofType(realtime.EventFriendAccepted), 1)

	friends, err := svcs.Friends.Friends(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bia.ID, friends[0].UserID)

	friends, err = svcs.Friends.Friends(ctx, bia.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, ana.ID, friends[0].UserID)

	_, err = svcs.Friends.SendRequest(ctx, bia.ID, ana.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	require.NoError(t, svcs.Friends.Remove(ctx, bia.ID, req.ID))
	friends, err = svcs.Friends.Friends(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestBlockPreventsRequests(t *testing.T) {
	svcs, _, _ := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")

	_, err := svcs.Friends.Block(ctx, ana.ID, bia.ID)
	require.NoError(t, err)
	_, err = svcs.Friends.SendRequest(ctx, bia.ID, ana.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestDiscussionLikesToggle(t *testing.T) {
	svcs, db, _ := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")

	d, err := svcs.Discussions.Create(ctx, ana.ID, DiscussionInput{Title: "Dúvida", Content: "Como somar frações?"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDiscussionCategory, d.Category)
	require.NotNil(t, d.Author)

	liked, count, err := svcs.Discussions.ToggleLike(ctx, bia.ID, d.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	_, count, err = svcs.Discussions.ToggleLike(ctx, ana.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	liked, count, err = svcs.Discussions.ToggleLike(ctx, bia.ID, d.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 1, count)

	var rows int64
	require.NoError(t, db.Model(&models.DiscussionLike{}).Where("discussion_id = ?", d.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows, "counter matches like rows")

	_, _, err = svcs.Discussions.ToggleLike(ctx, bia.ID, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDiscussionReplies(t *testing.T) {
	svcs, _, notifier := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")
	bia := createUser(t, svcs, "bia")

	d, err := svcs.Discussions.Create(ctx, ana.ID, DiscussionInput{Title: "Dúvida", Content: "Texto", Category: "matematica", Tags: []string{" frações ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"frações"}, d.Tags)

	reply, err := svcs.Discussions.Reply(ctx, bia.ID, d.ID, ReplyInput{Content: "Use o MMC"})
	require.NoError(t, err)
	_, err = svcs.Discussions.Reply(ctx, ana.ID, d.ID, ReplyInput{Content: "Obrigada", ParentReplyID: &reply.ID})
	require.NoError(t, err)
	assert.Len(t, notifier.ofType(realtime.EventDiscussionReply), 1, "authors are not notified of their own replies")

	_, err = svcs.Discussions.Reply(ctx, bia.ID, d.ID, ReplyInput{Content: "   "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	liked, count, err := svcs.Discussions.ToggleReplyLike(ctx, ana.ID, reply.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	view, err := svcs.Discussions.Get(ctx, ana.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.RepliesCount)
	require.Len(t, view.Replies, 2)
	assert.True(t, view.Replies[0].Liked)
	assert.Equal(t, "bia", view.Replies[0].Author.Name)

	require.NoError(t, svcs.Discussions.SetLocked(ctx, d.ID, true))
	_, err = svcs.Discussions.Reply(ctx, bia.ID, d.ID, ReplyInput{Content: "mais uma"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = svcs.Discussions.Delete(ctx, bia.ID, d.ID, false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	require.NoError(t, svcs.Discussions.Delete(ctx, ana.ID, d.ID, false))
	_, err = svcs.Discussions.Get(ctx, ana.ID, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDiscussionListPinnedFirst(t *testing.T) {
	svcs, _, _ := setup(t)
	ctx := context.Background()
	ana := createUser(t, svcs, "ana")

	first, err := svcs.Discussions.Create(ctx, ana.ID, DiscussionInput{Title: "Antiga", Content: "x"})
	require.NoError(t, err)
	_, err = svcs.Discussions.Create(ctx, ana.ID, DiscussionInput{Title: "Nova", Content: "y"})
	require.NoError(t, err)
	require.NoError(t, svcs.Discussions.SetPinned(ctx, first.ID, true))

	list, err := svcs.Discussions.List(ctx, ana.ID, DiscussionFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Antiga", list[0].Title)

	_, err = svcs.Discussions.Create(ctx, ana.ID, DiscussionInput{Title: " ", Content: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestStudyGroups(t *testing.T) {
	svcs, _, notifier := setup(t)
	ctx := context.Background()
	owner := createUser(t, svcs, "dono")
	member := createUser(t, svcs, "membro")
	late := createUser(t, svcs, "atrasado")
	outsider := createUser(t, svcs, "fora")

	group, err := svcs.Groups.Create(ctx, owner.ID, GroupInput{Name: "ENEM 2026", MaxMembers: 2})
	require.NoError(t, err)
	assert.Len(t, group.InviteCode, inviteCodeLength)

	_, err = svcs.Groups.Join(ctx, member.ID, group.InviteCode)
	require.NoError(t, err)
	_, err = svcs.Groups.Join(ctx, member.ID, group.InviteCode)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "already a member")
	_, err = svcs.Groups.Join(ctx, late.ID, group.InviteCode)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "group is full")
	_, err = svcs.Groups.Join(ctx, late.ID, "NOPE")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	members, err := svcs.Groups.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, models.GroupRoleOwner, members[0].Role)

	_, err = svcs.Groups.PostMessage(ctx, outsider.ID, group.ID, "oi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = svcs.Groups.PostMessage(ctx, owner.ID, group.ID, "Bem-vindos!")
	require.NoError(t, err)
	events := notifier.ofType(realtime.EventGroupMessage)
	require.Len(t, events, 1)
	assert.Equal(t, member.ID, events[0].UserID)

	msgs, err := svcs.Groups.Messages(ctx, member.ID, group.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Bem-vindos!", msgs[0].Content)

	assert.True(t, apperrors.HasCode(svcs.Groups.Leave(ctx, owner.ID, group.ID), apperrors.CodeConflict))
	require.NoError(t, svcs.Groups.TransferOwnership(ctx, group.ID, owner.ID, member.ID))
	require.NoError(t, svcs.Groups.Leave(ctx, owner.ID, group.ID))

	mine, err := svcs.Groups.UserGroups(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 1, mine[0].MemberCount)
}

func TestPrivateGroupHiddenFromDiscovery(t *testing.T) {
	svcs, _, _ := setup(t)
	ctx := context.Background()
	owner := createUser(t, svcs, "dono")
	private := false

	_, err := svcs.Groups.Create(ctx, owner.ID, GroupInput{Name: "Secreto", IsPublic: &private})
	require.NoError(t, err)
	_, err = svcs.Groups.Create(ctx, owner.ID, GroupInput{Name: "Aberto"})
	require.NoError(t, err)

	groups, err := svcs.Groups.PublicGroups(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Aberto", groups[0].Name)
}
