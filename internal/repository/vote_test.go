package repository

import (
	"context"
	"testing"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEffective(t *testing.T) {
	tests := []struct {
		existing, clicked, want int
	}{
		{0, 1, 1},
		{0, -1, -1},
		{1, 1, 0},
		{-1, -1, 0},
		{1, -1, -1},
		{-1, 1, 1},
		{1, 0, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveEffective(tt.existing, tt.clicked), "existing=%d clicked=%d", tt.existing, tt.clicked)
	}
}

func click(t *testing.T, repo VoteRepository, userID uint, target models.VoteTarget, id uint, clicked int) *VoteOutcome {
	t.Helper()
	out, err := repo.Mutate(context.Background(), userID, target, id, clicked)
	require.NoError(t, err)
	return out
}

func TestVoteRepository_SameClickTwiceRemovesVote(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewVoteRepository(f.db, f.opts()...)

	first := click(t, repo, 7, models.VoteTargetPost, p.ID, 1)
	assert.Equal(t, VoteInserted, first.Branch)
	assert.Equal(t, 1, first.Score)

	second := click(t, repo, 7, models.VoteTargetPost, p.ID, 1)
	assert.Equal(t, VoteDeleted, second.Branch)
	assert.Equal(t, 0, second.Score)
	assert.Equal(t, 0, second.Value)

	assert.Equal(t, 0, f.reload(p).Score)
	assert.Zero(t, f.count(&models.Vote{}, "target_id = ?", p.ID))
	assert.Equal(t, int64(2), f.count(&models.VoteEvent{}, "target_id = ?", p.ID))
}

func TestVoteRepository_ToggleUpThenDown(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewVoteRepository(f.db, f.opts()...)

	assert.Equal(t, 1, click(t, repo, 7, models.VoteTargetPost, p.ID, 1).Score)
	out := click(t, repo, 7, models.VoteTargetPost, p.ID, -1)
	assert.Equal(t, VoteUpdated, out.Branch)
	assert.Equal(t, -2, out.Delta)
	assert.Equal(t, -1, out.Score)
	assert.Equal(t, -1, f.reload(p).Score)

	var stored models.Vote
	require.NoError(t, f.db.Where("user_id = ? AND target_id = ?", 7, p.ID).First(&stored).Error)
	assert.Equal(t, -1, stored.Value)
}

func TestVoteRepository_NoDuplicateRowsAndAuditSumsToScore(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewVoteRepository(f.db, f.opts()...)

	for _, v := range []int{1, -1, -1, 1, 1, 0, -1, 1} {
		click(t, repo, 3, models.VoteTargetPost, p.ID, v)
		assert.LessOrEqual(t, f.count(&models.Vote{}, "user_id = ? AND target_id = ?", 3, p.ID), int64(1))
	}
	click(t, repo, 4, models.VoteTargetPost, p.ID, 1)

	var events []models.VoteEvent
	require.NoError(t, f.db.Where("target_type = ? AND target_id = ?", models.VoteTargetPost, p.ID).Find(&events).Error)
	sum := 0
	for i := range events {
		sum += events[i].Delta()
	}

	var votes []models.Vote
	require.NoError(t, f.db.Where("target_id = ?", p.ID).Find(&votes).Error)
	active := 0
	for _, v := range votes {
		active += v.Value
	}

	score := f.reload(p).Score
	assert.Equal(t, sum, score)
	assert.Equal(t, active, score)
}

func TestVoteRepository_NoopWritesNothing(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewVoteRepository(f.db, f.opts()...)

	out, err := repo.Mutate(context.Background(), 9, models.VoteTargetPost, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, VoteNoop, out.Branch)
	assert.Zero(t, f.count(&models.VoteEvent{}, ""))
}

func TestVoteRepository_RejectsMissingAndRemovedTargets(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewVoteRepository(f.db, f.opts()...)
	ctx := context.Background()

	_, err := repo.Mutate(ctx, 1, models.VoteTargetPost, 9999, 1)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, _, err = NewModerationRepository(f.db, f.opts()...).SoftDelete(ctx, 1, p.ID, "", nil)
	require.NoError(t, err)
	_, err = repo.Mutate(ctx, 1, models.VoteTargetPost, p.ID, 1)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = repo.Mutate(ctx, 1, models.VoteTargetPost, p.ID, 2)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = repo.Mutate(ctx, 1, "poll", p.ID, 1)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestVoteRepository_CommentScore(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	comment := &models.Comment{PostID: p.ID, UserID: 2, Body: "hi"}
	require.NoError(t, NewCommentRepository(f.db, f.opts()...).Create(context.Background(), comment, 6))

	repo := NewVoteRepository(f.db, f.opts()...)
	click(t, repo, 5, models.VoteTargetComment, comment.ID, -1)
	click(t, repo, 6, models.VoteTargetComment, comment.ID, -1)

	assert.Equal(t, -2, f.reloadComment(comment.ID).Score)
	assert.Equal(t, 0, f.reload(p).Score)
}
