package repository

import (
	"context"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationRepository_SoftDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	ctx := context.Background()
	p := &models.Post{
		CommunityID: c.ID,
		UserID:      7,
		Title:       "gig",
		Body:        "details",
		Type:        models.PostTypeEvent,
		Event:       &models.Event{EventDate: f.now.Add(24 * time.Hour)},
	}
	require.NoError(t, NewPostRepository(f.db, f.opts()...).Create(ctx, p))
	repo := NewModerationRepository(f.db, f.opts()...)

	_, _, err := repo.Report(ctx, 3, p.ID, "spam")
	require.NoError(t, err)

	removed, already, err := repo.SoftDelete(ctx, 1, p.ID, "rules", nil)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, models.PostStatusRemoved, removed.Status)

	_, already, err = repo.SoftDelete(ctx, 1, p.ID, "rules", nil)
	require.NoError(t, err)
	assert.True(t, already)

	stored := f.reload(p)
	assert.Equal(t, models.RemovedTitle, stored.Title)
	assert.Empty(t, stored.Body)
	assert.Zero(t, stored.ReportsCount)
	assert.Equal(t, int64(0), f.count(&models.Event{}, "post_id = ?", p.ID))
	assert.Equal(t, int64(1), f.count(&models.ModerationLog{}, "action = ? AND target_id = ?", models.ActionPostRemove, p.ID))
}

func TestModerationRepository_SoftDeleteAuthorizerRunsFirst(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "mine", f.now)
	repo := NewModerationRepository(f.db, f.opts()...)

	deny := func(*models.Post) error { return models.NewForbiddenError("not yours") }
	_, _, err := repo.SoftDelete(context.Background(), 9, p.ID, "", deny)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.Equal(t, models.PostStatusPublished, f.reload(p).Status)
	assert.Equal(t, int64(0), f.count(&models.ModerationLog{}, ""))
}

func TestModerationRepository_ReportDedup(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	count, inserted, err := repo.Report(ctx, 3, p.ID, "spam")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, uint(1), count)

	count, inserted, err = repo.Report(ctx, 3, p.ID, "spam again")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, uint(1), count)

	count, _, err = repo.Report(ctx, 4, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), count)
	assert.Equal(t, uint(2), f.reload(p).ReportsCount)
	assert.Equal(t, int64(2), f.count(&models.Report{}, "post_id = ?", p.ID))

	cleared, err := repo.ClearReports(ctx, 1, p.ID, "reviewed")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
	assert.Zero(t, f.reload(p).ReportsCount)
	assert.Equal(t, int64(0), f.count(&models.Report{}, "post_id = ?", p.ID))

	_, inserted, err = repo.Report(ctx, 3, p.ID, "back again")
	require.NoError(t, err)
	assert.True(t, inserted, "clearing reports lets users report again")

	_, _, err = repo.SoftDelete(ctx, 1, p.ID, "", nil)
	require.NoError(t, err)
	_, _, err = repo.Report(ctx, 5, p.ID, "")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestModerationRepository_LockTransitions(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	post, changed, err := repo.SetLocked(ctx, 1, p.ID, true, "heated")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PostStatusLocked, post.Status)

	_, changed, err = repo.SetLocked(ctx, 1, p.ID, true, "heated")
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = repo.SetLocked(ctx, 1, p.ID, false, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PostStatusPublished, f.reload(p).Status)

	logs, err := repo.ListLogs(ctx, LogFilter{TargetType: models.TargetPost, TargetID: p.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionPostUnlock, logs[0].Action)
	assert.Equal(t, models.ActionPostLock, logs[1].Action)

	_, _, err = repo.SoftDelete(ctx, 1, p.ID, "", nil)
	require.NoError(t, err)
	_, _, err = repo.SetLocked(ctx, 1, p.ID, true, "")
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, _, err = repo.SetSticky(ctx, 1, p.ID, true, "")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, _, err = repo.SetLocked(ctx, 1, 424242, true, "")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestModerationRepository_StickyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	p := f.post(c.ID, "p", f.now)
	repo := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := repo.SetSticky(ctx, 1, p.ID, true, "")
		require.NoError(t, err)
	}
	assert.True(t, f.reload(p).IsSticky)
	assert.Equal(t, int64(1), f.count(&models.ModerationLog{}, "action = ?", models.ActionPostSticky))

	_, changed, err := repo.SetSticky(ctx, 1, p.ID, false, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, f.reload(p).IsSticky)
}

func TestModerationRepository_BanLifecycle(t *testing.T) {
	f := newFixture(t)
	repo := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	first, created, err := repo.Ban(ctx, &models.Ban{UserID: 5, ActorID: 1, Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.Ban(ctx, &models.Ban{UserID: 5, ActorID: 1, Reason: "spam"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(1), f.count(&models.ModerationLog{}, "action = ?", models.ActionUserBan))

	community := uint(3)
	expires := f.now.Add(time.Hour)
	scoped, created, err := repo.Ban(ctx, &models.Ban{UserID: 5, ActorID: 1, CommunityID: &community, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, scoped.ID)

	bans, err := repo.ActiveBans(ctx, 5, &community)
	require.NoError(t, err)
	assert.Len(t, bans, 2)

	bans, err = repo.ActiveBans(ctx, 5, nil)
	require.NoError(t, err)
	assert.Len(t, bans, 1)

	lifted, err := repo.Unban(ctx, 1, 5, nil, "appeal")
	require.NoError(t, err)
	assert.True(t, lifted)
	lifted, err = repo.Unban(ctx, 1, 5, nil, "appeal")
	require.NoError(t, err)
	assert.False(t, lifted)

	f.now = f.now.Add(2 * time.Hour)
	bans, err = repo.ActiveBans(ctx, 5, &community)
	require.NoError(t, err)
	assert.Empty(t, bans, "expired bans no longer apply")

	renewed, created, err := repo.Ban(ctx, &models.Ban{UserID: 5, ActorID: 1, CommunityID: &community})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), f.count(&models.Ban{}, "community_id = ? AND is_active = ?", community, true))
	assert.NotEqual(t, scoped.ID, renewed.ID)
}

func TestModerationRepository_ListLogsFilters(t *testing.T) {
	f := newFixture(t)
	c := f.community(models.VisibilityPublic)
	a := f.post(c.ID, "a", f.now)
	b := f.post(c.ID, "b", f.now)
	repo := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	_, _, err := repo.SetLocked(ctx, 1, a.ID, true, "")
	require.NoError(t, err)
	_, _, err = repo.SetLocked(ctx, 2, b.ID, true, "")
	require.NoError(t, err)

	logs, err := repo.ListLogs(ctx, LogFilter{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, b.ID, logs[0].TargetID)

	logs, err = repo.ListLogs(ctx, LogFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
