package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxDepth = 6

func reply(t *testing.T, repo CommentRepository, postID uint, parent *models.Comment) (*models.Comment, error) {
	t.Helper()
	c := &models.Comment{PostID: postID, UserID: 2, Body: "reply"}
	if parent != nil {
		id := parent.ID
		c.ParentID = &id
	}
	return c, repo.Create(context.Background(), c, maxDepth)
}

func TestCommentRepository_CreateMaintainsCounters(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now.Add(-time.Hour))
	repo := NewCommentRepository(f.db, f.opts()...)

	top, err := reply(t, repo, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, top.Depth)
	assert.Equal(t, "", top.Path)
	assert.Nil(t, top.ParentID)

	child, err := reply(t, repo, p.ID, top)
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, fmt.Sprint(top.ID), child.Path)

	grandchild, err := reply(t, repo, p.ID, child)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d.%d", top.ID, child.ID), grandchild.Path)

	assert.Equal(t, uint(1), f.reloadComment(top.ID).ChildCount)
	assert.Equal(t, uint(1), f.reloadComment(child.ID).ChildCount)

	post := f.reload(p)
	assert.Equal(t, uint(3), post.CommentCount)
	require.NotNil(t, post.LastCommentedAt)
	assert.True(t, post.LastCommentedAt.Equal(f.now))
}

func TestCommentRepository_DepthCap(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)

	var parent *models.Comment
	for depth := 0; depth <= 4; depth++ {
		c, err := reply(t, repo, p.ID, parent)
		require.NoError(t, err)
		require.Equal(t, depth, c.Depth)
		parent = c
	}

	atFive, err := reply(t, repo, p.ID, parent)
	require.NoError(t, err)
	assert.Equal(t, 5, atFive.Depth)

	before := f.reload(p).CommentCount
	_, err = reply(t, repo, p.ID, atFive)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeDepthExceeded))

	assert.Equal(t, before, f.reload(p).CommentCount)
	assert.Equal(t, uint(0), f.reloadComment(atFive.ID).ChildCount)
	assert.Zero(t, f.count(&models.Comment{}, "depth > ?", 5))
}

func TestCommentRepository_CreateRejections(t *testing.T) {
	f := newFixture(t)
	community := f.community(models.VisibilityPublic)
	p := f.post(community.ID, "p", f.now)
	other := f.post(community.ID, "other", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)
	mod := NewModerationRepository(f.db, f.opts()...)
	ctx := context.Background()

	onOther, err := reply(t, repo, other.ID, nil)
	require.NoError(t, err)

	_, err = reply(t, repo, p.ID, onOther)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "parent on another post")

	missing := &models.Comment{ID: 424242}
	_, err = reply(t, repo, p.ID, missing)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "missing parent")

	_, _, err = mod.SetLocked(ctx, 1, p.ID, true, "")
	require.NoError(t, err)
	_, err = reply(t, repo, p.ID, nil)
	assert.True(t, models.IsCode(err, models.CodeForbidden), "locked post")

	_, _, err = mod.SoftDelete(ctx, 1, other.ID, "", nil)
	require.NoError(t, err)
	_, err = reply(t, repo, other.ID, nil)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "removed post")

	assert.Equal(t, uint(1), f.reload(other).CommentCount)
}

func TestCommentRepository_ModerateDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)
	ctx := context.Background()

	c, err := reply(t, repo, p.ID, nil)
	require.NoError(t, err)
	child, err := reply(t, repo, p.ID, c)
	require.NoError(t, err)

	removed, noop, err := repo.ModerateDelete(ctx, 9, c.ID, "spam", nil)
	require.NoError(t, err)
	assert.False(t, noop)
	assert.Equal(t, models.CommentStatusRemoved, removed.Status)
	assert.Equal(t, models.RemovedCommentBody, removed.Body)

	_, noop, err = repo.ModerateDelete(ctx, 9, c.ID, "spam", nil)
	require.NoError(t, err)
	assert.True(t, noop)

	assert.Equal(t, uint(1), f.reload(p).CommentCount)
	assert.Equal(t, uint(1), f.reloadComment(c.ID).ChildCount)
	assert.Equal(t, models.CommentStatusPublished, f.reloadComment(child.ID).Status)
	assert.Equal(t, int64(1), f.count(&models.ModerationLog{}, "target_type = ? AND target_id = ?", models.TargetComment, c.ID))
}

func TestCommentRepository_ModerateDeleteFloorsCount(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)

	c, err := reply(t, repo, p.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", p.ID).UpdateColumn("comment_count", 0).Error)

	_, _, err = repo.ModerateDelete(context.Background(), 9, c.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, uint(0), f.reload(p).CommentCount)
}

func TestCommentRepository_ModerateDeleteAuthorizer(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)

	c, err := reply(t, repo, p.ID, nil)
	require.NoError(t, err)

	deny := func(*models.Comment) error { return models.NewForbiddenError("no") }
	_, _, err = repo.ModerateDelete(context.Background(), 9, c.ID, "", deny)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.Equal(t, models.CommentStatusPublished, f.reloadComment(c.ID).Status)
}

func TestCommentRepository_ListingOrdersAndCap(t *testing.T) {
	f := newFixture(t)
	p := f.post(f.community(models.VisibilityPublic).ID, "p", f.now)
	repo := NewCommentRepository(f.db, f.opts()...)
	ctx := context.Background()

	var created []*models.Comment
	for i := 0; i < 5; i++ {
		f.now = f.now.Add(time.Minute)
		c, err := reply(t, repo, p.ID, nil)
		require.NoError(t, err)
		created = append(created, c)
	}
	require.NoError(t, f.db.Model(&models.Comment{}).Where("id = ?", created[3].ID).UpdateColumn("score", 10).Error)
	_, err := reply(t, repo, p.ID, created[0])
	require.NoError(t, err)

	oldest, err := repo.ListTopLevel(ctx, p.ID, CommentListOptions{Sort: CommentSortOldest, Page: 1, PerPage: 10, MaxServed: 500})
	require.NoError(t, err)
	require.Len(t, oldest.Comments, 5)
	assert.Equal(t, created[0].ID, oldest.Comments[0].ID)
	assert.False(t, oldest.HasMore)

	top, err := repo.ListTopLevel(ctx, p.ID, CommentListOptions{Sort: CommentSortTop, Page: 1, PerPage: 2, MaxServed: 500})
	require.NoError(t, err)
	require.Len(t, top.Comments, 2)
	assert.Equal(t, created[3].ID, top.Comments[0].ID)
	assert.Equal(t, created[0].ID, top.Comments[1].ID)
	assert.True(t, top.HasMore)

	capped, err := repo.ListTopLevel(ctx, p.ID, CommentListOptions{Page: 2, PerPage: 2, MaxServed: 3})
	require.NoError(t, err)
	require.Len(t, capped.Comments, 1)
	assert.True(t, capped.CapReached)
	assert.False(t, capped.HasMore)

	_, err = repo.ListTopLevel(ctx, p.ID, CommentListOptions{Page: 3, PerPage: 2, MaxServed: 3})
	assert.True(t, models.IsCode(err, models.CodeLimitReached))

	children, err := repo.ListChildren(ctx, p.ID, created[0].ID, CommentListOptions{Page: 1, PerPage: 10, MaxServed: 500})
	require.NoError(t, err)
	assert.Len(t, children.Comments, 1)

	_, _, err = repo.ModerateDelete(ctx, 1, created[1].ID, "", nil)
	require.NoError(t, err)
	withRemoved, err := repo.ListTopLevel(ctx, p.ID, CommentListOptions{Page: 1, PerPage: 10, MaxServed: 500})
	require.NoError(t, err)
	assert.Len(t, withRemoved.Comments, 5, "removed comments stay as placeholders")

	_, err = repo.ListTopLevel(ctx, p.ID, CommentListOptions{Sort: "best", Page: 1, PerPage: 10})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
