package service

import (
	"context"
	"strings"
	"testing"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_DepthLimit(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Limits.CommentMaxDepth = 2 })
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	root, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "root"})
	require.NoError(t, err)
	child, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, ParentID: &root.ID, Body: "child"})
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)

	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, ParentID: &child.ID, Body: "too deep"})
	assertCode(t, err, models.CodeDepthExceeded)
	assert.Equal(t, uint(2), h.reload(p.ID).CommentCount)
}

func TestCommentService_CreateRejections(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	_, err := h.svc.Comments.CreateComment(ctx, anonymous, CreateCommentInput{PostID: p.ID, Body: "x"})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "   "})
	assertCode(t, err, models.CodeValidation)

	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: strings.Repeat("x", maxCommentLen+1)})
	assertCode(t, err, models.CodeValidation)

	missing := uint(9999)
	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, ParentID: &missing, Body: "x"})
	assertCode(t, err, models.CodeNotFound)

	_, err = h.svc.Moderation.LockPost(ctx, moderator, p.ID, true, "heated")
	require.NoError(t, err)
	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "late"})
	assertCode(t, err, models.CodeForbidden)

	assert.Zero(t, h.reload(p.ID).CommentCount)
}

func TestCommentService_CommunityBanBeforeBodyChecks(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	_, err := h.svc.Moderation.BanUser(ctx, moderator, BanInput{UserID: 6, CommunityID: &c.ID})
	require.NoError(t, err)

	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "   "})
	assertCode(t, err, models.CodeForbidden)
	_, err = h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "fine"})
	assertCode(t, err, models.CodeForbidden)
	assert.Zero(t, h.reload(p.ID).CommentCount)
}

func TestCommentService_ModerateDelete(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	comment, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "rude"})
	require.NoError(t, err)

	_, err = h.svc.Comments.ModerateDeleteComment(ctx, member(7), comment.ID, "")
	assertCode(t, err, models.CodeForbidden)
	_, err = h.svc.Comments.ModerateDeleteComment(ctx, anonymous, comment.ID, "")
	assertCode(t, err, models.CodeUnauthorized)

	res, err := h.svc.Comments.ModerateDeleteComment(ctx, moderator, comment.ID, "rude")
	require.NoError(t, err)
	assert.Equal(t, StatusRemoved, res.Status)
	assert.Equal(t, models.CommentStatusRemoved, res.Comment.Status)
	assert.Zero(t, h.reload(p.ID).CommentCount)

	res, err = h.svc.Comments.ModerateDeleteComment(ctx, member(6), comment.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRemoved, res.Status)
	assert.Zero(t, h.reload(p.ID).CommentCount)
	assert.Equal(t, int64(1), h.count(&models.ModerationLog{}, "target_type = ? AND target_id = ?", models.TargetComment, comment.ID))
}

func TestCommentService_Listing(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	private := h.community(models.VisibilityPrivate)
	p := h.post(member(5), c.ID, "p")
	hidden := h.post(admin, private.ID, "hidden")
	ctx := context.Background()

	root, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "root"})
	require.NoError(t, err)
	for _, body := range []string{"a", "b", "c"} {
		_, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, ParentID: &root.ID, Body: body})
		require.NoError(t, err)
	}

	page, err := h.svc.Comments.ListTopLevel(ctx, anonymous, p.ID, ListCommentsInput{})
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, uint(3), page.Comments[0].ChildCount)

	children, err := h.svc.Comments.ListChildren(ctx, anonymous, p.ID, root.ID, ListCommentsInput{PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, children.Comments, 2)
	assert.True(t, children.HasMore)

	_, err = h.svc.Comments.ListTopLevel(ctx, anonymous, p.ID, ListCommentsInput{Sort: "newest"})
	assertCode(t, err, models.CodeValidation)

	_, err = h.svc.Comments.ListTopLevel(ctx, member(6), hidden.ID, ListCommentsInput{})
	assertCode(t, err, models.CodeNotFound)
}
