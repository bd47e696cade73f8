package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteService_SameClickTwiceRemovesVote(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	res, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Score: 1, UserVote: 1}, *res)

	res, err = h.svc.Votes.VotePost(ctx, member(10), p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Score: 0, UserVote: 0}, *res)
	assert.Equal(t, int64(0), h.count(&models.Vote{}, ""))
}

func TestVoteService_Toggle(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	_, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, 1)
	require.NoError(t, err)
	res, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	assert.Equal(t, -1, res.UserVote)

	for i := 0; i < 5; i++ {
		_, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, []int{1, -1, 0, 1, 1}[i])
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, h.count(&models.Vote{}, "user_id = ?", 10), int64(1))
	assert.Equal(t, 0, h.reload(p.ID).Score)
}

func TestVoteService_CommentVotes(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()
	comment, err := h.svc.Comments.CreateComment(ctx, member(6), CreateCommentInput{PostID: p.ID, Body: "hi"})
	require.NoError(t, err)

	res, err := h.svc.Votes.VoteComment(ctx, member(7), comment.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)

	_, err = h.svc.Votes.VoteComment(ctx, member(7), 424242, 1)
	assertCode(t, err, models.CodeNotFound)
}

func TestVoteService_BanGateRunsFirst(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	other := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	q := h.post(member(5), other.ID, "q")
	ctx := context.Background()

	_, err := h.svc.Moderation.BanUser(ctx, moderator, BanInput{UserID: 10})
	require.NoError(t, err)
	_, err = h.svc.Votes.VotePost(ctx, member(10), p.ID, 7)
	assertCode(t, err, models.CodeForbidden)
	_, err = h.svc.Votes.VotePost(ctx, member(10), 424242, 1)
	assertCode(t, err, models.CodeForbidden)

	_, err = h.svc.Moderation.BanUser(ctx, moderator, BanInput{UserID: 11, CommunityID: &c.ID})
	require.NoError(t, err)
	_, err = h.svc.Votes.VotePost(ctx, member(11), p.ID, 1)
	assertCode(t, err, models.CodeForbidden)
	_, err = h.svc.Votes.VotePost(ctx, member(11), p.ID, 7)
	assertCode(t, err, models.CodeForbidden)
	_, err = h.svc.Votes.VotePost(ctx, member(11), q.ID, 1)
	assert.NoError(t, err, "community bans stay in their community")
}

func TestVoteService_Rejections(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	private := h.community(models.VisibilityPrivate)
	p := h.post(member(5), c.ID, "p")
	hidden := h.post(admin, private.ID, "hidden")
	ctx := context.Background()

	_, err := h.svc.Votes.VotePost(ctx, anonymous, p.ID, 1)
	assertCode(t, err, models.CodeUnauthorized)
	_, err = h.svc.Votes.VotePost(ctx, member(10), p.ID, 2)
	assertCode(t, err, models.CodeValidation)
	_, err = h.svc.Votes.VotePost(ctx, member(10), hidden.ID, 1)
	assertCode(t, err, models.CodeNotFound)

	_, err = h.svc.Posts.SoftDeletePost(ctx, moderator, p.ID, "")
	require.NoError(t, err)
	_, err = h.svc.Votes.VotePost(ctx, member(10), p.ID, 1)
	assertCode(t, err, models.CodeNotFound)
	assert.Equal(t, 0, h.reload(p.ID).Score)
}

func TestVoteService_RateLimited(t *testing.T) {
	var h *harness
	h = newHarness(t, func(d *Deps) {
		d.Limiter = ratelimit.New(nil, ratelimit.Options{
			Enabled: true,
			Policy:  ratelimit.FailLocal,
			Buckets: []ratelimit.Bucket{{Name: ratelimit.BucketVote, Limit: 2, Window: time.Minute}},
		})
	})
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")
	ctx := context.Background()

	for _, v := range []int{1, -1} {
		_, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, v)
		require.NoError(t, err)
	}
	_, err := h.svc.Votes.VotePost(ctx, member(10), p.ID, 1)
	assertCode(t, err, models.CodeRateLimited)
	assert.Equal(t, -1, h.reload(p.ID).Score, "a rejected call changes nothing")

	_, err = h.svc.Votes.VotePost(ctx, member(11), p.ID, 1)
	assert.NoError(t, err, "buckets are per subject")
}

// doubleClickVotes commits one identical click from the same user just
// before the first real mutation, as a duplicate request would.
type doubleClickVotes struct {
	repository.VoteRepository
	once sync.Once
	err  error
}

func (v *doubleClickVotes) Mutate(ctx context.Context, userID uint, target models.VoteTarget, targetID uint, clicked int) (*repository.VoteOutcome, error) {
	v.once.Do(func() {
		_, v.err = v.VoteRepository.Mutate(ctx, userID, target, targetID, clicked)
	})
	return v.VoteRepository.Mutate(ctx, userID, target, targetID, clicked)
}

func TestVoteService_DuplicateClickResolvesAgainstCommittedVote(t *testing.T) {
	var votes *doubleClickVotes
	h := newHarness(t, func(d *Deps) {
		votes = &doubleClickVotes{VoteRepository: d.Votes}
		d.Votes = votes
	})
	c := h.community(models.VisibilityPublic)
	p := h.post(member(5), c.ID, "p")

	res, err := h.svc.Votes.VotePost(context.Background(), member(10), p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, votes.err)

	assert.Equal(t, VoteResult{Score: 0, UserVote: 0}, *res)
	assert.Equal(t, int64(0), h.count(&models.Vote{}, "target_id = ?", p.ID))
	assert.Equal(t, int64(2), h.count(&models.VoteEvent{}, "target_id = ?", p.ID))
	assert.Equal(t, 0, h.reload(p.ID).Score)
}
