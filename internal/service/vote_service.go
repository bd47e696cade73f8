package service

import (
	"context"
	"log/slog"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteResult is what a voter sees after a click.
type VoteResult struct {
	Score    int `json:"score"`
	UserVote int `json:"user_vote"`
}

// VoteService applies arrow clicks to posts and comments.
type VoteService struct {
	votes    repository.VoteRepository
	comments repository.CommentRepository
	visible  visibility
	gate     *BanGate
	limiter  *ratelimit.Limiter
	log      *observability.MutationLogger
}

func NewVoteService(d Deps, gate *BanGate) *VoteService {
	return &VoteService{
		votes:    d.Votes,
		comments: d.Comments,
		visible:  visibility{communities: d.Communities, posts: d.Posts},
		gate:     gate,
		limiter:  d.Limiter,
		log:      observability.NewMutationLogger(d.logger(), "vote"),
	}
}

// VotePost records a click on a post's arrows. Clicking the arrow already
// cast removes the vote; 0 removes it explicitly.
func (s *VoteService) VotePost(ctx context.Context, actor models.Actor, postID uint, clicked int) (res *VoteResult, err error) {
	ctx, end := observability.StartOperation(ctx, "vote", "VotePost", attribute.Int("post_id", int(postID)))
	defer func() { end(err) }()

	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	post, err := s.visible.post(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, post.CommunityID, models.VoteTargetPost, postID, clicked)
}

// VoteComment is VotePost for comments.
func (s *VoteService) VoteComment(ctx context.Context, actor models.Actor, commentID uint, clicked int) (res *VoteResult, err error) {
	ctx, end := observability.StartOperation(ctx, "vote", "VoteComment", attribute.Int("comment_id", int(commentID)))
	defer func() { end(err) }()

	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	post, err := s.visible.post(ctx, actor, comment.PostID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewNotFoundError("comment", commentID)
		}
		return nil, err
	}
	return s.apply(ctx, actor, post.CommunityID, models.VoteTargetComment, commentID, clicked)
}

// authorize requires a signed-in voter without a global ban.
func (s *VoteService) authorize(ctx context.Context, actor models.Actor) error {
	if err := requireAuth(actor); err != nil {
		return err
	}
	return s.gate.Check(ctx, actor.UserID, nil)
}

func (s *VoteService) apply(ctx context.Context, actor models.Actor, communityID uint, target models.VoteTarget, targetID uint, clicked int) (*VoteResult, error) {
	if err := s.gate.Check(ctx, actor.UserID, &communityID); err != nil {
		return nil, err
	}
	if clicked < -1 || clicked > 1 {
		return nil, models.NewValidationError("vote value must be -1, 0 or 1")
	}
	if err := s.limiter.Allow(ctx, ratelimit.BucketVote, ratelimit.Subject(actor)); err != nil {
		return nil, err
	}

	out, err := s.votes.Mutate(ctx, actor.UserID, target, targetID, clicked)
	if err != nil {
		s.log.Failed(ctx, "vote_"+string(target), err, slog.Uint64("target_id", uint64(targetID)))
		return nil, err
	}

	attrs := []slog.Attr{
		slog.Uint64("target_id", uint64(targetID)),
		slog.String("branch", out.Branch),
		slog.Int("delta", out.Delta),
	}
	if out.Branch == repository.VoteNoop {
		s.log.Noop(ctx, "vote_"+string(target), attrs...)
	} else {
		s.log.Applied(ctx, "vote_"+string(target), attrs...)
	}
	return &VoteResult{Score: out.Score, UserVote: out.Value}, nil
}
