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

const maxCommentLen = 10000

type CommentService struct {
	comments repository.CommentRepository
	visible  visibility
	gate     *BanGate
	limiter  *ratelimit.Limiter
	limits   Limits
	log      *observability.MutationLogger
}

type CreateCommentInput struct {
	PostID   uint
	ParentID *uint
	Body     string
}

// ListCommentsInput pages a listing. Page is 1-based.
type ListCommentsInput struct {
	Sort    string
	Page    int
	PerPage int
}

// CommentRemoval is the result of a moderation delete.
type CommentRemoval struct {
	Comment *models.Comment `json:"comment"`
	Status  string          `json:"status"`
}

func NewCommentService(d Deps, gate *BanGate) *CommentService {
	return &CommentService{
		comments: d.Comments,
		visible:  visibility{communities: d.Communities, posts: d.Posts},
		gate:     gate,
		limiter:  d.Limiter,
		limits:   d.Limits,
		log:      observability.NewMutationLogger(d.logger(), "comment"),
	}
}

func (s *CommentService) CreateComment(ctx context.Context, actor models.Actor, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, end := observability.StartOperation(ctx, "comment", "CreateComment", attribute.Int("post_id", int(in.PostID)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, nil); err != nil {
		return nil, err
	}
	post, err := s.visible.post(ctx, actor, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, &post.CommunityID); err != nil {
		return nil, err
	}
	body, err := text("body", in.Body, 1, maxCommentLen)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.BucketComment, ratelimit.Subject(actor)); err != nil {
		return nil, err
	}

	comment = &models.Comment{
		PostID:   in.PostID,
		UserID:   actor.UserID,
		ParentID: in.ParentID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment, s.limits.CommentMaxDepth); err != nil {
		s.log.Failed(ctx, "create", err, slog.Uint64("post_id", uint64(in.PostID)))
		return nil, err
	}
	s.log.Applied(ctx, "create",
		slog.Uint64("comment_id", uint64(comment.ID)),
		slog.Uint64("post_id", uint64(comment.PostID)),
		slog.Int("depth", comment.Depth))
	return comment, nil
}

// ModerateDeleteComment removes a comment on behalf of a moderator or the
// comment's author. Removing an already removed comment is a no-op.
func (s *CommentService) ModerateDeleteComment(ctx context.Context, actor models.Actor, commentID uint, reason string) (res *CommentRemoval, err error) {
	ctx, end := observability.StartOperation(ctx, "comment", "ModerateDeleteComment", attribute.Int("comment_id", int(commentID)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	comment, noop, err := s.comments.ModerateDelete(ctx, actor.UserID, commentID, reason, func(c *models.Comment) error {
		return ownerOrModerator(actor, c.UserID)
	})
	if err != nil {
		s.log.Failed(ctx, "moderate_delete", err, slog.Uint64("comment_id", uint64(commentID)))
		return nil, err
	}
	if noop {
		s.log.Noop(ctx, "moderate_delete", slog.Uint64("comment_id", uint64(commentID)))
	} else {
		s.log.Applied(ctx, "moderate_delete", slog.Uint64("comment_id", uint64(commentID)))
	}
	return &CommentRemoval{Comment: comment, Status: removalStatus(noop)}, nil
}

func (s *CommentService) ListTopLevel(ctx context.Context, actor models.Actor, postID uint, in ListCommentsInput) (*repository.CommentPage, error) {
	opts, err := s.listOptions(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible.post(ctx, actor, postID); err != nil {
		return nil, err
	}
	return s.comments.ListTopLevel(ctx, postID, opts)
}

func (s *CommentService) ListChildren(ctx context.Context, actor models.Actor, postID, parentID uint, in ListCommentsInput) (*repository.CommentPage, error) {
	opts, err := s.listOptions(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible.post(ctx, actor, postID); err != nil {
		return nil, err
	}
	return s.comments.ListChildren(ctx, postID, parentID, opts)
}

func (s *CommentService) listOptions(in ListCommentsInput) (repository.CommentListOptions, error) {
	sort := repository.CommentSort(in.Sort)
	switch sort {
	case "":
		sort = repository.CommentSortOldest
	case repository.CommentSortOldest, repository.CommentSortTop:
	default:
		return repository.CommentListOptions{}, models.NewValidationError("sort must be oldest or top")
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	perPage := in.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > s.limits.CommentMaxPerPage {
		perPage = s.limits.CommentMaxPerPage
	}
	return repository.CommentListOptions{
		Sort:      sort,
		Page:      page,
		PerPage:   perPage,
		MaxServed: s.limits.CommentMaxServed,
	}, nil
}
