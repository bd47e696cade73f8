package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"gorm.io/gorm"
)

// CommentSort is a comment listing order.
type CommentSort string

const (
	CommentSortOldest CommentSort = "oldest"
	CommentSortTop    CommentSort = "top"
)

// CommentListOptions pages a comment listing. MaxServed bounds the total
// number of comments reachable across all pages.
type CommentListOptions struct {
	Sort      CommentSort
	Page      int
	PerPage   int
	MaxServed int
}

// CommentPage is one page of a listing.
type CommentPage struct {
	Comments   []models.Comment `json:"comments"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	HasMore    bool             `json:"has_more"`
	CapReached bool             `json:"cap_reached"`
}

// Authorizer vets a locked row before a mutation touches it.
type Authorizer[T any] func(row *T) error

// CommentRepository owns the comment tree and the counters derived from it.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment, maxDepth int) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ModerateDelete(ctx context.Context, actorID, commentID uint, reason string, authorize Authorizer[models.Comment]) (*models.Comment, bool, error)
	ListTopLevel(ctx context.Context, postID uint, opts CommentListOptions) (*CommentPage, error)
	ListChildren(ctx context.Context, postID, parentID uint, opts CommentListOptions) (*CommentPage, error)
}

type commentRepository struct {
	db *gorm.DB
	options
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *gorm.DB, opts ...Option) CommentRepository {
	return &commentRepository{db: db, options: buildOptions(db, opts)}
}

// childPath is the materialized path of a reply to parent.
func childPath(parent *models.Comment) string {
	id := strconv.FormatUint(uint64(parent.ID), 10)
	if parent.Path == "" {
		return id
	}
	return parent.Path + "." + id
}

// Create inserts comment under its post (and parent, when set). The insert
// and the three counter updates commit or roll back together.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment, maxDepth int) error {
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(forUpdate).Select("id", "status").First(&post, comment.PostID).Error; err != nil {
			return err
		}
		switch post.Status {
		case models.PostStatusLocked:
			return models.NewForbiddenError("post is locked")
		case models.PostStatusRemoved, models.PostStatusDeleted:
			return models.NewNotFoundError("post", comment.PostID)
		}

		comment.Depth = 0
		comment.Path = ""
		if comment.ParentID != nil {
			var parent models.Comment
			if err := tx.Clauses(forUpdate).First(&parent, *comment.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return models.NewNotFoundError("comment", *comment.ParentID)
				}
				return err
			}
			if parent.PostID != comment.PostID || !parent.IsPublished() {
				return models.NewNotFoundError("comment", *comment.ParentID)
			}
			if parent.Depth >= maxDepth-1 {
				observability.CommentDepthRejections.Inc()
				return models.NewDepthExceededError(maxDepth)
			}
			comment.Depth = parent.Depth + 1
			comment.Path = childPath(&parent)
		}

		comment.Status = models.CommentStatusPublished
		comment.Score = 0
		comment.ChildCount = 0
		comment.CreatedAt = now
		comment.UpdatedAt = now
		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		if comment.ParentID != nil {
			if err := tx.Model(&models.Comment{}).
				Where("id = ?", *comment.ParentID).
				UpdateColumn("child_count", gorm.Expr("child_count + 1")).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumns(map[string]any{
				"comment_count":     gorm.Expr("comment_count + 1"),
				"last_commented_at": now,
			}).Error
	})
	if err != nil {
		return translateError(err, "post", comment.PostID)
	}

	observability.CommentsCreatedTotal.WithLabelValues(strconv.Itoa(comment.Depth)).Inc()
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translateError(err, "comment", id)
	}
	return &comment, nil
}

// ModerateDelete removes a published comment. It returns noop=true when the
// comment was already removed; nothing is written in that case.
func (r *commentRepository) ModerateDelete(ctx context.Context, actorID, commentID uint, reason string, authorize Authorizer[models.Comment]) (*models.Comment, bool, error) {
	var (
		comment models.Comment
		noop    bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&comment, commentID).Error; err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(&comment); err != nil {
				return err
			}
		}
		if !comment.IsPublished() {
			noop = true
			return nil
		}

		now := r.now()
		if err := tx.Model(&models.Comment{}).
			Where("id = ?", comment.ID).
			UpdateColumns(map[string]any{
				"status":     models.CommentStatusRemoved,
				"body":       models.RemovedCommentBody,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", decrementFloor("comment_count")).Error; err != nil {
			return err
		}

		comment.Status = models.CommentStatusRemoved
		comment.Body = models.RemovedCommentBody
		comment.UpdatedAt = now

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetComment,
			TargetID:   comment.ID,
			Action:     models.ActionCommentRemove,
			Reason:     reason,
			Metadata:   map[string]any{"post_id": comment.PostID},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "comment", commentID)
	}
	if !noop {
		observability.ModerationActionsTotal.WithLabelValues(models.ActionCommentRemove).Inc()
	}
	return &comment, noop, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, postID uint, opts CommentListOptions) (*CommentPage, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where("post_id = ? AND parent_id IS NULL", postID)
	})
}

func (r *commentRepository) ListChildren(ctx context.Context, postID, parentID uint, opts CommentListOptions) (*CommentPage, error) {
	return r.list(ctx, opts, func(db *gorm.DB) *gorm.DB {
		return db.Where("post_id = ? AND parent_id = ?", postID, parentID)
	})
}

// list serves one offset page. Requests that start at or beyond MaxServed
// fail with LIMIT_REACHED; the page that crosses it is truncated and flagged.
func (r *commentRepository) list(ctx context.Context, opts CommentListOptions, scope func(*gorm.DB) *gorm.DB) (*CommentPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		return nil, models.NewValidationError("per_page must be positive")
	}
	offset := (opts.Page - 1) * opts.PerPage
	if opts.MaxServed > 0 && offset >= opts.MaxServed {
		return nil, models.NewLimitReachedError(opts.MaxServed)
	}
	limit := opts.PerPage
	if opts.MaxServed > 0 && offset+limit > opts.MaxServed {
		limit = opts.MaxServed - offset
	}

	db := scope(r.read.WithContext(ctx).Model(&models.Comment{})).
		Where("status IN ?", []models.CommentStatus{models.CommentStatusPublished, models.CommentStatusRemoved})
	switch opts.Sort {
	case CommentSortTop:
		db = db.Order("score DESC, created_at ASC, id ASC")
	case CommentSortOldest, "":
		db = db.Order("created_at ASC, id ASC")
	default:
		return nil, models.NewValidationError(fmt.Sprintf("unknown comment sort %q", opts.Sort))
	}

	var comments []models.Comment
	if err := db.Offset(offset).Limit(limit + 1).Find(&comments).Error; err != nil {
		return nil, translateError(err, "comments", nil)
	}

	page := &CommentPage{Page: opts.Page, PerPage: opts.PerPage}
	if len(comments) > limit {
		comments = comments[:limit]
		page.HasMore = true
	}
	page.Comments = comments
	if opts.MaxServed > 0 && offset+len(comments) >= opts.MaxServed {
		page.CapReached = true
		page.HasMore = false
	}
	return page, nil
}
