package repository

import (
	"context"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"gorm.io/gorm"
)

// DriftRow is a row whose stored counter disagrees with its source rows.
type DriftRow struct {
	ID     uint  `json:"id"`
	Stored int64 `json:"stored"`
	Actual int64 `json:"actual"`
}

// DuplicateVote is a (user, target) pair holding more than one vote row.
type DuplicateVote struct {
	UserID     uint   `json:"user_id"`
	TargetType string `json:"target_type"`
	TargetID   uint   `json:"target_id"`
	Copies     int64  `json:"copies"`
}

// IntegrityRepository runs the read-only drift checks and the idempotent
// orphan cleanup. Nothing here corrects a counter.
type IntegrityRepository interface {
	PostScoreDrift(ctx context.Context, limit int) ([]DriftRow, error)
	CommentScoreDrift(ctx context.Context, limit int) ([]DriftRow, error)
	CommentCountDrift(ctx context.Context, limit int) ([]DriftRow, error)
	ChildCountDrift(ctx context.Context, limit int) ([]DriftRow, error)
	DuplicateVotes(ctx context.Context, limit int) ([]DuplicateVote, error)
	OrphanComments(ctx context.Context, limit int) ([]uint, error)

	DeleteOrphanEvents(ctx context.Context) (int64, error)
	DeleteOrphanSavedPosts(ctx context.Context) (int64, error)
	DeleteOrphanReports(ctx context.Context) (int64, error)
	DeleteOrphanVotes(ctx context.Context) (int64, error)
	ExpireBans(ctx context.Context) (int64, error)
}

type integrityRepository struct {
	db *gorm.DB
	options
}

// NewIntegrityRepository creates the maintenance repository. Checks read
// from the replica when one is configured.
func NewIntegrityRepository(db *gorm.DB, opts ...Option) IntegrityRepository {
	return &integrityRepository{db: db, options: buildOptions(db, opts)}
}

func (r *integrityRepository) drift(ctx context.Context, name, sql string, args ...any) ([]DriftRow, error) {
	defer observability.TrackQuery("integrity_"+name, "")()
	var rows []DriftRow
	if err := r.read.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, translateError(err, name, nil)
	}
	return rows, nil
}

func (r *integrityRepository) PostScoreDrift(ctx context.Context, limit int) ([]DriftRow, error) {
	return r.drift(ctx, "post_score", `
SELECT p.id AS id, p.score AS stored, COALESCE(v.total, 0) AS actual
FROM posts p
LEFT JOIN (
	SELECT target_id, SUM(value) AS total FROM votes WHERE target_type = ? GROUP BY target_id
) v ON v.target_id = p.id
WHERE p.score <> COALESCE(v.total, 0)
ORDER BY p.id
LIMIT ?`, models.VoteTargetPost, limit)
}

func (r *integrityRepository) CommentScoreDrift(ctx context.Context, limit int) ([]DriftRow, error) {
	return r.drift(ctx, "comment_score", `
SELECT c.id AS id, c.score AS stored, COALESCE(v.total, 0) AS actual
FROM comments c
LEFT JOIN (
	SELECT target_id, SUM(value) AS total FROM votes WHERE target_type = ? GROUP BY target_id
) v ON v.target_id = c.id
WHERE c.score <> COALESCE(v.total, 0)
ORDER BY c.id
LIMIT ?`, models.VoteTargetComment, limit)
}

func (r *integrityRepository) CommentCountDrift(ctx context.Context, limit int) ([]DriftRow, error) {
	return r.drift(ctx, "comment_count", `
SELECT p.id AS id, p.comment_count AS stored, COALESCE(c.total, 0) AS actual
FROM posts p
LEFT JOIN (
	SELECT post_id, COUNT(*) AS total FROM comments WHERE status = ? GROUP BY post_id
) c ON c.post_id = p.id
WHERE p.comment_count <> COALESCE(c.total, 0)
ORDER BY p.id
LIMIT ?`, models.CommentStatusPublished, limit)
}

// ChildCountDrift compares child_count with all direct replies. Moderated
// replies still count; only inserts move child_count.
func (r *integrityRepository) ChildCountDrift(ctx context.Context, limit int) ([]DriftRow, error) {
	return r.drift(ctx, "child_count", `
SELECT c.id AS id, c.child_count AS stored, COALESCE(k.total, 0) AS actual
FROM comments c
LEFT JOIN (
	SELECT parent_id, COUNT(*) AS total FROM comments WHERE parent_id IS NOT NULL GROUP BY parent_id
) k ON k.parent_id = c.id
WHERE c.child_count <> COALESCE(k.total, 0)
ORDER BY c.id
LIMIT ?`, limit)
}

func (r *integrityRepository) DuplicateVotes(ctx context.Context, limit int) ([]DuplicateVote, error) {
	defer observability.TrackQuery("integrity_duplicate_votes", "votes")()
	var rows []DuplicateVote
	err := r.read.WithContext(ctx).Raw(`
SELECT user_id, target_type, target_id, COUNT(*) AS copies
FROM votes
GROUP BY user_id, target_type, target_id
HAVING COUNT(*) > 1
ORDER BY user_id, target_type, target_id
LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, translateError(err, "votes", nil)
	}
	return rows, nil
}

func (r *integrityRepository) OrphanComments(ctx context.Context, limit int) ([]uint, error) {
	defer observability.TrackQuery("integrity_orphan_parents", "comments")()
	var ids []uint
	err := r.read.WithContext(ctx).Raw(`
SELECT c.id
FROM comments c
LEFT JOIN comments parent ON parent.id = c.parent_id
WHERE c.parent_id IS NOT NULL AND parent.id IS NULL
ORDER BY c.id
LIMIT ?`, limit).Scan(&ids).Error
	if err != nil {
		return nil, translateError(err, "comments", nil)
	}
	return ids, nil
}

// DeleteOrphanEvents drops events whose post is gone, is no longer an
// event, or has been removed.
func (r *integrityRepository) DeleteOrphanEvents(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where(`NOT EXISTS (
			SELECT 1 FROM posts
			WHERE posts.id = events.post_id AND posts.type = ? AND posts.status NOT IN ?
		)`, models.PostTypeEvent, []models.PostStatus{models.PostStatusRemoved, models.PostStatusDeleted}).
		Delete(&models.Event{})
	return res.RowsAffected, translateError(res.Error, "event", nil)
}

func (r *integrityRepository) DeleteOrphanSavedPosts(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = saved_posts.post_id)").
		Delete(&models.SavedPost{})
	return res.RowsAffected, translateError(res.Error, "saved post", nil)
}

func (r *integrityRepository) DeleteOrphanReports(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = reports.post_id)").
		Delete(&models.Report{})
	return res.RowsAffected, translateError(res.Error, "report", nil)
}

func (r *integrityRepository) DeleteOrphanVotes(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where(`(target_type = ? AND NOT EXISTS (SELECT 1 FROM posts WHERE posts.id = votes.target_id))
			OR (target_type = ? AND NOT EXISTS (SELECT 1 FROM comments WHERE comments.id = votes.target_id))`,
			models.VoteTargetPost, models.VoteTargetComment).
		Delete(&models.Vote{})
	return res.RowsAffected, translateError(res.Error, "vote", nil)
}

// ExpireBans deactivates active bans whose expiry has passed.
func (r *integrityRepository) ExpireBans(ctx context.Context) (int64, error) {
	now := r.now()
	res := r.db.WithContext(ctx).Model(&models.Ban{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		UpdateColumns(map[string]any{"is_active": false, "updated_at": now})
	return res.RowsAffected, translateError(res.Error, "ban", nil)
}
