package repository

import (
	"context"
	"fmt"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"gorm.io/gorm"
)

// Vote ledger branches, also used as metric labels.
const (
	VoteInserted = "inserted"
	VoteUpdated  = "updated"
	VoteDeleted  = "deleted"
	VoteNoop     = "noop"
)

// VoteOutcome is the result of one ledger mutation.
type VoteOutcome struct {
	Branch   string `json:"branch"`
	Previous int    `json:"previous"`
	Value    int    `json:"value"`
	Delta    int    `json:"delta"`
	Score    int    `json:"score"`
}

// VoteRepository owns the one-vote-per-user-per-target ledger and the score
// columns it feeds.
type VoteRepository interface {
	Mutate(ctx context.Context, userID uint, target models.VoteTarget, targetID uint, clicked int) (*VoteOutcome, error)
}

type voteRepository struct {
	db *gorm.DB
	options
}

// NewVoteRepository creates a new vote ledger.
func NewVoteRepository(db *gorm.DB, opts ...Option) VoteRepository {
	return &voteRepository{db: db, options: buildOptions(db, opts)}
}

// ResolveEffective applies the toggle rule: clicking the arrow already
// cast removes the vote.
func ResolveEffective(existing, clicked int) int {
	if existing == clicked {
		return 0
	}
	return clicked
}

// Mutate applies one arrow click. The toggle is resolved against the vote
// read under lock inside the same transaction that writes the score.
func (r *voteRepository) Mutate(ctx context.Context, userID uint, target models.VoteTarget, targetID uint, clicked int) (*VoteOutcome, error) {
	if !target.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("invalid vote target %q", target))
	}
	if clicked < -1 || clicked > 1 {
		return nil, models.NewValidationError("vote value must be -1, 0 or 1")
	}

	var out *VoteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		score, err := lockVoteTarget(tx, target, targetID)
		if err != nil {
			return err
		}

		var existing []models.Vote
		if err := tx.Clauses(forUpdate).
			Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target, targetID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		previous := 0
		if len(existing) > 0 {
			previous = existing[0].Value
		}
		value := ResolveEffective(previous, clicked)
		out = &VoteOutcome{Previous: previous, Value: value, Delta: value - previous, Score: score}

		switch {
		case value == previous:
			out.Branch = VoteNoop
			return nil
		case previous == 0:
			out.Branch = VoteInserted
			vote := models.Vote{UserID: userID, TargetType: target, TargetID: targetID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		case value == 0:
			out.Branch = VoteDeleted
			if err := tx.Delete(&models.Vote{}, existing[0].ID).Error; err != nil {
				return err
			}
		default:
			out.Branch = VoteUpdated
			if err := tx.Model(&models.Vote{}).
				Where("id = ?", existing[0].ID).
				Updates(map[string]any{"value": value, "updated_at": r.now()}).Error; err != nil {
				return err
			}
		}

		if err := applyScore(tx, target, targetID, out.Delta); err != nil {
			return err
		}
		out.Score = score + out.Delta

		return tx.Create(&models.VoteEvent{
			UserID:     userID,
			TargetType: target,
			TargetID:   targetID,
			OldValue:   previous,
			NewValue:   value,
			CreatedAt:  r.now(),
		}).Error
	})
	if err != nil {
		return nil, translateError(err, string(target), targetID)
	}

	observability.VotesTotal.WithLabelValues(string(target), out.Branch).Inc()
	return out, nil
}

// lockVoteTarget locks the voted row and returns its current score. Removed
// and deleted targets cannot be voted on.
func lockVoteTarget(tx *gorm.DB, target models.VoteTarget, targetID uint) (int, error) {
	switch target {
	case models.VoteTargetPost:
		var post models.Post
		if err := tx.Clauses(forUpdate).Select("id", "score", "status").First(&post, targetID).Error; err != nil {
			return 0, err
		}
		if post.Status == models.PostStatusRemoved || post.Status == models.PostStatusDeleted {
			return 0, models.NewNotFoundError("post", targetID)
		}
		return post.Score, nil
	default:
		var comment models.Comment
		if err := tx.Clauses(forUpdate).Select("id", "score", "status").First(&comment, targetID).Error; err != nil {
			return 0, err
		}
		if !comment.IsPublished() {
			return 0, models.NewNotFoundError("comment", targetID)
		}
		return comment.Score, nil
	}
}

// applyScore is the only writer of the score columns outside migrations.
func applyScore(tx *gorm.DB, target models.VoteTarget, targetID uint, delta int) error {
	if delta == 0 {
		return nil
	}
	var model any = &models.Post{}
	if target == models.VoteTargetComment {
		model = &models.Comment{}
	}
	res := tx.Model(model).Where("id = ?", targetID).UpdateColumn("score", gorm.Expr("score + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("score update touched %d rows", res.RowsAffected)
	}
	return nil
}
