package repository

import (
	"context"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogFilter narrows a moderation log listing. Zero fields match everything.
type LogFilter struct {
	TargetType string
	TargetID   uint
	ActorID    uint
	Limit      int
	Offset     int
}

// ModerationRepository applies post state transitions, reports and bans.
// Every real transition appends exactly one moderation log row in the same
// transaction; repeated calls that change nothing append none.
type ModerationRepository interface {
	SetLocked(ctx context.Context, actorID, postID uint, locked bool, reason string) (*models.Post, bool, error)
	SetSticky(ctx context.Context, actorID, postID uint, sticky bool, reason string) (*models.Post, bool, error)
	SoftDelete(ctx context.Context, actorID, postID uint, reason string, authorize Authorizer[models.Post]) (*models.Post, bool, error)
	Report(ctx context.Context, userID, postID uint, reason string) (uint, bool, error)
	ClearReports(ctx context.Context, actorID, postID uint, reason string) (int64, error)
	Ban(ctx context.Context, ban *models.Ban) (*models.Ban, bool, error)
	Unban(ctx context.Context, actorID, userID uint, communityID *uint, reason string) (bool, error)
	ActiveBans(ctx context.Context, userID uint, communityID *uint) ([]models.Ban, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]models.ModerationLog, error)
}

type moderationRepository struct {
	db *gorm.DB
	options
}

// NewModerationRepository creates a new moderation repository.
func NewModerationRepository(db *gorm.DB, opts ...Option) ModerationRepository {
	return &moderationRepository{db: db, options: buildOptions(db, opts)}
}

func appendLog(tx *gorm.DB, entry *models.ModerationLog) error {
	return tx.Create(entry).Error
}

// lockPost locks a post that has not reached the deleted terminal state.
func lockPost(tx *gorm.DB, postID uint) (*models.Post, error) {
	var post models.Post
	if err := tx.Clauses(forUpdate).First(&post, postID).Error; err != nil {
		return nil, err
	}
	if post.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("post", postID)
	}
	return &post, nil
}

func (r *moderationRepository) SetLocked(ctx context.Context, actorID, postID uint, locked bool, reason string) (*models.Post, bool, error) {
	var (
		post    *models.Post
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = lockPost(tx, postID); err != nil {
			return err
		}
		if post.IsRemoved() {
			return models.NewValidationError("removed posts cannot be locked or unlocked")
		}

		target, action := models.PostStatusPublished, models.ActionPostUnlock
		if locked {
			target, action = models.PostStatusLocked, models.ActionPostLock
		}
		if post.Status == target {
			return nil
		}

		now := r.now()
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumns(map[string]any{"status": target, "updated_at": now}).Error; err != nil {
			return err
		}
		previous := post.Status
		post.Status = target
		post.UpdatedAt = now
		changed = true

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetPost,
			TargetID:   post.ID,
			Action:     action,
			Reason:     reason,
			Metadata:   map[string]any{"from": string(previous), "to": string(target)},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "post", postID)
	}
	if changed {
		observability.ModerationActionsTotal.WithLabelValues(logAction(locked, models.ActionPostLock, models.ActionPostUnlock)).Inc()
	}
	return post, changed, nil
}

func (r *moderationRepository) SetSticky(ctx context.Context, actorID, postID uint, sticky bool, reason string) (*models.Post, bool, error) {
	var (
		post    *models.Post
		changed bool
	)
	action := logAction(sticky, models.ActionPostSticky, models.ActionPostUnsticky)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = lockPost(tx, postID); err != nil {
			return err
		}
		if sticky && post.IsRemoved() {
			return models.NewValidationError("removed posts cannot be pinned")
		}
		if post.IsSticky == sticky {
			return nil
		}

		now := r.now()
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumns(map[string]any{"is_sticky": sticky, "updated_at": now}).Error; err != nil {
			return err
		}
		post.IsSticky = sticky
		post.UpdatedAt = now
		changed = true

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetPost,
			TargetID:   post.ID,
			Action:     action,
			Reason:     reason,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "post", postID)
	}
	if changed {
		observability.ModerationActionsTotal.WithLabelValues(action).Inc()
	}
	return post, changed, nil
}

// SoftDelete scrubs a post and drops its event. Score and comment_count are
// kept. alreadyRemoved is true when the post was removed before the call.
func (r *moderationRepository) SoftDelete(ctx context.Context, actorID, postID uint, reason string, authorize Authorizer[models.Post]) (*models.Post, bool, error) {
	var (
		post           *models.Post
		alreadyRemoved bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = lockPost(tx, postID); err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(post); err != nil {
				return err
			}
		}
		if post.IsRemoved() {
			alreadyRemoved = true
			return nil
		}

		now := r.now()
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumns(map[string]any{
				"status":        models.PostStatusRemoved,
				"title":         models.RemovedTitle,
				"body":          "",
				"reports_count": 0,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Event{}).Error; err != nil {
			return err
		}

		previous := post.Status
		post.Status = models.PostStatusRemoved
		post.Title = models.RemovedTitle
		post.Body = ""
		post.ReportsCount = 0
		post.UpdatedAt = now

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetPost,
			TargetID:   post.ID,
			Action:     models.ActionPostRemove,
			Reason:     reason,
			Metadata:   map[string]any{"from": string(previous), "by_author": actorID == post.UserID},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "post", postID)
	}
	if !alreadyRemoved {
		observability.ModerationActionsTotal.WithLabelValues(models.ActionPostRemove).Inc()
	}
	return post, alreadyRemoved, nil
}

// Report records one report per (post, user). The counter moves only when
// a row was actually inserted. It returns the post's current count.
func (r *moderationRepository) Report(ctx context.Context, userID, postID uint, reason string) (uint, bool, error) {
	var (
		count    uint
		inserted bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}
		if post.IsRemoved() {
			return models.NewNotFoundError("post", postID)
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Report{
			PostID:    postID,
			UserID:    userID,
			Reason:    reason,
			CreatedAt: r.now(),
		})
		if res.Error != nil {
			return res.Error
		}
		count = post.ReportsCount
		if res.RowsAffected != 1 {
			return nil
		}

		inserted = true
		count++
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("reports_count", gorm.Expr("reports_count + 1")).Error
	})
	if err != nil {
		return 0, false, translateError(err, "post", postID)
	}
	return count, inserted, nil
}

// ClearReports deletes every report row and zeroes the counter together.
func (r *moderationRepository) ClearReports(ctx context.Context, actorID, postID uint, reason string) (int64, error) {
	var cleared int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		res := tx.Where("post_id = ?", postID).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		cleared = res.RowsAffected

		now := r.now()
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumns(map[string]any{"reports_count": 0, "updated_at": now}).Error; err != nil {
			return err
		}

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetPost,
			TargetID:   post.ID,
			Action:     models.ActionReportsClear,
			Reason:     reason,
			Metadata:   map[string]any{"cleared": cleared, "previous_count": post.ReportsCount},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return 0, translateError(err, "post", postID)
	}
	observability.ModerationActionsTotal.WithLabelValues(models.ActionReportsClear).Inc()
	return cleared, nil
}

func scopeBans(db *gorm.DB, userID uint, communityID *uint) *gorm.DB {
	db = db.Where("user_id = ? AND is_active = ?", userID, true)
	if communityID == nil {
		return db.Where("community_id IS NULL")
	}
	return db.Where("community_id = ?", *communityID)
}

// Ban activates a ban for its scope. An unexpired active ban in the same
// scope is returned unchanged with created=false.
func (r *moderationRepository) Ban(ctx context.Context, ban *models.Ban) (*models.Ban, bool, error) {
	var (
		result  *models.Ban
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()

		var active []models.Ban
		if err := scopeBans(tx.Clauses(forUpdate), ban.UserID, ban.CommunityID).Find(&active).Error; err != nil {
			return err
		}
		for i := range active {
			if active[i].ExpiresAt == nil || active[i].ExpiresAt.After(now) {
				result = &active[i]
				return nil
			}
		}
		if len(active) > 0 {
			if err := scopeBans(tx.Model(&models.Ban{}), ban.UserID, ban.CommunityID).
				UpdateColumns(map[string]any{"is_active": false, "updated_at": now}).Error; err != nil {
				return err
			}
		}

		ban.ID = 0
		ban.IsActive = true
		ban.CreatedAt = now
		ban.UpdatedAt = now
		if err := tx.Create(ban).Error; err != nil {
			return err
		}
		result = ban
		created = true

		meta := map[string]any{"ban_id": ban.ID}
		if ban.CommunityID != nil {
			meta["community_id"] = *ban.CommunityID
		}
		if ban.ExpiresAt != nil {
			meta["expires_at"] = ban.ExpiresAt.UTC().Format(time.RFC3339)
		}
		return appendLog(tx, &models.ModerationLog{
			ActorID:    ban.ActorID,
			TargetType: models.TargetUser,
			TargetID:   ban.UserID,
			Action:     models.ActionUserBan,
			Reason:     ban.Reason,
			Metadata:   meta,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "ban", ban.UserID)
	}
	if created {
		observability.ModerationActionsTotal.WithLabelValues(models.ActionUserBan).Inc()
	}
	return result, created, nil
}

// Unban deactivates the user's active ban in the scope. It reports whether
// a ban was lifted.
func (r *moderationRepository) Unban(ctx context.Context, actorID, userID uint, communityID *uint, reason string) (bool, error) {
	var lifted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		res := scopeBans(tx.Model(&models.Ban{}), userID, communityID).
			UpdateColumns(map[string]any{"is_active": false, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		lifted = true

		meta := map[string]any{}
		if communityID != nil {
			meta["community_id"] = *communityID
		}
		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetUser,
			TargetID:   userID,
			Action:     models.ActionUserUnban,
			Reason:     reason,
			Metadata:   meta,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return false, translateError(err, "ban", userID)
	}
	if lifted {
		observability.ModerationActionsTotal.WithLabelValues(models.ActionUserUnban).Inc()
	}
	return lifted, nil
}

// ActiveBans lists unexpired active bans that apply to userID: the global
// ban plus, when communityID is set, that community's ban.
func (r *moderationRepository) ActiveBans(ctx context.Context, userID uint, communityID *uint) ([]models.Ban, error) {
	db := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", r.now())
	if communityID == nil {
		db = db.Where("community_id IS NULL")
	} else {
		db = db.Where("community_id IS NULL OR community_id = ?", *communityID)
	}

	var bans []models.Ban
	if err := db.Order("id ASC").Find(&bans).Error; err != nil {
		return nil, translateError(err, "ban", userID)
	}
	return bans, nil
}

func (r *moderationRepository) ListLogs(ctx context.Context, filter LogFilter) ([]models.ModerationLog, error) {
	db := r.read.WithContext(ctx).Model(&models.ModerationLog{})
	if filter.TargetType != "" {
		db = db.Where("target_type = ?", filter.TargetType)
	}
	if filter.TargetID != 0 {
		db = db.Where("target_id = ?", filter.TargetID)
	}
	if filter.ActorID != 0 {
		db = db.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	var logs []models.ModerationLog
	err := db.Order("created_at DESC, id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&logs).Error
	if err != nil {
		return nil, translateError(err, "moderation log", nil)
	}
	return logs, nil
}

func logAction(on bool, onAction, offAction string) string {
	if on {
		return onAction
	}
	return offAction
}
