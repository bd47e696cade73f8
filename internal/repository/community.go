package repository

import (
	"context"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"gorm.io/gorm"
)

// CommunityRepository stores communities.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	GetBySlug(ctx context.Context, slug string) (*models.Community, error)
	List(ctx context.Context, includeHidden bool) ([]models.Community, error)
	Update(ctx context.Context, id uint, apply func(*models.Community) error) (*models.Community, error)
	SetEnabled(ctx context.Context, actorID, id uint, enabled bool) (*models.Community, bool, error)
	Delete(ctx context.Context, actorID, id uint) error
}

type communityRepository struct {
	db *gorm.DB
	options
}

// NewCommunityRepository creates a new community repository.
func NewCommunityRepository(db *gorm.DB, opts ...Option) CommunityRepository {
	return &communityRepository{db: db, options: buildOptions(db, opts)}
}

func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	now := r.now()
	community.CreatedAt = now
	community.UpdatedAt = now
	community.IsEnabled = true
	err := r.db.WithContext(ctx).Create(community).Error
	return translateError(err, "community", community.Slug)
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).First(&community, id).Error; err != nil {
		return nil, translateError(err, "community", id)
	}
	return &community, nil
}

func (r *communityRepository) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&community).Error; err != nil {
		return nil, translateError(err, "community", slug)
	}
	return &community, nil
}

// List returns communities by name. Without includeHidden, private and
// disabled communities are left out.
func (r *communityRepository) List(ctx context.Context, includeHidden bool) ([]models.Community, error) {
	db := r.read.WithContext(ctx)
	if !includeHidden {
		db = db.Where("is_enabled = ? AND visibility <> ?", true, models.VisibilityPrivate)
	}
	var communities []models.Community
	if err := db.Order("name ASC, id ASC").Find(&communities).Error; err != nil {
		return nil, translateError(err, "community", nil)
	}
	return communities, nil
}

// Update locks the community, lets apply edit it, and saves the result.
func (r *communityRepository) Update(ctx context.Context, id uint, apply func(*models.Community) error) (*models.Community, error) {
	var community models.Community
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&community, id).Error; err != nil {
			return err
		}
		if err := apply(&community); err != nil {
			return err
		}
		community.UpdatedAt = r.now()
		return tx.Save(&community).Error
	})
	if err != nil {
		return nil, translateError(err, "community", id)
	}
	return &community, nil
}

// SetEnabled flips is_enabled and logs the change. changed is false when the
// community was already in the requested state.
func (r *communityRepository) SetEnabled(ctx context.Context, actorID, id uint, enabled bool) (*models.Community, bool, error) {
	var (
		community models.Community
		changed   bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&community, id).Error; err != nil {
			return err
		}
		if community.IsEnabled == enabled {
			return nil
		}
		now := r.now()
		if err := tx.Model(&models.Community{}).Where("id = ?", id).
			UpdateColumns(map[string]any{"is_enabled": enabled, "updated_at": now}).Error; err != nil {
			return err
		}
		community.IsEnabled = enabled
		community.UpdatedAt = now
		changed = true

		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetCommunity,
			TargetID:   id,
			Action:     models.ActionCommunityState,
			Metadata:   map[string]any{"enabled": enabled},
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, false, translateError(err, "community", id)
	}
	return &community, changed, nil
}

// Delete removes a community that owns no posts. The post count is taken
// inside the transaction, after the community row is locked.
func (r *communityRepository) Delete(ctx context.Context, actorID, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var community models.Community
		if err := tx.Clauses(forUpdate).First(&community, id).Error; err != nil {
			return err
		}
		var posts int64
		if err := tx.Model(&models.Post{}).Where("community_id = ?", id).Count(&posts).Error; err != nil {
			return err
		}
		if posts > 0 {
			return models.NewConflictError("community still owns posts", nil)
		}
		if err := tx.Delete(&models.Community{}, id).Error; err != nil {
			return err
		}
		return appendLog(tx, &models.ModerationLog{
			ActorID:    actorID,
			TargetType: models.TargetCommunity,
			TargetID:   id,
			Action:     models.ActionCommunityState,
			Metadata:   map[string]any{"deleted": true, "slug": community.Slug},
			CreatedAt:  r.now(),
		})
	})
	return translateError(err, "community", id)
}
