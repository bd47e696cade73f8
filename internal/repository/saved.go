package repository

import (
	"context"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedPostRepository stores per-user bookmarks.
type SavedPostRepository interface {
	Save(ctx context.Context, userID, postID uint) (bool, error)
	Unsave(ctx context.Context, userID, postID uint) (bool, error)
	List(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error)
}

type savedPostRepository struct {
	db *gorm.DB
	options
}

// NewSavedPostRepository creates a new saved post repository.
func NewSavedPostRepository(db *gorm.DB, opts ...Option) SavedPostRepository {
	return &savedPostRepository{db: db, options: buildOptions(db, opts)}
}

// Save bookmarks a visible post. It reports whether a new row was written.
func (r *savedPostRepository) Save(ctx context.Context, userID, postID uint) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "status").First(&post, postID).Error; err != nil {
			return err
		}
		if post.Status == models.PostStatusDeleted || post.IsRemoved() {
			return models.NewNotFoundError("post", postID)
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.SavedPost{
			UserID:    userID,
			PostID:    postID,
			CreatedAt: r.now(),
		})
		created = res.RowsAffected == 1
		return res.Error
	})
	if err != nil {
		return false, translateError(err, "post", postID)
	}
	return created, nil
}

func (r *savedPostRepository) Unsave(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.SavedPost{})
	if res.Error != nil {
		return false, translateError(res.Error, "saved post", postID)
	}
	return res.RowsAffected > 0, nil
}

// List returns the user's saved posts, most recently saved first. Deleted
// posts drop out; removed posts stay as scrubbed placeholders.
func (r *savedPostRepository) List(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.read.WithContext(ctx).
		Select("posts.*").
		Joins("JOIN saved_posts ON saved_posts.post_id = posts.id").
		Where("saved_posts.user_id = ? AND posts.status <> ?", userID, models.PostStatusDeleted).
		Order("saved_posts.created_at DESC, saved_posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, translateError(err, "saved post", userID)
	}
	if err := attachEvents(r.read.WithContext(ctx), posts); err != nil {
		return nil, translateError(err, "event", nil)
	}
	return posts, nil
}
