package repository

import (
	"context"
	"errors"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"gorm.io/gorm"
)

// PostPatch lists the fields an update changes. Nil fields are kept.
type PostPatch struct {
	Title *string
	Body  *string
	Type  *models.PostType
	Event *models.Event
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, id uint, patch PostPatch, authorize Authorizer[models.Post]) (*models.Post, error)
	UpsertEvent(ctx context.Context, postID uint, event *models.Event, authorize Authorizer[models.Post]) (*models.Event, error)
	DeleteEvent(ctx context.Context, postID uint, authorize Authorizer[models.Post]) (bool, error)
	CountByCommunity(ctx context.Context, communityID uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
	options
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB, opts ...Option) PostRepository {
	return &postRepository{db: db, options: buildOptions(db, opts)}
}

// Create inserts the post and, for event posts, its event row.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := post.Event
		post.Status = models.PostStatusPublished
		post.Score = 0
		post.CommentCount = 0
		post.ReportsCount = 0
		post.LastCommentedAt = nil
		if post.CreatedAt.IsZero() {
			post.CreatedAt = now
		}
		post.UpdatedAt = post.CreatedAt

		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if post.Type != models.PostTypeEvent {
			post.Event = nil
			return nil
		}
		if event == nil {
			return models.NewValidationError("event_date is required for event posts")
		}
		event.ID = 0
		event.PostID = post.ID
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		post.Event = event
		return nil
	})
	return translateError(err, "post", post.ID)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translateError(err, "post", id)
	}
	if post.Status == models.PostStatusDeleted {
		return nil, models.NewNotFoundError("post", id)
	}
	if post.Type == models.PostTypeEvent {
		posts := []models.Post{post}
		if err := attachEvents(r.db.WithContext(ctx), posts); err != nil {
			return nil, translateError(err, "event", id)
		}
		post = posts[0]
	}
	return &post, nil
}

// Update edits a post in place. Retyping away from event deletes the event
// row; retyping to event requires one, supplied or already stored.
func (r *postRepository) Update(ctx context.Context, id uint, patch PostPatch, authorize Authorizer[models.Post]) (*models.Post, error) {
	var post *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = lockPost(tx, id); err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(post); err != nil {
				return err
			}
		}
		if post.IsRemoved() {
			return models.NewValidationError("removed posts cannot be edited")
		}

		updates := map[string]any{}
		if patch.Title != nil {
			post.Title = *patch.Title
			updates["title"] = post.Title
		}
		if patch.Body != nil {
			post.Body = *patch.Body
			updates["body"] = post.Body
		}
		if patch.Type != nil && *patch.Type != post.Type {
			post.Type = *patch.Type
			updates["type"] = post.Type
		}

		if post.Type == models.PostTypeEvent {
			event, err := upsertEvent(tx, post.ID, patch.Event)
			if err != nil {
				return err
			}
			post.Event = event
		} else if err := tx.Where("post_id = ?", post.ID).Delete(&models.Event{}).Error; err != nil {
			return err
		}

		if len(updates) == 0 {
			return nil
		}
		post.UpdatedAt = r.now()
		updates["updated_at"] = post.UpdatedAt
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumns(updates).Error
	})
	if err != nil {
		return nil, translateError(err, "post", id)
	}
	return post, nil
}

// upsertEvent writes fields onto the post's event row, creating it when
// missing. A nil fields value only asserts that the row exists.
func upsertEvent(tx *gorm.DB, postID uint, fields *models.Event) (*models.Event, error) {
	var existing models.Event
	err := tx.Where("post_id = ?", postID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if fields == nil {
			return nil, models.NewValidationError("event_date is required for event posts")
		}
		fields.ID = 0
		fields.PostID = postID
		if err := tx.Create(fields).Error; err != nil {
			return nil, err
		}
		return fields, nil
	case err != nil:
		return nil, err
	}

	if fields == nil {
		return &existing, nil
	}
	existing.EventDate = fields.EventDate
	existing.EventEndDate = fields.EventEndDate
	existing.VenueName = fields.VenueName
	existing.VenueAddress = fields.VenueAddress
	existing.TicketURL = fields.TicketURL
	existing.Metadata = fields.Metadata
	if err := tx.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *postRepository) UpsertEvent(ctx context.Context, postID uint, event *models.Event, authorize Authorizer[models.Post]) (*models.Event, error) {
	var saved *models.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(post); err != nil {
				return err
			}
		}
		if post.IsRemoved() {
			return models.NewValidationError("removed posts cannot be edited")
		}
		if post.Type != models.PostTypeEvent {
			return models.NewValidationError("post is not an event")
		}
		saved, err = upsertEvent(tx, postID, event)
		return err
	})
	if err != nil {
		return nil, translateError(err, "post", postID)
	}
	return saved, nil
}

// DeleteEvent drops the event row and retypes the post to text so that
// every event post keeps exactly one event.
func (r *postRepository) DeleteEvent(ctx context.Context, postID uint, authorize Authorizer[models.Post]) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(post); err != nil {
				return err
			}
		}
		res := tx.Where("post_id = ?", postID).Delete(&models.Event{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		if post.Type != models.PostTypeEvent {
			return nil
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumns(map[string]any{"type": models.PostTypeText, "updated_at": r.now()}).Error
	})
	if err != nil {
		return false, translateError(err, "post", postID)
	}
	return deleted, nil
}

func (r *postRepository) CountByCommunity(ctx context.Context, communityID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("community_id = ?", communityID).Count(&n).Error
	return n, translateError(err, "post", nil)
}

// attachEvents loads the event rows of the event posts in posts.
func attachEvents(db *gorm.DB, posts []models.Post) error {
	var ids []uint
	for i := range posts {
		if posts[i].Type == models.PostTypeEvent {
			ids = append(ids, posts[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var events []models.Event
	if err := db.Where("post_id IN ?", ids).Find(&events).Error; err != nil {
		return err
	}
	byPost := make(map[uint]*models.Event, len(events))
	for i := range events {
		byPost[events[i].PostID] = &events[i]
	}
	for i := range posts {
		if ev, ok := byPost[posts[i].ID]; ok {
			posts[i].Event = ev
		}
	}
	return nil
}
