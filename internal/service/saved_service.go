package service

import (
	"context"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
)

// SavedService manages a user's bookmarked posts.
type SavedService struct {
	saved   repository.SavedPostRepository
	visible visibility
	limiter *ratelimit.Limiter
}

func NewSavedService(d Deps) *SavedService {
	return &SavedService{
		saved:   d.Saved,
		visible: visibility{communities: d.Communities, posts: d.Posts},
		limiter: d.Limiter,
	}
}

// Save bookmarks a post. Saving twice keeps one bookmark.
func (s *SavedService) Save(ctx context.Context, actor models.Actor, postID uint) (bool, error) {
	if err := requireAuth(actor); err != nil {
		return false, err
	}
	if _, err := s.visible.post(ctx, actor, postID); err != nil {
		return false, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.BucketSaved, ratelimit.Subject(actor)); err != nil {
		return false, err
	}
	return s.saved.Save(ctx, actor.UserID, postID)
}

func (s *SavedService) Unsave(ctx context.Context, actor models.Actor, postID uint) (bool, error) {
	if err := requireAuth(actor); err != nil {
		return false, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.BucketSaved, ratelimit.Subject(actor)); err != nil {
		return false, err
	}
	return s.saved.Unsave(ctx, actor.UserID, postID)
}

// List returns the actor's saved posts, most recently saved first.
func (s *SavedService) List(ctx context.Context, actor models.Actor, limit, offset int) ([]models.Post, error) {
	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.saved.List(ctx, actor.UserID, limit, offset)
}
