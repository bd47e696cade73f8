package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
	"github.com/v1mal/open-scene-engine-sub000/internal/validation"
)

// CommunityService manages communities. Every change bumps the cache
// version.
type CommunityService struct {
	communities repository.CommunityRepository
	visible     visibility
	cache       *cache.Store
	limits      Limits
	log         *observability.MutationLogger
}

type CommunityInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

// CommunityPatch edits a community. Nil fields are kept.
type CommunityPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility"`
}

func NewCommunityService(d Deps) *CommunityService {
	return &CommunityService{
		communities: d.Communities,
		visible:     visibility{communities: d.Communities, posts: d.Posts},
		cache:       d.Cache,
		limits:      d.Limits,
		log:         observability.NewMutationLogger(d.logger(), "community"),
	}
}

// List returns the communities the actor may see.
func (s *CommunityService) List(ctx context.Context, actor models.Actor) ([]models.Community, error) {
	includeHidden := actor.IsModerator()
	var out []models.Community
	err := s.cache.Aside(ctx, cache.CommunitiesSegment(includeHidden), &out, s.limits.CommunityCacheTTL, func() (any, error) {
		return s.communities.List(ctx, includeHidden)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Community{}
	}
	return out, nil
}

func (s *CommunityService) GetBySlug(ctx context.Context, actor models.Actor, slug string) (*models.Community, error) {
	c, err := s.communities.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if !c.VisibleTo(actor) {
		return nil, models.NewNotFoundError("community", slug)
	}
	return c, nil
}

func (s *CommunityService) GetByID(ctx context.Context, actor models.Actor, id uint) (*models.Community, error) {
	return s.visible.community(ctx, actor, id)
}

// Create adds a community. Admin only.
func (s *CommunityService) Create(ctx context.Context, actor models.Actor, in CommunityInput) (*models.Community, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, err := text("name", in.Name, 1, 120)
	if err != nil {
		return nil, err
	}
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validation.ValidateCommunitySlug(slug); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	vis, err := parseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}
	description, err := text("description", in.Description, 0, 5000)
	if err != nil {
		return nil, err
	}

	c := &models.Community{
		Name:        name,
		Slug:        slug,
		Description: description,
		Visibility:  vis,
		CreatedBy:   actor.UserID,
	}
	if err := s.communities.Create(ctx, c); err != nil {
		s.log.Failed(ctx, "create", err, slog.String("slug", slug))
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "create", slog.Uint64("community_id", uint64(c.ID)))
	return c, nil
}

// Update edits name, description and visibility. Admin only.
func (s *CommunityService) Update(ctx context.Context, actor models.Actor, id uint, patch CommunityPatch) (*models.Community, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, err := s.communities.Update(ctx, id, func(c *models.Community) error {
		if patch.Name != nil {
			name, err := text("name", *patch.Name, 1, 120)
			if err != nil {
				return err
			}
			c.Name = name
		}
		if patch.Description != nil {
			description, err := text("description", *patch.Description, 0, 5000)
			if err != nil {
				return err
			}
			c.Description = description
		}
		if patch.Visibility != nil {
			vis, err := parseVisibility(*patch.Visibility)
			if err != nil {
				return err
			}
			c.Visibility = vis
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "update", slog.Uint64("community_id", uint64(id)))
	return c, nil
}

// SetEnabled enables or disables a community. Disabled communities behave
// as private and reject new posts.
func (s *CommunityService) SetEnabled(ctx context.Context, actor models.Actor, id uint, enabled bool) (*models.Community, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	c, changed, err := s.communities.SetEnabled(ctx, actor.UserID, id, enabled)
	if err != nil {
		return nil, err
	}
	if changed {
		s.cache.Bump(ctx)
		s.log.Applied(ctx, "set_enabled", slog.Uint64("community_id", uint64(id)), slog.Bool("enabled", enabled))
	}
	return c, nil
}

// Delete removes a community that owns no posts.
func (s *CommunityService) Delete(ctx context.Context, actor models.Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.communities.Delete(ctx, actor.UserID, id); err != nil {
		s.log.Failed(ctx, "delete", err, slog.Uint64("community_id", uint64(id)))
		return err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "delete", slog.Uint64("community_id", uint64(id)))
	return nil
}

func parseVisibility(s string) (models.CommunityVisibility, error) {
	v := models.CommunityVisibility(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return models.VisibilityPublic, nil
	}
	if !v.Valid() {
		return "", models.NewValidationError("visibility must be public, restricted or private")
	}
	return v, nil
}
