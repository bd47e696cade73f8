package server

import (
	"strconv"
	"strings"

	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCommunities handles GET /api/communities
// @Summary List communities
// @Description Moderators also see private and disabled communities.
// @Tags communities
// @Produce json
// @Success 200 {array} models.Community
// @Router /communities [get]
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	list, err := s.svc.Communities.List(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetCommunityBySlug handles GET /api/communities/:slug
// @Summary Get community
// @Description Accepts a slug or a numeric ID.
// @Tags communities
// @Produce json
// @Param slug path string true "Community slug or ID"
// @Success 200 {object} models.Community
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{slug} [get]
func (s *Server) GetCommunityBySlug(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("slug"))
	if key == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("slug is required"))
	}

	actor := middleware.ActorFrom(c)
	var (
		community *models.Community
		err       error
	)
	if id, perr := strconv.ParseUint(key, 10, 32); perr == nil && id > 0 {
		community, err = s.svc.Communities.GetByID(c.UserContext(), actor, uint(id))
	} else {
		community, err = s.svc.Communities.GetBySlug(c.UserContext(), actor, key)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(community)
}

// GetCommunityFeed handles GET /api/communities/:id/posts
// @Summary List a community feed
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Param sort query string false "Feed order" Enums(hot, new, top)
// @Param cursor query string false "Opaque cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} repository.FeedPage
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{id}/posts [get]
func (s *Server) GetCommunityFeed(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.svc.Feeds.ListCommunityFeed(c.UserContext(), middleware.ActorFrom(c), id, feedInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreateCommunity handles POST /api/communities
// @Summary Create community
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CommunityInput true "Community"
// @Success 201 {object} models.Community
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /communities [post]
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var req service.CommunityInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	community, err := s.svc.Communities.Create(c.UserContext(), middleware.ActorFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(community)
}

// UpdateCommunity handles PUT /api/communities/:id
// @Summary Update community
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Community ID"
// @Param request body service.CommunityPatch true "Changes"
// @Success 200 {object} models.Community
// @Failure 403 {object} models.ErrorResponse
// @Router /communities/{id} [put]
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.CommunityPatch
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	community, err := s.svc.Communities.Update(c.UserContext(), middleware.ActorFrom(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(community)
}

// EnableCommunity handles POST /api/communities/:id/enable
// @Summary Enable community
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param id path int true "Community ID"
// @Success 200 {object} models.Community
// @Router /communities/{id}/enable [post]
func (s *Server) EnableCommunity(c *fiber.Ctx) error {
	return s.setCommunityEnabled(c, true)
}

// DisableCommunity handles POST /api/communities/:id/disable
// @Summary Disable community
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param id path int true "Community ID"
// @Success 200 {object} models.Community
// @Router /communities/{id}/disable [post]
func (s *Server) DisableCommunity(c *fiber.Ctx) error {
	return s.setCommunityEnabled(c, false)
}

func (s *Server) setCommunityEnabled(c *fiber.Ctx, enabled bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	community, err := s.svc.Communities.SetEnabled(c.UserContext(), middleware.ActorFrom(c), id, enabled)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(community)
}

// DeleteCommunity handles DELETE /api/communities/:id
// @Summary Delete community
// @Description Only communities without posts can be deleted.
// @Tags communities
// @Security BearerAuth
// @Param id path int true "Community ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /communities/{id} [delete]
func (s *Server) DeleteCommunity(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.svc.Communities.Delete(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
