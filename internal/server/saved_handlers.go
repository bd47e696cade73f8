package server

import (
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SavePost handles POST /api/posts/:id/save
// @Summary Save a post
// @Tags saved
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{saved=bool,created=bool}
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts/{id}/save [post]
func (s *Server) SavePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	created, err := s.svc.Saved.Save(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": true, "created": created})
}

// UnsavePost handles DELETE /api/posts/:id/save
// @Summary Unsave a post
// @Tags saved
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{saved=bool,removed=bool}
// @Router /posts/{id}/save [delete]
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	removed, err := s.svc.Saved.Unsave(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": false, "removed": removed})
}

// GetSavedPosts handles GET /api/users/me/saved
// @Summary List saved posts
// @Tags saved
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /users/me/saved [get]
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.svc.Saved.List(c.UserContext(), middleware.ActorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(posts)
}
