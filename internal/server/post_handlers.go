package server

import (
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	CommunityID uint                `json:"community_id"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	Type        string              `json:"type"`
	Event       *service.EventInput `json:"event,omitempty"`
}

// UpdatePostRequest is the body of PUT /api/posts/:id. Omitted fields are kept.
type UpdatePostRequest struct {
	Title *string             `json:"title"`
	Body  *string             `json:"body"`
	Type  *string             `json:"type"`
	Event *service.EventInput `json:"event,omitempty"`
}

// VoteRequest carries the arrow that was clicked: 1, -1, or 0 to clear.
type VoteRequest struct {
	Value *int `json:"value"`
}

// ReasonRequest is the optional moderator note attached to a transition.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func feedInput(c *fiber.Ctx) service.FeedInput {
	return service.FeedInput{
		Sort:   c.Query("sort"),
		Cursor: c.Query("cursor"),
		Limit:  c.QueryInt("limit", 0),
	}
}

// GetFeed handles GET /api/posts
// @Summary List the global feed
// @Description Ranked, seek-paginated feed across visible communities. Stickies lead page one.
// @Tags posts
// @Produce json
// @Param sort query string false "Feed order" Enums(hot, new, top)
// @Param cursor query string false "Opaque cursor from the previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} repository.FeedPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.svc.Feeds.ListFeed(c.UserContext(), middleware.ActorFrom(c), feedInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// SearchPosts handles GET /api/posts/search
// @Summary Search posts
// @Description Case-insensitive title and body search, ranked like the feed.
// @Tags posts
// @Produce json
// @Param q query string true "Search query, at least 2 characters"
// @Param sort query string false "Feed order" Enums(hot, new, top)
// @Param cursor query string false "Opaque cursor"
// @Param limit query int false "Page size"
// @Success 200 {object} repository.FeedPage
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page, err := s.svc.Feeds.SearchFeed(c.UserContext(), middleware.ActorFrom(c), c.Query("q"), feedInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.svc.Posts.GetPost(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Create a text, link, media or event post. Event posts require event.event_date.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.svc.Posts.CreatePost(c.UserContext(), middleware.ActorFrom(c), service.CreatePostInput{
		CommunityID: req.CommunityID,
		Title:       req.Title,
		Body:        req.Body,
		Type:        req.Type,
		Event:       req.Event,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Description Edit title, body or type. Retyping away from event deletes the event row.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Changes"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.svc.Posts.UpdatePost(c.UserContext(), middleware.ActorFrom(c), id, service.UpdatePostInput{
		Title: req.Title,
		Body:  req.Body,
		Type:  req.Type,
		Event: req.Event,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Soft-delete post
// @Description Moderator removal. Idempotent: a second call reports already_removed.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body ReasonRequest false "Reason"
// @Success 200 {object} service.PostRemoval
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := optionalReason(c)
	if err != nil {
		return nil
	}
	res, err := s.svc.Posts.SoftDeletePost(c.UserContext(), middleware.ActorFrom(c), id, reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// UpsertEvent handles PUT /api/posts/:id/event
// @Summary Create or replace an event
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.EventInput true "Event"
// @Success 200 {object} models.Event
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/event [put]
func (s *Server) UpsertEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.EventInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	event, err := s.svc.Posts.UpsertEvent(c.UserContext(), middleware.ActorFrom(c), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

// DeleteEvent handles DELETE /api/posts/:id/event
// @Summary Delete an event
// @Description Drops the event row and retypes the post to text.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{deleted=bool}
// @Router /posts/{id}/event [delete]
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	deleted, err := s.svc.Posts.DeleteEvent(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// VotePost handles POST and PUT /api/posts/:id/vote
// @Summary Vote on a post
// @Description Clicking the arrow already cast removes the vote.
// @Tags votes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body VoteRequest true "Clicked value"
// @Success 200 {object} service.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts/{id}/vote [post]
func (s *Server) VotePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	value, err := parseVote(c)
	if err != nil {
		return nil
	}
	res, err := s.svc.Votes.VotePost(c.UserContext(), middleware.ActorFrom(c), id, value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func parseVote(c *fiber.Ctx) (int, error) {
	var req VoteRequest
	if err := parseBody(c, &req); err != nil {
		return 0, err
	}
	if req.Value == nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("value is required"))
		return 0, errResponseWritten
	}
	return *req.Value, nil
}

// optionalReason reads {"reason": "..."} when a body is present.
func optionalReason(c *fiber.Ctx) (string, error) {
	if len(c.Body()) == 0 {
		return "", nil
	}
	var req ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return "", err
	}
	return req.Reason, nil
}
