package server

import (
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCommentRequest is the body of POST /api/posts/:id/comments.
type CreateCommentRequest struct {
	ParentID *uint  `json:"parent_id,omitempty"`
	Body     string `json:"body"`
}

func listCommentsInput(c *fiber.Ctx) service.ListCommentsInput {
	return service.ListCommentsInput{
		Sort:    c.Query("sort"),
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", 0),
	}
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List top-level comments
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param sort query string false "oldest or top"
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {object} repository.CommentPage
// @Failure 404 {object} models.ErrorResponse
// @Failure 416 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.svc.Comments.ListTopLevel(c.UserContext(), middleware.ActorFrom(c), postID, listCommentsInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetCommentChildren handles GET /api/posts/:id/comments/:commentId/children
// @Summary List replies to a comment
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Parent comment ID"
// @Param sort query string false "oldest or top"
// @Param page query int false "1-based page"
// @Param per_page query int false "Page size"
// @Success 200 {object} repository.CommentPage
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId}/children [get]
func (s *Server) GetCommentChildren(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	parentID, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	page, err := s.svc.Comments.ListChildren(c.UserContext(), middleware.ActorFrom(c), postID, parentID, listCommentsInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Create comment
// @Description Top-level when parent_id is omitted. Nesting is capped.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body CreateCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	comment, err := s.svc.Comments.CreateComment(c.UserContext(), middleware.ActorFrom(c), service.CreateCommentInput{
		PostID:   postID,
		ParentID: req.ParentID,
		Body:     req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// VoteComment handles POST /api/comments/:id/vote
// @Summary Vote on a comment
// @Tags votes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body VoteRequest true "Clicked value"
// @Success 200 {object} service.VoteResult
// @Failure 400 {object} models.ErrorResponse
// @Router /comments/{id}/vote [post]
func (s *Server) VoteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	value, err := parseVote(c)
	if err != nil {
		return nil
	}
	res, err := s.svc.Votes.VoteComment(c.UserContext(), middleware.ActorFrom(c), id, value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Remove a comment
// @Description Moderator removal. The comment keeps its place in the tree.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body ReasonRequest false "Reason"
// @Success 200 {object} service.CommentRemoval
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := optionalReason(c)
	if err != nil {
		return nil
	}
	res, err := s.svc.Comments.ModerateDeleteComment(c.UserContext(), middleware.ActorFrom(c), id, reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
