package server

import (
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LockRequest sets the lock state. Locked defaults to true.
type LockRequest struct {
	Locked *bool  `json:"locked"`
	Reason string `json:"reason"`
}

// StickyRequest sets the pin state. Sticky defaults to true.
type StickyRequest struct {
	Sticky *bool  `json:"sticky"`
	Reason string `json:"reason"`
}

// BanRequest bans a user. Duration is a Go duration such as "72h"; empty
// means permanent. A missing community_id bans globally.
type BanRequest struct {
	UserID      uint   `json:"user_id"`
	CommunityID *uint  `json:"community_id,omitempty"`
	Reason      string `json:"reason"`
	Duration    string `json:"duration,omitempty"`
}

// ReportPost handles POST /api/posts/:id/report
// @Summary Report a post
// @Description One report per user per post; repeats are no-ops.
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body ReasonRequest false "Reason"
// @Success 200 {object} service.ReportResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := optionalReason(c)
	if err != nil {
		return nil
	}
	res, err := s.svc.Moderation.ReportPost(c.UserContext(), middleware.ActorFrom(c), id, reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// ClearReports handles DELETE /api/posts/:id/reports
// @Summary Clear reports
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{cleared=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/reports [delete]
func (s *Server) ClearReports(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reason, err := optionalReason(c)
	if err != nil {
		return nil
	}
	cleared, err := s.svc.Moderation.ClearReports(c.UserContext(), middleware.ActorFrom(c), id, reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cleared": cleared})
}

// LockPost handles POST /api/posts/:id/lock
// @Summary Lock or unlock a post
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body LockRequest false "Lock state"
// @Success 200 {object} service.PostTransition
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/lock [post]
func (s *Server) LockPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req := LockRequest{}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	locked := req.Locked == nil || *req.Locked
	res, err := s.svc.Moderation.LockPost(c.UserContext(), middleware.ActorFrom(c), id, locked, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// StickyPost handles POST /api/posts/:id/sticky
// @Summary Pin or unpin a post
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body StickyRequest false "Pin state"
// @Success 200 {object} service.PostTransition
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/sticky [post]
func (s *Server) StickyPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req := StickyRequest{}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	sticky := req.Sticky == nil || *req.Sticky
	res, err := s.svc.Moderation.StickyPost(c.UserContext(), middleware.ActorFrom(c), id, sticky, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// BanUser handles POST /api/moderation/bans
// @Summary Ban a user
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BanRequest true "Ban"
// @Success 200 {object} service.BanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/bans [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	var req BanRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	var duration time.Duration
	if raw := strings.TrimSpace(req.Duration); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("duration must be a positive duration such as 72h"))
		}
		duration = d
	}
	res, err := s.svc.Moderation.BanUser(c.UserContext(), middleware.ActorFrom(c), service.BanInput{
		UserID:      req.UserID,
		CommunityID: req.CommunityID,
		Reason:      req.Reason,
		Duration:    duration,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// UnbanUser handles DELETE /api/moderation/bans
// @Summary Lift a ban
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param user_id query int true "User ID"
// @Param community_id query int false "Community ID; omit for the global ban"
// @Param reason query string false "Reason"
// @Success 200 {object} object{lifted=bool}
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/bans [delete]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	userID, err := queryUint(c, "user_id")
	if err != nil {
		return nil
	}
	if userID == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}
	communityID, err := queryUint(c, "community_id")
	if err != nil {
		return nil
	}
	lifted, err := s.svc.Moderation.UnbanUser(c.UserContext(), middleware.ActorFrom(c), *userID, communityID, c.Query("reason"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"lifted": lifted})
}

// GetModerationLogs handles GET /api/moderation/logs
// @Summary List moderation log
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param target_type query string false "post, comment, user or community"
// @Param target_id query int false "Target ID"
// @Param actor_id query int false "Moderator ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.ModerationLog
// @Failure 403 {object} models.ErrorResponse
// @Router /moderation/logs [get]
func (s *Server) GetModerationLogs(c *fiber.Ctx) error {
	targetID, err := queryUint(c, "target_id")
	if err != nil {
		return nil
	}
	actorID, err := queryUint(c, "actor_id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	filter := repository.LogFilter{
		TargetType: c.Query("target_type"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if targetID != nil {
		filter.TargetID = *targetID
	}
	if actorID != nil {
		filter.ActorID = *actorID
	}
	logs, err := s.svc.Moderation.ListModerationLog(c.UserContext(), middleware.ActorFrom(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	if logs == nil {
		logs = []models.ModerationLog{}
	}
	return c.JSON(logs)
}
