package server

import (
	"github.com/gofiber/fiber/v2"
)

// ReconcileAggregates handles POST /api/admin/maintenance/reconcile
// @Summary Check denormalized counters
// @Description Runs every drift check and reports findings. Nothing is corrected. The request ID becomes the run ID.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.IntegrityReport
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/maintenance/reconcile [post]
func (s *Server) ReconcileAggregates(c *fiber.Ctx) error {
	report, err := s.svc.Maintenance.ReconcileAggregates(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"clean":  report.Clean(),
		"total":  report.Total(),
		"report": report,
	})
}

// CleanupOrphans handles POST /api/admin/maintenance/cleanup
// @Summary Delete orphaned rows
// @Description Idempotent. Also deactivates expired bans.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.CleanupReport
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/maintenance/cleanup [post]
func (s *Server) CleanupOrphans(c *fiber.Ctx) error {
	report, err := s.svc.Maintenance.CleanupOrphans(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
