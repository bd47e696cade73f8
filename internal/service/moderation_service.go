package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const maxReasonLen = 500

// ModerationService exposes the moderator state transitions, reports and
// bans.
type ModerationService struct {
	mod     repository.ModerationRepository
	visible visibility
	gate    *BanGate
	cache   *cache.Store
	now     func() time.Time
	log     *observability.MutationLogger
}

// PostTransition reports the post after a lock or sticky call.
type PostTransition struct {
	Post    *models.Post `json:"post"`
	Changed bool         `json:"changed"`
}

// ReportResult carries the post's report count after a report.
type ReportResult struct {
	ReportsCount uint `json:"reports_count"`
	Created      bool `json:"created"`
}

// BanInput describes a ban. A nil CommunityID bans globally; a zero
// Duration never expires.
type BanInput struct {
	UserID      uint          `json:"user_id"`
	CommunityID *uint         `json:"community_id,omitempty"`
	Reason      string        `json:"reason"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// BanResult is the active ban for the scope.
type BanResult struct {
	Ban     *models.Ban `json:"ban"`
	Created bool        `json:"created"`
}

func NewModerationService(d Deps, gate *BanGate) *ModerationService {
	return &ModerationService{
		mod:     d.Moderation,
		visible: visibility{communities: d.Communities, posts: d.Posts},
		gate:    gate,
		cache:   d.Cache,
		now:     d.clock(),
		log:     observability.NewMutationLogger(d.logger(), "moderation"),
	}
}

// LockPost toggles a post between published and locked.
func (s *ModerationService) LockPost(ctx context.Context, actor models.Actor, id uint, locked bool, reason string) (res *PostTransition, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "LockPost",
		attribute.Int("post_id", int(id)), attribute.Bool("locked", locked))
	defer func() { end(err) }()

	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if reason, err = text("reason", reason, 0, maxReasonLen); err != nil {
		return nil, err
	}
	post, changed, err := s.mod.SetLocked(ctx, actor.UserID, id, locked, reason)
	if err != nil {
		s.log.Failed(ctx, "lock", err, slog.Uint64("post_id", uint64(id)))
		return nil, err
	}
	s.transitioned(ctx, "lock", id, changed)
	return &PostTransition{Post: post, Changed: changed}, nil
}

// StickyPost pins or unpins a post.
func (s *ModerationService) StickyPost(ctx context.Context, actor models.Actor, id uint, sticky bool, reason string) (res *PostTransition, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "StickyPost",
		attribute.Int("post_id", int(id)), attribute.Bool("sticky", sticky))
	defer func() { end(err) }()

	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if reason, err = text("reason", reason, 0, maxReasonLen); err != nil {
		return nil, err
	}
	post, changed, err := s.mod.SetSticky(ctx, actor.UserID, id, sticky, reason)
	if err != nil {
		s.log.Failed(ctx, "sticky", err, slog.Uint64("post_id", uint64(id)))
		return nil, err
	}
	s.transitioned(ctx, "sticky", id, changed)
	return &PostTransition{Post: post, Changed: changed}, nil
}

func (s *ModerationService) transitioned(ctx context.Context, op string, postID uint, changed bool) {
	if !changed {
		s.log.Noop(ctx, op, slog.Uint64("post_id", uint64(postID)))
		return
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, op, slog.Uint64("post_id", uint64(postID)))
}

// ReportPost flags a post once per user. Repeats return the current count.
func (s *ModerationService) ReportPost(ctx context.Context, actor models.Actor, id uint, reason string) (res *ReportResult, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "ReportPost", attribute.Int("post_id", int(id)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, nil); err != nil {
		return nil, err
	}
	if reason, err = text("reason", reason, 0, maxReasonLen); err != nil {
		return nil, err
	}
	post, err := s.visible.post(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, &post.CommunityID); err != nil {
		return nil, err
	}

	count, created, err := s.mod.Report(ctx, actor.UserID, id, reason)
	if err != nil {
		s.log.Failed(ctx, "report", err, slog.Uint64("post_id", uint64(id)))
		return nil, err
	}
	if created {
		s.log.Applied(ctx, "report", slog.Uint64("post_id", uint64(id)), slog.Uint64("reports_count", uint64(count)))
	} else {
		s.log.Noop(ctx, "report", slog.Uint64("post_id", uint64(id)))
	}
	return &ReportResult{ReportsCount: count, Created: created}, nil
}

// ClearReports deletes a post's reports and zeroes its counter.
func (s *ModerationService) ClearReports(ctx context.Context, actor models.Actor, id uint, reason string) (cleared int64, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "ClearReports", attribute.Int("post_id", int(id)))
	defer func() { end(err) }()

	if err := requireModerator(actor); err != nil {
		return 0, err
	}
	if reason, err = text("reason", reason, 0, maxReasonLen); err != nil {
		return 0, err
	}
	cleared, err = s.mod.ClearReports(ctx, actor.UserID, id, reason)
	if err != nil {
		s.log.Failed(ctx, "clear_reports", err, slog.Uint64("post_id", uint64(id)))
		return 0, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "clear_reports", slog.Uint64("post_id", uint64(id)), slog.Int64("cleared", cleared))
	return cleared, nil
}

// BanUser bans a user globally or in one community. An unexpired active
// ban in the same scope is returned unchanged.
func (s *ModerationService) BanUser(ctx context.Context, actor models.Actor, in BanInput) (res *BanResult, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "BanUser", attribute.Int("user_id", int(in.UserID)))
	defer func() { end(err) }()

	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if in.UserID == 0 {
		return nil, models.NewValidationError("user_id is required")
	}
	if in.UserID == actor.UserID {
		return nil, models.NewValidationError("you cannot ban yourself")
	}
	if in.Duration < 0 {
		return nil, models.NewValidationError("duration must not be negative")
	}
	reason, err := text("reason", in.Reason, 0, maxReasonLen)
	if err != nil {
		return nil, err
	}

	ban := &models.Ban{
		UserID:      in.UserID,
		CommunityID: in.CommunityID,
		Reason:      reason,
		ActorID:     actor.UserID,
	}
	if in.Duration > 0 {
		expires := s.now().Add(in.Duration)
		ban.ExpiresAt = &expires
	}

	active, created, err := s.mod.Ban(ctx, ban)
	if err != nil {
		s.log.Failed(ctx, "ban", err, slog.Uint64("user_id", uint64(in.UserID)))
		return nil, err
	}
	if created {
		s.log.Applied(ctx, "ban", slog.Uint64("user_id", uint64(in.UserID)), slog.Uint64("ban_id", uint64(active.ID)))
	} else {
		s.log.Noop(ctx, "ban", slog.Uint64("user_id", uint64(in.UserID)))
	}
	return &BanResult{Ban: active, Created: created}, nil
}

// UnbanUser lifts the user's active ban in the scope. It reports whether a
// ban was lifted.
func (s *ModerationService) UnbanUser(ctx context.Context, actor models.Actor, userID uint, communityID *uint, reason string) (lifted bool, err error) {
	ctx, end := observability.StartOperation(ctx, "moderation", "UnbanUser", attribute.Int("user_id", int(userID)))
	defer func() { end(err) }()

	if err := requireModerator(actor); err != nil {
		return false, err
	}
	if userID == 0 {
		return false, models.NewValidationError("user_id is required")
	}
	if reason, err = text("reason", reason, 0, maxReasonLen); err != nil {
		return false, err
	}
	lifted, err = s.mod.Unban(ctx, actor.UserID, userID, communityID, reason)
	if err != nil {
		return false, err
	}
	if lifted {
		s.log.Applied(ctx, "unban", slog.Uint64("user_id", uint64(userID)))
	} else {
		s.log.Noop(ctx, "unban", slog.Uint64("user_id", uint64(userID)))
	}
	return lifted, nil
}

// ListModerationLog returns log entries, newest first.
func (s *ModerationService) ListModerationLog(ctx context.Context, actor models.Actor, filter repository.LogFilter) ([]models.ModerationLog, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	switch filter.TargetType {
	case "", models.TargetPost, models.TargetComment, models.TargetUser, models.TargetCommunity:
	default:
		return nil, models.NewValidationError("unknown target_type")
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.mod.ListLogs(ctx, filter)
}
