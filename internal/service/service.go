// Package service implements the engine's operations on top of the
// repositories. Every write entry point runs the ban gate first, then
// validation, then admission control, then the storage transaction, and
// bumps the cache version when the change is structural.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/database"
	"github.com/v1mal/open-scene-engine-sub000/internal/featureflags"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"gorm.io/gorm"
)

// Limits are the listing bounds applied by the services.
type Limits struct {
	FeedDefault       int
	FeedMax           int
	CommentMaxDepth   int
	CommentMaxPerPage int
	CommentMaxServed  int
	FeedCacheTTL      time.Duration
	CommunityCacheTTL time.Duration
}

// LimitsFromConfig copies the listing bounds out of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		FeedDefault:       cfg.FeedDefaultLimit,
		FeedMax:           cfg.FeedMaxLimit,
		CommentMaxDepth:   cfg.CommentMaxDepth,
		CommentMaxPerPage: cfg.CommentMaxPerPage,
		CommentMaxServed:  cfg.CommentMaxServed,
		FeedCacheTTL:      cfg.FeedCacheTTL,
		CommunityCacheTTL: cfg.CommunityCacheTTL,
	}
}

// Deps carries the collaborators shared by the services. Limiter, Cache and
// Flags may be nil: a nil limiter admits everything, a nil cache passes
// reads through and nil flags leave every gated feature on.
type Deps struct {
	Communities repository.CommunityRepository
	Posts       repository.PostRepository
	Comments    repository.CommentRepository
	Votes       repository.VoteRepository
	Feeds       repository.FeedRepository
	Moderation  repository.ModerationRepository
	Saved       repository.SavedPostRepository
	Integrity   repository.IntegrityRepository

	Limiter *ratelimit.Limiter
	Cache   *cache.Store
	Flags   *featureflags.Manager
	Limits  Limits
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewDeps builds the repositories over db. read, when non-nil, serves feed
// and listing queries.
func NewDeps(db, read *gorm.DB, opts ...repository.Option) Deps {
	if read != nil {
		opts = append(opts, repository.WithReadDB(read))
	}
	return Deps{
		Communities: repository.NewCommunityRepository(db, opts...),
		Posts:       repository.NewPostRepository(db, opts...),
		Comments:    repository.NewCommentRepository(db, opts...),
		Votes:       repository.NewVoteRepository(db, opts...),
		Feeds:       repository.NewFeedRepository(db, opts...),
		Moderation:  repository.NewModerationRepository(db, opts...),
		Saved:       repository.NewSavedPostRepository(db, opts...),
		Integrity:   repository.NewIntegrityRepository(db, opts...),
		Limits:      LimitsFromConfig(config.Defaults()),
	}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return database.Now
}

// Services groups every service built from one Deps.
type Services struct {
	Gate        *BanGate
	Votes       *VoteService
	Comments    *CommentService
	Posts       *PostService
	Feeds       *FeedService
	Moderation  *ModerationService
	Communities *CommunityService
	Saved       *SavedService
	Maintenance *MaintenanceService
}

// New wires the services.
func New(d Deps) *Services {
	gate := NewBanGate(d.Moderation)
	return &Services{
		Gate:        gate,
		Votes:       NewVoteService(d, gate),
		Comments:    NewCommentService(d, gate),
		Posts:       NewPostService(d, gate),
		Feeds:       NewFeedService(d),
		Moderation:  NewModerationService(d, gate),
		Communities: NewCommunityService(d),
		Saved:       NewSavedService(d),
		Maintenance: NewMaintenanceService(d),
	}
}

// Results of idempotent removals.
const (
	StatusRemoved        = "removed"
	StatusAlreadyRemoved = "already_removed"
)

func removalStatus(noop bool) string {
	if noop {
		return StatusAlreadyRemoved
	}
	return StatusRemoved
}

func requireAuth(actor models.Actor) error {
	if !actor.Authenticated() {
		return models.NewUnauthorizedError("authentication required")
	}
	return nil
}

func requireModerator(actor models.Actor) error {
	if err := requireAuth(actor); err != nil {
		return err
	}
	if !actor.IsModerator() {
		return models.NewForbiddenError("moderator role required")
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if err := requireAuth(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return models.NewForbiddenError("admin role required")
	}
	return nil
}

// ownerOrModerator authorizes a locked row owned by ownerID.
func ownerOrModerator(actor models.Actor, ownerID uint) error {
	if actor.IsModerator() || (actor.Authenticated() && actor.UserID == ownerID) {
		return nil
	}
	return models.NewForbiddenError("only the author or a moderator may do this")
}

// text trims s and checks its length in characters.
func text(field, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min {
		if min == 1 {
			return "", models.NewValidationError(field + " is required")
		}
		return "", models.NewValidationError(field + " is too short")
	}
	if n > max {
		return "", models.NewValidationError(field + " is too long")
	}
	return s, nil
}

// visibility resolves rows through their community's visibility rules.
// Hidden rows are reported as missing.
type visibility struct {
	communities repository.CommunityRepository
	posts       repository.PostRepository
}

func (v visibility) community(ctx context.Context, actor models.Actor, id uint) (*models.Community, error) {
	c, err := v.communities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.VisibleTo(actor) {
		return nil, models.NewNotFoundError("community", id)
	}
	return c, nil
}

func (v visibility) post(ctx context.Context, actor models.Actor, id uint) (*models.Post, error) {
	p, err := v.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := v.community(ctx, actor, p.CommunityID); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewNotFoundError("post", id)
		}
		return nil, err
	}
	return p, nil
}
