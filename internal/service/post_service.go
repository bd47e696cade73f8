package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTitleLen = 300
	maxBodyLen  = 40000
	maxVenueLen = 200
	maxAddrLen  = 500
)

// PostService creates and edits posts and their events.
type PostService struct {
	posts   repository.PostRepository
	mod     repository.ModerationRepository
	visible visibility
	gate    *BanGate
	limiter *ratelimit.Limiter
	cache   *cache.Store
	log     *observability.MutationLogger
}

// EventInput carries the scheduling fields of an event post.
type EventInput struct {
	EventDate    *time.Time     `json:"event_date"`
	EventEndDate *time.Time     `json:"event_end_date,omitempty"`
	VenueName    string         `json:"venue_name"`
	VenueAddress string         `json:"venue_address"`
	TicketURL    string         `json:"ticket_url"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type CreatePostInput struct {
	CommunityID uint
	Title       string
	Body        string
	Type        string
	Event       *EventInput
}

// UpdatePostInput edits a post. Nil fields are kept.
type UpdatePostInput struct {
	Title *string
	Body  *string
	Type  *string
	Event *EventInput
}

// PostRemoval is the result of a soft delete.
type PostRemoval struct {
	Post   *models.Post `json:"post"`
	Status string       `json:"status"`
}

func NewPostService(d Deps, gate *BanGate) *PostService {
	return &PostService{
		posts:   d.Posts,
		mod:     d.Moderation,
		visible: visibility{communities: d.Communities, posts: d.Posts},
		gate:    gate,
		limiter: d.Limiter,
		cache:   d.Cache,
		log:     observability.NewMutationLogger(d.logger(), "post"),
	}
}

// CreatePost publishes a post in a community the actor may write to.
func (s *PostService) CreatePost(ctx context.Context, actor models.Actor, in CreatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartOperation(ctx, "post", "CreatePost", attribute.Int("community_id", int(in.CommunityID)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, nil); err != nil {
		return nil, err
	}

	post = &models.Post{CommunityID: in.CommunityID, UserID: actor.UserID}
	if post.Title, err = text("title", in.Title, 1, maxTitleLen); err != nil {
		return nil, err
	}
	if post.Body, err = text("body", in.Body, 0, maxBodyLen); err != nil {
		return nil, err
	}
	if post.Type, err = parsePostType(in.Type); err != nil {
		return nil, err
	}
	if err := checkLinkBody(post.Type, post.Body); err != nil {
		return nil, err
	}
	switch {
	case post.Type == models.PostTypeEvent:
		if post.Event, err = in.Event.toModel(); err != nil {
			return nil, err
		}
		if post.Event == nil {
			return nil, models.NewValidationError("event_date is required for event posts")
		}
	case in.Event != nil:
		return nil, models.NewValidationError("event fields require type event")
	}

	community, err := s.visible.community(ctx, actor, in.CommunityID)
	if err != nil {
		return nil, err
	}
	if !community.AcceptsPostsFrom(actor) {
		return nil, models.NewForbiddenError("this community does not accept posts from you")
	}
	if err := s.gate.Check(ctx, actor.UserID, &community.ID); err != nil {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, ratelimit.BucketPost, ratelimit.Subject(actor)); err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.log.Failed(ctx, "create", err, slog.Uint64("community_id", uint64(in.CommunityID)))
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "create", slog.Uint64("post_id", uint64(post.ID)), slog.String("type", string(post.Type)))
	return post, nil
}

// GetPost returns a visible post. Removed posts are returned scrubbed.
func (s *PostService) GetPost(ctx context.Context, actor models.Actor, id uint) (*models.Post, error) {
	return s.visible.post(ctx, actor, id)
}

// UpdatePost edits a post owned by the actor. Moderators may edit any post.
func (s *PostService) UpdatePost(ctx context.Context, actor models.Actor, id uint, in UpdatePostInput) (post *models.Post, err error) {
	ctx, end := observability.StartOperation(ctx, "post", "UpdatePost", attribute.Int("post_id", int(id)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, nil); err != nil {
		return nil, err
	}

	var patch repository.PostPatch
	if in.Title != nil {
		title, err := text("title", *in.Title, 1, maxTitleLen)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Body != nil {
		body, err := text("body", *in.Body, 0, maxBodyLen)
		if err != nil {
			return nil, err
		}
		patch.Body = &body
	}
	if in.Type != nil {
		typ, err := parsePostType(*in.Type)
		if err != nil {
			return nil, err
		}
		patch.Type = &typ
	}
	if patch.Event, err = in.Event.toModel(); err != nil {
		return nil, err
	}

	current, err := s.visible.post(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, actor.UserID, &current.CommunityID); err != nil {
		return nil, err
	}

	post, err = s.posts.Update(ctx, id, patch, func(p *models.Post) error {
		if err := ownerOrModerator(actor, p.UserID); err != nil {
			return err
		}
		typ, body := p.Type, p.Body
		if patch.Type != nil {
			typ = *patch.Type
		}
		if patch.Body != nil {
			body = *patch.Body
		}
		if patch.Event != nil && typ != models.PostTypeEvent {
			return models.NewValidationError("event fields require type event")
		}
		return checkLinkBody(typ, body)
	})
	if err != nil {
		s.log.Failed(ctx, "update", err, slog.Uint64("post_id", uint64(id)))
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "update", slog.Uint64("post_id", uint64(id)))
	return post, nil
}

// UpsertEvent writes the event details of an event post.
func (s *PostService) UpsertEvent(ctx context.Context, actor models.Actor, postID uint, in EventInput) (event *models.Event, err error) {
	ctx, end := observability.StartOperation(ctx, "post", "UpsertEvent", attribute.Int("post_id", int(postID)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	fields, err := in.toModel()
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, models.NewValidationError("event_date is required")
	}
	if _, err := s.visible.post(ctx, actor, postID); err != nil {
		return nil, err
	}

	event, err = s.posts.UpsertEvent(ctx, postID, fields, func(p *models.Post) error {
		return ownerOrModerator(actor, p.UserID)
	})
	if err != nil {
		s.log.Failed(ctx, "upsert_event", err, slog.Uint64("post_id", uint64(postID)))
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Applied(ctx, "upsert_event", slog.Uint64("post_id", uint64(postID)))
	return event, nil
}

// DeleteEvent drops a post's event and retypes the post to text.
func (s *PostService) DeleteEvent(ctx context.Context, actor models.Actor, postID uint) (deleted bool, err error) {
	ctx, end := observability.StartOperation(ctx, "post", "DeleteEvent", attribute.Int("post_id", int(postID)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return false, err
	}
	if _, err := s.visible.post(ctx, actor, postID); err != nil {
		return false, err
	}
	deleted, err = s.posts.DeleteEvent(ctx, postID, func(p *models.Post) error {
		return ownerOrModerator(actor, p.UserID)
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.cache.Bump(ctx)
		s.log.Applied(ctx, "delete_event", slog.Uint64("post_id", uint64(postID)))
	} else {
		s.log.Noop(ctx, "delete_event", slog.Uint64("post_id", uint64(postID)))
	}
	return deleted, nil
}

// SoftDeletePost removes a post on behalf of a moderator or its author.
// Repeating the call reports already_removed and writes nothing.
func (s *PostService) SoftDeletePost(ctx context.Context, actor models.Actor, id uint, reason string) (res *PostRemoval, err error) {
	ctx, end := observability.StartOperation(ctx, "post", "SoftDeletePost", attribute.Int("post_id", int(id)))
	defer func() { end(err) }()

	if err := requireAuth(actor); err != nil {
		return nil, err
	}
	if _, err := s.visible.post(ctx, actor, id); err != nil {
		return nil, err
	}
	post, already, err := s.mod.SoftDelete(ctx, actor.UserID, id, reason, func(p *models.Post) error {
		return ownerOrModerator(actor, p.UserID)
	})
	if err != nil {
		s.log.Failed(ctx, "soft_delete", err, slog.Uint64("post_id", uint64(id)))
		return nil, err
	}
	if already {
		s.log.Noop(ctx, "soft_delete", slog.Uint64("post_id", uint64(id)))
	} else {
		s.cache.Bump(ctx)
		s.log.Applied(ctx, "soft_delete", slog.Uint64("post_id", uint64(id)))
	}
	return &PostRemoval{Post: post, Status: removalStatus(already)}, nil
}

func parsePostType(s string) (models.PostType, error) {
	typ := models.PostType(strings.ToLower(strings.TrimSpace(s)))
	if typ == "" {
		return models.PostTypeText, nil
	}
	if !typ.Valid() {
		return "", models.NewValidationError("type must be one of text, link, media, event")
	}
	return typ, nil
}

// checkLinkBody requires link posts to carry an absolute http(s) URL.
func checkLinkBody(typ models.PostType, body string) error {
	if typ != models.PostTypeLink {
		return nil
	}
	if !isHTTPURL(body) {
		return models.NewValidationError("link posts need an http or https URL as body")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// toModel validates the event fields. A nil input yields a nil event.
func (in *EventInput) toModel() (*models.Event, error) {
	if in == nil {
		return nil, nil
	}
	if in.EventDate == nil || in.EventDate.IsZero() {
		return nil, models.NewValidationError("event_date is required")
	}
	start := in.EventDate.UTC()
	ev := &models.Event{EventDate: start, Metadata: in.Metadata}
	if in.EventEndDate != nil {
		endAt := in.EventEndDate.UTC()
		if endAt.Before(start) {
			return nil, models.NewValidationError("event_end_date must not be before event_date")
		}
		ev.EventEndDate = &endAt
	}

	var err error
	if ev.VenueName, err = text("venue_name", in.VenueName, 0, maxVenueLen); err != nil {
		return nil, err
	}
	if ev.VenueAddress, err = text("venue_address", in.VenueAddress, 0, maxAddrLen); err != nil {
		return nil, err
	}
	if ev.TicketURL, err = text("ticket_url", in.TicketURL, 0, maxAddrLen); err != nil {
		return nil, err
	}
	if ev.TicketURL != "" && !isHTTPURL(ev.TicketURL) {
		return nil, models.NewValidationError("ticket_url must be an http or https URL")
	}
	return ev, nil
}
