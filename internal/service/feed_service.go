package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/featureflags"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ranking"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
)

const minSearchLen = 2

// FeedInput selects one page of a feed. An empty Sort means hot.
type FeedInput struct {
	Sort   string
	Cursor string
	Limit  int
}

// FeedService serves the ranked feeds, through the cache for viewers who
// see the public view.
type FeedService struct {
	feeds   repository.FeedRepository
	visible visibility
	cache   *cache.Store
	flags   *featureflags.Manager
	limits  Limits
	now     func() time.Time
}

func NewFeedService(d Deps) *FeedService {
	return &FeedService{
		feeds:   d.Feeds,
		visible: visibility{communities: d.Communities, posts: d.Posts},
		cache:   d.Cache,
		flags:   d.Flags,
		limits:  d.Limits,
		now:     d.clock(),
	}
}

// ListFeed serves the global feed. Moderators also see posts from private
// and disabled communities.
func (s *FeedService) ListFeed(ctx context.Context, actor models.Actor, in FeedInput) (*repository.FeedPage, error) {
	q, err := s.query(in)
	if err != nil {
		return nil, err
	}
	q.IncludeHidden = actor.IsModerator()
	return s.serve(ctx, actor, q, cache.FeedSegment(string(q.Sort), in.Cursor, q.Limit))
}

// ListCommunityFeed serves one community's feed.
func (s *FeedService) ListCommunityFeed(ctx context.Context, actor models.Actor, communityID uint, in FeedInput) (*repository.FeedPage, error) {
	q, err := s.query(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible.community(ctx, actor, communityID); err != nil {
		return nil, err
	}
	q.CommunityID = communityID
	return s.serve(ctx, actor, q, cache.CommunityFeedSegment(communityID, string(q.Sort), in.Cursor, q.Limit))
}

// SearchFeed serves substring matches over title and body.
func (s *FeedService) SearchFeed(ctx context.Context, actor models.Actor, query string, in FeedInput) (*repository.FeedPage, error) {
	if !featureflags.EnabledOr(s.flags, featureflags.Search, actor.UserID, true) {
		return nil, models.NewForbiddenError("search is disabled")
	}
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchLen {
		return nil, models.NewValidationError("search query must be at least 2 characters")
	}
	q, err := s.query(in)
	if err != nil {
		return nil, err
	}
	q.Search = query
	q.IncludeHidden = actor.IsModerator()
	return s.serve(ctx, actor, q, cache.SearchSegment(query, string(q.Sort), in.Cursor, q.Limit))
}

func (s *FeedService) query(in FeedInput) (repository.FeedQuery, error) {
	sort, err := ranking.ParseSort(in.Sort)
	if err != nil {
		return repository.FeedQuery{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = s.limits.FeedDefault
	}
	if limit > s.limits.FeedMax {
		limit = s.limits.FeedMax
	}
	return repository.FeedQuery{
		Sort:   sort,
		Cursor: ranking.Decode(in.Cursor, sort),
		Limit:  limit,
	}, nil
}

// serve reads through the cache unless the viewer sees hidden rows or the
// feed_cache flag is off for them.
func (s *FeedService) serve(ctx context.Context, actor models.Actor, q repository.FeedQuery, segment string) (*repository.FeedPage, error) {
	q.AsOf = s.now()
	fetch := func() (any, error) { return s.feeds.List(ctx, q) }

	if actor.IsModerator() || !featureflags.EnabledOr(s.flags, featureflags.FeedCache, actor.UserID, true) {
		return s.feeds.List(ctx, q)
	}
	var page repository.FeedPage
	if err := s.cache.Aside(ctx, segment, &page, s.limits.FeedCacheTTL, fetch); err != nil {
		return nil, err
	}
	if page.Posts == nil {
		page.Posts = []models.Post{}
	}
	return &page, nil
}
