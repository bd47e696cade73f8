package repository

import (
	"context"
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
	"github.com/v1mal/open-scene-engine-sub000/internal/ranking"

	"gorm.io/gorm"
)

// FeedQuery selects one page of a feed. Limit must be positive. CommunityID
// 0 means the global feed; a non-empty Search restricts it to substring
// matches.
type FeedQuery struct {
	Sort          ranking.Sort
	Cursor        *ranking.CursorV1
	Limit         int
	CommunityID   uint
	Search        string
	IncludeHidden bool
	AsOf          time.Time
}

// FeedPage is one page of ranked posts.
type FeedPage struct {
	Posts      []models.Post `json:"posts"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// FeedRepository serves seek-paginated feeds. Reads are not isolated from
// concurrent writes; the cursor predicate keeps pages from overlapping.
type FeedRepository interface {
	List(ctx context.Context, q FeedQuery) (*FeedPage, error)
}

type feedRepository struct {
	db *gorm.DB
	options
}

// NewFeedRepository creates a feed repository. Pass WithReadDB to route
// feed reads to a replica.
func NewFeedRepository(db *gorm.DB, opts ...Option) FeedRepository {
	return &feedRepository{db: db, options: buildOptions(db, opts)}
}

func (r *feedRepository) List(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	if q.Limit <= 0 {
		return nil, models.NewValidationError("feed page size must be positive")
	}
	defer observability.TrackQuery("feed_"+string(q.Sort), "posts")()
	start := time.Now()
	defer func() {
		observability.FeedPageLatency.WithLabelValues(string(q.Sort)).Observe(time.Since(start).Seconds())
	}()

	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = r.now()
	}
	if q.Cursor != nil && q.Cursor.AsOf != nil {
		asOf = *q.Cursor.AsOf
	}
	order := ranking.NewOrder(q.Sort, asOf)

	// Pinning applies to the first page only; later pages drop sticky rows
	// because page 1 already served them.
	firstPage := q.Cursor == nil
	pinned := firstPage && q.Sort.Pins()
	carryPinned := pinned || (q.Cursor != nil && q.Cursor.Page1Pinned)

	sel, selVars := order.SelectColumns()
	db := r.read.WithContext(ctx).Model(&models.Post{}).
		Select(sel, selVars...).
		Where("posts.status <> ?", models.PostStatusDeleted)

	switch {
	case q.CommunityID != 0:
		db = db.Where("posts.community_id = ?", q.CommunityID)
	case !q.IncludeHidden:
		db = db.Where("posts.community_id IN (?)",
			r.read.Model(&models.Community{}).
				Select("id").
				Where("is_enabled = ? AND visibility <> ?", true, models.VisibilityPrivate))
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		db = db.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.body) LIKE ? ESCAPE '\')`, like, like)
	}

	if q.Cursor != nil && q.Cursor.Page1Pinned {
		db = db.Where("posts.is_sticky = ?", false)
	}
	if seek, vars := order.Seek(q.Cursor); seek != "" {
		db = db.Where(seek, vars...)
	}

	var posts []models.Post
	if err := db.Clauses(order.OrderBy(pinned)).Limit(q.Limit + 1).Find(&posts).Error; err != nil {
		return nil, translateError(err, "feed", q.Sort)
	}

	page := &FeedPage{Posts: posts}
	if len(posts) > q.Limit {
		page.Posts = posts[:q.Limit]
		page.NextCursor = nextCursor(order, page.Posts, pinned, carryPinned)
	}
	if page.Posts == nil {
		page.Posts = []models.Post{}
	}

	if err := attachEvents(r.read.WithContext(ctx), page.Posts); err != nil {
		return nil, translateError(err, "event", nil)
	}
	return page, nil
}

// nextCursor builds the token after rows. On a pinned page the position is
// the last non-sticky row; a page of only sticky rows yields a cursor with
// no position, so the next page starts at the top of the unpinned order.
func nextCursor(order ranking.Order, rows []models.Post, pinned, carryPinned bool) string {
	if !pinned {
		return order.CursorFor(&rows[len(rows)-1], carryPinned).Encode()
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].IsSticky {
			return order.CursorFor(&rows[i], true).Encode()
		}
	}
	return order.CursorFor(nil, true).Encode()
}
