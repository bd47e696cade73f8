package models

import (
	"time"

	"gorm.io/datatypes"
)

// PostType distinguishes how a post's body is interpreted.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeLink  PostType = "link"
	PostTypeMedia PostType = "media"
	PostTypeEvent PostType = "event"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypeText, PostTypeLink, PostTypeMedia, PostTypeEvent:
		return true
	}
	return false
}

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPublished PostStatus = "published"
	PostStatusLocked    PostStatus = "locked"
	PostStatusRemoved   PostStatus = "removed"
	PostStatusDeleted   PostStatus = "deleted"
)

// RemovedTitle replaces the title of a soft-deleted post.
const RemovedTitle = "[removed]"

// Post is a community submission. Score, CommentCount and ReportsCount are
// denormalized and only change inside the transaction that changes their
// source rows.
type Post struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CommunityID     uint       `gorm:"not null;index" json:"community_id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	Title           string     `gorm:"size:300;not null" json:"title"`
	Body            string     `gorm:"type:text;not null;default:''" json:"body"`
	Type            PostType   `gorm:"type:varchar(16);not null;default:'text'" json:"type"`
	Status          PostStatus `gorm:"type:varchar(16);not null;default:'published';index" json:"status"`
	IsSticky        bool       `gorm:"not null;default:false" json:"is_sticky"`
	Score           int        `gorm:"not null;default:0" json:"score"`
	CommentCount    uint       `gorm:"not null;default:0" json:"comment_count"`
	ReportsCount    uint       `gorm:"not null;default:0" json:"reports_count"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastCommentedAt *time.Time `json:"last_commented_at,omitempty"`

	// HotScore is only populated by hot-sorted feed queries.
	HotScore int    `gorm:"->;-:migration" json:"hot_score,omitempty"`
	Event    *Event `gorm:"-" json:"event,omitempty"`
}

// IsRemoved reports whether the post has been soft-deleted.
func (p *Post) IsRemoved() bool { return p.Status == PostStatusRemoved }

// AcceptsComments reports whether new comments may be attached.
func (p *Post) AcceptsComments() bool { return p.Status == PostStatusPublished }

// Event holds the scheduling details of an event post.
type Event struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	PostID       uint              `gorm:"not null;uniqueIndex" json:"post_id"`
	EventDate    time.Time         `gorm:"not null;index" json:"event_date"`
	EventEndDate *time.Time        `json:"event_end_date,omitempty"`
	VenueName    string            `gorm:"size:200" json:"venue_name"`
	VenueAddress string            `gorm:"size:500" json:"venue_address"`
	TicketURL    string            `gorm:"size:500" json:"ticket_url"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SavedPost bookmarks a post for a user.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_saved_posts_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_saved_posts_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
