package models

import "time"

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentStatusPublished CommentStatus = "published"
	CommentStatusRemoved   CommentStatus = "removed"
	CommentStatusDeleted   CommentStatus = "deleted"
)

// RemovedCommentBody replaces the body of a moderated comment.
const RemovedCommentBody = "[removed]"

// Comment is a node in a post's reply tree. Depth is 0 for top-level
// comments; Path lists ancestor ids joined by ".".
type Comment struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	PostID     uint          `gorm:"not null;index:idx_comments_post_parent,priority:1" json:"post_id"`
	UserID     uint          `gorm:"not null;index" json:"user_id"`
	ParentID   *uint         `gorm:"index:idx_comments_post_parent,priority:2" json:"parent_id,omitempty"`
	Body       string        `gorm:"type:text;not null" json:"body"`
	Status     CommentStatus `gorm:"type:varchar(16);not null;default:'published';index" json:"status"`
	Score      int           `gorm:"not null;default:0" json:"score"`
	Depth      int           `gorm:"not null;default:0" json:"depth"`
	Path       string        `gorm:"size:255;not null;default:''" json:"path"`
	ChildCount uint          `gorm:"not null;default:0" json:"child_count"`
	CreatedAt  time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (c *Comment) IsPublished() bool { return c.Status == CommentStatusPublished }
