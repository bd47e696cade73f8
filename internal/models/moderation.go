package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report is one user's flag on a post.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reports_post_user,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reports_post_user,priority:2" json:"user_id"`
	Reason    string    `gorm:"size:500" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Ban blocks a user from writing. A nil CommunityID makes the ban global.
type Ban struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:idx_bans_user_active,priority:1" json:"user_id"`
	CommunityID *uint      `gorm:"index" json:"community_id,omitempty"`
	IsActive    bool       `gorm:"not null;default:true;index:idx_bans_user_active,priority:2" json:"is_active"`
	Reason      string     `gorm:"size:500" json:"reason"`
	ActorID     uint       `gorm:"not null" json:"actor_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsGlobal reports whether the ban applies to every community.
func (b *Ban) IsGlobal() bool { return b.CommunityID == nil }

// Moderation actions recorded in the log.
const (
	ActionPostLock       = "post.lock"
	ActionPostUnlock     = "post.unlock"
	ActionPostSticky     = "post.sticky"
	ActionPostUnsticky   = "post.unsticky"
	ActionPostRemove     = "post.remove"
	ActionReportsClear   = "post.reports_clear"
	ActionCommentRemove  = "comment.remove"
	ActionUserBan        = "user.ban"
	ActionUserUnban      = "user.unban"
	ActionCommunityState = "community.state"
)

// Moderation log target types.
const (
	TargetPost      = "post"
	TargetComment   = "comment"
	TargetUser      = "user"
	TargetCommunity = "community"
)

// ModerationLog is an append-only audit entry. Rows are never updated.
type ModerationLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	TargetType string            `gorm:"size:32;not null;index:idx_moderation_logs_target,priority:1" json:"target_type"`
	TargetID   uint              `gorm:"not null;index:idx_moderation_logs_target,priority:2" json:"target_id"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	Reason     string            `gorm:"size:500" json:"reason"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}
