// Package models contains data structures for the application's domain models.
package models

import "time"

// CommunityVisibility controls who can read and post in a community.
type CommunityVisibility string

const (
	VisibilityPublic     CommunityVisibility = "public"
	VisibilityRestricted CommunityVisibility = "restricted"
	VisibilityPrivate    CommunityVisibility = "private"
)

// Valid reports whether v is a known visibility.
func (v CommunityVisibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityRestricted, VisibilityPrivate:
		return true
	}
	return false
}

// Community groups posts under a slug.
type Community struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Name        string              `gorm:"size:120;not null" json:"name"`
	Slug        string              `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	Description string              `gorm:"type:text" json:"description"`
	Visibility  CommunityVisibility `gorm:"type:varchar(20);not null;default:'public'" json:"visibility"`
	IsEnabled   bool                `gorm:"not null;default:true" json:"is_enabled"`
	CreatedBy   uint                `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// VisibleTo reports whether actor may read the community's posts.
func (c *Community) VisibleTo(actor Actor) bool {
	if actor.IsModerator() {
		return true
	}
	return c.IsEnabled && c.Visibility != VisibilityPrivate
}

// AcceptsPostsFrom reports whether actor may create posts in the community.
func (c *Community) AcceptsPostsFrom(actor Actor) bool {
	if !c.IsEnabled {
		return false
	}
	if c.Visibility == VisibilityPublic {
		return true
	}
	return actor.IsModerator()
}
