package models

import "time"

// VoteTarget names the entity a vote applies to.
type VoteTarget string

const (
	VoteTargetPost    VoteTarget = "post"
	VoteTargetComment VoteTarget = "comment"
)

func (t VoteTarget) Valid() bool {
	return t == VoteTargetPost || t == VoteTargetComment
}

// Vote is the single active vote of a user on a target. No row means no vote.
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:1" json:"user_id"`
	TargetType VoteTarget `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_user_target,priority:2;index:idx_votes_target,priority:1" json:"target_type"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_user_target,priority:3;index:idx_votes_target,priority:2" json:"target_id"`
	Value      int        `gorm:"type:smallint;not null" json:"value"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// VoteEvent is the audit row appended for every vote mutation. NewValue 0
// records a removed vote.
type VoteEvent struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	TargetType VoteTarget `gorm:"type:varchar(16);not null;index:idx_vote_events_target,priority:1" json:"target_type"`
	TargetID   uint       `gorm:"not null;index:idx_vote_events_target,priority:2" json:"target_id"`
	OldValue   int        `gorm:"type:smallint;not null" json:"old_value"`
	NewValue   int        `gorm:"type:smallint;not null" json:"new_value"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Delta is the score change the event applied.
func (e *VoteEvent) Delta() int { return e.NewValue - e.OldValue }
