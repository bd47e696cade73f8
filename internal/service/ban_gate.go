package service

import (
	"context"
	"fmt"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
)

// BanGate rejects banned users at the write entry points.
type BanGate struct {
	bans repository.ModerationRepository
}

// NewBanGate returns a gate reading bans from repo.
func NewBanGate(repo repository.ModerationRepository) *BanGate {
	return &BanGate{bans: repo}
}

// Check returns Forbidden when userID holds an unexpired active ban that
// is global or scoped to communityID. Anonymous callers pass.
func (g *BanGate) Check(ctx context.Context, userID uint, communityID *uint) error {
	if g == nil || userID == 0 {
		return nil
	}
	bans, err := g.bans.ActiveBans(ctx, userID, communityID)
	if err != nil {
		return fmt.Errorf("ban gate: %w", err)
	}
	if len(bans) == 0 {
		return nil
	}
	if bans[0].IsGlobal() {
		return models.NewForbiddenError("your account is banned")
	}
	return models.NewForbiddenError("you are banned from this community")
}
