package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/cache"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
	"github.com/v1mal/open-scene-engine-sub000/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	admin     = models.Actor{UserID: 1, Role: models.RoleAdmin}
	moderator = models.Actor{UserID: 2, Role: models.RoleModerator}
	anonymous = models.Actor{ClientAddr: "203.0.113.7"}
)

func member(id uint) models.Actor {
	return models.Actor{UserID: id, Role: models.RoleMember}
}

// harness wires real repositories over sqlite and a miniredis-backed cache.
type harness struct {
	t    *testing.T
	db   *gorm.DB
	mr   *miniredis.Miniredis
	rdb  *redis.Client
	now  time.Time
	deps Deps
	svc  *Services
	seq  int
}

func newHarness(t *testing.T, tweak ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		db:  testutil.NewSQLiteDB(t),
		now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.mr, h.rdb = testutil.NewRedis(t)

	d := NewDeps(h.db, nil, repository.WithClock(h.clock))
	d.Cache = cache.NewStore(h.rdb, "test", nil)
	d.Limiter = ratelimit.New(h.rdb, ratelimit.Options{Enabled: false})
	d.Limits = LimitsFromConfig(config.Defaults())
	d.Now = h.clock
	for _, fn := range tweak {
		fn(&d)
	}
	h.deps = d
	h.svc = New(d)
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) community(vis models.CommunityVisibility) *models.Community {
	h.t.Helper()
	h.seq++
	c, err := h.svc.Communities.Create(context.Background(), admin, CommunityInput{
		Name:       fmt.Sprintf("Scene %d", h.seq),
		Slug:       fmt.Sprintf("scene-%d", h.seq),
		Visibility: string(vis),
	})
	require.NoError(h.t, err)
	return c
}

func (h *harness) post(actor models.Actor, communityID uint, title string) *models.Post {
	h.t.Helper()
	p, err := h.svc.Posts.CreatePost(context.Background(), actor, CreatePostInput{
		CommunityID: communityID,
		Title:       title,
		Body:        "body of " + title,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) reload(id uint) *models.Post {
	h.t.Helper()
	var p models.Post
	require.NoError(h.t, h.db.First(&p, id).Error)
	return &p
}

func (h *harness) count(model any, query string, args ...any) int64 {
	h.t.Helper()
	var n int64
	db := h.db.Model(model)
	if query != "" {
		db = db.Where(query, args...)
	}
	require.NoError(h.t, db.Count(&n).Error)
	return n
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), "error: %v", err)
}
