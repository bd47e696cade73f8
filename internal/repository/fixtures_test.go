package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// fixture is a fresh sqlite schema with a fixed clock.
type fixture struct {
	t   *testing.T
	db  *gorm.DB
	now time.Time
	seq int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:   t,
		db:  testutil.NewSQLiteDB(t),
		now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) opts() []Option {
	return []Option{WithClock(f.clock)}
}

func (f *fixture) community(visibility models.CommunityVisibility) *models.Community {
	f.t.Helper()
	f.seq++
	c := &models.Community{
		Name:       fmt.Sprintf("Community %d", f.seq),
		Slug:       fmt.Sprintf("community-%d", f.seq),
		Visibility: visibility,
		CreatedBy:  1,
	}
	require.NoError(f.t, NewCommunityRepository(f.db, f.opts()...).Create(context.Background(), c))
	return c
}

func (f *fixture) post(communityID uint, title string, createdAt time.Time) *models.Post {
	f.t.Helper()
	p := &models.Post{
		CommunityID: communityID,
		UserID:      100,
		Title:       title,
		Body:        "body of " + title,
		Type:        models.PostTypeText,
		CreatedAt:   createdAt,
	}
	require.NoError(f.t, NewPostRepository(f.db, f.opts()...).Create(context.Background(), p))
	return p
}

func (f *fixture) reload(p *models.Post) *models.Post {
	f.t.Helper()
	var out models.Post
	require.NoError(f.t, f.db.First(&out, p.ID).Error)
	return &out
}

func (f *fixture) reloadComment(id uint) *models.Comment {
	f.t.Helper()
	var out models.Comment
	require.NoError(f.t, f.db.First(&out, id).Error)
	return &out
}

func (f *fixture) count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	db := f.db.Model(model)
	if query != "" {
		db = db.Where(query, args...)
	}
	require.NoError(f.t, db.Count(&n).Error)
	return n
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return gormDB, mock
}

func ids(posts []models.Post) []uint {
	out := make([]uint, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}
