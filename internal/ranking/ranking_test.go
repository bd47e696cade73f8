package ranking

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestParseSort(t *testing.T) {
	s, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortHot, s)

	s, err = ParseSort(" TOP ")
	require.NoError(t, err)
	assert.Equal(t, SortTop, s)

	_, err = ParseSort("best")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	assert.True(t, SortHot.Pins())
	assert.True(t, SortNew.Pins())
	assert.False(t, SortTop.Pins())
}

func TestCursor_DecodeRestoresTopCursor(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	o := NewOrder(SortTop, time.Now())
	post := &models.Post{ID: 42, Score: -3, CreatedAt: created, Status: models.PostStatusRemoved}

	token := o.CursorFor(post, false).Encode()
	assert.NotContains(t, token, "=")

	got := Decode(token, SortTop)
	require.NotNil(t, got)
	assert.Equal(t, uint(42), got.ID)
	assert.True(t, got.Removed)
	require.NotNil(t, got.Score)
	assert.Equal(t, -3, *got.Score)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.AsOf)
}

func TestCursor_HotCarriesReferenceInstant(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder(SortHot, asOf)

	c := o.CursorFor(&models.Post{ID: 3, CreatedAt: asOf.Add(-time.Hour), HotScore: 7}, true)
	got := Decode(c.Encode(), SortHot)
	require.NotNil(t, got)
	require.NotNil(t, got.AsOf)
	assert.True(t, got.AsOf.Equal(asOf))
	assert.True(t, got.Page1Pinned)
	assert.Equal(t, 7, *got.HotScore)
	assert.Nil(t, got.LastCommentedAt)
}

func TestCursor_DecodeFailsOpen(t *testing.T) {
	created := time.Now().UTC()
	valid := NewOrder(SortNew, created).CursorFor(&models.Post{ID: 1, CreatedAt: created}, false)

	encode := func(raw string) string { return base64.RawURLEncoding.EncodeToString([]byte(raw)) }

	tests := []struct {
		name  string
		token string
		sort  Sort
	}{
		{"empty", "", SortNew},
		{"not base64", "!!!", SortNew},
		{"not json", encode("nope"), SortNew},
		{"wrong version", encode(`{"v":2,"sort":"new","id":1,"created_at":"2024-01-01T00:00:00Z"}`), SortNew},
		{"sort mismatch", valid.Encode(), SortTop},
		{"missing created_at", encode(`{"v":1,"sort":"new","id":1}`), SortNew},
		{"top without score", encode(`{"v":1,"sort":"top","id":1,"created_at":"2024-01-01T00:00:00Z"}`), SortTop},
		{"hot without as_of", encode(`{"v":1,"sort":"hot","id":1,"hot_score":2,"created_at":"2024-01-01T00:00:00Z"}`), SortHot},
		{"no position unpinned", encode(`{"v":1,"sort":"new","id":0}`), SortNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Decode(tt.token, tt.sort))
		})
	}

	assert.NotNil(t, Decode(valid.Encode(), SortNew))
}

func TestCursor_PinnedWithoutPosition(t *testing.T) {
	o := NewOrder(SortNew, time.Now())
	c := o.CursorFor(nil, true)
	got := Decode(c.Encode(), SortNew)
	require.NotNil(t, got)
	assert.False(t, got.HasPosition())
	assert.True(t, got.Page1Pinned)

	sql, vars := o.Seek(got)
	assert.Empty(t, sql)
	assert.Nil(t, vars)
}

func TestHotScore(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := asOf.Add(-d)
		return &v
	}

	tests := []struct {
		name     string
		comments uint
		last     *time.Time
		want     int
	}{
		{"never commented", 4, nil, 8},
		{"within 1h", 1, at(30 * time.Minute), 5},
		{"exactly 1h", 1, at(time.Hour), 5},
		{"within 6h", 1, at(2 * time.Hour), 4},
		{"within 24h", 0, at(23 * time.Hour), 1},
		{"older", 3, at(48 * time.Hour), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HotScore(tt.comments, tt.last, asOf))
		})
	}
}

func TestSeek_NewOrder(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	o := NewOrder(SortNew, time.Now())
	c := o.CursorFor(&models.Post{ID: 9, CreatedAt: created}, false)

	sql, vars := o.Seek(&c)
	assert.Equal(t,
		"(("+removedExpr+" > ?) OR ("+removedExpr+" = ? AND posts.created_at < ?) OR ("+
			removedExpr+" = ? AND posts.created_at = ? AND posts.id < ?))",
		sql)
	assert.Equal(t, []any{0, 0, created, 0, created, uint(9)}, vars)
}

func TestSeek_HotBindsExpressionVars(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := NewOrder(SortHot, asOf)
	c := o.CursorFor(&models.Post{ID: 1, CreatedAt: asOf, HotScore: 2}, false)

	sql, vars := o.Seek(&c)
	assert.Equal(t, strings.Count(sql, "?"), len(vars))
	assert.Contains(t, sql, "COALESCE(posts.last_commented_at, ?) < ?")
	assert.Contains(t, vars, Epoch)
}

func TestOrderBy_PinnedLeadsWithSticky(t *testing.T) {
	o := NewOrder(SortNew, time.Now())

	sql := orderSQL(o, true)
	assert.True(t, strings.HasPrefix(sql, stickyExpr+" DESC, "+removedExpr+" ASC"))
	assert.Equal(t, removedExpr+" ASC, posts.created_at DESC, posts.id DESC", orderSQL(o, false))
	assert.Contains(t, orderSQL(NewOrder(SortTop, time.Now()), false), "posts.score DESC, posts.created_at DESC")
}

func orderSQL(o Order, pinned bool) string {
	ob := o.OrderBy(pinned)
	return ob.Expression.(clause.Expr).SQL
}
