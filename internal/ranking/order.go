package ranking

import (
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"gorm.io/gorm/clause"
)

// Hot-score recency thresholds. A comment within the first window earns 3
// points, the second 2, the third 1.
var hotWindows = [3]time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour}

// Epoch stands in for a NULL last_commented_at so that never-commented
// posts sort after every commented post.
var Epoch = time.Unix(0, 0).UTC()

const (
	removedExpr  = "(CASE WHEN posts.status = 'removed' THEN 1 ELSE 0 END)"
	stickyExpr   = "(CASE WHEN posts.is_sticky THEN 1 ELSE 0 END)"
	activityExpr = "COALESCE(posts.last_commented_at, ?)"
)

// key is one column of a total order.
type key struct {
	expr string
	vars []any
	desc bool
}

// Order is a sort mode bound to a hot-score reference instant.
type Order struct {
	Sort Sort
	AsOf time.Time
	keys []key
}

// NewOrder builds the key chain for sort. asOf is ignored except by hot.
func NewOrder(sort Sort, asOf time.Time) Order {
	asOf = asOf.UTC()
	o := Order{Sort: sort, AsOf: asOf}
	o.keys = append(o.keys, key{expr: removedExpr})

	switch sort {
	case SortHot:
		hot, vars := HotScoreExpr(asOf)
		o.keys = append(o.keys,
			key{expr: hot, vars: vars, desc: true},
			key{expr: activityExpr, vars: []any{Epoch}, desc: true},
		)
	case SortTop:
		o.keys = append(o.keys, key{expr: "posts.score", desc: true})
	}

	o.keys = append(o.keys,
		key{expr: "posts.created_at", desc: true},
		key{expr: "posts.id", desc: true},
	)
	return o
}

// HotScoreExpr is 2*comment_count plus the recency bonus relative to asOf.
func HotScoreExpr(asOf time.Time) (string, []any) {
	asOf = asOf.UTC()
	sql := "(2 * posts.comment_count + CASE" +
		" WHEN posts.last_commented_at IS NULL THEN 0" +
		" WHEN posts.last_commented_at >= ? THEN 3" +
		" WHEN posts.last_commented_at >= ? THEN 2" +
		" WHEN posts.last_commented_at >= ? THEN 1" +
		" ELSE 0 END)"
	return sql, []any{
		asOf.Add(-hotWindows[0]),
		asOf.Add(-hotWindows[1]),
		asOf.Add(-hotWindows[2]),
	}
}

// HotScore computes the same value as HotScoreExpr for one post.
func HotScore(commentCount uint, lastCommentedAt *time.Time, asOf time.Time) int {
	score := 2 * int(commentCount)
	if lastCommentedAt == nil {
		return score
	}
	age := asOf.Sub(*lastCommentedAt)
	for i, w := range hotWindows {
		if age <= w {
			return score + 3 - i
		}
	}
	return score
}

// SelectColumns returns the projection for the order: hot adds hot_score.
func (o Order) SelectColumns() (string, []any) {
	if o.Sort != SortHot {
		return "posts.*", nil
	}
	hot, vars := HotScoreExpr(o.AsOf)
	return "posts.*, " + hot + " AS hot_score", vars
}

// OrderBy renders the ORDER BY clause. pinned adds the leading sticky key.
func (o Order) OrderBy(pinned bool) clause.OrderBy {
	var (
		parts []string
		vars  []any
	)
	if pinned {
		parts = append(parts, stickyExpr+" DESC")
	}
	for _, k := range o.keys {
		dir := " ASC"
		if k.desc {
			dir = " DESC"
		}
		parts = append(parts, k.expr+dir)
		vars = append(vars, k.vars...)
	}
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                strings.Join(parts, ", "),
		Vars:               vars,
		WithoutParentheses: true,
	}}
}

// values extracts the cursor's value for each key, in key order.
func (o Order) values(c *CursorV1) []any {
	removed := 0
	if c.Removed {
		removed = 1
	}
	vals := []any{removed}

	switch o.Sort {
	case SortHot:
		last := Epoch
		if c.LastCommentedAt != nil {
			last = c.LastCommentedAt.UTC()
		}
		vals = append(vals, *c.HotScore, last)
	case SortTop:
		vals = append(vals, *c.Score)
	}
	return append(vals, c.CreatedAt.UTC(), c.ID)
}

// Seek renders the strict "after cursor" predicate:
// (k1 op v1) OR (k1 = v1 AND k2 op v2) OR ...
// It returns "" when the cursor has no position.
func (o Order) Seek(c *CursorV1) (string, []any) {
	if !c.HasPosition() {
		return "", nil
	}
	vals := o.values(c)

	var (
		branches []string
		vars     []any
	)
	for i, k := range o.keys {
		var terms []string
		for j := 0; j < i; j++ {
			terms = append(terms, o.keys[j].expr+" = ?")
			vars = append(vars, o.keys[j].vars...)
			vars = append(vars, vals[j])
		}
		op := " > ?"
		if k.desc {
			op = " < ?"
		}
		terms = append(terms, k.expr+op)
		vars = append(vars, k.vars...)
		vars = append(vars, vals[i])
		branches = append(branches, "("+strings.Join(terms, " AND ")+")")
	}
	return "(" + strings.Join(branches, " OR ") + ")", vars
}

// CursorFor records post as the last row served. pinned carries the
// page-1 pinning flag forward.
func (o Order) CursorFor(p *models.Post, pinned bool) CursorV1 {
	c := CursorV1{
		V:           CursorVersion,
		Sort:        o.Sort,
		Page1Pinned: pinned,
	}
	if o.Sort == SortHot {
		asOf := o.AsOf
		c.AsOf = &asOf
	}
	if p == nil {
		return c
	}

	created := p.CreatedAt.UTC()
	c.ID = p.ID
	c.CreatedAt = &created
	c.Removed = p.IsRemoved()

	switch o.Sort {
	case SortTop:
		score := p.Score
		c.Score = &score
	case SortHot:
		hot := p.HotScore
		c.HotScore = &hot
		if p.LastCommentedAt != nil {
			last := p.LastCommentedAt.UTC()
			c.LastCommentedAt = &last
		}
	}
	return c
}
