// Package ranking defines the feed orders and the opaque cursors used to
// page through them.
package ranking

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/observability"
)

// Sort is a feed order.
type Sort string

const (
	SortHot Sort = "hot"
	SortNew Sort = "new"
	SortTop Sort = "top"
)

// DefaultSort is used when the caller names none.
const DefaultSort = SortHot

// ParseSort maps a query value onto a Sort.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultSort, nil
	case SortHot:
		return SortHot, nil
	case SortNew:
		return SortNew, nil
	case SortTop:
		return SortTop, nil
	}
	return "", models.NewValidationError(fmt.Sprintf("unknown sort %q: use hot, new or top", s))
}

// Pins reports whether page 1 of the sort floats sticky posts to the top.
func (s Sort) Pins() bool {
	return s == SortHot || s == SortNew
}

// CursorVersion is the only cursor layout Decode accepts.
const CursorVersion = 1

// CursorV1 records the sort keys of the last row served. ID 0 with
// Page1Pinned set means "after the pinned rows, from the top".
type CursorV1 struct {
	V               int        `json:"v"`
	Sort            Sort       `json:"sort"`
	ID              uint       `json:"id"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	Removed         bool       `json:"removed"`
	Page1Pinned     bool       `json:"page1_pinned"`
	Score           *int       `json:"score,omitempty"`
	HotScore        *int       `json:"hot_score,omitempty"`
	LastCommentedAt *time.Time `json:"last_commented_at,omitempty"`
	AsOf            *time.Time `json:"as_of,omitempty"`
}

// HasPosition reports whether the cursor points after a concrete row.
func (c *CursorV1) HasPosition() bool {
	return c != nil && c.ID != 0
}

// Encode returns the base64url token for c.
func (c CursorV1) Encode() string {
	c.V = CursorVersion
	raw, err := json.Marshal(c)
	if err != nil {
		// CursorV1 holds only marshalable fields.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Reasons recorded when a cursor is ignored.
const (
	RejectMalformed = "malformed"
	RejectVersion   = "version"
	RejectSort      = "sort_mismatch"
	RejectFields    = "missing_fields"
)

// Decode parses token for sort. Any problem yields nil, meaning "start
// from page 1"; the reason is counted but never surfaced to the caller.
func Decode(token string, sort Sort) *CursorV1 {
	c, reason := decode(token, sort)
	if reason != "" {
		observability.CursorRejections.WithLabelValues(reason).Inc()
		return nil
	}
	return c
}

func decode(token string, sort Sort) (*CursorV1, string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, RejectMalformed
	}
	var c CursorV1
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, RejectMalformed
	}
	if c.V != CursorVersion {
		return nil, RejectVersion
	}
	if c.Sort != sort {
		return nil, RejectSort
	}
	if !c.valid() {
		return nil, RejectFields
	}
	return &c, ""
}

func (c *CursorV1) valid() bool {
	if c.Sort == SortHot && c.AsOf == nil {
		return false
	}
	if c.ID == 0 {
		// Only a pinned first page can end without a position.
		return c.Page1Pinned
	}
	if c.CreatedAt == nil {
		return false
	}
	switch c.Sort {
	case SortTop:
		return c.Score != nil
	case SortHot:
		return c.HotScore != nil
	}
	return true
}
