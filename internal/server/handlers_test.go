package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/repository"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_PostVoteCommentRemove(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	modTok := token(t, 2, models.RoleModerator)
	alice := token(t, 10, models.RoleMember)
	bob := token(t, 11, models.RoleMember)

	c := a.community(adminTok, "techno", models.VisibilityPublic)
	p := a.post(alice, c.ID, "Warehouse night")
	assert.Equal(t, uint(10), p.UserID)

	var feed repository.FeedPage
	a.expect(http.StatusOK, http.MethodGet, "/api/posts?sort=new", "", nil, &feed)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, p.ID, feed.Posts[0].ID)

	postPath := fmt.Sprintf("/api/posts/%d", p.ID)

	var vote service.VoteResult
	a.expect(http.StatusOK, http.MethodPost, postPath+"/vote", alice, map[string]int{"value": 1}, &vote)
	assert.Equal(t, service.VoteResult{Score: 1, UserVote: 1}, vote)
	a.expect(http.StatusOK, http.MethodPut, postPath+"/vote", alice, map[string]int{"value": 1}, &vote)
	assert.Equal(t, service.VoteResult{Score: 0, UserVote: 0}, vote)
	a.expect(http.StatusOK, http.MethodPost, postPath+"/vote", bob, map[string]int{"value": -1}, &vote)
	assert.Equal(t, -1, vote.Score)

	var root models.Comment
	a.expect(http.StatusCreated, http.MethodPost, postPath+"/comments", bob, map[string]any{"body": "see you there"}, &root)
	var reply models.Comment
	a.expect(http.StatusCreated, http.MethodPost, postPath+"/comments", alice,
		map[string]any{"body": "bring earplugs", "parent_id": root.ID}, &reply)
	assert.Equal(t, 1, reply.Depth)

	var top repository.CommentPage
	a.expect(http.StatusOK, http.MethodGet, postPath+"/comments", "", nil, &top)
	require.Len(t, top.Comments, 1)
	assert.Equal(t, uint(1), top.Comments[0].ChildCount)

	var children repository.CommentPage
	a.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("%s/comments/%d/children", postPath, root.ID), "", nil, &children)
	require.Len(t, children.Comments, 1)
	assert.Equal(t, reply.ID, children.Comments[0].ID)

	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", reply.ID), bob, map[string]int{"value": 1}, &vote)
	assert.Equal(t, service.VoteResult{Score: 1, UserVote: 1}, vote)

	var got models.Post
	a.expect(http.StatusOK, http.MethodGet, postPath, "", nil, &got)
	assert.Equal(t, uint(2), got.CommentCount)

	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodDelete, postPath, bob, nil)

	var removal service.PostRemoval
	a.expect(http.StatusOK, http.MethodDelete, postPath, modTok, map[string]string{"reason": "spam"}, &removal)
	assert.Equal(t, service.StatusRemoved, removal.Status)
	assert.Equal(t, models.RemovedTitle, removal.Post.Title)
	assert.Equal(t, -1, removal.Post.Score)

	a.expect(http.StatusOK, http.MethodDelete, postPath, modTok, nil, &removal)
	assert.Equal(t, service.StatusAlreadyRemoved, removal.Status)

	var logs []models.ModerationLog
	a.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/moderation/logs?target_type=post&target_id=%d", p.ID), modTok, nil, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionPostRemove, logs[0].Action)
}

func TestAPI_AuthAndRoles(t *testing.T) {
	a := newAPI(t)
	member := token(t, 10, models.RoleMember)
	adminTok := token(t, 1, models.RoleAdmin)

	a.expectCode(http.StatusUnauthorized, models.CodeUnauthorized, http.MethodPost, "/api/posts", "",
		map[string]any{"community_id": 1, "title": "x"})
	a.expectCode(http.StatusUnauthorized, models.CodeUnauthorized, http.MethodGet, "/api/posts", "not-a-jwt", nil)
	a.expect(http.StatusOK, http.MethodGet, "/api/posts", "", nil, nil)

	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodPost, "/api/communities", member,
		map[string]any{"name": "Dub", "slug": "dub"})
	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodGet, "/api/admin/feature-flags", member, nil)
	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodGet, "/api/moderation/logs", member, nil)

	var flags struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	a.expect(http.StatusOK, http.MethodGet, "/api/admin/feature-flags", adminTok, nil, &flags)
	assert.Equal(t, "on", flags.Raw["search"])
	assert.True(t, flags.Evaluated["feed_cache"])
}

func TestAPI_ValidationAndNotFound(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	member := token(t, 10, models.RoleMember)
	c := a.community(adminTok, "house", models.VisibilityPublic)
	p := a.post(member, c.ID, "Opening set")
	postPath := fmt.Sprintf("/api/posts/%d", p.ID)

	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodGet, "/api/posts/abc", "", nil)
	a.expectCode(http.StatusNotFound, models.CodeNotFound, http.MethodGet, "/api/posts/9999", "", nil)
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodGet, "/api/posts?sort=bogus", "", nil)
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodGet, "/api/posts/search?q=a", "", nil)
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodPost, postPath+"/vote", member, map[string]any{})
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodPost, postPath+"/vote", member, map[string]int{"value": 2})
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodPost, "/api/posts", member,
		map[string]any{"community_id": c.ID, "title": "   "})
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodPost, "/api/posts", member,
		map[string]any{"community_id": c.ID, "title": "party", "type": "event"})
	a.expectCode(http.StatusBadRequest, models.CodeValidation, http.MethodPost, "/api/moderation/bans",
		token(t, 2, models.RoleModerator), map[string]any{"user_id": 10, "duration": "soon"})

	var search repository.FeedPage
	a.expect(http.StatusOK, http.MethodGet, "/api/posts/search?q=opening", "", nil, &search)
	require.Len(t, search.Posts, 1)
}

func TestAPI_CommentDepthAndLock(t *testing.T) {
	a := newAPI(t, func(cfg *config.Config) { cfg.CommentMaxDepth = 2 })
	adminTok := token(t, 1, models.RoleAdmin)
	modTok := token(t, 2, models.RoleModerator)
	member := token(t, 10, models.RoleMember)
	c := a.community(adminTok, "ambient", models.VisibilityPublic)
	p := a.post(member, c.ID, "Drone loop")
	commentsPath := fmt.Sprintf("/api/posts/%d/comments", p.ID)

	var root, child models.Comment
	a.expect(http.StatusCreated, http.MethodPost, commentsPath, member, map[string]any{"body": "root"}, &root)
	a.expect(http.StatusCreated, http.MethodPost, commentsPath, member, map[string]any{"body": "child", "parent_id": root.ID}, &child)
	a.expectCode(http.StatusUnprocessableEntity, models.CodeDepthExceeded, http.MethodPost, commentsPath, member,
		map[string]any{"body": "too deep", "parent_id": child.ID})

	var removal service.CommentRemoval
	a.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/comments/%d", child.ID), modTok, nil, &removal)
	assert.Equal(t, service.StatusRemoved, removal.Status)

	var lock service.PostTransition
	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/posts/%d/lock", p.ID), modTok, nil, &lock)
	assert.True(t, lock.Changed)
	assert.Equal(t, models.PostStatusLocked, lock.Post.Status)
	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodPost, commentsPath, member, map[string]any{"body": "late"})

	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/posts/%d/lock", p.ID), modTok, map[string]any{"locked": false}, &lock)
	assert.Equal(t, models.PostStatusPublished, lock.Post.Status)
	a.expect(http.StatusCreated, http.MethodPost, commentsPath, member, map[string]any{"body": "back open"}, nil)
}

func TestAPI_ReportsStickyAndBans(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	modTok := token(t, 2, models.RoleModerator)
	alice := token(t, 10, models.RoleMember)
	bob := token(t, 11, models.RoleMember)
	c := a.community(adminTok, "garage", models.VisibilityPublic)
	first := a.post(alice, c.ID, "First")
	second := a.post(alice, c.ID, "Second")
	reportPath := fmt.Sprintf("/api/posts/%d/report", first.ID)

	var report service.ReportResult
	a.expect(http.StatusOK, http.MethodPost, reportPath, bob, map[string]string{"reason": "off topic"}, &report)
	assert.True(t, report.Created)
	a.expect(http.StatusOK, http.MethodPost, reportPath, bob, nil, &report)
	assert.False(t, report.Created)
	assert.Equal(t, uint(1), report.ReportsCount)

	var cleared map[string]int
	a.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/posts/%d/reports", first.ID), modTok, nil, &cleared)
	assert.Equal(t, 1, cleared["cleared"])

	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/posts/%d/sticky", first.ID), modTok, nil, nil)
	var feed repository.FeedPage
	a.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/communities/%d/posts?sort=new", c.ID), "", nil, &feed)
	require.Len(t, feed.Posts, 2)
	assert.Equal(t, first.ID, feed.Posts[0].ID)
	assert.Equal(t, second.ID, feed.Posts[1].ID)

	var ban service.BanResult
	a.expect(http.StatusOK, http.MethodPost, "/api/moderation/bans", modTok,
		map[string]any{"user_id": 11, "reason": "spam", "duration": "24h"}, &ban)
	assert.True(t, ban.Created)
	require.NotNil(t, ban.Ban.ExpiresAt)

	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodPost,
		fmt.Sprintf("/api/posts/%d/vote", second.ID), bob, map[string]int{"value": 1})

	var lifted map[string]bool
	a.expect(http.StatusOK, http.MethodDelete, "/api/moderation/bans?user_id=11", modTok, nil, &lifted)
	assert.True(t, lifted["lifted"])
	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", second.ID), bob, map[string]int{"value": 1}, nil)
}

func TestAPI_CommunitiesAndEvents(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	member := token(t, 10, models.RoleMember)

	c := a.community(adminTok, "jungle", models.VisibilityPublic)
	a.expectCode(http.StatusConflict, models.CodeConflict, http.MethodPost, "/api/communities", adminTok,
		map[string]any{"name": "Again", "slug": "jungle"})

	var bySlug, byID models.Community
	a.expect(http.StatusOK, http.MethodGet, "/api/communities/jungle", "", nil, &bySlug)
	a.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/communities/%d", c.ID), "", nil, &byID)
	assert.Equal(t, c.ID, bySlug.ID)
	assert.Equal(t, c.ID, byID.ID)

	var event models.Post
	a.expect(http.StatusCreated, http.MethodPost, "/api/posts", member, map[string]any{
		"community_id": c.ID,
		"title":        "Rave",
		"type":         "event",
		"event":        map[string]any{"event_date": "2030-05-01T22:00:00Z", "venue_name": "Depot"},
	}, &event)
	assert.Equal(t, models.PostTypeEvent, event.Type)

	var updated models.Event
	a.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/posts/%d/event", event.ID), member,
		map[string]any{"event_date": "2030-05-02T22:00:00Z", "venue_name": "Yard"}, &updated)
	assert.Equal(t, "Yard", updated.VenueName)

	var deleted map[string]bool
	a.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/posts/%d/event", event.ID), member, nil, &deleted)
	assert.True(t, deleted["deleted"])

	var edited models.Post
	a.expect(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/posts/%d", event.ID), member,
		map[string]any{"title": "Rave (cancelled)"}, &edited)
	assert.Equal(t, "Rave (cancelled)", edited.Title)
	assert.Equal(t, models.PostTypeText, edited.Type)

	var disabled models.Community
	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/communities/%d/disable", c.ID), adminTok, nil, &disabled)
	assert.False(t, disabled.IsEnabled)
	a.expectCode(http.StatusNotFound, models.CodeNotFound, http.MethodGet, "/api/communities/jungle", member, nil)

	var list []models.Community
	a.expect(http.StatusOK, http.MethodGet, "/api/communities", member, nil, &list)
	assert.Empty(t, list)
	a.expect(http.StatusOK, http.MethodGet, "/api/communities", adminTok, nil, &list)
	assert.Len(t, list, 1)

	a.expectCode(http.StatusConflict, models.CodeConflict, http.MethodDelete, fmt.Sprintf("/api/communities/%d", c.ID), adminTok, nil)

	empty := a.community(adminTok, "empty", models.VisibilityRestricted)
	a.expect(http.StatusNoContent, http.MethodDelete, fmt.Sprintf("/api/communities/%d", empty.ID), adminTok, nil, nil)
}

func TestAPI_SavedPosts(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	member := token(t, 10, models.RoleMember)
	c := a.community(adminTok, "dnb", models.VisibilityPublic)
	p := a.post(member, c.ID, "Mix")
	savePath := fmt.Sprintf("/api/posts/%d/save", p.ID)

	var saved map[string]bool
	a.expect(http.StatusOK, http.MethodPost, savePath, member, nil, &saved)
	assert.True(t, saved["created"])
	a.expect(http.StatusOK, http.MethodPost, savePath, member, nil, &saved)
	assert.False(t, saved["created"])

	var posts []models.Post
	a.expect(http.StatusOK, http.MethodGet, "/api/users/me/saved", member, nil, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)

	a.expect(http.StatusOK, http.MethodDelete, savePath, member, nil, &saved)
	assert.True(t, saved["removed"])
	a.expect(http.StatusOK, http.MethodGet, "/api/users/me/saved", member, nil, &posts)
	assert.Empty(t, posts)

	a.expectCode(http.StatusUnauthorized, models.CodeUnauthorized, http.MethodGet, "/api/users/me/saved", "", nil)
}

func TestAPI_Maintenance(t *testing.T) {
	a := newAPI(t)
	adminTok := token(t, 1, models.RoleAdmin)
	member := token(t, 10, models.RoleMember)
	c := a.community(adminTok, "idm", models.VisibilityPublic)
	p := a.post(member, c.ID, "Ambient works")
	a.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", p.ID), member, map[string]int{"value": 1}, nil)

	var reconcile struct {
		Clean  bool                    `json:"clean"`
		Total  int                     `json:"total"`
		Report service.IntegrityReport `json:"report"`
	}
	a.expect(http.StatusOK, http.MethodPost, "/api/admin/maintenance/reconcile", adminTok, nil, &reconcile)
	assert.True(t, reconcile.Clean)
	assert.Zero(t, reconcile.Total)
	assert.NotEmpty(t, reconcile.Report.RunID)

	require.NoError(t, a.db.Model(&models.Post{}).Where("id = ?", p.ID).Update("score", 7).Error)
	a.expect(http.StatusOK, http.MethodPost, "/api/admin/maintenance/reconcile", adminTok, nil, &reconcile)
	assert.False(t, reconcile.Clean)
	require.Len(t, reconcile.Report.PostScore, 1)

	var cleanup service.CleanupReport
	a.expect(http.StatusOK, http.MethodPost, "/api/admin/maintenance/cleanup", adminTok, nil, &cleanup)
	assert.Zero(t, cleanup.OrphanVotes)

	a.expectCode(http.StatusForbidden, models.CodeForbidden, http.MethodPost, "/api/admin/maintenance/cleanup", member, nil)
}

func TestAPI_RateLimits(t *testing.T) {
	a := newAPI(t, func(cfg *config.Config) {
		cfg.RateLimitEnabled = true
		cfg.RatePostLimit = 1
	})
	adminTok := token(t, 1, models.RoleAdmin)
	member := token(t, 10, models.RoleMember)
	c := a.community(adminTok, "acid", models.VisibilityPublic)

	a.post(member, c.ID, "one")
	a.expectCode(http.StatusTooManyRequests, models.CodeRateLimited, http.MethodPost, "/api/posts", member,
		map[string]any{"community_id": c.ID, "title": "two"})

	for i := 0; i < searchRateLimit; i++ {
		a.expect(http.StatusOK, http.MethodGet, "/api/posts/search?q=one", "", nil, nil)
	}
	status, _ := a.call(http.MethodGet, "/api/posts/search?q=one", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
}
