package service

import (
	"context"
	"testing"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityService_CreateRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Communities.Create(ctx, moderator, CommunityInput{Name: "Dub", Slug: "dub"})
	assertCode(t, err, models.CodeForbidden)

	for _, slug := range []string{"", "a", "-dub", "dub scene", "dub_scene"} {
		_, err := h.svc.Communities.Create(ctx, admin, CommunityInput{Name: "Dub", Slug: slug})
		assertCode(t, err, models.CodeValidation)
	}
	_, err = h.svc.Communities.Create(ctx, admin, CommunityInput{Name: "Dub", Slug: "dub", Visibility: "secret"})
	assertCode(t, err, models.CodeValidation)

	c, err := h.svc.Communities.Create(ctx, admin, CommunityInput{Name: " Dub ", Slug: "Dub-Techno"})
	require.NoError(t, err)
	assert.Equal(t, "Dub", c.Name)
	assert.Equal(t, "dub-techno", c.Slug)
	assert.Equal(t, models.VisibilityPublic, c.Visibility)

	_, err = h.svc.Communities.Create(ctx, admin, CommunityInput{Name: "Other", Slug: "dub-techno"})
	assertCode(t, err, models.CodeConflict)
}

func TestCommunityService_ListingAndLookup(t *testing.T) {
	h := newHarness(t)
	public := h.community(models.VisibilityPublic)
	private := h.community(models.VisibilityPrivate)
	ctx := context.Background()

	list, err := h.svc.Communities.List(ctx, anonymous)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, public.ID, list[0].ID)

	list, err = h.svc.Communities.List(ctx, moderator)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = h.svc.Communities.GetBySlug(ctx, member(5), private.Slug)
	assertCode(t, err, models.CodeNotFound)
	got, err := h.svc.Communities.GetBySlug(ctx, anonymous, public.Slug)
	require.NoError(t, err)
	assert.Equal(t, public.ID, got.ID)

	_, err = h.svc.Communities.SetEnabled(ctx, admin, public.ID, false)
	require.NoError(t, err)
	list, err = h.svc.Communities.List(ctx, anonymous)
	require.NoError(t, err)
	assert.Empty(t, list, "disabling a community invalidates the cached listing")
	_, err = h.svc.Communities.GetByID(ctx, anonymous, public.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestCommunityService_UpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	c := h.community(models.VisibilityPublic)
	empty := h.community(models.VisibilityPublic)
	h.post(member(5), c.ID, "p")
	ctx := context.Background()

	vis := "restricted"
	updated, err := h.svc.Communities.Update(ctx, admin, c.ID, CommunityPatch{Visibility: &vis})
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityRestricted, updated.Visibility)

	bad := "hidden"
	_, err = h.svc.Communities.Update(ctx, admin, c.ID, CommunityPatch{Visibility: &bad})
	assertCode(t, err, models.CodeValidation)
	_, err = h.svc.Communities.Update(ctx, member(5), c.ID, CommunityPatch{Visibility: &vis})
	assertCode(t, err, models.CodeForbidden)

	err = h.svc.Communities.Delete(ctx, admin, c.ID)
	assertCode(t, err, models.CodeConflict)
	require.NoError(t, h.svc.Communities.Delete(ctx, admin, empty.ID))
	assert.Equal(t, int64(1), h.count(&models.Community{}, ""))
}
