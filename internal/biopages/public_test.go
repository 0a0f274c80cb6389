package biopages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"linkfolio/internal/apperr"
	"linkfolio/internal/db/dbtest"
	"linkfolio/models"
)

func TestFindPublicAndAnalytics(t *testing.T) {
	t.Parallel()

	database := dbtest.New(t)
	registry := New(database, nil)
	ctx := context.Background()
	user := createUser(t, database, "ada@example.com")

	profile, err := registry.Create(ctx, user.ID, page("Ada"))
	require.NoError(t, err)

	links := []models.SocialLink{
		{ProfileID: profile.ID, Platform: "web", Title: "Second", URL: "https://b.example", SortOrder: 2, IsActive: true, Clicks: 1},
		{ProfileID: profile.ID, Platform: "web", Title: "First", URL: "https://a.example", SortOrder: 1, IsActive: true, Clicks: 3},
		{ProfileID: profile.ID, Platform: "web", Title: "Hidden", URL: "https://c.example", SortOrder: 3, IsActive: false},
	}
	for i := range links {
		require.NoError(t, database.Create(&links[i]).Error)
	}
	require.NoError(t, database.Model(&models.Profile{}).Where("id = ?", profile.ID).
		Updates(map[string]any{"profile_views": 4, "clicks": 4}).Error)

	public, err := registry.FindPublic(ctx, "ada")
	require.NoError(t, err)
	require.Equal(t, profile.ID, public.Profile.ID)
	require.Len(t, public.Links, 2)
	require.Equal(t, "First", public.Links[0].Title)
	require.Equal(t, "Second", public.Links[1].Title)

	_, err = registry.FindPublic(ctx, "nobody")
	require.True(t, errors.Is(err, apperr.ErrNotFound))

	stats, err := registry.Analytics(ctx, profile.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.ProfileViews)
	require.Equal(t, int64(4), stats.TotalClicks)
	require.Len(t, stats.Links, 3)
	require.Equal(t, "First", stats.Links[0].Title)
	require.InDelta(t, 0.75, stats.Links[0].ClickThroughRate, 1e-9)
	require.Zero(t, stats.Links[2].ClickThroughRate)

	_, err = registry.Analytics(ctx, "missing")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}
