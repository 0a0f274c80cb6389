// Package pages renders the server-side HTML pages.
package pages

import (
	"net/url"

	"linkfolio/internal/biopages"
	"linkfolio/internal/themes"
	"linkfolio/internal/views/layout"
	"linkfolio/internal/views/theme"
	"linkfolio/models"
)

// FollowPath is the tracked redirect used for every outbound link.
func FollowPath(linkID string) string {
	return "/api/links/" + url.PathEscape(linkID) + "/go"
}

func handle(pageName string) string {
	return "@" + pageName
}

func publicDocument(page *biopages.PublicPage, view themes.View) layout.Document {
	return layout.Document{
		Title:       page.Profile.DisplayName,
		Description: page.Profile.Bio,
		Image:       models.StringValue(page.Profile.ProfileImageURL),
		Stylesheet:  theme.Stylesheet(view),
	}
}

// fallbackView styles pages that have no theme of their own.
func fallbackView() themes.View {
	return themes.PresetView(themes.DefaultPreset(), "")
}

func notFoundDocument() layout.Document {
	return layout.Document{Title: "Page not found", Stylesheet: theme.Stylesheet(fallbackView())}
}
