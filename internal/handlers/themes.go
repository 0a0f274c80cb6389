package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkfolio/internal/themes"
)

type themesResponse struct {
	Themes []themes.View `json:"themes"`
}

type themeResponse struct {
	Theme themes.View `json:"theme"`
}

// ThemePresets lists the built-in presets.
func ThemePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, themesResponse{Themes: themes.PresetViews()})
}

// ActiveTheme returns the theme a page renders with, falling back to the default preset.
func ActiveTheme(w http.ResponseWriter, r *http.Request) {
	view, err := themeStore.Active(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, themeResponse{Theme: view})
}

// CreateTheme saves a theme for one of the caller's pages.
func CreateTheme(w http.ResponseWriter, r *http.Request) {
	var in themes.NewTheme
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := themeStore.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, themeResponse{Theme: view})
}

// UpdateTheme applies a partial update to one of the caller's themes.
func UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var patch themes.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := themeStore.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, themeResponse{Theme: view})
}

// DeleteTheme removes one of the caller's themes.
func DeleteTheme(w http.ResponseWriter, r *http.Request) {
	if _, err := themeStore.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Theme deleted")
}

type activateRequest struct {
	ProfileID string `json:"profileId"`
}

// ActivateTheme makes a theme the active one of a page.
func ActivateTheme(w http.ResponseWriter, r *http.Request) {
	var in activateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := themeStore.Activate(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in.ProfileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, themeResponse{Theme: view})
}
