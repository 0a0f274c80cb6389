package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	applog "linkfolio/internal/log"
)

type bioPagesResponse struct {
	BioPages any `json:"bioPages"`
}

type bioPageResponse struct {
	BioPage any `json:"bioPage"`
}

// ListBioPages returns the caller's pages, default first.
func ListBioPages(w http.ResponseWriter, r *http.Request) {
	list, err := pages.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bioPagesResponse{BioPages: list})
}

// CreateBioPage creates a page for the caller.
func CreateBioPage(w http.ResponseWriter, r *http.Request) {
	var in biopages.NewPage
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := pages.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, bioPageResponse{BioPage: profile})
}

// GetBioPage returns one of the caller's pages.
func GetBioPage(w http.ResponseWriter, r *http.Request) {
	profile, err := pages.Get(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bioPageResponse{BioPage: profile})
}

// UpdateBioPage applies a partial update to one of the caller's pages.
func UpdateBioPage(w http.ResponseWriter, r *http.Request) {
	var patch biopages.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	profile, previousName, err := pages.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePageNames(r.Context(), previousName, profile.PageName)
	writeJSON(w, r, http.StatusOK, bioPageResponse{BioPage: profile})
}

// DeleteBioPage deletes one of the caller's pages. Pages that are missing or
// owned by someone else are reported as not found.
func DeleteBioPage(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	id := chi.URLParam(r, "id")

	var pageName string
	if profile, err := pages.Get(r.Context(), userID, id); err == nil {
		pageName = profile.PageName
	}

	deleted, err := pages.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, apperr.NotFound("bio page not found"))
		return
	}
	invalidatePageNames(r.Context(), pageName)
	writeMessage(w, r, http.StatusOK, "Bio page deleted")
}

// SetDefaultBioPage makes one of the caller's pages the default.
func SetDefaultBioPage(w http.ResponseWriter, r *http.Request) {
	if err := pages.SetDefault(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Default bio page updated")
}

// BioPageLinks lists every link of one of the caller's pages, inactive ones included.
func BioPageLinks(w http.ResponseWriter, r *http.Request) {
	list, err := linkManager.List(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, linksResponse{Links: list})
}

// BioPageThemes lists the saved themes of one of the caller's pages.
func BioPageThemes(w http.ResponseWriter, r *http.Request) {
	list, err := themeStore.List(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, themesResponse{Themes: list})
}

// loadPublicPage returns the public payload of a page, from cache when possible.
func loadPublicPage(ctx context.Context, pageName string) (*biopages.PublicPage, error) {
	key := pageCacheKey(pageName)
	if cached, ok, err := pageCache.Get(ctx, key); err != nil {
		applog.Warn(ctx, "page cache read failed", "key", key, "error", err)
	} else if ok {
		page := &biopages.PublicPage{}
		if err := json.Unmarshal(cached, page); err == nil {
			return page, nil
		}
		applog.Warn(ctx, "discarding unreadable cached page", "key", key)
	}

	page, err := pages.FindPublic(ctx, pageName)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(page); err == nil {
		if err := pageCache.Set(ctx, key, payload, pageCacheTTL); err != nil {
			applog.Warn(ctx, "page cache write failed", "key", key, "error", err)
		}
	}
	return page, nil
}

// recordView counts a public view. Failures are logged, the page is still served.
func recordView(ctx context.Context, profileID string) {
	if err := pages.IncrementViews(ctx, profileID); err != nil {
		applog.Warn(ctx, "failed to record page view", "profile_id", profileID, "error", err)
		return
	}
	appMetrics.PageViews.Inc()
}

// PublicProfile returns a page and its active links by page name and counts a view.
func PublicProfile(w http.ResponseWriter, r *http.Request) {
	page, err := loadPublicPage(r.Context(), chi.URLParam(r, "pageName"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	recordView(r.Context(), page.Profile.ID)
	writeJSON(w, r, http.StatusOK, page)
}

type profileResponse struct {
	Profile any `json:"profile"`
}

// UpdateProfile is the profile editor's alias of UpdateBioPage.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch biopages.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	profile, previousName, err := pages.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePageNames(r.Context(), previousName, profile.PageName)
	writeJSON(w, r, http.StatusOK, profileResponse{Profile: profile})
}

// Analytics returns the public view and click summary of a page.
func Analytics(w http.ResponseWriter, r *http.Request) {
	summary, err := pages.Analytics(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}
