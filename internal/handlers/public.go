package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	applog "linkfolio/internal/log"
	views "linkfolio/internal/views/pages"
)

// PublicPage renders a bio page as HTML and counts a view.
func PublicPage(w http.ResponseWriter, r *http.Request) {
	pageName := chi.URLParam(r, "pageName")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !biopages.ValidPageName(pageName) {
		renderNotFound(w, r, pageName)
		return
	}
	page, err := loadPublicPage(r.Context(), pageName)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			renderNotFound(w, r, pageName)
			return
		}
		applog.Error(r.Context(), "failed to load public page", "page_name", pageName, "error", err)
		tracker.Report(r.Context(), err, map[string]string{"page_name": pageName})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	view, err := themeStore.Active(r.Context(), page.Profile.ID)
	if err != nil {
		applog.Error(r.Context(), "failed to load page theme", "profile_id", page.Profile.ID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	recordView(r.Context(), page.Profile.ID)
	if err := views.PublicPage(page, view).Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render public page", "page_name", pageName, "error", err)
	}
}

func renderNotFound(w http.ResponseWriter, r *http.Request, pageName string) {
	w.WriteHeader(http.StatusNotFound)
	if err := views.NotFound(pageName).Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render not found page", "error", err)
	}
}
