package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkfolio/internal/links"
	"linkfolio/models"
)

type linksResponse struct {
	Links []models.SocialLink `json:"links"`
}

type linkResponse struct {
	Link *models.SocialLink `json:"link"`
}

// CreateLink appends a link to one of the caller's pages.
func CreateLink(w http.ResponseWriter, r *http.Request) {
	var in links.NewLink
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	link, err := linkManager.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePages(r.Context(), link.ProfileID)
	writeJSON(w, r, http.StatusCreated, linkResponse{Link: link})
}

// UpdateLink applies a partial update to a link on one of the caller's pages.
func UpdateLink(w http.ResponseWriter, r *http.Request) {
	var patch links.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	link, err := linkManager.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePages(r.Context(), link.ProfileID)
	writeJSON(w, r, http.StatusOK, linkResponse{Link: link})
}

// DeleteLink removes a link from one of the caller's pages.
func DeleteLink(w http.ResponseWriter, r *http.Request) {
	link, err := linkManager.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePages(r.Context(), link.ProfileID)
	writeMessage(w, r, http.StatusOK, "Link deleted")
}

type reorderRequest struct {
	LinkIDs []string `json:"linkIds"`
}

// ReorderLinks assigns orders 1..N following the position of each id.
func ReorderLinks(w http.ResponseWriter, r *http.Request) {
	var in reorderRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	profileIDs, err := linkManager.Reorder(r.Context(), currentUser(r).ID, in.LinkIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePages(r.Context(), profileIDs...)
	writeMessage(w, r, http.StatusOK, "Links reordered")
}

type clickResponse struct {
	URL string `json:"url"`
}

// ClickLink records a click and returns the destination for the client to follow.
func ClickLink(w http.ResponseWriter, r *http.Request) {
	link, err := linkManager.RecordClick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	appMetrics.LinkClicks.Inc()
	writeJSON(w, r, http.StatusOK, clickResponse{URL: link.URL})
}

// FollowLink records a click and redirects to the destination.
func FollowLink(w http.ResponseWriter, r *http.Request) {
	link, err := linkManager.RecordClick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	appMetrics.LinkClicks.Inc()
	http.Redirect(w, r, link.URL, http.StatusFound)
}
