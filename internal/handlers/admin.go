package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"linkfolio/internal/admin"
	"linkfolio/internal/apperr"
	applog "linkfolio/internal/log"
	"linkfolio/internal/sessions"
)

// AdminStats returns the dashboard summary.
func AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := adminService.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func intParam(values url.Values, name string, errs map[string]string) int {
	raw := values.Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs[name] = "must be an integer"
	}
	return n
}

func listParams(r *http.Request) (page, limit int, err error) {
	values := r.URL.Query()
	errs := map[string]string{}
	page = intParam(values, "page", errs)
	limit = intParam(values, "limit", errs)
	if len(errs) > 0 {
		return 0, 0, apperr.Validation("validation failed", errs)
	}
	return page, limit, nil
}

// AdminUsers lists users with search, filter, sort and paging from the query string.
func AdminUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := listParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	values := r.URL.Query()
	list, err := adminService.ListUsers(r.Context(), admin.UserQuery{
		Page:      page,
		Limit:     limit,
		Search:    values.Get("search"),
		FilterBy:  values.Get("filterBy"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// AdminProfiles lists bio pages with search, filter, sort and paging from the query string.
func AdminProfiles(w http.ResponseWriter, r *http.Request) {
	page, limit, err := listParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	values := r.URL.Query()
	list, err := adminService.ListProfiles(r.Context(), admin.ProfileQuery{
		Page:      page,
		Limit:     limit,
		Search:    values.Get("search"),
		FilterBy:  values.Get("filterBy"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// AdminDeleteUser deletes a user and everything they own.
func AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	out, err := adminService.DeleteUser(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePageNames(r.Context(), out.PageNames...)
	writeMessage(w, r, http.StatusOK, "User deleted")
}

type adminFlagRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

func (in adminFlagRequest) value() (bool, error) {
	if in.IsAdmin == nil {
		return false, apperr.Validation("validation failed", map[string]string{"isAdmin": "isAdmin is required"})
	}
	return *in.IsAdmin, nil
}

type adminUserResponse struct {
	User *admin.UserRow `json:"user"`
}

// AdminToggleAdmin grants or revokes admin access of one user.
func AdminToggleAdmin(w http.ResponseWriter, r *http.Request) {
	var in adminFlagRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	value, err := in.value()
	if err != nil {
		writeError(w, r, err)
		return
	}
	row, err := adminService.ToggleAdmin(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adminUserResponse{User: row})
}

type bulkRequest struct {
	UserIDs []string `json:"userIds"`
	IsAdmin *bool    `json:"isAdmin"`
}

type bulkResponse struct {
	Message  string `json:"message"`
	Affected int64  `json:"affected"`
}

// AdminBulkDelete deletes several users in one transaction.
func AdminBulkDelete(w http.ResponseWriter, r *http.Request) {
	var in bulkRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := adminService.BulkDeleteUsers(r.Context(), currentUser(r).ID, in.UserIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	invalidatePageNames(r.Context(), out.PageNames...)
	writeJSON(w, r, http.StatusOK, bulkResponse{Message: fmt.Sprintf("%d users deleted", out.Deleted), Affected: out.Deleted})
}

// AdminBulkAdmin sets the admin flag of several users in one statement.
func AdminBulkAdmin(w http.ResponseWriter, r *http.Request) {
	var in bulkRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	value, err := adminFlagRequest{IsAdmin: in.IsAdmin}.value()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := adminService.BulkToggleAdmin(r.Context(), currentUser(r).ID, in.UserIDs, value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bulkResponse{Message: fmt.Sprintf("%d users updated", updated), Affected: updated})
}

func writeCSVHeaders(w http.ResponseWriter, name string) {
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

// AdminExportUsers streams every user as CSV.
func AdminExportUsers(w http.ResponseWriter, r *http.Request) {
	writeCSVHeaders(w, "users")
	if err := adminService.ExportUsersCSV(r.Context(), w); err != nil {
		// Headers may already be sent; the truncated body is the only signal left.
		applog.Error(r.Context(), "user export failed", "error", err)
	}
}

// AdminExportProfiles streams every bio page as CSV.
func AdminExportProfiles(w http.ResponseWriter, r *http.Request) {
	writeCSVHeaders(w, "profiles")
	if err := adminService.ExportProfilesCSV(r.Context(), w); err != nil {
		applog.Error(r.Context(), "profile export failed", "error", err)
	}
}

type impersonationResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// AdminImpersonate switches the session to act as another user.
func AdminImpersonate(w http.ResponseWriter, r *http.Request) {
	target, err := accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessions.StartImpersonation(r.Context(), sessionManager, target.ID); err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "impersonation started", "admin_id", currentUser(r).ID, "target_id", target.ID)
	writeJSON(w, r, http.StatusOK, impersonationResponse{Message: "Now impersonating " + target.Email, UserID: target.ID})
}

// AdminStopImpersonate restores the admin's own identity. It runs outside
// RequireAdmin since the effective user is the impersonated one; the stored
// admin id is re-checked instead.
func AdminStopImpersonate(w http.ResponseWriter, r *http.Request) {
	adminID := sessions.Impersonator(r.Context(), sessionManager)
	if adminID == "" {
		writeError(w, r, sessions.ErrNotImpersonating)
		return
	}
	original, err := accounts.Get(r.Context(), adminID)
	if err != nil || !original.IsAdmin {
		if err := sessions.Logout(r.Context(), sessionManager); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
		writeError(w, r, errAuthRequired)
		return
	}
	if _, err := sessions.StopImpersonation(r.Context(), sessionManager); err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "impersonation stopped", "admin_id", adminID)
	writeJSON(w, r, http.StatusOK, impersonationResponse{Message: "Impersonation stopped", UserID: adminID})
}

// AdminSystemHealth returns operational counts and runtime figures.
func AdminSystemHealth(w http.ResponseWriter, r *http.Request) {
	health, err := adminService.SystemHealth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, health)
}

type activityResponse struct {
	Activity []admin.ActivityEntry `json:"activity"`
}

// AdminActivity returns the activity feed.
func AdminActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, activityResponse{Activity: adminService.Activity(r.Context())})
}
