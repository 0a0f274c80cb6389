package handlers

import (
	"net/http"
	"time"

	"linkfolio/internal/db"
	applog "linkfolio/internal/log"
)

type healthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

// Health is a liveness probe that also checks database connectivity.
func Health(w http.ResponseWriter, r *http.Request) {
	applog.Debug(r.Context(), "health check requested", "method", r.Method)
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Time:     time.Now().UTC(),
	}
	status := http.StatusOK

	if err := db.Ping(r.Context(), database); err != nil {
		applog.Error(r.Context(), "health check database ping failed", "error", err)
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r, status, resp)
	applog.Debug(r.Context(), "health check responded", "status", status)
}
