package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"linkfolio/internal/admin"
	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	"linkfolio/internal/cache"
	"linkfolio/internal/db/dbtest"
	"linkfolio/internal/identity"
	"linkfolio/internal/metrics"
	"linkfolio/internal/ratelimit"
	"linkfolio/models"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, ratelimit.Policy) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

type denyingLimiter struct{ retryAfter time.Duration }

func (l denyingLimiter) Allow(context.Context, string, ratelimit.Policy) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: false, RetryAfter: l.retryAfter}, nil
}

type recordingLimiter struct{ keys []string }

func (l *recordingLimiter) Allow(_ context.Context, key string, _ ratelimit.Policy) (ratelimit.Decision, error) {
	l.keys = append(l.keys, key)
	return ratelimit.Decision{Allowed: true}, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestWriteErrorStatuses(t *testing.T) {
	Configure(Dependencies{})

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Validation("bad", map[string]string{"pageName": "taken"}), http.StatusBadRequest},
		{"unauthenticated", identity.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("no"), http.StatusForbidden},
		{"not found", apperr.NotFound("gone"), http.StatusNotFound},
		{"conflict", apperr.Conflict("dup"), http.StatusConflict},
		{"internal", errors.New("dial tcp: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("load: %w", errors.New("secret dsn")))
	resp := decodeError(t, rec)
	require.Equal(t, "internal server error", resp.Message)
	require.NotContains(t, rec.Body.String(), "secret dsn")

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), identity.ErrNeedsVerification)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, decodeError(t, rec).NeedsVerification)

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.RateLimited(1500*time.Millisecond))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	oversized := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	cases := []struct {
		body    string
		message string
	}{
		{"", "request body is required"},
		{"{not json", "request body must be valid JSON"},
		{oversized, "request body is too large"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		err := decodeJSON(rec, req, &dst)
		require.Error(t, err)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.Equal(t, tc.message, apperr.From(err).Message)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst))
	require.Equal(t, "ada", dst.Name)
}

func TestClientIPHonoursTrustedProxies(t *testing.T) {
	Configure(Dependencies{TrustedProxies: []string{"10.0.0.1", "172.16.0.0/12", "not-an-ip"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", clientIP(req))

	req.RemoteAddr = "198.51.100.7:4000"
	require.Equal(t, "198.51.100.7", clientIP(req), "untrusted peers cannot spoof their address")

	req.RemoteAddr = "172.20.3.4:4000"
	require.Equal(t, "203.0.113.9", clientIP(req), "addresses inside a trusted range are proxies too")

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "10.0.0.1:4000"
	require.Equal(t, "10.0.0.1", clientIP(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	m := metrics.New()
	Configure(Dependencies{Limiter: brokenLimiter{}, Metrics: m})
	rec := httptest.NewRecorder()
	RateLimit(ratelimit.Auth)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code, "limiter failures let requests through")

	Configure(Dependencies{Limiter: denyingLimiter{retryAfter: 90 * time.Second}, Metrics: m})
	rec = httptest.NewRecorder()
	RateLimit(ratelimit.Email)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "90", rec.Header().Get("Retry-After"))

	recorder := &recordingLimiter{}
	Configure(Dependencies{Limiter: recorder, Metrics: m})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	rec = httptest.NewRecorder()
	RateLimit(ratelimit.Auth)(ok).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"203.0.113.9"}, recorder.keys, "the limiter namespaces keys by policy itself")
}

func TestPublicProfileCaching(t *testing.T) {
	db := dbtest.New(t)
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	user := &models.User{Email: "ada@example.com", EmailVerified: true}
	require.NoError(t, db.Create(user).Error)
	profile := &models.Profile{UserID: user.ID, PageName: "ada", DisplayName: "Ada", IsDefault: true}
	require.NoError(t, db.Create(profile).Error)

	Configure(Dependencies{
		Database: db,
		Pages:    biopages.New(db, nil),
		Cache:    cache.NewRedis(client),
		CacheTTL: time.Minute,
	})

	router := chi.NewRouter()
	router.Get("/api/profile/{pageName}", PublicProfile)

	for range 2 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile/Ada", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Contains(t, rec.Body.String(), `"pageName":"ada"`)
	}
	require.True(t, srv.Exists("cache:page:ada"))

	stored := &models.Profile{}
	require.NoError(t, db.First(stored, "id = ?", profile.ID).Error)
	require.Equal(t, int64(2), stored.ProfileViews, "cached reads still count views")

	invalidatePages(context.Background(), profile.ID)
	require.False(t, srv.Exists("cache:page:ada"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile/nobody", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletingUsersDropsCachedPages(t *testing.T) {
	db := dbtest.New(t)
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	root := &models.User{Email: "root@example.com", EmailVerified: true, IsAdmin: true}
	require.NoError(t, db.Create(root).Error)
	var victims []*models.User
	for _, name := range []string{"ada", "bea", "cy"} {
		user := &models.User{Email: name + "@example.com", EmailVerified: true}
		require.NoError(t, db.Create(user).Error)
		profile := &models.Profile{UserID: user.ID, PageName: name, DisplayName: name, IsDefault: true}
		require.NoError(t, db.Create(profile).Error)
		victims = append(victims, user)
	}

	Configure(Dependencies{
		Database: db,
		Pages:    biopages.New(db, nil),
		Admin:    admin.New(db, time.Now()),
		Cache:    cache.NewRedis(client),
		CacheTTL: time.Minute,
	})

	router := chi.NewRouter()
	router.Get("/api/profile/{pageName}", PublicProfile)
	router.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), root)))
			})
		})
		r.Delete("/api/admin/users/{id}", AdminDeleteUser)
		r.Post("/api/admin/users/bulk-delete", AdminBulkDelete)
	})

	fetch := func(name string) int {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile/"+name, nil))
		return rec.Code
	}
	for _, name := range []string{"ada", "bea", "cy"} {
		require.Equal(t, http.StatusOK, fetch(name))
		require.True(t, srv.Exists("cache:page:"+name))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+victims[0].ID, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, srv.Exists("cache:page:ada"))
	require.Equal(t, http.StatusNotFound, fetch("ada"))

	body := fmt.Sprintf(`{"userIds":[%q,%q]}`, victims[1].ID, victims[2].ID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/users/bulk-delete", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, srv.Exists("cache:page:bea"))
	require.False(t, srv.Exists("cache:page:cy"))
	require.Equal(t, http.StatusNotFound, fetch("bea"))
	require.Equal(t, http.StatusNotFound, fetch("cy"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	Configure(Dependencies{})

	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "route not found", decodeError(t, rec).Message)

	rec = httptest.NewRecorder()
	MethodNotAllowed(rec, httptest.NewRequest(http.MethodPut, "/api/links", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
