package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	t.Parallel()

	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/profile/{pageName}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/profile/ada", "/api/profile/grace"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	count := testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "/api/profile/{pageName}", "418"))
	require.Equal(t, float64(2), count)
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.PageViews.Inc()
	m.RateLimited.WithLabelValues("auth").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "linkfolio_page_views_total 1"))
	require.True(t, strings.Contains(string(body), `linkfolio_rate_limited_total{policy="auth"} 1`))
}
