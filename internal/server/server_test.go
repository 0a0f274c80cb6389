package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"linkfolio/internal/admin"
	"linkfolio/internal/biopages"
	"linkfolio/internal/cache"
	"linkfolio/internal/config"
	"linkfolio/internal/credentials"
	"linkfolio/internal/db/dbtest"
	"linkfolio/internal/handlers"
	"linkfolio/internal/identity"
	"linkfolio/internal/links"
	"linkfolio/internal/mail"
	"linkfolio/internal/metrics"
	"linkfolio/internal/ratelimit"
	"linkfolio/internal/themes"
	"linkfolio/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string, ratelimit.Policy) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, nil
}

type harness struct {
	t       *testing.T
	db      *gorm.DB
	server  *httptest.Server
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, limiter ratelimit.Limiter) *harness {
	t.Helper()
	database := dbtest.New(t)
	registry := biopages.New(database, nil)
	m := metrics.New()

	srv, err := New(Config{
		Addr: "127.0.0.1:0",
		Session: config.SessionConfig{
			Lifetime:    time.Hour,
			IdleTimeout: time.Hour,
			CookieName:  "test_session",
		},
		Database: database,
		Handlers: handlers.Dependencies{
			Identity: identity.New(database, &credentials.BcryptHasher{Cost: bcrypt.MinCost}, registry, &recordingMailer{}, "http://links.test"),
			Pages:    registry,
			Links:    links.New(database),
			Themes:   themes.New(database),
			Admin:    admin.New(database, time.Now()),
			Limiter:  limiter,
			Cache:    cache.Noop{},
			Metrics:  m,
		},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, db: database, server: ts, metrics: m}
}

func (h *harness) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) do(c *http.Client, method, path string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, data
}

func (h *harness) decode(data []byte, dst any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(data, dst), string(data))
}

func (h *harness) verificationToken(email string) string {
	h.t.Helper()
	user := &models.User{}
	require.NoError(h.t, h.db.Where("email = ?", email).Take(user).Error)
	require.NotNil(h.t, user.EmailVerificationToken)
	return *user.EmailVerificationToken
}

// signUp registers, verifies and signs in a user, returning its client and id.
func (h *harness) signUp(email string) (*http.Client, string) {
	h.t.Helper()
	c := h.client()
	resp, data := h.do(c, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(h.t, http.StatusOK, resp.StatusCode, string(data))
	var registered struct {
		UserID string `json:"userId"`
	}
	h.decode(data, &registered)

	resp, data = h.do(c, http.MethodGet, "/api/auth/verify-email?token="+h.verificationToken(email), nil)
	require.Equal(h.t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(h.t, http.StatusOK, resp.StatusCode, string(data))
	return c, registered.UserID
}

type pageList struct {
	BioPages []models.Profile `json:"bioPages"`
}

func TestRegisterVerifyAndManagePages(t *testing.T) {
	h := newHarness(t, allowAll{})
	c := h.client()

	resp, data := h.do(c, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = h.do(c, http.MethodPost, "/api/auth/register", map[string]string{"email": "A@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(data), "email already registered")

	resp, data = h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, string(data), `"needsVerification":true`)

	resp, data = h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotContains(t, string(data), "needsVerification")

	resp, data = h.do(c, http.MethodGet, "/api/auth/verify-email?token=bogus", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = h.do(c, http.MethodGet, "/api/auth/verify-email?token="+h.verificationToken("a@x.com"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), `"redirectTo":"/dashboard"`)

	resp, _ = h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list pageList
	resp, data = h.do(c, http.MethodGet, "/api/bio-pages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h.decode(data, &list)
	require.Len(t, list.BioPages, 1)
	require.Equal(t, "a", list.BioPages[0].PageName)
	require.True(t, list.BioPages[0].IsDefault)
	first := list.BioPages[0].ID

	resp, data = h.do(c, http.MethodPost, "/api/bio-pages", map[string]string{"pageName": "blog", "displayName": "Blog"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created struct {
		BioPage models.Profile `json:"bioPage"`
	}
	h.decode(data, &created)
	require.False(t, created.BioPage.IsDefault)

	resp, _ = h.do(c, http.MethodPost, "/api/bio-pages", map[string]string{"pageName": "BLOG", "displayName": "Again"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = h.do(c, http.MethodPost, "/api/bio-pages/"+created.BioPage.ID+"/set-default", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = h.do(c, http.MethodGet, "/api/bio-pages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h.decode(data, &list)
	defaults := map[string]bool{}
	for _, p := range list.BioPages {
		defaults[p.ID] = p.IsDefault
	}
	require.False(t, defaults[first])
	require.True(t, defaults[created.BioPage.ID])

	resp, _ = h.do(c, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(c, http.MethodGet, "/api/bio-pages", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReorderRejectsForeignLinks(t *testing.T) {
	h := newHarness(t, allowAll{})
	alice, _ := h.signUp("alice@example.com")
	bob, _ := h.signUp("bob@example.com")

	pageOf := func(c *http.Client) string {
		var list pageList
		_, data := h.do(c, http.MethodGet, "/api/bio-pages", nil)
		h.decode(data, &list)
		require.Len(t, list.BioPages, 1)
		return list.BioPages[0].ID
	}
	createLink := func(c *http.Client, profileID, title string) string {
		resp, data := h.do(c, http.MethodPost, "/api/links", map[string]string{
			"profileId": profileID, "platform": "web", "title": title, "url": "https://example.com/" + title,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
		var out struct {
			Link models.SocialLink `json:"link"`
		}
		h.decode(data, &out)
		return out.Link.ID
	}

	alicePage, bobPage := pageOf(alice), pageOf(bob)
	a1 := createLink(alice, alicePage, "one")
	a2 := createLink(alice, alicePage, "two")
	b1 := createLink(bob, bobPage, "bobs")

	resp, _ := h.do(alice, http.MethodPost, "/api/links", map[string]string{
		"profileId": bobPage, "platform": "web", "title": "sneaky", "url": "https://example.com",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(alice, http.MethodPatch, "/api/links/reorder", map[string][]string{"linkIds": {a2, b1, a1}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	orders := func() map[string]int {
		var rows []models.SocialLink
		require.NoError(t, h.db.Find(&rows).Error)
		out := map[string]int{}
		for _, row := range rows {
			out[row.ID] = row.SortOrder
		}
		return out
	}
	require.Equal(t, map[string]int{a1: 1, a2: 2, b1: 1}, orders())

	resp, _ = h.do(alice, http.MethodPost, "/api/links/reorder", map[string][]string{"linkIds": {b1}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, data := h.do(alice, http.MethodPatch, "/api/links/reorder", map[string][]string{"linkIds": {a2, a1}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Equal(t, map[string]int{a1: 2, a2: 1, b1: 1}, orders())

	resp, _ = h.do(bob, http.MethodDelete, "/api/links/"+a1, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPublicPageViewsAndClicks(t *testing.T) {
	h := newHarness(t, allowAll{})
	owner, _ := h.signUp("ada@example.com")
	visitor := h.client()

	var list pageList
	_, data := h.do(owner, http.MethodGet, "/api/bio-pages", nil)
	h.decode(data, &list)
	profileID := list.BioPages[0].ID

	resp, data := h.do(owner, http.MethodPost, "/api/links", map[string]string{
		"profileId": profileID, "platform": "github", "title": "Code", "url": "https://github.com/ada",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created struct {
		Link models.SocialLink `json:"link"`
	}
	h.decode(data, &created)

	resp, data = h.do(visitor, http.MethodGet, "/api/profile/ADA", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var public biopages.PublicPage
	h.decode(data, &public)
	require.Equal(t, "ada", public.Profile.PageName)
	require.Len(t, public.Links, 1)

	resp, data = h.do(visitor, http.MethodPost, "/api/links/"+created.Link.ID+"/click", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"url":"https://github.com/ada"`)

	resp, _ = h.do(visitor, http.MethodGet, "/api/links/"+created.Link.ID+"/go", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "https://github.com/ada", resp.Header.Get("Location"))

	resp, data = h.do(visitor, http.MethodGet, "/ada", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, string(data), "/api/links/"+created.Link.ID+"/go")

	resp, _ = h.do(visitor, http.MethodGet, "/nobody-here", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = h.do(visitor, http.MethodGet, "/api/analytics/"+profileID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary biopages.Analytics
	h.decode(data, &summary)
	require.Equal(t, int64(2), summary.ProfileViews)
	require.Equal(t, int64(2), summary.TotalClicks)
	require.Equal(t, int64(2), summary.Links[0].Clicks)

	resp, data = h.do(visitor, http.MethodGet, "/api/themes/"+profileID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"isPreset":true`)

	resp, _ = h.do(visitor, http.MethodGet, "/api/profile/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminSurface(t *testing.T) {
	h := newHarness(t, allowAll{})
	root, rootID := h.signUp("root@example.com")
	user, userID := h.signUp("user@example.com")
	require.NoError(t, h.db.Model(&models.User{}).Where("id = ?", rootID).Update("is_admin", true).Error)

	resp, _ := h.do(user, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = h.do(h.client(), http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data := h.do(root, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var stats admin.Stats
	h.decode(data, &stats)
	require.Equal(t, int64(2), stats.TotalUsers)
	require.Len(t, stats.UserGrowth, 30)

	resp, data = h.do(root, http.MethodGet, "/api/admin/users?search=user&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, string(data), "passwordHash")
	var users admin.UserList
	h.decode(data, &users)
	require.Len(t, users.Users, 1)
	require.Equal(t, 5, users.Pagination.Limit)

	resp, _ = h.do(root, http.MethodGet, "/api/admin/users?page=abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(root, http.MethodPatch, "/api/admin/users/"+rootID+"/admin", map[string]bool{"isAdmin": false})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = h.do(root, http.MethodPost, "/api/admin/users/bulk-delete", map[string][]string{"userIds": {userID, rootID}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, data = h.do(root, http.MethodGet, "/api/admin/users/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	require.True(t, strings.HasPrefix(string(data), "id,email,firstName,lastName,isAdmin,emailVerified,profileCount,createdAt\n"))

	resp, _ = h.do(root, http.MethodPost, "/api/admin/users/"+rootID+"/impersonate", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = h.do(root, http.MethodPost, "/api/admin/users/"+userID+"/impersonate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = h.do(root, http.MethodGet, "/api/auth/user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"email":"user@example.com"`)
	require.Contains(t, string(data), `"impersonatorId":"`+rootID+`"`)

	resp, _ = h.do(root, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "the impersonated user is not an admin")

	resp, data = h.do(root, http.MethodPost, "/api/admin/users/stop-impersonate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	resp, _ = h.do(root, http.MethodPost, "/api/admin/users/stop-impersonate", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = h.do(root, http.MethodGet, "/api/auth/user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"email":"root@example.com"`)

	resp, data = h.do(root, http.MethodDelete, "/api/admin/users/"+userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var remaining int64
	require.NoError(t, h.db.Model(&models.Profile{}).Where("user_id = ?", userID).Count(&remaining).Error)
	require.Zero(t, remaining)

	resp, _ = h.do(user, http.MethodGet, "/api/bio-pages", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "sessions of deleted users are revoked")

	resp, data = h.do(root, http.MethodGet, "/api/admin/activity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"activity":[]}`, string(data))
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarness(t, ratelimit.NewMemory())
	c := h.client()

	for i := 0; i < int(ratelimit.Auth.Limit); i++ {
		resp, _ := h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": "x@example.com", "password": "nope-nope"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, data := h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"email": "x@example.com", "password": "nope-nope"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, string(data))
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	for i := 0; i < int(ratelimit.Email.Limit); i++ {
		resp, _ = h.do(c, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "x@example.com"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ = h.do(c, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "x@example.com"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, allowAll{})
	c := h.client()

	resp, data := h.do(c, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Contains(t, string(data), `"database":"ok"`)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, data = h.do(c, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `linkfolio_http_requests_total{method="GET",route="/health",status="200"} 1`)

	resp, data = h.do(c, http.MethodGet, "/api/unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, string(data), "route not found")
}

func TestNewAppliesSessionDefaults(t *testing.T) {
	database := dbtest.New(t)
	srv, err := New(Config{Addr: ":8080", Session: config.SessionConfig{CookieSecure: true}, Database: database})
	require.NoError(t, err)

	require.Equal(t, ":8080", srv.httpServer.Addr)
	sm := srv.SessionManager()
	require.Equal(t, "linkfolio_session", sm.Cookie.Name)
	require.Equal(t, 7*24*time.Hour, sm.Lifetime)
	require.Equal(t, 24*time.Hour, sm.IdleTimeout)
	require.True(t, sm.Cookie.Secure)
	require.True(t, sm.Cookie.HttpOnly)
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := New(Config{Addr: ":8080"})
	require.Error(t, err)
}
