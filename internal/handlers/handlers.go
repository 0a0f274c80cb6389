// Package handlers implements the HTTP API and the public page.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"linkfolio/internal/admin"
	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	"linkfolio/internal/cache"
	"linkfolio/internal/identity"
	"linkfolio/internal/links"
	applog "linkfolio/internal/log"
	"linkfolio/internal/metrics"
	"linkfolio/internal/ratelimit"
	"linkfolio/internal/themes"
	"linkfolio/internal/tracking"
	"linkfolio/models"
)

const maxBodyBytes = 1 << 20

// Dependencies are the collaborators shared by the HTTP handlers.
type Dependencies struct {
	Sessions       *scs.SessionManager
	Database       *gorm.DB
	Identity       *identity.Service
	Pages          *biopages.Registry
	Links          *links.Manager
	Themes         *themes.Store
	Admin          *admin.Service
	Limiter        ratelimit.Limiter
	Cache          cache.Cache
	CacheTTL       time.Duration
	Metrics        *metrics.Metrics
	Tracker        tracking.Reporter
	TrustedProxies []string
}

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	accounts       *identity.Service
	pages          *biopages.Registry
	linkManager    *links.Manager
	themeStore     *themes.Store
	adminService   *admin.Service
	limiter        ratelimit.Limiter
	pageCache      cache.Cache
	pageCacheTTL   time.Duration
	appMetrics     *metrics.Metrics
	tracker        tracking.Reporter
	trustedProxies []netip.Prefix
)

// Configure installs the shared dependencies used by the HTTP handlers.
// Optional collaborators fall back to their no-op implementations.
func Configure(deps Dependencies) {
	sessionManager = deps.Sessions
	database = deps.Database
	accounts = deps.Identity
	pages = deps.Pages
	linkManager = deps.Links
	themeStore = deps.Themes
	adminService = deps.Admin

	limiter = deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemory()
	}
	pageCache = deps.Cache
	if pageCache == nil {
		pageCache = cache.Noop{}
	}
	pageCacheTTL = deps.CacheTTL
	if pageCacheTTL <= 0 {
		pageCacheTTL = 5 * time.Minute
	}
	appMetrics = deps.Metrics
	if appMetrics == nil {
		appMetrics = metrics.New()
	}
	tracker = deps.Tracker
	if tracker == nil {
		tracker = tracking.Noop{}
	}
	trustedProxies = parseProxies(deps.TrustedProxies)
}

// parseProxies accepts CIDRs and bare addresses. Invalid entries are skipped.
func parseProxies(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		applog.Warn(context.Background(), "ignoring invalid trusted proxy", "entry", entry)
	}
	return prefixes
}

func isTrustedProxy(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message           string            `json:"message"`
	Errors            map[string]string `json:"errors,omitempty"`
	NeedsVerification bool              `json:"needsVerification,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error(r.Context(), "failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, messageResponse{Message: message})
}

// writeError maps err to its status code. Internal errors are logged and
// reported, and never leak their cause to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	status := appErr.Kind.Status()

	resp := errorResponse{Message: appErr.Message, Errors: appErr.Fields}
	switch appErr.Kind {
	case apperr.KindInternal:
		applog.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		tracker.Report(r.Context(), err, map[string]string{"method": r.Method, "path": r.URL.Path})
	case apperr.KindRateLimited:
		seconds := int(math.Ceil(appErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprint(seconds))
	default:
		applog.Debug(r.Context(), "request rejected", "status", status, "reason", appErr.Message)
	}
	if errors.Is(err, identity.ErrNeedsVerification) {
		resp.NeedsVerification = true
	}
	writeJSON(w, r, status, resp)
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required", nil)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body is too large", nil)
		}
		return apperr.Validation("request body must be valid JSON", nil)
	}
	return nil
}

// clientIP returns the address rate limits are keyed on. X-Forwarded-For is
// honoured only when the direct peer is a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if isTrustedProxy(host) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return host
}

func pageCacheKey(pageName string) string {
	return cache.PageKey(strings.ToLower(pageName))
}

// invalidatePages drops cached public payloads of the given profiles.
// Failures only mean stale content until the entry expires.
func invalidatePages(ctx context.Context, profileIDs ...string) {
	if len(profileIDs) == 0 || database == nil {
		return
	}
	var names []string
	if err := database.WithContext(ctx).Model(&models.Profile{}).Where("id IN ?", profileIDs).Pluck("page_name", &names).Error; err != nil {
		applog.Warn(ctx, "failed to resolve pages for cache invalidation", "error", err)
		return
	}
	invalidatePageNames(ctx, names...)
}

func invalidatePageNames(ctx context.Context, names ...string) {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			keys = append(keys, pageCacheKey(name))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := pageCache.Delete(ctx, keys...); err != nil {
		applog.Warn(ctx, "failed to invalidate page cache", "keys", keys, "error", err)
	}
}

// NotFound answers unknown API routes with a JSON 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperr.NotFound("route not found"))
}

// MethodNotAllowed answers known API routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
