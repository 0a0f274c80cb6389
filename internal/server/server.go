package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"linkfolio/internal/config"
	"linkfolio/internal/handlers"
	applog "linkfolio/internal/log"
	"linkfolio/internal/metrics"
	"linkfolio/internal/sessions"
)

const sessionCleanupInterval = 30 * time.Minute

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr     string
	Session  config.SessionConfig
	Database *gorm.DB
	// Handlers carries the domain services. Sessions and Database are filled in by New.
	Handlers handlers.Dependencies
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config         Config
	httpServer     *http.Server
	sessionManager *scs.SessionManager
	sessionStore   *sessions.Store
	cleanupCtx     context.Context
	stopCleanup    context.CancelFunc
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Database == nil {
		return nil, errors.New("server: database is required")
	}

	applog.Debug(context.Background(), "initializing server",
		"addr", cfg.Addr,
		"sessionLifetime", cfg.Session.Lifetime.String(),
		"sessionIdleTimeout", cfg.Session.IdleTimeout.String(),
		"sessionCookie", cfg.Session.CookieName,
	)

	sessionCfg := cfg.Session
	if sessionCfg.Lifetime <= 0 {
		applog.Debug(context.Background(), "session lifetime not provided, using default")
		sessionCfg.Lifetime = 7 * 24 * time.Hour
	}
	if sessionCfg.IdleTimeout <= 0 || sessionCfg.IdleTimeout > sessionCfg.Lifetime {
		sessionCfg.IdleTimeout = min(24*time.Hour, sessionCfg.Lifetime)
	}
	if strings.TrimSpace(sessionCfg.CookieName) == "" {
		applog.Debug(context.Background(), "session cookie name not provided, using default")
		sessionCfg.CookieName = "linkfolio_session"
	}

	sessionManager := sessions.NewManager(sessionCfg, cfg.Database)
	store, _ := sessionManager.Store.(*sessions.Store)

	applog.Debug(context.Background(), "session manager configured",
		"cookieName", sessionCfg.CookieName,
		"cookieDomain", sessionCfg.CookieDomain,
		"cookieSecure", sessionCfg.CookieSecure,
	)

	deps := cfg.Handlers
	deps.Sessions = sessionManager
	deps.Database = cfg.Database
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	handlers.Configure(deps)

	applog.Debug(context.Background(), "handler dependencies configured")

	handler := newRouter(sessionManager, deps.Metrics)

	applog.Debug(context.Background(), "http handler chain prepared")

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		cleanupCtx:     cleanupCtx,
		stopCleanup:    stopCleanup,
		sessionManager: sessionManager,
		sessionStore:   store,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start prunes expired sessions in the background and serves HTTP traffic
// until Stop is called.
func (s *Server) Start() error {
	if s.sessionStore != nil {
		s.sessionStore.StartCleanup(s.cleanupCtx, sessionCleanupInterval)
	}
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	s.stopCleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// SessionManager exposes the session manager, enabling integration tests.
func (s *Server) SessionManager() *scs.SessionManager {
	return s.sessionManager
}
