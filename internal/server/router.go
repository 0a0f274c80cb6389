package server

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkfolio/internal/handlers"
	applog "linkfolio/internal/log"
	"linkfolio/internal/metrics"
	"linkfolio/internal/ratelimit"
)

func newRouter(sm *scs.SessionManager, m *metrics.Metrics) http.Handler {
	applog.Debug(context.Background(), "registering http routes")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(m.Middleware)
	r.Use(sm.LoadAndSave)

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.NotFound(handlers.NotFound)
		r.MethodNotAllowed(handlers.MethodNotAllowed)

		r.Route("/auth", func(r chi.Router) {
			authLimited := r.With(handlers.RateLimit(ratelimit.Auth))
			emailLimited := r.With(handlers.RateLimit(ratelimit.Email))

			authLimited.Post("/register", handlers.Register)
			authLimited.Post("/login", handlers.Login)
			authLimited.Get("/verify-email", handlers.VerifyEmail)
			authLimited.Post("/reset-password", handlers.ResetPassword)
			emailLimited.Post("/forgot-password", handlers.ForgotPassword)
			emailLimited.Post("/resend-verification", handlers.ResendVerification)
			r.Post("/logout", handlers.Logout)

			r.Group(func(r chi.Router) {
				r.Use(handlers.RequireAuthentication)
				r.Get("/user", handlers.CurrentUser)
				r.Patch("/user", handlers.UpdateCurrentUser)
				r.With(handlers.RateLimit(ratelimit.Auth)).Post("/change-password", handlers.ChangePassword)
			})
		})

		r.Route("/bio-pages", func(r chi.Router) {
			r.Use(handlers.RequireAuthentication)
			r.Get("/", handlers.ListBioPages)
			r.Post("/", handlers.CreateBioPage)
			r.Get("/{id}", handlers.GetBioPage)
			r.Patch("/{id}", handlers.UpdateBioPage)
			r.Delete("/{id}", handlers.DeleteBioPage)
			r.Post("/{id}/set-default", handlers.SetDefaultBioPage)
			r.Get("/{id}/links", handlers.BioPageLinks)
			r.Get("/{id}/themes", handlers.BioPageThemes)
		})

		r.Get("/profile/{pageName}", handlers.PublicProfile)
		r.With(handlers.RequireAuthentication).Patch("/profile/{id}", handlers.UpdateProfile)
		r.Get("/analytics/{profileId}", handlers.Analytics)

		r.Route("/links", func(r chi.Router) {
			r.Post("/{id}/click", handlers.ClickLink)
			r.Get("/{id}/go", handlers.FollowLink)
			r.Group(func(r chi.Router) {
				r.Use(handlers.RequireAuthentication)
				r.Post("/", handlers.CreateLink)
				r.Patch("/reorder", handlers.ReorderLinks)
				r.Post("/reorder", handlers.ReorderLinks)
				r.Patch("/{id}", handlers.UpdateLink)
				r.Delete("/{id}", handlers.DeleteLink)
			})
		})

		r.Route("/themes", func(r chi.Router) {
			r.Get("/presets", handlers.ThemePresets)
			r.Get("/{profileId}", handlers.ActiveTheme)
			r.Group(func(r chi.Router) {
				r.Use(handlers.RequireAuthentication)
				r.Post("/", handlers.CreateTheme)
				r.Patch("/{id}", handlers.UpdateTheme)
				r.Delete("/{id}", handlers.DeleteTheme)
				r.Post("/{id}/activate", handlers.ActivateTheme)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(handlers.RequireAuthentication)
			r.Post("/users/stop-impersonate", handlers.AdminStopImpersonate)
			r.Group(func(r chi.Router) {
				r.Use(handlers.RequireAdmin)
				r.Get("/stats", handlers.AdminStats)
				r.Get("/users", handlers.AdminUsers)
				r.Get("/profiles", handlers.AdminProfiles)
				r.Get("/users/export", handlers.AdminExportUsers)
				r.Get("/profiles/export", handlers.AdminExportProfiles)
				r.Post("/users/bulk-delete", handlers.AdminBulkDelete)
				r.Post("/users/bulk-admin", handlers.AdminBulkAdmin)
				r.Delete("/users/{id}", handlers.AdminDeleteUser)
				r.Patch("/users/{id}/admin", handlers.AdminToggleAdmin)
				r.Post("/users/{id}/impersonate", handlers.AdminImpersonate)
				r.Get("/system/health", handlers.AdminSystemHealth)
				r.Get("/activity", handlers.AdminActivity)
			})
		})
	})

	r.Get("/{pageName}", handlers.PublicPage)

	applog.Debug(context.Background(), "http routes registered")
	return r
}

// requestLogger tags the request context with its id and logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := applog.WithAttrs(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		applog.Info(ctx, "request completed",
			"method", r.Method,
			"route", metrics.RoutePattern(r),
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
