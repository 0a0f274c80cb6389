// Package sessions wires scs to the database and keeps the signed-in user,
// plus the admin being impersonated from, in the session.
package sessions

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	"linkfolio/internal/config"
)

const (
	UserIDKey       = "auth:user:id"
	ImpersonatorKey = "auth:impersonator:id"
)

var (
	ErrAlreadyImpersonating = apperr.Conflict("already impersonating a user, stop first")
	ErrSelfImpersonation    = apperr.Validation("cannot impersonate yourself", nil)
	ErrNotImpersonating     = apperr.Validation("not impersonating any user", nil)
	ErrNotSignedIn          = apperr.Unauthenticated("authentication required")
)

// NewManager builds a session manager storing sessions in db.
func NewManager(cfg config.SessionConfig, db *gorm.DB) *scs.SessionManager {
	sm := scs.New()
	sm.Store = NewStore(db)
	sm.Codec = JSONCodec{}
	sm.Lifetime = cfg.Lifetime
	sm.IdleTimeout = cfg.IdleTimeout
	sm.Cookie.Name = cfg.CookieName
	sm.Cookie.Domain = cfg.CookieDomain
	sm.Cookie.Secure = cfg.CookieSecure
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	return sm
}

// UserID returns the effective user of the session, or "".
func UserID(ctx context.Context, sm *scs.SessionManager) string {
	if sm == nil {
		return ""
	}
	return sm.GetString(ctx, UserIDKey)
}

// Impersonator returns the admin id while an impersonation is active, or "".
func Impersonator(ctx context.Context, sm *scs.SessionManager) string {
	if sm == nil {
		return ""
	}
	return sm.GetString(ctx, ImpersonatorKey)
}

// Login binds userID to a freshly issued token.
func Login(ctx context.Context, sm *scs.SessionManager, userID string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Remove(ctx, ImpersonatorKey)
	sm.Put(ctx, UserIDKey, userID)
	return nil
}

// Logout destroys the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// StartImpersonation switches the effective user to targetID and remembers
// the admin. Nested impersonation is rejected.
func StartImpersonation(ctx context.Context, sm *scs.SessionManager, targetID string) error {
	adminID := UserID(ctx, sm)
	if adminID == "" {
		return ErrNotSignedIn
	}
	if Impersonator(ctx, sm) != "" {
		return ErrAlreadyImpersonating
	}
	if adminID == targetID {
		return ErrSelfImpersonation
	}
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, ImpersonatorKey, adminID)
	sm.Put(ctx, UserIDKey, targetID)
	return nil
}

// StopImpersonation restores the admin as the effective user and returns its id.
func StopImpersonation(ctx context.Context, sm *scs.SessionManager) (string, error) {
	adminID := Impersonator(ctx, sm)
	if adminID == "" {
		return "", ErrNotImpersonating
	}
	if err := sm.RenewToken(ctx); err != nil {
		return "", err
	}
	sm.Remove(ctx, ImpersonatorKey)
	sm.Put(ctx, UserIDKey, adminID)
	return adminID, nil
}
