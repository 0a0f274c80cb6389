package handlers

import (
	"context"
	"errors"
	"net/http"

	"linkfolio/internal/apperr"
	"linkfolio/internal/identity"
	applog "linkfolio/internal/log"
	"linkfolio/internal/sessions"
	"linkfolio/internal/validate"
	"linkfolio/models"
)

const (
	verifiedRedirect = "/dashboard"
	genericResetMsg  = "If an account exists for that email, a password reset link has been sent."
	genericResendMsg = "If that account still needs verification, a new link has been sent."
)

type userContextKey struct{}

var errAuthRequired = apperr.Unauthenticated("authentication required")

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// currentUser returns the user loaded by RequireAuthentication.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey{}).(*models.User)
	return user
}

// RequireAuthentication loads the session's effective user or responds 401.
// A session pointing at a deleted user is destroyed.
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := sessions.UserID(r.Context(), sessionManager)
		if userID == "" {
			writeError(w, r, errAuthRequired)
			return
		}
		user, err := accounts.Get(r.Context(), userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				applog.Debug(r.Context(), "session user no longer exists", "user_id", userID)
				if err := sessions.Logout(r.Context(), sessionManager); err != nil {
					applog.Error(r.Context(), "failed to destroy session", "error", err)
				}
				writeError(w, r, errAuthRequired)
				return
			}
			writeError(w, r, err)
			return
		}
		ctx := applog.WithAttrs(r.Context(), "user_id", user.ID)
		next.ServeHTTP(w, r.WithContext(withUser(ctx, user)))
	})
}

// RequireAdmin must run after RequireAuthentication.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			writeError(w, r, errAuthRequired)
			return
		}
		if !user.IsAdmin {
			writeError(w, r, apperr.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type registerResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Register creates an account and sends the verification email.
func Register(w http.ResponseWriter, r *http.Request) {
	var in identity.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	appMetrics.Registrations.Inc()
	writeJSON(w, r, http.StatusOK, registerResponse{
		UserID:  user.ID,
		Message: "Registration successful. Please check your email to verify your account.",
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

// Login signs a user in with email and password.
func Login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := accounts.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessions.Login(r.Context(), sessionManager, user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	applog.Info(r.Context(), "user signed in", "user_id", user.ID)
	writeJSON(w, r, http.StatusOK, userResponse{User: user})
}

// Logout destroys the current session.
func Logout(w http.ResponseWriter, r *http.Request) {
	if err := sessions.Logout(r.Context(), sessionManager); err != nil {
		applog.Error(r.Context(), "failed to destroy session", "error", err)
	}
	writeMessage(w, r, http.StatusOK, "Logged out")
}

type verifyResponse struct {
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo"`
}

// VerifyEmail consumes a verification token from the query string.
func VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	appMetrics.Verifications.Inc()
	applog.Debug(r.Context(), "verification accepted", "user_id", user.ID)
	writeJSON(w, r, http.StatusOK, verifyResponse{Message: "Email verified successfully", RedirectTo: verifiedRedirect})
}

type emailRequest struct {
	Email string `json:"email"`
}

func decodeEmail(w http.ResponseWriter, r *http.Request) (string, error) {
	var in emailRequest
	if err := decodeJSON(w, r, &in); err != nil {
		return "", err
	}
	email := identity.NormalizeEmail(in.Email)
	if !validate.Email(email) {
		return "", apperr.Validation("validation failed", map[string]string{"email": "a valid email address is required"})
	}
	return email, nil
}

// ForgotPassword sends a reset link. The response does not reveal whether the account exists.
func ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email, err := decodeEmail(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := accounts.RequestPasswordReset(r.Context(), email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, genericResetMsg)
}

// ResendVerification sends a fresh verification link. The response does not
// reveal whether the account exists.
func ResendVerification(w http.ResponseWriter, r *http.Request) {
	email, err := decodeEmail(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := accounts.ResendVerification(r.Context(), email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, genericResendMsg)
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword sets a new password using a reset token.
func ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := accounts.ResetPassword(r.Context(), in.Token, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	if sessions.UserID(r.Context(), sessionManager) != "" {
		if err := sessionManager.RenewToken(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to renew session token", "error", err)
		}
	}
	writeMessage(w, r, http.StatusOK, "Password has been reset. You can now sign in.")
}

type currentUserResponse struct {
	User           *models.User `json:"user"`
	Impersonating  bool         `json:"impersonating"`
	ImpersonatorID string       `json:"impersonatorId,omitempty"`
}

// CurrentUser returns the signed-in user and any active impersonation.
func CurrentUser(w http.ResponseWriter, r *http.Request) {
	impersonator := sessions.Impersonator(r.Context(), sessionManager)
	writeJSON(w, r, http.StatusOK, currentUserResponse{
		User:           currentUser(r),
		Impersonating:  impersonator != "",
		ImpersonatorID: impersonator,
	})
}

// UpdateCurrentUser applies a partial update to the caller's account.
func UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var patch identity.AccountPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := accounts.UpdateAccount(r.Context(), currentUser(r).ID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, userResponse{User: user})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the caller's password and rotates the session token.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := accounts.ChangePassword(r.Context(), currentUser(r).ID, in.CurrentPassword, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		applog.Error(r.Context(), "failed to renew session token", "error", err)
	}
	writeMessage(w, r, http.StatusOK, "Password updated")
}
