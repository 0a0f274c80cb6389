package mail

import (
	"fmt"
	"html"
	"net/url"
)

// VerificationMessage builds the email asking a new user to confirm their address.
func VerificationMessage(baseURL, to, name, token string) Message {
	link := fmt.Sprintf("%s/api/auth/verify-email?token=%s", baseURL, url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Text: fmt.Sprintf("Hi %s,\n\nConfirm your email address to publish your page:\n%s\n\nThe link expires in 24 hours.\n",
			name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email address to publish your page:</p><p><a href="%s">Verify email</a></p><p>The link expires in 24 hours.</p>`,
			html.EscapeString(name), html.EscapeString(link)),
	}
}

// PasswordResetMessage builds the email carrying a password reset link.
func PasswordResetMessage(baseURL, to, name, token string) Message {
	link := fmt.Sprintf("%s/reset-password?token=%s", baseURL, url.QueryEscape(token))
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Hi %s,\n\nUse this link to choose a new password:\n%s\n\nThe link expires in 1 hour. If you did not ask for a reset you can ignore this email.\n",
			name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Use this link to choose a new password:</p><p><a href="%s">Reset password</a></p><p>The link expires in 1 hour. If you did not ask for a reset you can ignore this email.</p>`,
			html.EscapeString(name), html.EscapeString(link)),
	}
}
