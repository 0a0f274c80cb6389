package models

import (
	"strings"
	"time"
)

// User represents an account that can sign in and own bio pages.
type User struct {
	Model
	Email                    string     `gorm:"uniqueIndex;not null;size:320" json:"email"`
	PasswordHash             *string    `json:"-"`
	FirstName                *string    `gorm:"size:100" json:"firstName"`
	LastName                 *string    `gorm:"size:100" json:"lastName"`
	ProfileImageURL          *string    `gorm:"size:2048" json:"profileImageUrl"`
	EmailVerified            bool       `gorm:"not null" json:"emailVerified"`
	EmailVerificationToken   *string    `gorm:"index;size:64" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	PasswordResetToken       *string    `gorm:"index;size:64" json:"-"`
	PasswordResetExpires     *time.Time `json:"-"`
	IsAdmin                  bool       `gorm:"not null" json:"isAdmin"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName joins the optional name fields, falling back to the email local part.
func (u *User) DisplayName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) != "" {
		parts = append(parts, strings.TrimSpace(*u.FirstName))
	}
	if u.LastName != nil && strings.TrimSpace(*u.LastName) != "" {
		parts = append(parts, strings.TrimSpace(*u.LastName))
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return EmailLocalPart(u.Email)
}

// EmailLocalPart returns everything before the last "@" of an address.
func EmailLocalPart(email string) string {
	if idx := strings.LastIndex(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}

// StringPtr returns a pointer to a trimmed copy of s, or nil when s is blank.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
