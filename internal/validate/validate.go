// Package validate collects field-level input errors.
package validate

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"linkfolio/internal/apperr"
)

// Errors maps a field name to its first error message.
type Errors map[string]string

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Check records msg for field when ok is false.
func (e Errors) Check(ok bool, field, msg string) {
	if !ok {
		e.Add(field, msg)
	}
}

// Err returns nil when no errors were recorded, otherwise a validation error.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return apperr.Validation("validation failed", map[string]string(e))
}

// Email reports whether s is a bare email address.
func Email(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// WebURL reports whether s is an absolute http or https URL.
func WebURL(s string) bool {
	return hasScheme(s, "http", "https")
}

// LinkURL reports whether s is a URL a public link may point at.
func LinkURL(s string) bool {
	return hasScheme(s, "http", "https", "mailto", "tel")
}

func hasScheme(s string, schemes ...string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range schemes {
		if scheme != allowed {
			continue
		}
		if allowed == "http" || allowed == "https" {
			return u.Host != ""
		}
		return u.Opaque != "" || u.Path != ""
	}
	return false
}

// Length reports whether s has between min and max runes inclusive.
func Length(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}
