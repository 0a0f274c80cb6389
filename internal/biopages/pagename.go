package biopages

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"linkfolio/models"
)

const (
	// MaxPageNameLength bounds page names, including any numeric suffix.
	MaxPageNameLength = 50
	maxProbes         = 10000
)

var pageNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// ValidPageName reports whether name may be used as a page name.
func ValidPageName(name string) bool {
	return pageNamePattern.MatchString(name)
}

// Slugify lower-cases s and drops every character other than a-z, 0-9, "-" and "_".
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fallbackBase derives "user" plus the trailing alphanumerics of seed.
func fallbackBase(seed string) string {
	clean := Slugify(strings.ReplaceAll(seed, "-", ""))
	clean = strings.ReplaceAll(clean, "_", "")
	if len(clean) > 8 {
		clean = clean[len(clean)-8:]
	}
	return "user" + clean
}

func withSuffix(base string, n int) string {
	if n == 0 {
		if len(base) > MaxPageNameLength {
			return base[:MaxPageNameLength]
		}
		return base
	}
	suffix := strconv.Itoa(n)
	if len(base)+len(suffix) > MaxPageNameLength {
		base = base[:MaxPageNameLength-len(suffix)]
	}
	return base + suffix
}

func (r *Registry) pageNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Profile{}).Where("page_name_key = ?", models.PageNameKey(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check page name: %w", err)
	}
	return count > 0, nil
}

// AllocatePageName returns a free page name derived from desired. When desired
// has no usable characters the name is derived from seed, usually the user id.
// Taken names get an incrementing numeric suffix: "ada", "ada1", "ada2", ...
func (r *Registry) AllocatePageName(ctx context.Context, desired, seed string) (string, error) {
	base := Slugify(desired)
	if base == "" {
		base = fallbackBase(seed)
	}

	for n := 0; n < maxProbes; n++ {
		candidate := withSuffix(base, n)
		taken, err := r.pageNameTaken(ctx, candidate, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("allocate page name: no free name for base %q", base)
}
