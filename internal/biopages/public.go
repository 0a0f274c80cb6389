package biopages

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	"linkfolio/models"
)

// PublicPage is what visitors see: the page and its active links in order.
type PublicPage struct {
	Profile models.Profile      `json:"profile"`
	Links   []models.SocialLink `json:"links"`
}

// FindPublic loads a page by name, matching case-insensitively.
func (r *Registry) FindPublic(ctx context.Context, pageName string) (*PublicPage, error) {
	profile := models.Profile{}
	err := r.db.WithContext(ctx).
		Where("page_name_key = ?", models.PageNameKey(pageName)).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load public page: %w", err)
	}

	links := []models.SocialLink{}
	err = r.db.WithContext(ctx).
		Where("profile_id = ? AND is_active = ?", profile.ID, true).
		Order("sort_order ASC").Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("load public links: %w", err)
	}
	return &PublicPage{Profile: profile, Links: links}, nil
}

// LinkStats summarizes one link of a page.
type LinkStats struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Platform         string  `json:"platform"`
	URL              string  `json:"url"`
	IsActive         bool    `json:"isActive"`
	Clicks           int64   `json:"clicks"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

// Analytics summarizes the counters of a page.
type Analytics struct {
	ProfileID    string      `json:"profileId"`
	PageName     string      `json:"pageName"`
	ProfileViews int64       `json:"profileViews"`
	TotalClicks  int64       `json:"totalClicks"`
	Links        []LinkStats `json:"links"`
}

// Analytics returns view and per-link click counters for a page. Click-through
// rate is clicks divided by page views, zero when the page has no views.
func (r *Registry) Analytics(ctx context.Context, profileID string) (*Analytics, error) {
	profile, err := r.load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var links []models.SocialLink
	err = r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("sort_order ASC").Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	out := &Analytics{
		ProfileID:    profile.ID,
		PageName:     profile.PageName,
		ProfileViews: profile.ProfileViews,
		TotalClicks:  profile.Clicks,
		Links:        make([]LinkStats, 0, len(links)),
	}
	for _, link := range links {
		stats := LinkStats{
			ID:       link.ID,
			Title:    link.Title,
			Platform: link.Platform,
			URL:      link.URL,
			IsActive: link.IsActive,
			Clicks:   link.Clicks,
		}
		if profile.ProfileViews > 0 {
			stats.ClickThroughRate = float64(link.Clicks) / float64(profile.ProfileViews)
		}
		out.Links = append(out.Links, stats)
	}
	return out, nil
}
