// Package links manages the ordered link list of each bio page.
package links

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	applog "linkfolio/internal/log"
	"linkfolio/internal/ownership"
	"linkfolio/internal/validate"
	"linkfolio/models"
)

// Manager is the link store. Every mutation requires the caller to own the
// link's profile.
type Manager struct {
	db    *gorm.DB
	guard *ownership.Guard
}

func New(db *gorm.DB) *Manager {
	return &Manager{db: db, guard: ownership.New(db)}
}

// NewLink holds the fields accepted when creating a link. IsActive defaults to true.
type NewLink struct {
	ProfileID   string  `json:"profileId"`
	Platform    string  `json:"platform"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Platform    *string `json:"platform"`
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func checkPlatform(errs validate.Errors, platform string) {
	errs.Check(validate.Length(platform, 1, 50), "platform", "platform must be 1-50 characters")
}

func checkTitle(errs validate.Errors, title string) {
	errs.Check(validate.Length(title, 1, 100), "title", "title must be 1-100 characters")
}

func checkURL(errs validate.Errors, url string) {
	errs.Check(validate.LinkURL(url), "url", "url must be an http, https, mailto or tel URL")
}

func checkDescription(errs validate.Errors, description *string) {
	if description != nil {
		errs.Check(validate.Length(*description, 0, 500), "description", "description must be at most 500 characters")
	}
}

// List returns the links of a profile owned by userID in display order.
func (m *Manager) List(ctx context.Context, userID, profileID string) ([]models.SocialLink, error) {
	if err := m.guard.Require(ctx, ownership.Profile, profileID, userID); err != nil {
		return nil, err
	}
	links := []models.SocialLink{}
	err := m.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("sort_order ASC").Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// Create appends a link to the end of the profile's list.
func (m *Manager) Create(ctx context.Context, userID string, in NewLink) (*models.SocialLink, error) {
	in.ProfileID = strings.TrimSpace(in.ProfileID)
	in.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	if in.Description != nil {
		in.Description = models.StringPtr(*in.Description)
	}

	errs := validate.Errors{}
	errs.Check(in.ProfileID != "", "profileId", "profile id is required")
	checkPlatform(errs, in.Platform)
	checkTitle(errs, in.Title)
	checkURL(errs, in.URL)
	checkDescription(errs, in.Description)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := m.guard.Require(ctx, ownership.Profile, in.ProfileID, userID); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	link := &models.SocialLink{
		ProfileID:   in.ProfileID,
		Platform:    in.Platform,
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		IsActive:    active,
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder int
		if err := tx.Model(&models.SocialLink{}).
			Where("profile_id = ?", in.ProfileID).
			Select("COALESCE(MAX(sort_order), 0)").
			Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("find last position: %w", err)
		}
		link.SortOrder = maxOrder + 1
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (m *Manager) load(ctx context.Context, id string) (*models.SocialLink, error) {
	link := &models.SocialLink{}
	err := m.db.WithContext(ctx).Where("id = ?", id).Take(link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("link not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	return link, nil
}

// Update applies patch to a link owned by userID.
func (m *Manager) Update(ctx context.Context, userID, id string, patch Patch) (*models.SocialLink, error) {
	if err := m.guard.Require(ctx, ownership.Link, id, userID); err != nil {
		return nil, err
	}

	errs := validate.Errors{}
	updates := map[string]any{}
	if patch.Platform != nil {
		platform := strings.ToLower(strings.TrimSpace(*patch.Platform))
		checkPlatform(errs, platform)
		updates["platform"] = platform
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		checkTitle(errs, title)
		updates["title"] = title
	}
	if patch.URL != nil {
		url := strings.TrimSpace(*patch.URL)
		checkURL(errs, url)
		updates["url"] = url
	}
	if patch.Description != nil {
		description := models.StringPtr(*patch.Description)
		checkDescription(errs, description)
		updates["description"] = description
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := m.db.WithContext(ctx).Model(&models.SocialLink{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update link: %w", err)
		}
	}
	return m.load(ctx, id)
}

// Delete removes a link owned by userID and returns it.
func (m *Manager) Delete(ctx context.Context, userID, id string) (*models.SocialLink, error) {
	if err := m.guard.Require(ctx, ownership.Link, id, userID); err != nil {
		return nil, err
	}
	link, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).Delete(&models.SocialLink{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("delete link: %w", err)
	}
	return link, nil
}

// Reorder assigns positions 1..N to the links in the order given. Ownership of
// every link is checked before anything is written, and all positions are
// written in one transaction. It returns the ids of the affected profiles.
func (m *Manager) Reorder(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("validation failed", map[string]string{"linkIds": "at least one link id is required"})
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, apperr.Validation("validation failed", map[string]string{"linkIds": "link ids must be unique"})
		}
		seen[id] = struct{}{}
	}

	if err := m.guard.RequireAll(ctx, ownership.Link, ids, userID); err != nil {
		return nil, err
	}

	var profileIDs []string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&models.SocialLink{}).Where("id = ?", id).Update("sort_order", i+1)
			if res.Error != nil {
				return fmt.Errorf("reorder link %s: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("link not found")
			}
		}
		return tx.Model(&models.SocialLink{}).
			Where("id IN ?", ids).
			Distinct().Pluck("profile_id", &profileIDs).Error
	})
	if err != nil {
		return nil, err
	}
	return profileIDs, nil
}

// RecordClick counts a click on a link and on its profile in one transaction,
// returning the link so the caller can redirect to its URL.
func (m *Manager) RecordClick(ctx context.Context, id string) (*models.SocialLink, error) {
	link := &models.SocialLink{}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("link not found")
			}
			return fmt.Errorf("load link: %w", err)
		}
		if err := tx.Model(&models.SocialLink{}).Where("id = ?", id).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1)).Error; err != nil {
			return fmt.Errorf("increment link clicks: %w", err)
		}
		if err := tx.Model(&models.Profile{}).Where("id = ?", link.ProfileID).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1)).Error; err != nil {
			return fmt.Errorf("increment profile clicks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	link.Clicks++
	applog.Debug(ctx, "link click recorded", "link_id", link.ID, "profile_id", link.ProfileID)
	return link, nil
}
