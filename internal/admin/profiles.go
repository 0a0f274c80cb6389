package admin

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProfileQuery filters the profile listing.
type ProfileQuery listQuery

var (
	profileSortColumns = map[string]string{
		"createdAt":    "profiles.created_at",
		"updatedAt":    "profiles.updated_at",
		"pageName":     "profiles.page_name",
		"displayName":  "profiles.display_name",
		"profileViews": "profiles.profile_views",
		"clicks":       "profiles.clicks",
	}
	profileFilters = []string{"all", "default", "secondary"}
)

// ProfileRow is a bio page with its owner, as shown to admins.
type ProfileRow struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	PageName        string    `json:"pageName"`
	DisplayName     string    `json:"displayName"`
	Bio             string    `json:"bio"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	IsDefault       bool      `json:"isDefault"`
	ProfileViews    int64     `json:"profileViews"`
	Clicks          int64     `json:"clicks"`
	OwnerEmail      string    `json:"ownerEmail"`
	LinkCount       int64     `json:"linkCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const profileColumns = "profiles.id, profiles.user_id, profiles.page_name, profiles.display_name, profiles.bio, " +
	"profiles.profile_image_url, profiles.is_default, profiles.profile_views, profiles.clicks, " +
	"profiles.created_at, profiles.updated_at, COALESCE(users.email, '') AS owner_email, " +
	"(SELECT COUNT(*) FROM social_links WHERE social_links.profile_id = profiles.id) AS link_count"

type ProfileList struct {
	Profiles   []ProfileRow `json:"profiles"`
	Pagination Pagination   `json:"pagination"`
}

func (s *Service) profileScope(ctx context.Context, q listQuery) *gorm.DB {
	query := s.db.WithContext(ctx).Table("profiles").
		Joins("LEFT JOIN users ON users.id = profiles.user_id")
	if q.Search != "" {
		pattern := likePattern(q.Search)
		query = query.Where("LOWER(profiles.page_name) LIKE ? OR LOWER(profiles.display_name) LIKE ? OR LOWER(profiles.bio) LIKE ?",
			pattern, pattern, pattern)
	}
	switch q.FilterBy {
	case "default":
		query = query.Where("profiles.is_default = ?", true)
	case "secondary":
		query = query.Where("profiles.is_default = ?", false)
	}
	return query
}

// ListProfiles returns one page of bio pages matching q.
func (s *Service) ListProfiles(ctx context.Context, in ProfileQuery) (*ProfileList, error) {
	q, order, err := listQuery(in).resolve(profileSortColumns, profileFilters)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.profileScope(ctx, q).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	rows := []ProfileRow{}
	if err := s.profileScope(ctx, q).
		Select(profileColumns).
		Order(order).Order("profiles.id").
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return &ProfileList{Profiles: rows, Pagination: paginate(q.Page, q.Limit, total)}, nil
}
