package admin

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	"linkfolio/internal/biopages"
	applog "linkfolio/internal/log"
	"linkfolio/internal/sessions"
	"linkfolio/models"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

var (
	ErrSelfDelete = apperr.Forbidden("you cannot delete your own account")
	ErrSelfDemote = apperr.Forbidden("you cannot remove your own admin access")
	ErrNoTargets  = apperr.Validation("validation failed", map[string]string{"userIds": "at least one user id is required"})
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func paginate(page, limit int, total int64) Pagination {
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// listQuery holds the paging and ordering options shared by the listings.
type listQuery struct {
	Page      int
	Limit     int
	Search    string
	FilterBy  string
	SortBy    string
	SortOrder string
}

// resolve applies defaults and maps sortBy through columns.
func (q listQuery) resolve(columns map[string]string, filters []string) (listQuery, string, error) {
	errs := map[string]string{}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		errs["limit"] = "limit must be between 1 and 100"
	}
	q.Search = strings.TrimSpace(q.Search)

	if q.FilterBy == "" {
		q.FilterBy = "all"
	}
	if !contains(filters, q.FilterBy) {
		errs["filterBy"] = "must be one of " + strings.Join(filters, ", ")
	}

	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}
	column, ok := columns[q.SortBy]
	if !ok {
		errs["sortBy"] = "unsupported sort key"
	}

	q.SortOrder = strings.ToLower(q.SortOrder)
	switch q.SortOrder {
	case "":
		q.SortOrder = "desc"
	case "asc", "desc":
	default:
		errs["sortOrder"] = "must be asc or desc"
	}

	if len(errs) > 0 {
		return q, "", apperr.Validation("validation failed", errs)
	}
	return q, column + " " + strings.ToUpper(q.SortOrder), nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func likePattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// UserQuery filters the user listing.
type UserQuery listQuery

var (
	userSortColumns = map[string]string{
		"createdAt": "users.created_at",
		"updatedAt": "users.updated_at",
		"email":     "users.email",
		"firstName": "users.first_name",
		"lastName":  "users.last_name",
	}
	userFilters = []string{"all", "admin", "user", "verified", "unverified"}
)

// UserRow is a user as shown to admins. It never carries secrets.
type UserRow struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	EmailVerified   bool      `json:"emailVerified"`
	IsAdmin         bool      `json:"isAdmin"`
	ProfileCount    int64     `json:"profileCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const userColumns = "users.id, users.email, users.first_name, users.last_name, users.profile_image_url, " +
	"users.email_verified, users.is_admin, users.created_at, users.updated_at, " +
	"(SELECT COUNT(*) FROM profiles WHERE profiles.user_id = users.id) AS profile_count"

type UserList struct {
	Users      []UserRow  `json:"users"`
	Pagination Pagination `json:"pagination"`
}

func (s *Service) userScope(ctx context.Context, q listQuery) *gorm.DB {
	query := s.db.WithContext(ctx).Table("users")
	if q.Search != "" {
		pattern := likePattern(q.Search)
		query = query.Where("LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?",
			pattern, pattern, pattern)
	}
	switch q.FilterBy {
	case "admin":
		query = query.Where("users.is_admin = ?", true)
	case "user":
		query = query.Where("users.is_admin = ?", false)
	case "verified":
		query = query.Where("users.email_verified = ?", true)
	case "unverified":
		query = query.Where("users.email_verified = ?", false)
	}
	return query
}

// ListUsers returns one page of users matching q.
func (s *Service) ListUsers(ctx context.Context, in UserQuery) (*UserList, error) {
	q, order, err := listQuery(in).resolve(userSortColumns, userFilters)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.userScope(ctx, q).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows := []UserRow{}
	if err := s.userScope(ctx, q).
		Select(userColumns).
		Order(order).Order("users.id").
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &UserList{Users: rows, Pagination: paginate(q.Page, q.Limit, total)}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Deletion reports what a user deletion removed. PageNames lets callers drop
// cached copies of the deleted pages.
type Deletion struct {
	Deleted   int64
	PageNames []string
}

// DeleteUser removes one user with everything they own.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) (Deletion, error) {
	out, err := s.BulkDeleteUsers(ctx, actorID, []string{id})
	if err != nil {
		return Deletion{}, err
	}
	if out.Deleted == 0 {
		return Deletion{}, apperr.NotFound("user not found")
	}
	return out, nil
}

// BulkDeleteUsers removes the users, their pages with links and themes, and
// their sessions in one transaction. The actor may not be among the targets.
func (s *Service) BulkDeleteUsers(ctx context.Context, actorID string, ids []string) (Deletion, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return Deletion{}, ErrNoTargets
	}
	if contains(ids, actorID) {
		return Deletion{}, ErrSelfDelete
	}

	var out Deletion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profiles []models.Profile
		if err := tx.Select("id", "page_name").Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		profileIDs := make([]string, 0, len(profiles))
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			profileIDs = append(profileIDs, p.ID)
			names = append(names, p.PageName)
		}
		if err := biopages.PurgeContent(tx, profileIDs); err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&models.Profile{}).Error; err != nil {
			return fmt.Errorf("delete profiles: %w", err)
		}
		if _, err := sessions.RevokeUsers(tx, ids); err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.User{})
		if res.Error != nil {
			return fmt.Errorf("delete users: %w", res.Error)
		}
		out = Deletion{Deleted: res.RowsAffected, PageNames: names}
		return nil
	})
	if err != nil {
		return Deletion{}, err
	}
	applog.Info(ctx, "users deleted", "actor_id", actorID, "requested", len(ids), "deleted", out.Deleted, "pages", len(out.PageNames))
	return out, nil
}

// ToggleAdmin sets the admin flag of one user.
func (s *Service) ToggleAdmin(ctx context.Context, actorID, id string, value bool) (*UserRow, error) {
	updated, err := s.BulkToggleAdmin(ctx, actorID, []string{id}, value)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, apperr.NotFound("user not found")
	}
	row := &UserRow{}
	if err := s.db.WithContext(ctx).Table("users").Select(userColumns).Where("users.id = ?", id).Scan(row).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return row, nil
}

// BulkToggleAdmin sets the admin flag of every target in a single statement.
// An actor may grant but never revoke their own access.
func (s *Service) BulkToggleAdmin(ctx context.Context, actorID string, ids []string, value bool) (int64, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, ErrNoTargets
	}
	if !value && contains(ids, actorID) {
		return 0, ErrSelfDemote
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).
		Updates(map[string]any{"is_admin": value, "updated_at": s.now()})
	if res.Error != nil {
		return 0, fmt.Errorf("toggle admin: %w", res.Error)
	}
	applog.Info(ctx, "admin flag updated", "actor_id", actorID, "value", value, "updated", res.RowsAffected)
	return res.RowsAffected, nil
}
