// Package ownership resolves which user owns a profile, link or theme and
// rejects callers that are not that user.
package ownership

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"linkfolio/internal/apperr"
)

// Kind names an owned entity.
type Kind string

const (
	Profile Kind = "profile"
	Link    Kind = "link"
	Theme   Kind = "theme"
)

// Guard answers ownership questions against the database.
type Guard struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// With returns a guard bound to db, typically an open transaction.
func (g *Guard) With(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// ownerQuery selects (entity id, owning user id) pairs for the given kind.
// Links and themes are owned through their parent profile.
func (g *Guard) ownerQuery(ctx context.Context, kind Kind) (*gorm.DB, string, error) {
	tx := g.db.WithContext(ctx)
	switch kind {
	case Profile:
		return tx.Table("profiles").Select("profiles.id AS id, profiles.user_id AS user_id"), "profiles.id", nil
	case Link:
		return tx.Table("social_links").
			Select("social_links.id AS id, profiles.user_id AS user_id").
			Joins("JOIN profiles ON profiles.id = social_links.profile_id"), "social_links.id", nil
	case Theme:
		return tx.Table("themes").
			Select("themes.id AS id, profiles.user_id AS user_id").
			Joins("JOIN profiles ON profiles.id = themes.profile_id"), "themes.id", nil
	default:
		return nil, "", fmt.Errorf("ownership: unknown kind %q", kind)
	}
}

type ownerRow struct {
	ID     string
	UserID string
}

func (g *Guard) owners(ctx context.Context, kind Kind, ids []string) (map[string]string, error) {
	query, column, err := g.ownerQuery(ctx, kind)
	if err != nil {
		return nil, err
	}
	var rows []ownerRow
	if err := query.Where(column+" IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("resolve %s owners: %w", kind, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.UserID
	}
	return out, nil
}

// ResolveOwner returns the id of the user owning the entity. A link or theme
// whose profile no longer exists is reported as not found.
func (g *Guard) ResolveOwner(ctx context.Context, kind Kind, id string) (string, error) {
	owners, err := g.owners(ctx, kind, []string{id})
	if err != nil {
		return "", err
	}
	owner, ok := owners[id]
	if !ok {
		return "", apperr.NotFound(fmt.Sprintf("%s not found", kind))
	}
	return owner, nil
}

// Require fails with a not-found or forbidden error unless userID owns the entity.
func (g *Guard) Require(ctx context.Context, kind Kind, id, userID string) error {
	return g.RequireAll(ctx, kind, []string{id}, userID)
}

// RequireAll checks every id in order and fails on the first one that is
// missing or owned by someone else.
func (g *Guard) RequireAll(ctx context.Context, kind Kind, ids []string, userID string) error {
	if len(ids) == 0 {
		return nil
	}
	owners, err := g.owners(ctx, kind, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		owner, ok := owners[id]
		if !ok {
			return apperr.NotFound(fmt.Sprintf("%s not found", kind))
		}
		if owner != userID {
			return apperr.Forbidden(fmt.Sprintf("you do not have access to this %s", kind))
		}
	}
	return nil
}
