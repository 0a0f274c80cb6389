// Package biopages manages bio pages: creation, unique page names, the single
// default page per user, and public view and click counters.
package biopages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkfolio/internal/apperr"
	"linkfolio/internal/avatar"
	applog "linkfolio/internal/log"
	"linkfolio/internal/ownership"
	"linkfolio/internal/validate"
	"linkfolio/models"
)

const (
	maxDisplayNameLength = 100
	maxBioLength         = 500
	allocationAttempts   = 3
)

// ErrPageNameTaken is returned when a page name is already in use.
var ErrPageNameTaken = apperr.Conflict("page name is already taken")

// Registry is the bio page store.
type Registry struct {
	db      *gorm.DB
	guard   *ownership.Guard
	avatars avatar.Resolver
}

func New(db *gorm.DB, avatars avatar.Resolver) *Registry {
	if avatars == nil {
		avatars = avatar.Noop{}
	}
	return &Registry{db: db, guard: ownership.New(db), avatars: avatars}
}

// WithTx returns a registry whose queries run on tx.
func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{db: tx, guard: r.guard.With(tx), avatars: r.avatars}
}

// NewPage holds the fields accepted when creating a page.
type NewPage struct {
	PageName    string  `json:"pageName"`
	DisplayName string  `json:"displayName"`
	Bio         string  `json:"bio"`
	ImageURL    *string `json:"profileImageUrl"`
}

func (p *NewPage) normalize() {
	p.PageName = strings.TrimSpace(p.PageName)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Bio = strings.TrimSpace(p.Bio)
	if p.ImageURL != nil {
		p.ImageURL = models.StringPtr(*p.ImageURL)
	}
}

func (p NewPage) validate() error {
	errs := validate.Errors{}
	errs.Check(ValidPageName(p.PageName), "pageName", "page name must be 1-50 letters, digits, hyphens or underscores")
	errs.Check(validate.Length(p.DisplayName, 1, maxDisplayNameLength), "displayName", "display name must be 1-100 characters")
	errs.Check(validate.Length(p.Bio, 0, maxBioLength), "bio", "bio must be at most 500 characters")
	if p.ImageURL != nil {
		errs.Check(validate.WebURL(*p.ImageURL), "profileImageUrl", "image must be an http or https URL")
	}
	return errs.Err()
}

// Patch is a partial update. Nil fields are left unchanged; an empty image URL clears the image.
type Patch struct {
	PageName        *string `json:"pageName"`
	DisplayName     *string `json:"displayName"`
	Bio             *string `json:"bio"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

func (p Patch) updates() (map[string]any, error) {
	errs := validate.Errors{}
	updates := map[string]any{}
	if p.PageName != nil {
		name := strings.TrimSpace(*p.PageName)
		errs.Check(ValidPageName(name), "pageName", "page name must be 1-50 letters, digits, hyphens or underscores")
		updates["page_name"] = name
		updates["page_name_key"] = models.PageNameKey(name)
	}
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		errs.Check(validate.Length(name, 1, maxDisplayNameLength), "displayName", "display name must be 1-100 characters")
		updates["display_name"] = name
	}
	if p.Bio != nil {
		bio := strings.TrimSpace(*p.Bio)
		errs.Check(validate.Length(bio, 0, maxBioLength), "bio", "bio must be at most 500 characters")
		updates["bio"] = bio
	}
	if p.ProfileImageURL != nil {
		image := models.StringPtr(*p.ProfileImageURL)
		if image != nil {
			errs.Check(validate.WebURL(*image), "profileImageUrl", "image must be an http or https URL")
		}
		updates["profile_image_url"] = image
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return updates, nil
}

// lockUser takes a row lock on the user so concurrent default-page changes
// for the same user serialize. SQLite ignores the locking clause; its single
// writer already serializes transactions.
func lockUser(ctx context.Context, tx *gorm.DB, userID string) (*models.User, error) {
	user := &models.User{}
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return user, nil
}

func (r *Registry) resolveImage(ctx context.Context, email string) *string {
	image, err := r.avatars.Resolve(ctx, email)
	if err != nil {
		applog.Debug(ctx, "avatar resolution failed, continuing without image", "error", err)
		return nil
	}
	return models.StringPtr(image)
}

// Create adds a page for userID. The first page a user creates becomes the default.
func (r *Registry) Create(ctx context.Context, userID string, in NewPage) (*models.Profile, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var profile *models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		taken, err := r.WithTx(tx).pageNameTaken(ctx, in.PageName, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrPageNameTaken
		}

		var existing int64
		if err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return fmt.Errorf("count pages: %w", err)
		}

		image := in.ImageURL
		if image == nil {
			image = r.resolveImage(ctx, user.Email)
		}

		profile = &models.Profile{
			UserID:          userID,
			PageName:        in.PageName,
			DisplayName:     in.DisplayName,
			Bio:             in.Bio,
			ProfileImageURL: image,
			IsDefault:       existing == 0,
		}
		if err := tx.Create(profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPageNameTaken
			}
			return fmt.Errorf("create page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	applog.Info(ctx, "bio page created", "profile_id", profile.ID, "page_name", profile.PageName, "default", profile.IsDefault)
	return profile, nil
}

// EnsureInitialPage returns the user's default page, creating one named after
// the email local part when the user has no pages yet. Calling it again for
// the same user returns the existing page.
func (r *Registry) EnsureInitialPage(ctx context.Context, user *models.User) (*models.Profile, error) {
	existing := &models.Profile{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("is_default DESC").Order("created_at ASC").
		Take(existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load initial page: %w", err)
	}

	displayName := []rune(user.DisplayName())
	if len(displayName) > maxDisplayNameLength {
		displayName = displayName[:maxDisplayNameLength]
	}
	if len(displayName) == 0 {
		displayName = []rune("My page")
	}

	for attempt := 0; ; attempt++ {
		name, err := r.AllocatePageName(ctx, models.EmailLocalPart(user.Email), user.ID)
		if err != nil {
			return nil, err
		}
		profile, err := r.Create(ctx, user.ID, NewPage{
			PageName:    name,
			DisplayName: string(displayName),
			ImageURL:    user.ProfileImageURL,
		})
		// Another request may claim the allocated name before we insert it.
		if errors.Is(err, ErrPageNameTaken) && attempt < allocationAttempts {
			continue
		}
		return profile, err
	}
}

// List returns the user's pages, default first.
func (r *Registry) List(ctx context.Context, userID string) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").Order("created_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return profiles, nil
}

func (r *Registry) load(ctx context.Context, id string) (*models.Profile, error) {
	profile := &models.Profile{}
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	return profile, nil
}

// Get returns a page owned by userID.
func (r *Registry) Get(ctx context.Context, userID, id string) (*models.Profile, error) {
	if err := r.guard.Require(ctx, ownership.Profile, id, userID); err != nil {
		return nil, err
	}
	return r.load(ctx, id)
}

// Update applies patch to a page owned by userID. It returns the updated page
// and the page name it had before the update.
func (r *Registry) Update(ctx context.Context, userID, id string, patch Patch) (*models.Profile, string, error) {
	if err := r.guard.Require(ctx, ownership.Profile, id, userID); err != nil {
		return nil, "", err
	}
	updates, err := patch.updates()
	if err != nil {
		return nil, "", err
	}

	before, err := r.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if len(updates) == 0 {
		return before, before.PageName, nil
	}

	if name, ok := updates["page_name"].(string); ok && name != before.PageName {
		taken, err := r.pageNameTaken(ctx, name, id)
		if err != nil {
			return nil, "", err
		}
		if taken {
			return nil, "", ErrPageNameTaken
		}
	}

	err = r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, "", ErrPageNameTaken
	}
	if err != nil {
		return nil, "", fmt.Errorf("update page: %w", err)
	}

	after, err := r.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return after, before.PageName, nil
}

// Delete removes a page owned by userID together with its links and themes.
// It reports false when the page does not exist or belongs to someone else.
// Deleting the default page promotes the user's oldest remaining page.
func (r *Registry) Delete(ctx context.Context, userID, id string) (bool, error) {
	var deleted *models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}

		profile := &models.Profile{}
		err := tx.Where("id = ? AND user_id = ?", id, userID).Take(profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load page: %w", err)
		}

		if profile.IsDefault {
			successor := &models.Profile{}
			err := tx.Where("user_id = ? AND id <> ?", userID, id).
				Order("created_at ASC").Order("id ASC").
				Take(successor).Error
			switch {
			case err == nil:
				if err := tx.Model(successor).Update("is_default", true).Error; err != nil {
					return fmt.Errorf("promote default page: %w", err)
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("find successor page: %w", err)
			}
		}

		if err := PurgeContent(tx, []string{id}); err != nil {
			return err
		}
		if err := tx.Delete(&models.Profile{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete page: %w", err)
		}
		deleted = profile
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted == nil {
		return false, nil
	}
	applog.Info(ctx, "bio page deleted", "profile_id", id, "page_name", deleted.PageName)
	return true, nil
}

// PurgeContent deletes the links and themes of the given profiles using tx.
func PurgeContent(tx *gorm.DB, profileIDs []string) error {
	if len(profileIDs) == 0 {
		return nil
	}
	if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.SocialLink{}).Error; err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.Theme{}).Error; err != nil {
		return fmt.Errorf("delete themes: %w", err)
	}
	return nil
}

// SetDefault makes the page the user's default, clearing the flag on every
// other page of the user in the same transaction.
func (r *Registry) SetDefault(ctx context.Context, userID, id string) error {
	if err := r.guard.Require(ctx, ownership.Profile, id, userID); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.Profile{}).
			Where("user_id = ? AND is_default = ?", userID, true).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("clear default page: %w", err)
		}
		res := tx.Model(&models.Profile{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("is_default", true)
		if res.Error != nil {
			return fmt.Errorf("set default page: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("profile not found")
		}
		return nil
	})
}

func (r *Registry) increment(ctx context.Context, id, column string) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("profile not found")
	}
	return nil
}

// IncrementViews adds one to the page's view counter in place.
func (r *Registry) IncrementViews(ctx context.Context, id string) error {
	return r.increment(ctx, id, "profile_views")
}

// IncrementClicks adds one to the page's aggregate click counter in place.
func (r *Registry) IncrementClicks(ctx context.Context, id string) error {
	return r.increment(ctx, id, "clicks")
}
