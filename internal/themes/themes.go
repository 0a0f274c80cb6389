// Package themes stores per-page visual themes and keeps at most one active
// theme per page.
package themes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"linkfolio/internal/apperr"
	applog "linkfolio/internal/log"
	"linkfolio/internal/ownership"
	"linkfolio/internal/validate"
	"linkfolio/models"
)

// View is the JSON representation of a theme, persisted or preset.
type View struct {
	ID        string                `json:"id"`
	ProfileID string                `json:"profileId,omitempty"`
	Name      string                `json:"name"`
	Colors    models.ThemeColors    `json:"colors"`
	Gradients models.ThemeGradients `json:"gradients"`
	Fonts     models.ThemeFonts     `json:"fonts"`
	Layout    models.ThemeLayout    `json:"layout"`
	IsActive  bool                  `json:"isActive"`
	IsPreset  bool                  `json:"isPreset"`
	CreatedAt *time.Time            `json:"createdAt,omitempty"`
	UpdatedAt *time.Time            `json:"updatedAt,omitempty"`
}

// ViewOf converts a stored theme.
func ViewOf(t models.Theme) View {
	return View{
		ID:        t.ID,
		ProfileID: t.ProfileID,
		Name:      t.Name,
		Colors:    t.Colors.Data(),
		Gradients: t.Gradients.Data(),
		Fonts:     t.Fonts.Data(),
		Layout:    t.Layout.Data(),
		IsActive:  t.IsActive,
		CreatedAt: &t.CreatedAt,
		UpdatedAt: &t.UpdatedAt,
	}
}

// PresetView converts a preset. profileID may be empty.
func PresetView(p Preset, profileID string) View {
	return View{
		ID:        "preset:" + p.ID,
		ProfileID: profileID,
		Name:      p.Name,
		Colors:    p.Colors,
		Gradients: p.Gradients,
		Fonts:     p.Fonts,
		Layout:    p.Layout,
		IsPreset:  true,
	}
}

// PresetViews lists the catalogue as views.
func PresetViews() []View {
	presets := Presets()
	out := make([]View, len(presets))
	for i, p := range presets {
		out[i] = PresetView(p, "")
	}
	return out
}

// Store is the theme store.
type Store struct {
	db    *gorm.DB
	guard *ownership.Guard
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, guard: ownership.New(db)}
}

// NewTheme holds the fields accepted when creating a theme. Sub-documents that
// are omitted are copied from PresetID, or from the default preset.
type NewTheme struct {
	ProfileID string                 `json:"profileId"`
	Name      string                 `json:"name"`
	PresetID  string                 `json:"presetId"`
	Colors    *models.ThemeColors    `json:"colors"`
	Gradients *models.ThemeGradients `json:"gradients"`
	Fonts     *models.ThemeFonts     `json:"fonts"`
	Layout    *models.ThemeLayout    `json:"layout"`
	Activate  bool                   `json:"activate"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name      *string                `json:"name"`
	Colors    *models.ThemeColors    `json:"colors"`
	Gradients *models.ThemeGradients `json:"gradients"`
	Fonts     *models.ThemeFonts     `json:"fonts"`
	Layout    *models.ThemeLayout    `json:"layout"`
}

func checkName(errs validate.Errors, name string) {
	errs.Check(validate.Length(name, 1, 100), "name", "name must be 1-100 characters")
}

func (s *Store) load(ctx context.Context, id string) (*models.Theme, error) {
	theme := &models.Theme{}
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(theme).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("theme not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load theme: %w", err)
	}
	return theme, nil
}

// Active returns the active theme of a profile, or the default preset when
// none is active.
func (s *Store) Active(ctx context.Context, profileID string) (View, error) {
	var profiles int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profileID).Count(&profiles).Error; err != nil {
		return View{}, fmt.Errorf("load profile: %w", err)
	}
	if profiles == 0 {
		return View{}, apperr.NotFound("profile not found")
	}

	theme := models.Theme{}
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND is_active = ?", profileID, true).
		Order("updated_at DESC").
		Take(&theme).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		view := PresetView(DefaultPreset(), profileID)
		view.IsActive = true
		return view, nil
	}
	if err != nil {
		return View{}, fmt.Errorf("load active theme: %w", err)
	}
	return ViewOf(theme), nil
}

// List returns the stored themes of a profile owned by userID.
func (s *Store) List(ctx context.Context, userID, profileID string) ([]View, error) {
	if err := s.guard.Require(ctx, ownership.Profile, profileID, userID); err != nil {
		return nil, err
	}
	var stored []models.Theme
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("created_at ASC").Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	out := make([]View, len(stored))
	for i, t := range stored {
		out[i] = ViewOf(t)
	}
	return out, nil
}

// Create stores a new theme for a profile owned by userID.
func (s *Store) Create(ctx context.Context, userID string, in NewTheme) (View, error) {
	in.ProfileID = strings.TrimSpace(in.ProfileID)
	in.Name = strings.TrimSpace(in.Name)

	base := DefaultPreset()
	errs := validate.Errors{}
	errs.Check(in.ProfileID != "", "profileId", "profile id is required")
	if in.PresetID != "" {
		preset, ok := LookupPreset(in.PresetID)
		errs.Check(ok, "presetId", "unknown preset")
		if ok {
			base = preset
		}
	}
	if in.Name == "" {
		in.Name = base.Name
	}

	colors, gradients, fonts, layout := base.Colors, base.Gradients, base.Fonts, base.Layout
	if in.Colors != nil {
		colors = *in.Colors
	}
	if in.Gradients != nil {
		gradients = *in.Gradients
	}
	if in.Fonts != nil {
		fonts = *in.Fonts
	}
	if in.Layout != nil {
		layout = *in.Layout
	}

	checkName(errs, in.Name)
	checkColors(errs, colors)
	checkGradients(errs, gradients)
	checkFonts(errs, fonts)
	checkLayout(errs, layout)
	if err := errs.Err(); err != nil {
		return View{}, err
	}

	if err := s.guard.Require(ctx, ownership.Profile, in.ProfileID, userID); err != nil {
		return View{}, err
	}

	theme := &models.Theme{
		ProfileID: in.ProfileID,
		Name:      in.Name,
		Colors:    datatypes.NewJSONType(colors),
		Gradients: datatypes.NewJSONType(gradients),
		Fonts:     datatypes.NewJSONType(fonts),
		Layout:    datatypes.NewJSONType(layout),
		IsActive:  in.Activate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Activate {
			if err := deactivateAll(tx, in.ProfileID); err != nil {
				return err
			}
		}
		if err := tx.Create(theme).Error; err != nil {
			return fmt.Errorf("create theme: %w", err)
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return ViewOf(*theme), nil
}

// Update applies patch to a theme owned by userID.
func (s *Store) Update(ctx context.Context, userID, id string, patch Patch) (View, error) {
	if err := s.guard.Require(ctx, ownership.Theme, id, userID); err != nil {
		return View{}, err
	}

	errs := validate.Errors{}
	updates := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		checkName(errs, name)
		updates["name"] = name
	}
	if patch.Colors != nil {
		checkColors(errs, *patch.Colors)
		updates["colors"] = datatypes.NewJSONType(*patch.Colors)
	}
	if patch.Gradients != nil {
		checkGradients(errs, *patch.Gradients)
		updates["gradients"] = datatypes.NewJSONType(*patch.Gradients)
	}
	if patch.Fonts != nil {
		checkFonts(errs, *patch.Fonts)
		updates["fonts"] = datatypes.NewJSONType(*patch.Fonts)
	}
	if patch.Layout != nil {
		checkLayout(errs, *patch.Layout)
		updates["layout"] = datatypes.NewJSONType(*patch.Layout)
	}
	if err := errs.Err(); err != nil {
		return View{}, err
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Theme{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return View{}, fmt.Errorf("update theme: %w", err)
		}
	}
	theme, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return ViewOf(*theme), nil
}

// Delete removes a theme owned by userID and returns it.
func (s *Store) Delete(ctx context.Context, userID, id string) (*models.Theme, error) {
	if err := s.guard.Require(ctx, ownership.Theme, id, userID); err != nil {
		return nil, err
	}
	theme, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Theme{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("delete theme: %w", err)
	}
	return theme, nil
}

func deactivateAll(tx *gorm.DB, profileID string) error {
	if err := tx.Model(&models.Theme{}).
		Where("profile_id = ? AND is_active = ?", profileID, true).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate themes: %w", err)
	}
	return nil
}

// Activate deactivates every theme of profileID and activates themeID when it
// belongs to that profile. The caller must own both. When themeID belongs to
// another profile no theme of profileID is left active and the preset
// fallback is returned.
func (s *Store) Activate(ctx context.Context, userID, themeID, profileID string) (View, error) {
	if err := s.guard.Require(ctx, ownership.Theme, themeID, userID); err != nil {
		return View{}, err
	}
	if err := s.guard.Require(ctx, ownership.Profile, profileID, userID); err != nil {
		return View{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivateAll(tx, profileID); err != nil {
			return err
		}
		res := tx.Model(&models.Theme{}).
			Where("id = ? AND profile_id = ?", themeID, profileID).
			Update("is_active", true)
		if res.Error != nil {
			return fmt.Errorf("activate theme: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			applog.Warn(ctx, "theme does not belong to profile, no theme left active",
				"theme_id", themeID, "profile_id", profileID)
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.Active(ctx, profileID)
}
