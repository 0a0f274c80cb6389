// Package mock provides an in-memory database seeded with demo accounts for
// running the service without postgres.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkfolio/internal/biopages"
	"linkfolio/internal/db"
	"linkfolio/internal/links"
	applog "linkfolio/internal/log"
	"linkfolio/internal/themes"
	"linkfolio/models"
)

const (
	AdminEmail    = "admin@linkfolio.dev"
	AdminPassword = "linkfolio-admin"
	DemoEmail     = "demo@linkfolio.dev"
	DemoPassword  = "linkfolio-demo"
)

// New returns an in-memory sqlite database with the schema applied and demo data seeded.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	dsn := "file:linkfolio-mock-" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	database, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(logger.Silent))
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}
	if err := seed(ctx, database); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func createUser(ctx context.Context, database *gorm.DB, email, password, first, last string, isAdmin bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	encoded := string(hash)
	user := &models.User{
		Email:         email,
		PasswordHash:  &encoded,
		FirstName:     &first,
		LastName:      &last,
		EmailVerified: true,
		IsAdmin:       isAdmin,
	}
	if err := database.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", email, err)
	}
	return user, nil
}

func seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	registry := biopages.New(database, nil)
	linkManager := links.New(database)
	themeStore := themes.New(database)

	adminUser, err := createUser(ctx, database, AdminEmail, AdminPassword, "Avery", "Admin", true)
	if err != nil {
		return err
	}
	if _, err := registry.EnsureInitialPage(ctx, adminUser); err != nil {
		return err
	}

	demo, err := createUser(ctx, database, DemoEmail, DemoPassword, "Dana", "Demo", false)
	if err != nil {
		return err
	}
	primary, err := registry.EnsureInitialPage(ctx, demo)
	if err != nil {
		return err
	}
	work, err := registry.Create(ctx, demo.ID, biopages.NewPage{
		PageName:    "dana-works",
		DisplayName: "Dana at Work",
		Bio:         "Talks, writing and open source.",
	})
	if err != nil {
		return err
	}

	seeded := []links.NewLink{
		{ProfileID: primary.ID, Platform: "github", Title: "GitHub", URL: "https://github.com/dana-demo"},
		{ProfileID: primary.ID, Platform: "website", Title: "Blog", URL: "https://dana.example.com"},
		{ProfileID: primary.ID, Platform: "youtube", Title: "Videos", URL: "https://youtube.com/@dana-demo"},
		{ProfileID: work.ID, Platform: "linkedin", Title: "LinkedIn", URL: "https://linkedin.com/in/dana-demo"},
	}
	for _, in := range seeded {
		if _, err := linkManager.Create(ctx, demo.ID, in); err != nil {
			return err
		}
	}

	if _, err := themeStore.Create(ctx, demo.ID, themes.NewTheme{
		ProfileID: primary.ID,
		Name:      "Dana Sunset",
		PresetID:  "sunset",
		Activate:  true,
	}); err != nil {
		return err
	}

	if err := database.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", primary.ID).
		Updates(map[string]any{"profile_views": 42, "updated_at": time.Now().UTC()}).Error; err != nil {
		return err
	}

	applog.Debug(ctx, "mock database seeded", "users", 2)
	return nil
}
