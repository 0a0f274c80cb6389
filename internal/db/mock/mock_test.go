package mock

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"linkfolio/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var demo models.User
	if err := db.WithContext(ctx).Where("email = ?", DemoEmail).Take(&demo).Error; err != nil {
		t.Fatalf("query demo user: %v", err)
	}
	if demo.PasswordHash == nil {
		t.Fatal("expected demo user to have a password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*demo.PasswordHash), []byte(DemoPassword)); err != nil {
		t.Fatalf("unexpected password hash: %v", err)
	}

	var profiles []models.Profile
	if err := db.WithContext(ctx).Where("user_id = ?", demo.ID).Find(&profiles).Error; err != nil {
		t.Fatalf("query profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 demo profiles, got %d", len(profiles))
	}
	defaults := 0
	for _, p := range profiles {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default profile, got %d", defaults)
	}

	var linkCount int64
	if err := db.WithContext(ctx).Model(&models.SocialLink{}).Count(&linkCount).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if linkCount != 4 {
		t.Fatalf("expected 4 seeded links, got %d", linkCount)
	}

	var active models.Theme
	if err := db.WithContext(ctx).Where("is_active = ?", true).Take(&active).Error; err != nil {
		t.Fatalf("query active theme: %v", err)
	}

	var admin models.User
	if err := db.WithContext(ctx).Where("email = ?", AdminEmail).Take(&admin).Error; err != nil {
		t.Fatalf("query admin: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatal("expected seeded admin to be an admin")
	}
}
