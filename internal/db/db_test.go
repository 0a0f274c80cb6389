package db

import (
	"context"
	"testing"

	"linkfolio/internal/config"
	"linkfolio/models"

	"gorm.io/gorm"
)

func TestInitializeRequiresURL(t *testing.T) {
	t.Parallel()

	db, err := Initialize(config.DatabaseConfig{URL: ""})
	if err == nil {
		t.Fatal("expected error when database URL is empty")
	}
	if db != nil {
		t.Fatal("expected returned db handle to be nil on error")
	}
}

func TestAutoMigrateRejectsNilDatabase(t *testing.T) {
	t.Parallel()

	if err := AutoMigrate(nil); err == nil {
		t.Fatal("expected error when database handle is nil")
	}
}

func TestInitializeWithSQLiteURL(t *testing.T) {
	t.Parallel()

	database, err := Initialize(config.DatabaseConfig{URL: "sqlite:file:dbtest-init?mode=memory&cache=shared", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("initialize sqlite database: %v", err)
	}
	if database.Dialector.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %s", database.Dialector.Name())
	}

	if err := AutoMigrate(database); err != nil {
		t.Fatalf("automigrate sqlite database: %v", err)
	}
	for _, model := range models.All() {
		if !database.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
	if err := Ping(context.Background(), database); err != nil {
		t.Fatalf("ping sqlite database: %v", err)
	}
}

func TestUniqueViolationIsTranslated(t *testing.T) {
	t.Parallel()

	database, err := Initialize(config.DatabaseConfig{URL: "sqlite:file:dbtest-unique?mode=memory&cache=shared", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("initialize sqlite database: %v", err)
	}
	if err := AutoMigrate(database); err != nil {
		t.Fatalf("automigrate sqlite database: %v", err)
	}

	first := &models.User{Email: "dup@example.com"}
	if err := database.Create(first).Error; err != nil {
		t.Fatalf("create first user: %v", err)
	}
	err = database.Create(&models.User{Email: "dup@example.com"}).Error
	if err != gorm.ErrDuplicatedKey {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestPingRejectsNilDatabase(t *testing.T) {
	t.Parallel()

	if err := Ping(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestConfigurePropagatesInitializationError(t *testing.T) {
	t.Parallel()

	if _, err := Configure(config.DatabaseConfig{}); err == nil {
		t.Fatal("expected configuration error when initialize fails")
	}
}

func TestMustConfigurePanicsOnError(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when configuration fails")
		}
	}()

	MustConfigure(config.DatabaseConfig{})
}
