package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrateFreshDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fresh.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() {
		_ = storage.Close()
	}()

	ctx := context.Background()
	version, err := storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 0 {
		t.Errorf("fresh database should be at version 0, got %d", version)
	}

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	version, err = storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("expected version %d, got %d", ExpectedSchemaVersion, version)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	version, err := storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("expected version %d, got %d", ExpectedSchemaVersion, version)
	}
}

func TestMigrationVersionsAreSequential(t *testing.T) {
	for i, migration := range migrations {
		expected := i + 1
		if migration.Version != expected {
			t.Errorf("migration %d has version %d, expected %d", i, migration.Version, expected)
		}
		if migration.Description == "" {
			t.Errorf("migration %d has no description", migration.Version)
		}
		if migration.Up == nil {
			t.Errorf("migration %d has no Up function", migration.Version)
		}
	}
	if len(migrations) != ExpectedSchemaVersion {
		t.Errorf("expected %d migrations, found %d", ExpectedSchemaVersion, len(migrations))
	}
}
