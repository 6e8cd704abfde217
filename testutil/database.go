// Package testutil provides shared test database helpers.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/paisabook/paisabook/service"
	"github.com/paisabook/paisabook/storage"
)

// SetupTestDB creates a migrated SQLite store backed by a file in a per-test
// temporary directory, registering cleanup with the test.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// WithTransaction runs fn inside a storage transaction that is always rolled
// back, so tests can probe writes without dirtying the store.
func WithTransaction(store service.Storage, fn func(tx service.Transaction) error) error {
	tx, err := store.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return fn(tx)
}
