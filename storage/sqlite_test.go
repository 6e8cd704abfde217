package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// createTestStorage creates a migrated storage instance backed by a temporary
// database file.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() {
		if err := storage.Close(); err != nil {
			t.Errorf("failed to close storage: %v", err)
		}
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestNewSQLiteStorageEmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage(""); err == nil {
		t.Fatal("expected error for empty database path")
	}
}

func TestAccountCRUD(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateAccount(ctx, &model.Account{
		Name:    "Checking",
		Type:    model.AccountTypeBank,
		Balance: decimal.RequireFromString("100.50"),
	})
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	byID, err := storage.GetAccountByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get account: %v", err)
	}
	if byID == nil {
		t.Fatal("expected account, got nil")
	}
	if byID.Name != "Checking" || byID.Type != model.AccountTypeBank {
		t.Errorf("unexpected account: %+v", byID)
	}
	if !byID.Balance.Equal(decimal.RequireFromString("100.50")) {
		t.Errorf("balance round trip failed: got %s", byID.Balance)
	}

	byName, err := storage.GetAccountByName(ctx, "Checking")
	if err != nil {
		t.Fatalf("failed to get account by name: %v", err)
	}
	if byName == nil || byName.ID != created.ID {
		t.Errorf("lookup by name returned %+v", byName)
	}

	newName := "Savings"
	newBalance := decimal.NewFromInt(250)
	if err := storage.UpdateAccount(ctx, created.ID, model.AccountPatch{
		Name:    &newName,
		Balance: &newBalance,
	}); err != nil {
		t.Fatalf("failed to update account: %v", err)
	}
	updated, err := storage.GetAccountByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to re-read account: %v", err)
	}
	if updated.Name != "Savings" || !updated.Balance.Equal(newBalance) {
		t.Errorf("update not applied: %+v", updated)
	}
	// Unpatched fields survive.
	if updated.Type != model.AccountTypeBank {
		t.Errorf("type changed unexpectedly: %s", updated.Type)
	}

	if err := storage.DeleteAccount(ctx, created.ID); err != nil {
		t.Fatalf("failed to delete account: %v", err)
	}
	gone, err := storage.GetAccountByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to query deleted account: %v", err)
	}
	if gone != nil {
		t.Error("expected nil after delete")
	}
}

func TestAccountNameUnique(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	if _, err := storage.CreateAccount(ctx, &model.Account{Name: "Cash", Type: model.AccountTypeCash}); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if _, err := storage.CreateAccount(ctx, &model.Account{Name: "Cash", Type: model.AccountTypeBank}); err == nil {
		t.Error("expected unique constraint violation for duplicate account name")
	}
}

func TestGetAccountsInsertionOrder(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	names := []string{"Cash", "Bank", "bKash"}
	for _, name := range names {
		if _, err := storage.CreateAccount(ctx, &model.Account{Name: name, Type: model.AccountTypeBank}); err != nil {
			t.Fatalf("failed to create account %q: %v", name, err)
		}
	}

	accounts, err := storage.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("failed to get accounts: %v", err)
	}
	if len(accounts) != len(names) {
		t.Fatalf("expected %d accounts, got %d", len(names), len(accounts))
	}
	for i, name := range names {
		if accounts[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, accounts[i].Name)
		}
	}
}

func TestCategoryCRUD(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateCategory(ctx, &model.Category{
		Name:  "Food",
		Color: "#f97316",
		Type:  model.TypeExpense,
	})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}

	byName, err := storage.GetCategoryByName(ctx, "Food")
	if err != nil {
		t.Fatalf("failed to get category by name: %v", err)
	}
	if byName == nil || byName.ID != created.ID || byName.Color != "#f97316" {
		t.Errorf("lookup by name returned %+v", byName)
	}

	missing, err := storage.GetCategoryByName(ctx, "Nonexistent")
	if err != nil {
		t.Fatalf("unexpected error for missing category: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing category")
	}

	newColor := "#000000"
	newType := model.TypeIncome
	if err := storage.UpdateCategory(ctx, created.ID, model.CategoryPatch{
		Color: &newColor,
		Type:  &newType,
	}); err != nil {
		t.Fatalf("failed to update category: %v", err)
	}
	updated, err := storage.GetCategoryByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to re-read category: %v", err)
	}
	if updated.Color != newColor || updated.Type != newType || updated.Name != "Food" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := storage.DeleteCategory(ctx, created.ID); err != nil {
		t.Fatalf("failed to delete category: %v", err)
	}
	categories, err := storage.GetCategories(ctx)
	if err != nil {
		t.Fatalf("failed to list categories: %v", err)
	}
	if len(categories) != 0 {
		t.Errorf("expected no categories, got %d", len(categories))
	}
}

func TestSettingsUpsert(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	// Fresh database has no settings row.
	settings, err := storage.GetSettings(ctx)
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	if settings != nil {
		t.Fatalf("expected nil settings, got %+v", settings)
	}

	if err := storage.SaveSettings(ctx, &model.Settings{Currency: "USD"}); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if err := storage.SaveSettings(ctx, &model.Settings{Currency: "BDT", SetupComplete: true}); err != nil {
		t.Fatalf("failed to overwrite settings: %v", err)
	}

	settings, err = storage.GetSettings(ctx)
	if err != nil {
		t.Fatalf("failed to re-read settings: %v", err)
	}
	if settings == nil {
		t.Fatal("expected settings row")
	}
	if settings.Currency != "BDT" || !settings.SetupComplete {
		t.Errorf("unexpected settings: %+v", settings)
	}
	if settings.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}

	if err := storage.SaveSettings(ctx, nil); err == nil {
		t.Error("expected error for nil settings")
	}
}

func TestTransferCRUD(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateTransfer(ctx, &model.Transfer{
		FromAccountID: "a1",
		ToAccountID:   "a2",
		Amount:        decimal.RequireFromString("33.33"),
		Note:          "rent share",
	})
	if err != nil {
		t.Fatalf("failed to create transfer: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	// Zero date defaults to creation time.
	if created.Date.IsZero() {
		t.Error("expected date to be defaulted")
	}

	byID, err := storage.GetTransferByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get transfer: %v", err)
	}
	if byID == nil {
		t.Fatal("expected transfer, got nil")
	}
	if byID.Note != "rent share" || !byID.Amount.Equal(created.Amount) {
		t.Errorf("round trip mismatch: %+v", byID)
	}

	transfers, err := storage.GetTransfers(ctx)
	if err != nil {
		t.Fatalf("failed to list transfers: %v", err)
	}
	if len(transfers) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(transfers))
	}
}

func TestBeginTxCommitAndRollback(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	// Committed work is visible afterwards.
	tx, err := storage.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if _, err := tx.CreateAccount(ctx, &model.Account{Name: "Committed", Type: model.AccountTypeBank}); err != nil {
		t.Fatalf("failed to create account in transaction: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	// Rolled-back work is not.
	tx, err = storage.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if _, err := tx.CreateAccount(ctx, &model.Account{Name: "RolledBack", Type: model.AccountTypeBank}); err != nil {
		t.Fatalf("failed to create account in transaction: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("failed to rollback: %v", err)
	}

	accounts, err := storage.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("failed to list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Name != "Committed" {
		t.Errorf("unexpected accounts after rollback: %+v", accounts)
	}
}

func TestTransactionHandleRejectsNestedOperations(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("expected error for nested transaction")
	}
	if err := tx.Migrate(ctx); err == nil {
		t.Error("expected error for migration inside transaction")
	}
	if err := tx.Close(); err == nil {
		t.Error("expected error for closing a transaction handle")
	}
}

func TestClearKeepsSchema(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	if err := storage.SaveSettings(ctx, &model.Settings{Currency: "USD"}); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if _, err := storage.CreateAccount(ctx, &model.Account{Name: "Cash", Type: model.AccountTypeCash}); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if _, err := storage.CreateCategory(ctx, &model.Category{Name: "Food", Type: model.TypeExpense}); err != nil {
		t.Fatalf("failed to create category: %v", err)
	}

	if err := storage.Clear(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	settings, err := storage.GetSettings(ctx)
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	if settings != nil {
		t.Error("expected settings gone after clear")
	}
	accounts, err := storage.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("failed to list accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accounts))
	}

	// Schema version survives and writes still work.
	version, err := storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("expected schema version %d, got %d", ExpectedSchemaVersion, version)
	}
	if _, err := storage.CreateAccount(ctx, &model.Account{Name: "Fresh", Type: model.AccountTypeBank}); err != nil {
		t.Errorf("failed to write after clear: %v", err)
	}
}
