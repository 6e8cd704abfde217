// Package ledger implements the bookkeeping engine that keeps per-account
// balances consistent as transactions and transfers are created, edited,
// deleted, and bulk-imported. Every mutating operation runs inside a single
// storage transaction, so a failure partway through leaves no balance out of
// step with the records that produced it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paisabook/paisabook/common"
	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

// Checkpointer snapshots the underlying database before destructive bulk
// operations. Satisfied by *storage.CheckpointManager.
type Checkpointer interface {
	AutoCheckpoint(ctx context.Context, prefix string) error
}

// Engine is the ledger bookkeeping engine. It is the sole writer of account
// balances.
type Engine struct {
	storage         service.Storage
	checkpoints     Checkpointer
	defaultCurrency string
}

// Config holds configuration options for the engine.
type Config struct {
	// DefaultCurrency seeds the settings record when it is created lazily.
	DefaultCurrency string
	// Checkpoints, when set, receives an auto-checkpoint request before
	// imports over existing data and before full resets.
	Checkpoints Checkpointer
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: "USD",
	}
}

// New creates a ledger engine over the given storage with default
// configuration.
func New(storage service.Storage) *Engine {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates a ledger engine with custom configuration.
func NewWithConfig(storage service.Storage, config Config) *Engine {
	currency := config.DefaultCurrency
	if currency == "" {
		currency = DefaultConfig().DefaultCurrency
	}
	return &Engine{
		storage:         storage,
		checkpoints:     config.Checkpoints,
		defaultCurrency: currency,
	}
}

// withTx runs fn inside one storage transaction, rolling back on error.
func (e *Engine) withTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSettings returns the settings record, creating it with the default
// currency on first read.
func (e *Engine) GetSettings(ctx context.Context) (*model.Settings, error) {
	settings, err := e.storage.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings != nil {
		return settings, nil
	}

	settings = &model.Settings{
		Currency:  e.defaultCurrency,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}
	slog.Info("created settings", "currency", settings.Currency)
	return settings, nil
}

// UpdateSettings applies a partial update to the settings record.
func (e *Engine) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error) {
	settings, err := e.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings.ApplyPatch(patch)
	settings.UpdatedAt = time.Now().UTC()
	if err := e.storage.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	slog.Info("updated settings", "currency", settings.Currency, "setup_complete", settings.SetupComplete)
	return settings, nil
}

// CreateCategory creates a category with a unique name.
func (e *Engine) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := category.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
	}

	existing, err := e.storage.GetCategoryByName(ctx, category.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("category %q: %w", category.Name, common.ErrDuplicateEntry)
	}

	created, err := e.storage.CreateCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	slog.Info("created category", "id", created.ID, "name", created.Name)
	return created, nil
}

// ListCategories returns all categories in insertion order.
func (e *Engine) ListCategories(ctx context.Context) ([]model.Category, error) {
	return e.storage.GetCategories(ctx)
}

// UpdateCategory applies a partial update to a category. Existing
// transactions keep their stored type and denormalized category name.
func (e *Engine) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error {
	existing, err := e.storage.GetCategoryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}

	if patch.Name != nil && *patch.Name != existing.Name {
		conflict, err := e.storage.GetCategoryByName(ctx, *patch.Name)
		if err != nil {
			return fmt.Errorf("failed to check category name: %w", err)
		}
		if conflict != nil {
			return fmt.Errorf("category %q: %w", *patch.Name, common.ErrDuplicateEntry)
		}
	}

	if err := e.storage.UpdateCategory(ctx, id, patch); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	slog.Info("updated category", "id", id)
	return nil
}

// DeleteCategory removes a category. Transactions referencing it keep their
// denormalized name.
func (e *Engine) DeleteCategory(ctx context.Context, id string) error {
	if err := e.storage.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	slog.Info("deleted category", "id", id)
	return nil
}

// CreateAccount creates an account with a unique name and an initial balance.
// The initial balance counts as the first term of the account's running
// total.
func (e *Engine) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
	}

	existing, err := e.storage.GetAccountByName(ctx, account.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check account name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("account %q: %w", account.Name, common.ErrDuplicateEntry)
	}

	created, err := e.storage.CreateAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	slog.Info("created account",
		"id", created.ID,
		"name", created.Name,
		"balance", created.Balance.String())
	return created, nil
}

// GetAccount returns an account by ID.
func (e *Engine) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	account, err := e.storage.GetAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	return account, nil
}

// ListAccounts returns all accounts in insertion order.
func (e *Engine) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return e.storage.GetAccounts(ctx)
}

// UpdateAccount renames or retypes an account. Balances cannot be patched
// from outside; the engine is their only writer.
func (e *Engine) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	if patch.Balance != nil {
		return fmt.Errorf("%w: account balance cannot be set directly", common.ErrValidation)
	}

	existing, err := e.storage.GetAccountByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}

	if patch.Name != nil && *patch.Name != existing.Name {
		conflict, err := e.storage.GetAccountByName(ctx, *patch.Name)
		if err != nil {
			return fmt.Errorf("failed to check account name: %w", err)
		}
		if conflict != nil {
			return fmt.Errorf("account %q: %w", *patch.Name, common.ErrDuplicateEntry)
		}
	}

	if err := e.storage.UpdateAccount(ctx, id, patch); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	slog.Info("updated account", "id", id)
	return nil
}

// GetTransaction returns a transaction by ID.
func (e *Engine) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	txn, err := e.storage.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if txn == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return txn, nil
}

// ListTransactions returns transactions matching the filter.
func (e *Engine) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	return e.storage.GetTransactions(ctx, filter)
}

// ListTransfers returns all transfers in insertion order.
func (e *Engine) ListTransfers(ctx context.Context) ([]model.Transfer, error) {
	return e.storage.GetTransfers(ctx)
}

// Initialize seeds the settings record, the default category set, and a
// default Cash account into an empty store. Collections that already hold
// data are left alone.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.withTx(ctx, func(tx service.Transaction) error {
		return e.seedDefaults(ctx, tx)
	})
}

// ResetAllData wipes every entity collection and reseeds the defaults.
func (e *Engine) ResetAllData(ctx context.Context) error {
	e.autoCheckpoint(ctx, "reset")

	err := e.withTx(ctx, func(tx service.Transaction) error {
		if err := tx.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
		return e.seedDefaults(ctx, tx)
	})
	if err != nil {
		return err
	}
	slog.Info("reset all data")
	return nil
}

func (e *Engine) seedDefaults(ctx context.Context, tx service.Transaction) error {
	settings, err := tx.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		settings = &model.Settings{
			Currency:  e.defaultCurrency,
			UpdatedAt: time.Now().UTC(),
		}
		if err := tx.SaveSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
	}

	categories, err := tx.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		for _, category := range model.DefaultCategories() {
			if _, err := tx.CreateCategory(ctx, &category); err != nil {
				return fmt.Errorf("failed to seed category %q: %w", category.Name, err)
			}
		}
	}

	accounts, err := tx.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	if len(accounts) == 0 {
		account := &model.Account{
			Name: model.DefaultAccountName,
			Type: model.AccountTypeCash,
		}
		if _, err := tx.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to seed default account: %w", err)
		}
	}

	return nil
}

// autoCheckpoint snapshots the database before a destructive operation when a
// checkpoint manager is attached. Failures are logged, not fatal; the
// operation itself still runs atomically.
func (e *Engine) autoCheckpoint(ctx context.Context, prefix string) {
	if e.checkpoints == nil {
		return
	}
	if err := e.checkpoints.AutoCheckpoint(ctx, prefix); err != nil {
		slog.Warn("auto-checkpoint failed", "prefix", prefix, "error", err)
	}
}
