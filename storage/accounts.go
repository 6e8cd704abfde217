package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// Balances are stored as canonical decimal strings so no floating point ever
// touches money. All arithmetic happens in the ledger engine; the storage
// layer round-trips the text exactly.

// CreateAccount inserts a new account and returns it with its generated ID.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	return s.createAccountTx(ctx, s.db, account)
}

func (s *SQLiteStorage) createAccountTx(ctx context.Context, q queryable, account *model.Account) (*model.Account, error) {
	created := *account
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (id, name, type, balance, created_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := q.ExecContext(ctx, query,
		created.ID, created.Name, string(created.Type), created.Balance.String(), created.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Debug("created account",
		"id", created.ID,
		"name", created.Name,
		"balance", created.Balance.String())
	return &created, nil
}

// GetAccountByID returns an account by ID, or nil if it does not exist.
func (s *SQLiteStorage) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getAccountByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getAccountByIDTx(ctx context.Context, q queryable, id string) (*model.Account, error) {
	query := `
		SELECT id, name, type, balance, created_at
		FROM accounts
		WHERE id = ?`

	return scanAccountRow(q.QueryRowContext(ctx, query, id))
}

// GetAccountByName returns an account by its unique name, or nil if it does
// not exist.
func (s *SQLiteStorage) GetAccountByName(ctx context.Context, name string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getAccountByNameTx(ctx, s.db, name)
}

func (s *SQLiteStorage) getAccountByNameTx(ctx context.Context, q queryable, name string) (*model.Account, error) {
	query := `
		SELECT id, name, type, balance, created_at
		FROM accounts
		WHERE name = ?`

	return scanAccountRow(q.QueryRowContext(ctx, query, name))
}

func scanAccountRow(row *sql.Row) (*model.Account, error) {
	var account model.Account
	var accountType, balance string
	err := row.Scan(&account.ID, &account.Name, &accountType, &balance, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Account not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Type = model.AccountType(accountType)
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	return &account, nil
}

// GetAccounts returns all accounts in insertion order.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccountsTx(ctx, s.db)
}

func (s *SQLiteStorage) getAccountsTx(ctx context.Context, q queryable) ([]model.Account, error) {
	query := `
		SELECT id, name, type, balance, created_at
		FROM accounts
		ORDER BY rowid`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var accounts []model.Account
	for rows.Next() {
		var account model.Account
		var accountType, balance string
		if err := rows.Scan(&account.ID, &account.Name, &accountType, &balance, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Type = model.AccountType(accountType)
		account.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	slog.Debug("retrieved accounts", "count", len(accounts))
	return accounts, nil
}

// UpdateAccount applies a partial update to an account.
func (s *SQLiteStorage) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateAccountTx(ctx, s.db, id, patch)
}

func (s *SQLiteStorage) updateAccountTx(ctx context.Context, q queryable, id string, patch model.AccountPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	setClauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if patch.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Type != nil {
		setClauses = append(setClauses, "type = ?")
		args = append(args, string(*patch.Type))
	}
	if patch.Balance != nil {
		setClauses = append(setClauses, "balance = ?")
		args = append(args, patch.Balance.String())
	}
	args = append(args, id)

	query := "UPDATE accounts SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	slog.Debug("updated account", "id", id)
	return nil
}

// DeleteAccount removes an account record. Transactions referencing it keep
// their dangling account ID; the ledger engine treats those as detached.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteAccountTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteAccountTx(ctx context.Context, q queryable, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.Debug("deleted account", "id", id)
	return nil
}
