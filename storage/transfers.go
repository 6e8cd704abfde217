package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// CreateTransfer inserts a transfer record and returns it with its generated
// ID. Balance movement belongs to the ledger engine.
func (s *SQLiteStorage) CreateTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransfer(transfer); err != nil {
		return nil, err
	}
	return s.createTransferTx(ctx, s.db, transfer)
}

func (s *SQLiteStorage) createTransferTx(ctx context.Context, q queryable, transfer *model.Transfer) (*model.Transfer, error) {
	created := *transfer
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	if created.Date.IsZero() {
		created.Date = created.CreatedAt
	}

	query := `
		INSERT INTO transfers (id, from_account_id, to_account_id, amount, note, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := q.ExecContext(ctx, query,
		created.ID,
		created.FromAccountID,
		created.ToAccountID,
		created.Amount.String(),
		nullString(created.Note),
		created.Date.UTC(),
		created.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	slog.Debug("created transfer",
		"id", created.ID,
		"from", created.FromAccountID,
		"to", created.ToAccountID,
		"amount", created.Amount.String())
	return &created, nil
}

// GetTransferByID returns a transfer by ID, or nil if it does not exist.
func (s *SQLiteStorage) GetTransferByID(ctx context.Context, id string) (*model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransferByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransferByIDTx(ctx context.Context, q queryable, id string) (*model.Transfer, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount, note, date, created_at
		FROM transfers
		WHERE id = ?`

	var transfer model.Transfer
	var amountText string
	var note sql.NullString
	err := q.QueryRowContext(ctx, query, id).Scan(
		&transfer.ID,
		&transfer.FromAccountID,
		&transfer.ToAccountID,
		&amountText,
		&note,
		&transfer.Date,
		&transfer.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Transfer not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	transfer.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
	}
	transfer.Note = note.String
	return &transfer, nil
}

// GetTransfers returns all transfers in insertion order.
func (s *SQLiteStorage) GetTransfers(ctx context.Context) ([]model.Transfer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransfersTx(ctx, s.db)
}

func (s *SQLiteStorage) getTransfersTx(ctx context.Context, q queryable) ([]model.Transfer, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount, note, date, created_at
		FROM transfers
		ORDER BY rowid`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var transfers []model.Transfer
	for rows.Next() {
		var transfer model.Transfer
		var amountText string
		var note sql.NullString
		if err := rows.Scan(
			&transfer.ID,
			&transfer.FromAccountID,
			&transfer.ToAccountID,
			&amountText,
			&note,
			&transfer.Date,
			&transfer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfer.Amount, err = decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
		}
		transfer.Note = note.String
		transfers = append(transfers, transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	slog.Debug("retrieved transfers", "count", len(transfers))
	return transfers, nil
}
