package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

const transactionColumns = `id, amount, type, category_id, category_name, date, payment_method,
	account_id, note, loan_type, loan_status, loan_settlement_account_id,
	counterparty, tags, created_at`

// CreateTransaction inserts a transaction record and returns it with its
// generated ID. No balance side effects happen here; those belong to the
// ledger engine.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}
	return s.createTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) createTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) (*model.Transaction, error) {
	created := *txn
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.Tags = model.NormalizeTags(created.Tags)

	tagsJSON, err := json.Marshal(created.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := q.ExecContext(ctx, query,
		created.ID,
		created.Amount.String(),
		string(created.Type),
		nullString(created.CategoryID),
		nullString(created.CategoryName),
		created.Date.UTC(),
		nullString(created.PaymentMethod),
		nullString(created.AccountID),
		nullString(created.Note),
		nullString(string(created.LoanType)),
		nullString(string(created.LoanStatus)),
		nullString(created.LoanSettlementAccountID),
		nullString(created.Counterparty),
		string(tagsJSON),
		created.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Debug("created transaction",
		"id", created.ID,
		"type", created.Type,
		"amount", created.Amount.String())
	return &created, nil
}

// GetTransactionByID returns a transaction by ID, or nil if it does not
// exist.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	return scanTransaction(q.QueryRowContext(ctx, query, id))
}

// GetTransactions returns transactions matching the filter in insertion
// order. Date bounds are inclusive.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.Transaction, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, ErrInvalidDateRange
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions`

	conditions := make([]string, 0, 6)
	args := make([]any, 0, 8)
	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, txnType := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(txnType))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.LoanStatus != "" {
		conditions = append(conditions, "loan_status = ?")
		args = append(args, string(filter.LoanStatus))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	slog.Debug("retrieved transactions", "count", len(transactions))
	return transactions, nil
}

// UpdateTransaction overwrites a transaction record with the given state.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.updateTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) updateTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	if err := validateString(txn.ID, "transaction ID"); err != nil {
		return err
	}

	tags := model.NormalizeTags(txn.Tags)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		UPDATE transactions SET
			amount = ?,
			type = ?,
			category_id = ?,
			category_name = ?,
			date = ?,
			payment_method = ?,
			account_id = ?,
			note = ?,
			loan_type = ?,
			loan_status = ?,
			loan_settlement_account_id = ?,
			counterparty = ?,
			tags = ?
		WHERE id = ?`

	result, err := q.ExecContext(ctx, query,
		txn.Amount.String(),
		string(txn.Type),
		nullString(txn.CategoryID),
		nullString(txn.CategoryName),
		txn.Date.UTC(),
		nullString(txn.PaymentMethod),
		nullString(txn.AccountID),
		nullString(txn.Note),
		nullString(string(txn.LoanType)),
		nullString(string(txn.LoanStatus)),
		nullString(txn.LoanSettlementAccountID),
		nullString(txn.Counterparty),
		string(tagsJSON),
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no transaction with id %s", txn.ID)
	}

	slog.Debug("updated transaction", "id", txn.ID)
	return nil
}

// DeleteTransaction removes a transaction record. Deleting a missing ID is
// not an error.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteTransactionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteTransactionTx(ctx context.Context, q queryable, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	slog.Debug("deleted transaction", "id", id)
	return nil
}

// GetCategorySummary aggregates transaction counts and amounts by category
// name for the period. Transactions without a category fold under the empty
// key. Date bounds are inclusive.
func (s *SQLiteStorage) GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]service.CategorySummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategorySummaryTx(ctx, s.db, start, end)
}

func (s *SQLiteStorage) getCategorySummaryTx(ctx context.Context, q queryable, start, end time.Time) (map[string]service.CategorySummary, error) {
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	query := `
		SELECT category_name, amount
		FROM transactions
		WHERE date >= ? AND date <= ?`

	rows, err := q.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	summary := make(map[string]service.CategorySummary)
	for rows.Next() {
		var categoryName sql.NullString
		var amountText string
		if err := rows.Scan(&categoryName, &amountText); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
		}

		entry := summary[categoryName.String]
		entry.Count++
		entry.Amount = entry.Amount.Add(amount)
		summary[categoryName.String] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summary, nil
}

// GetCashFlow totals income, expenses, and loan movement for the period.
// Date bounds are inclusive.
func (s *SQLiteStorage) GetCashFlow(ctx context.Context, start, end time.Time) (*service.CashFlowSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCashFlowTx(ctx, s.db, start, end)
}

func (s *SQLiteStorage) getCashFlowTx(ctx context.Context, q queryable, start, end time.Time) (*service.CashFlowSummary, error) {
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	query := `
		SELECT type, loan_type, amount
		FROM transactions
		WHERE date >= ? AND date <= ?`

	rows, err := q.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flow: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	summary := &service.CashFlowSummary{
		DateRange: service.DateRange{Start: start, End: end},
	}
	for rows.Next() {
		var txnType string
		var loanType sql.NullString
		var amountText string
		if err := rows.Scan(&txnType, &loanType, &amountText); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow row: %w", err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
		}

		switch model.TransactionType(txnType) {
		case model.TypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(amount)
		case model.TypeLoan:
			if model.LoanType(loanType.String) == model.LoanTypeBorrow {
				summary.TotalBorrowed = summary.TotalBorrowed.Add(amount)
			} else {
				summary.TotalLent = summary.TotalLent.Add(amount)
			}
		default:
			// Unknown types count as expenses, matching the delta default.
			summary.TotalExpenses = summary.TotalExpenses.Add(amount)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flow rows: %w", err)
	}

	summary.NetCashFlow = summary.TotalIncome.
		Sub(summary.TotalExpenses).
		Add(summary.TotalBorrowed).
		Sub(summary.TotalLent)

	transferQuery := `
		SELECT amount
		FROM transfers
		WHERE date >= ? AND date <= ?`

	transferRows, err := q.QueryContext(ctx, transferQuery, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer volume: %w", err)
	}
	defer func() {
		_ = transferRows.Close()
	}()

	for transferRows.Next() {
		var amountText string
		if err := transferRows.Scan(&amountText); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
		}
		summary.TransferVolume = summary.TransferVolume.Add(amount)
	}

	if err := transferRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}

	return summary, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amountText, txnType, tagsJSON string
	var categoryID, categoryName, paymentMethod, accountID sql.NullString
	var note, loanType, loanStatus, settlementAccountID, counterparty sql.NullString

	err := row.Scan(
		&txn.ID,
		&amountText,
		&txnType,
		&categoryID,
		&categoryName,
		&txn.Date,
		&paymentMethod,
		&accountID,
		&note,
		&loanType,
		&loanStatus,
		&settlementAccountID,
		&counterparty,
		&tagsJSON,
		&txn.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Transaction not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountText, err)
	}
	txn.Type = model.TransactionType(txnType)
	txn.CategoryID = categoryID.String
	txn.CategoryName = categoryName.String
	txn.PaymentMethod = paymentMethod.String
	txn.AccountID = accountID.String
	txn.Note = note.String
	txn.LoanType = model.LoanType(loanType.String)
	txn.LoanStatus = model.LoanStatus(loanStatus.String)
	txn.LoanSettlementAccountID = settlementAccountID.String
	txn.Counterparty = counterparty.String

	if tagsJSON == "" {
		tagsJSON = "[]"
	}
	if err := json.Unmarshal([]byte(tagsJSON), &txn.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if txn.Tags == nil {
		txn.Tags = []string{}
	}

	return &txn, nil
}

// nullString maps empty strings to NULL so optional columns stay NULL rather
// than holding empty text.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
