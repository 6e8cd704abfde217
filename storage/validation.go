// Package storage provides the SQLite persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paisabook/paisabook/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidRecord    = errors.New("invalid record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a transaction before it is written. The
// storage layer only checks structural requirements; business rules live in
// the ledger engine.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("%w: transaction amount must be positive", ErrInvalidRecord)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: transaction date must be set", ErrInvalidRecord)
	}
	return nil
}

// validateAccount validates an account before it is written.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(account.Name) == "" {
		return fmt.Errorf("%w: account name must not be empty", ErrInvalidRecord)
	}
	return nil
}

// validateCategory validates a category before it is written.
func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: category name must not be empty", ErrInvalidRecord)
	}
	return nil
}

// validateTransfer validates a transfer before it is written.
func validateTransfer(transfer *model.Transfer) error {
	if transfer == nil {
		return fmt.Errorf("%w: transfer", ErrNilParameter)
	}
	if transfer.FromAccountID == "" || transfer.ToAccountID == "" {
		return fmt.Errorf("%w: transfer account IDs must be set", ErrInvalidRecord)
	}
	if !transfer.Amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidRecord)
	}
	return nil
}
