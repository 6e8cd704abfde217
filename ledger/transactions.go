package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/common"
	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

// resolveTransaction is the single normalization step every public operation
// applies before validating and persisting a transaction. Resolution order
// matters: category first (it can supply the type), then type/date/tags
// defaults, then loan defaults, then account resolution, and the settlement
// default last so it can pick up an account ID resolved from the payment
// method.
func resolveTransaction(ctx context.Context, store service.Storage, t *model.Transaction) error {
	// A category ID with no cached name resolves the name and, when the
	// type is still unset, the type. A missing category is left alone.
	if t.CategoryID != "" && t.CategoryName == "" {
		category, err := store.GetCategoryByID(ctx, t.CategoryID)
		if err != nil {
			return fmt.Errorf("failed to resolve category: %w", err)
		}
		if category != nil {
			t.CategoryName = category.Name
			if t.Type == "" {
				t.Type = category.Type
			}
		}
	}

	switch t.Type {
	case model.TypeExpense, model.TypeIncome, model.TypeLoan:
	default:
		t.Type = model.TypeExpense
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	t.Tags = model.NormalizeTags(t.Tags)

	if t.IsLoan() {
		if t.LoanType == "" {
			t.LoanType = model.DefaultLoanType(t.CategoryName)
		}
		if t.LoanStatus == "" {
			t.LoanStatus = model.LoanStatusOpen
		}
	}

	// The account wins over the payment method: a set account ID overwrites
	// the denormalized name, and only an unset ID resolves from the name.
	if t.AccountID != "" {
		account, err := store.GetAccountByID(ctx, t.AccountID)
		if err != nil {
			return fmt.Errorf("failed to resolve account: %w", err)
		}
		if account == nil {
			return fmt.Errorf("account %s: %w", t.AccountID, common.ErrNotFound)
		}
		t.PaymentMethod = account.Name
	} else if t.PaymentMethod != "" {
		account, err := store.GetAccountByName(ctx, t.PaymentMethod)
		if err != nil {
			return fmt.Errorf("failed to resolve payment method: %w", err)
		}
		if account != nil {
			t.AccountID = account.ID
		}
	}

	if t.IsLoan() && t.LoanStatus == model.LoanStatusSettled && t.LoanSettlementAccountID == "" {
		t.LoanSettlementAccountID = t.AccountID
	}

	return nil
}

// applyDelta adds a signed amount to an account's stored balance.
func applyDelta(ctx context.Context, store service.Storage, accountID string, delta decimal.Decimal) error {
	if accountID == "" || delta.IsZero() {
		return nil
	}

	account, err := store.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}

	balance := account.Balance.Add(delta)
	if err := store.UpdateAccount(ctx, accountID, model.AccountPatch{Balance: &balance}); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// reconcileAccounts moves a delta between the old and new account of one
// role (primary or settlement). When the account is unchanged, the single
// account absorbs the difference; when it changed, the old account gives the
// old delta back and the new account takes the new delta.
func reconcileAccounts(ctx context.Context, store service.Storage, oldID, newID string, oldDelta, newDelta decimal.Decimal) error {
	if oldID == newID {
		return applyDelta(ctx, store, newID, newDelta.Sub(oldDelta))
	}
	if err := applyDelta(ctx, store, oldID, oldDelta.Neg()); err != nil {
		return err
	}
	return applyDelta(ctx, store, newID, newDelta)
}

// CreateTransaction normalizes, validates, and persists a transaction, then
// applies its balance deltas to the primary and settlement accounts. The
// whole operation runs in one storage transaction.
func (e *Engine) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: transaction is required", common.ErrValidation)
	}

	var created *model.Transaction
	err := e.withTx(ctx, func(tx service.Transaction) error {
		t := txn.Clone()
		if err := resolveTransaction(ctx, tx, t); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %s", common.ErrValidation, err)
		}

		stored, err := tx.CreateTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to persist transaction: %w", err)
		}

		if err := applyDelta(ctx, tx, stored.AccountID, BalanceDelta(stored)); err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, stored.LoanSettlementAccountID, SettlementDelta(stored)); err != nil {
			return err
		}

		created, err = tx.GetTransactionByID(ctx, stored.ID)
		if err != nil {
			return fmt.Errorf("failed to re-read transaction: %w", err)
		}
		if created == nil {
			return fmt.Errorf("transaction %s: %w", stored.ID, common.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created transaction",
		"id", created.ID,
		"type", created.Type,
		"amount", created.Amount.String(),
		"account_id", created.AccountID)
	return created, nil
}

// UpdateTransaction merges a patch over an existing transaction, re-runs
// resolution, and reconciles the primary and settlement account balances
// against the pre-merge snapshot. The pre-merge deltas are computed before
// any record is overwritten; reading them afterwards would double-count.
func (e *Engine) UpdateTransaction(ctx context.Context, id string, patch model.TransactionPatch) (*model.Transaction, error) {
	var updated *model.Transaction
	err := e.withTx(ctx, func(tx service.Transaction) error {
		old, err := tx.GetTransactionByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if old == nil {
			return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
		}

		merged := old.Clone()
		merged.ApplyPatch(patch)

		// A changed category invalidates the cached name unless the patch
		// supplied one; resolution re-derives it.
		if patch.CategoryID != nil && *patch.CategoryID != old.CategoryID && patch.CategoryName == nil {
			merged.CategoryName = ""
		}

		if err := resolveTransaction(ctx, tx, merged); err != nil {
			return err
		}
		if err := merged.Validate(); err != nil {
			return fmt.Errorf("%w: %s", common.ErrValidation, err)
		}

		oldPrimary, newPrimary := BalanceDelta(old), BalanceDelta(merged)
		oldSettlement, newSettlement := SettlementDelta(old), SettlementDelta(merged)

		if err := reconcileAccounts(ctx, tx, old.AccountID, merged.AccountID, oldPrimary, newPrimary); err != nil {
			return err
		}
		if err := reconcileAccounts(ctx, tx, old.LoanSettlementAccountID, merged.LoanSettlementAccountID, oldSettlement, newSettlement); err != nil {
			return err
		}

		if err := tx.UpdateTransaction(ctx, merged); err != nil {
			return fmt.Errorf("failed to persist transaction: %w", err)
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("updated transaction",
		"id", updated.ID,
		"type", updated.Type,
		"amount", updated.Amount.String(),
		"account_id", updated.AccountID)
	return updated, nil
}

// DeleteTransaction reverses a transaction's balance deltas and removes the
// record. Deleting an ID that does not exist is a no-op, so the UI can retry
// deletes without harm.
func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	err := e.withTx(ctx, func(tx service.Transaction) error {
		existing, err := tx.GetTransactionByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if existing == nil {
			return nil
		}

		if err := applyDelta(ctx, tx, existing.AccountID, BalanceDelta(existing).Neg()); err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, existing.LoanSettlementAccountID, SettlementDelta(existing).Neg()); err != nil {
			return err
		}

		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("deleted transaction", "id", id)
	return nil
}
