package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paisabook/paisabook/common"
	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

// Transfer moves money between two distinct accounts. It is the one
// solvency-checked operation in the system: the source balance must cover the
// amount. Ordinary transactions and loans carry no such check and may drive
// an account negative. The debit, credit, and transfer record are written in
// one storage transaction.
func (e *Engine) Transfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	if transfer == nil {
		return nil, fmt.Errorf("%w: transfer is required", common.ErrValidation)
	}
	if err := transfer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
	}

	var created *model.Transfer
	err := e.withTx(ctx, func(tx service.Transaction) error {
		from, err := tx.GetAccountByID(ctx, transfer.FromAccountID)
		if err != nil {
			return fmt.Errorf("failed to load source account: %w", err)
		}
		if from == nil {
			return fmt.Errorf("account %s: %w", transfer.FromAccountID, common.ErrNotFound)
		}

		to, err := tx.GetAccountByID(ctx, transfer.ToAccountID)
		if err != nil {
			return fmt.Errorf("failed to load destination account: %w", err)
		}
		if to == nil {
			return fmt.Errorf("account %s: %w", transfer.ToAccountID, common.ErrNotFound)
		}

		if from.Balance.LessThan(transfer.Amount) {
			return fmt.Errorf("account %q has %s, needs %s: %w",
				from.Name, from.Balance, transfer.Amount, common.ErrInsufficientFunds)
		}

		fromBalance := from.Balance.Sub(transfer.Amount)
		if err := tx.UpdateAccount(ctx, from.ID, model.AccountPatch{Balance: &fromBalance}); err != nil {
			return fmt.Errorf("failed to debit source account: %w", err)
		}

		toBalance := to.Balance.Add(transfer.Amount)
		if err := tx.UpdateAccount(ctx, to.ID, model.AccountPatch{Balance: &toBalance}); err != nil {
			return fmt.Errorf("failed to credit destination account: %w", err)
		}

		created, err = tx.CreateTransfer(ctx, transfer)
		if err != nil {
			return fmt.Errorf("failed to persist transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created transfer",
		"id", created.ID,
		"from", created.FromAccountID,
		"to", created.ToAccountID,
		"amount", created.Amount.String())
	return created, nil
}
