package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paisabook/paisabook/common"
	"github.com/paisabook/paisabook/ofx"
	"github.com/paisabook/paisabook/service"
)

// ImportStatement parses an OFX/QFX statement file and imports its
// transactions against the given account.
func (e *Engine) ImportStatement(ctx context.Context, path, accountID string) (int, error) {
	file, err := os.Open(path) // #nosec G304 - path is chosen by the host
	if err != nil {
		return 0, fmt.Errorf("failed to open statement file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return e.ImportStatementFrom(ctx, file, accountID)
}

// ImportStatementFrom imports an OFX/QFX statement read from r against the
// given account. Each parsed transaction is inserted and its delta applied to
// the account's stored balance, all inside one storage transaction, so the
// account ends at its prior balance plus the statement's net and no other
// account is touched.
func (e *Engine) ImportStatementFrom(ctx context.Context, r io.Reader, accountID string) (int, error) {
	account, err := e.storage.GetAccountByID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return 0, fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}

	transactions, err := ofx.NewParser().ParseFile(ctx, r)
	if err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	err = e.withTx(ctx, func(tx service.Transaction) error {
		for i := range transactions {
			t := &transactions[i]
			t.AccountID = account.ID
			t.PaymentMethod = account.Name

			if err := resolveTransaction(ctx, tx, t); err != nil {
				return err
			}
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%w: %s", common.ErrValidation, err)
			}

			stored, err := tx.CreateTransaction(ctx, t)
			if err != nil {
				return fmt.Errorf("failed to persist statement transaction: %w", err)
			}
			if err := applyDelta(ctx, tx, stored.AccountID, BalanceDelta(stored)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("imported statement",
		"account", account.Name,
		"transactions", len(transactions))
	return len(transactions), nil
}
