package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer moves money between two distinct accounts. Transfers are created
// once and never updated or reversed.
type Transfer struct {
	Date          time.Time       `json:"date"`
	CreatedAt     time.Time       `json:"createdAt,omitempty"`
	ID            string          `json:"id"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Note          string          `json:"note,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// Validate checks the invariants every transfer must satisfy before any
// balance moves.
func (t *Transfer) Validate() error {
	if t.FromAccountID == "" || t.ToAccountID == "" {
		return fmt.Errorf("transfer requires both a source and a destination account")
	}
	if t.FromAccountID == t.ToAccountID {
		return fmt.Errorf("transfer source and destination accounts must differ")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", t.Amount)
	}
	return nil
}
