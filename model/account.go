package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType identifies the kind of account holding a balance.
type AccountType string

const (
	// AccountTypeCash represents physical cash on hand.
	AccountTypeCash AccountType = "Cash"
	// AccountTypeBank represents a bank account.
	AccountTypeBank AccountType = "Bank"
	// AccountTypeMobile represents a mobile wallet.
	AccountTypeMobile AccountType = "Mobile"
)

// DefaultAccountName is the account synthesized for transactions that carry
// no payment method.
const DefaultAccountName = "Cash"

// Account represents a store of money with an authoritative running balance.
// The balance is written exclusively by the ledger engine; it equals the
// creation balance plus every delta applied since.
type Account struct {
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
}

// Validate checks the invariants every persisted account must satisfy.
func (a *Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account name must not be empty")
	}
	switch a.Type {
	case AccountTypeCash, AccountTypeBank, AccountTypeMobile:
	default:
		return fmt.Errorf("unknown account type %q", a.Type)
	}
	return nil
}

// DefaultAccountType returns the type synthesized for an account created
// from a bare payment-method name: literal "Cash" becomes a cash account,
// everything else a bank account.
func DefaultAccountType(name string) AccountType {
	if name == DefaultAccountName {
		return AccountTypeCash
	}
	return AccountTypeBank
}

// AccountPatch carries a partial account update. Nil fields keep their
// existing values.
type AccountPatch struct {
	Name    *string
	Type    *AccountType
	Balance *decimal.Decimal
}

// IsEmpty reports whether the patch changes nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Balance == nil
}
