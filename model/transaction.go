// Package model defines the entities persisted by the ledger: settings,
// categories, accounts, transactions, and transfers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies how a transaction moves money.
type TransactionType string

const (
	// TypeExpense represents money leaving an account.
	TypeExpense TransactionType = "expense"
	// TypeIncome represents money entering an account.
	TypeIncome TransactionType = "income"
	// TypeLoan represents money borrowed from or lent to a counterparty.
	TypeLoan TransactionType = "loan"
)

// LoanType distinguishes the direction of a loan transaction.
type LoanType string

const (
	// LoanTypeBorrow means money was received from the counterparty.
	LoanTypeBorrow LoanType = "borrow"
	// LoanTypeLend means money was given to the counterparty.
	LoanTypeLend LoanType = "lend"
)

// LoanStatus tracks whether a loan has been repaid.
type LoanStatus string

const (
	// LoanStatusOpen means the loan is outstanding.
	LoanStatusOpen LoanStatus = "open"
	// LoanStatusSettled means the loan has been repaid via the settlement account.
	LoanStatusSettled LoanStatus = "settled"
)

// Transaction represents a single ledger entry. CategoryName and
// PaymentMethod are denormalized caches of the category and account names at
// write time; they are not kept in sync with later renames.
type Transaction struct {
	Date                    time.Time       `json:"date"`
	CreatedAt               time.Time       `json:"createdAt,omitempty"`
	ID                      string          `json:"id"`
	Type                    TransactionType `json:"type"`
	CategoryID              string          `json:"categoryId,omitempty"`
	CategoryName            string          `json:"categoryName,omitempty"`
	PaymentMethod           string          `json:"paymentMethod,omitempty"`
	AccountID               string          `json:"accountId,omitempty"`
	LoanType                LoanType        `json:"loanType,omitempty"`
	LoanStatus              LoanStatus      `json:"loanStatus,omitempty"`
	LoanSettlementAccountID string          `json:"loanSettlementAccountId,omitempty"`
	Counterparty            string          `json:"counterparty,omitempty"`
	Note                    string          `json:"note,omitempty"`
	Amount                  decimal.Decimal `json:"amount"`
	Tags                    []string        `json:"tags"`
}

// IsLoan reports whether the transaction is a loan entry.
func (t *Transaction) IsLoan() bool {
	return t.Type == TypeLoan
}

// Validate checks the invariants every persisted transaction must satisfy.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", t.Amount)
	}
	switch t.Type {
	case TypeExpense, TypeIncome, TypeLoan:
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if t.IsLoan() {
		switch t.LoanType {
		case LoanTypeBorrow, LoanTypeLend:
		default:
			return fmt.Errorf("unknown loan type %q", t.LoanType)
		}
		switch t.LoanStatus {
		case LoanStatusOpen, LoanStatusSettled:
		default:
			return fmt.Errorf("unknown loan status %q", t.LoanStatus)
		}
	}
	return nil
}

// Clone returns a copy that can be mutated without affecting the original.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// TransactionPatch carries a partial update. Nil fields keep their existing
// values; non-nil fields overwrite, including overwriting with a zero value.
type TransactionPatch struct {
	Date                    *time.Time
	Type                    *TransactionType
	CategoryID              *string
	CategoryName            *string
	PaymentMethod           *string
	AccountID               *string
	LoanType                *LoanType
	LoanStatus              *LoanStatus
	LoanSettlementAccountID *string
	Counterparty            *string
	Note                    *string
	Amount                  *decimal.Decimal
	Tags                    *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p == TransactionPatch{}
}

// ApplyPatch merges the set fields of the patch into the transaction.
func (t *Transaction) ApplyPatch(p TransactionPatch) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.CategoryName != nil {
		t.CategoryName = *p.CategoryName
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = *p.PaymentMethod
	}
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.LoanType != nil {
		t.LoanType = *p.LoanType
	}
	if p.LoanStatus != nil {
		t.LoanStatus = *p.LoanStatus
	}
	if p.LoanSettlementAccountID != nil {
		t.LoanSettlementAccountID = *p.LoanSettlementAccountID
	}
	if p.Counterparty != nil {
		t.Counterparty = *p.Counterparty
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
}

// NormalizeTags trims, deduplicates, and drops blank tags while preserving
// first-seen order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// DefaultLoanType infers the loan direction from a category name: a name
// containing "borrow" means money received, anything else means money lent.
func DefaultLoanType(categoryName string) LoanType {
	if strings.Contains(strings.ToLower(categoryName), "borrow") {
		return LoanTypeBorrow
	}
	return LoanTypeLend
}
