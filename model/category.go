package model

import (
	"fmt"
	"time"
)

// Category labels transactions and carries the default type a transaction
// inherits when it references the category. Names are unique.
type Category struct {
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Type      TransactionType `json:"type"`
}

// Validate checks the invariants every persisted category must satisfy.
func (c *Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("category name must not be empty")
	}
	switch c.Type {
	case TypeExpense, TypeIncome, TypeLoan:
	default:
		return fmt.Errorf("unknown category type %q", c.Type)
	}
	return nil
}

// CategoryPatch carries a partial category update. Nil fields keep their
// existing values.
type CategoryPatch struct {
	Name  *string
	Color *string
	Type  *TransactionType
}

// IsEmpty reports whether the patch changes nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Color == nil && p.Type == nil
}

// DefaultCategories returns the seed categories for a fresh ledger.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food", Color: "#f97316", Type: TypeExpense},
		{Name: "Transport", Color: "#3b82f6", Type: TypeExpense},
		{Name: "Shopping", Color: "#ec4899", Type: TypeExpense},
		{Name: "Bills", Color: "#eab308", Type: TypeExpense},
		{Name: "Health", Color: "#ef4444", Type: TypeExpense},
		{Name: "Entertainment", Color: "#8b5cf6", Type: TypeExpense},
		{Name: "Salary", Color: "#22c55e", Type: TypeIncome},
		{Name: "Business", Color: "#14b8a6", Type: TypeIncome},
		{Name: "Gifts", Color: "#a855f7", Type: TypeIncome},
		{Name: "Borrow", Color: "#06b6d4", Type: TypeLoan},
		{Name: "Lend", Color: "#64748b", Type: TypeLoan},
	}
}
