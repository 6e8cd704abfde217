// Package service defines the interfaces between the ledger engine and its
// persistence layer.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Zero-valued fields are ignored.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	AccountID  string
	CategoryID string
	Types      []model.TransactionType
	LoanStatus model.LoanStatus
	Limit      int
	Offset     int
}

// Storage defines the contract for the persistence layer. Get methods return
// (nil, nil) when the record does not exist.
type Storage interface {
	// Settings operations
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings *model.Settings) error

	// Category operations
	CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string) error

	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByName(ctx context.Context, name string) (*model.Account, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error
	DeleteAccount(ctx context.Context, id string) error

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	// Transfer operations
	CreateTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error)
	GetTransferByID(ctx context.Context, id string) (*model.Transfer, error)
	GetTransfers(ctx context.Context) ([]model.Transfer, error)

	// Reporting operations
	GetCategorySummary(ctx context.Context, start, end time.Time) (map[string]CategorySummary, error)
	GetCashFlow(ctx context.Context, start, end time.Time) (*CashFlowSummary, error)

	// Database management
	Clear(ctx context.Context) error
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CategorySummary contains aggregated statistics for a category.
type CategorySummary struct {
	Count  int
	Amount decimal.Decimal
}

// CashFlowSummary contains income, expense, loan, and net flow totals for a
// period. NetCashFlow is the sum of every balance delta in the period, so
// transfers cancel out of it; TransferVolume reports them separately.
type CashFlowSummary struct {
	DateRange      DateRange
	TotalIncome    decimal.Decimal
	TotalExpenses  decimal.Decimal
	TotalBorrowed  decimal.Decimal
	TotalLent      decimal.Decimal
	NetCashFlow    decimal.Decimal
	TransferVolume decimal.Decimal
}

// LoanSummary aggregates open loans against one counterparty. Net is lent
// minus borrowed: positive means the counterparty owes the user.
type LoanSummary struct {
	Counterparty string
	Borrowed     decimal.Decimal
	Lent         decimal.Decimal
	Net          decimal.Decimal
}
