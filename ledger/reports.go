package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

// CategoryBreakdown aggregates the period's transactions per category name.
type CategoryBreakdown struct {
	Name   string
	Type   model.TransactionType
	Count  int
	Amount decimal.Decimal
}

// CategoryBreakdown returns per-category totals for the period, largest
// amount first. Transactions without a category fold under the empty name.
func (e *Engine) CategoryBreakdown(ctx context.Context, start, end time.Time) ([]CategoryBreakdown, error) {
	summary, err := e.storage.GetCategorySummary(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load category summary: %w", err)
	}

	categories, err := e.storage.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	typesByName := make(map[string]model.TransactionType, len(categories))
	for _, category := range categories {
		typesByName[category.Name] = category.Type
	}

	breakdown := make([]CategoryBreakdown, 0, len(summary))
	for name, entry := range summary {
		categoryType, ok := typesByName[name]
		if !ok {
			categoryType = model.TypeExpense
		}
		breakdown = append(breakdown, CategoryBreakdown{
			Name:   name,
			Type:   categoryType,
			Count:  entry.Count,
			Amount: entry.Amount,
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if !breakdown[i].Amount.Equal(breakdown[j].Amount) {
			return breakdown[i].Amount.GreaterThan(breakdown[j].Amount)
		}
		return breakdown[i].Name < breakdown[j].Name
	})
	return breakdown, nil
}

// CashFlow returns the period's income, expense, loan, and transfer totals.
func (e *Engine) CashFlow(ctx context.Context, start, end time.Time) (*service.CashFlowSummary, error) {
	return e.storage.GetCashFlow(ctx, start, end)
}

// OutstandingLoans groups open loans by counterparty. Net is lent minus
// borrowed: positive means the counterparty owes the user, negative the
// reverse.
func (e *Engine) OutstandingLoans(ctx context.Context) ([]service.LoanSummary, error) {
	loans, err := e.storage.GetTransactions(ctx, service.TransactionFilter{
		Types:      []model.TransactionType{model.TypeLoan},
		LoanStatus: model.LoanStatusOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load open loans: %w", err)
	}

	byCounterparty := make(map[string]service.LoanSummary)
	for i := range loans {
		loan := &loans[i]
		summary := byCounterparty[loan.Counterparty]
		summary.Counterparty = loan.Counterparty
		if loan.LoanType == model.LoanTypeBorrow {
			summary.Borrowed = summary.Borrowed.Add(loan.Amount)
		} else {
			summary.Lent = summary.Lent.Add(loan.Amount)
		}
		byCounterparty[loan.Counterparty] = summary
	}

	summaries := make([]service.LoanSummary, 0, len(byCounterparty))
	for _, summary := range byCounterparty {
		summary.Net = summary.Lent.Sub(summary.Borrowed)
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Counterparty < summaries[j].Counterparty
	})
	return summaries, nil
}

// FormatAmount renders a decimal amount in the settings currency, using the
// currency's symbol and fraction digits.
func (e *Engine) FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error) {
	settings, err := e.GetSettings(ctx)
	if err != nil {
		return "", err
	}

	currency := money.GetCurrency(settings.Currency)
	if currency == nil {
		currency = money.GetCurrency(money.USD)
	}
	minor := amount.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return money.New(minor, currency.Code).Display(), nil
}
