package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

func TestTransactionRoundTrip(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	date := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	created, err := storage.CreateTransaction(ctx, &model.Transaction{
		Type:                    model.TypeLoan,
		Amount:                  decimal.RequireFromString("1234.56"),
		CategoryID:              "cat-1",
		CategoryName:            "Lend",
		PaymentMethod:           "Bank",
		AccountID:               "acc-1",
		Note:                    "lunch money",
		LoanType:                model.LoanTypeLend,
		LoanStatus:              model.LoanStatusOpen,
		LoanSettlementAccountID: "acc-2",
		Counterparty:            "Alice",
		Date:                    date,
		Tags:                    []string{"friends", "lunch"},
	})
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}

	got, err := storage.GetTransactionByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if got == nil {
		t.Fatal("expected transaction, got nil")
	}

	if got.Type != model.TypeLoan {
		t.Errorf("type: got %s", got.Type)
	}
	if !got.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("amount: got %s", got.Amount)
	}
	if got.CategoryID != "cat-1" || got.CategoryName != "Lend" {
		t.Errorf("category: got %q/%q", got.CategoryID, got.CategoryName)
	}
	if got.PaymentMethod != "Bank" || got.AccountID != "acc-1" {
		t.Errorf("account: got %q/%q", got.PaymentMethod, got.AccountID)
	}
	if got.LoanType != model.LoanTypeLend || got.LoanStatus != model.LoanStatusOpen {
		t.Errorf("loan fields: got %s/%s", got.LoanType, got.LoanStatus)
	}
	if got.LoanSettlementAccountID != "acc-2" || got.Counterparty != "Alice" {
		t.Errorf("loan refs: got %q/%q", got.LoanSettlementAccountID, got.Counterparty)
	}
	if got.Note != "lunch money" {
		t.Errorf("note: got %q", got.Note)
	}
	if !got.Date.Equal(date) {
		t.Errorf("date: got %s, want %s", got.Date, date)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "friends" || got.Tags[1] != "lunch" {
		t.Errorf("tags: got %v", got.Tags)
	}
}

func TestTransactionOptionalFieldsStayEmpty(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateTransaction(ctx, &model.Transaction{
		Type:   model.TypeExpense,
		Amount: decimal.NewFromInt(5),
		Date:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}

	got, err := storage.GetTransactionByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if got.CategoryID != "" || got.AccountID != "" || got.Note != "" || got.Counterparty != "" {
		t.Errorf("expected empty optional fields, got %+v", got)
	}
	if got.Tags == nil {
		t.Error("tags should round trip as empty slice, not nil")
	}
	if len(got.Tags) != 0 {
		t.Errorf("expected no tags, got %v", got.Tags)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name string
		txn  *model.Transaction
	}{
		{"nil transaction", nil},
		{"zero amount", &model.Transaction{Type: model.TypeExpense, Date: time.Now()}},
		{
			"negative amount",
			&model.Transaction{Type: model.TypeExpense, Amount: decimal.NewFromInt(-1), Date: time.Now()},
		},
		{"zero date", &model.Transaction{Type: model.TypeExpense, Amount: decimal.NewFromInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := storage.CreateTransaction(ctx, tt.txn); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func seedFilterTransactions(t *testing.T, storage *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	seed := []model.Transaction{
		{
			Type: model.TypeIncome, Amount: decimal.NewFromInt(1000), AccountID: "acc-1",
			CategoryID: "cat-salary", Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			Type: model.TypeExpense, Amount: decimal.NewFromInt(50), AccountID: "acc-1",
			CategoryID: "cat-food", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			Type: model.TypeExpense, Amount: decimal.NewFromInt(75), AccountID: "acc-2",
			CategoryID: "cat-food", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Type: model.TypeLoan, LoanType: model.LoanTypeLend, LoanStatus: model.LoanStatusOpen,
			Amount: decimal.NewFromInt(200), AccountID: "acc-2",
			Date: time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			Type: model.TypeLoan, LoanType: model.LoanTypeBorrow, LoanStatus: model.LoanStatusSettled,
			Amount: decimal.NewFromInt(300), AccountID: "acc-1",
			Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for i := range seed {
		if _, err := storage.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("failed to seed transaction %d: %v", i, err)
		}
	}
}

func TestGetTransactionsFilters(t *testing.T) {
	storage := createTestStorage(t)
	seedFilterTransactions(t, storage)

	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter service.TransactionFilter
		want   int
	}{
		{"no filter", service.TransactionFilter{}, 5},
		{"january", service.TransactionFilter{StartDate: &jan1, EndDate: &jan31}, 2},
		{"start date inclusive", service.TransactionFilter{StartDate: &feb1}, 3},
		{"by account", service.TransactionFilter{AccountID: "acc-1"}, 3},
		{"by category", service.TransactionFilter{CategoryID: "cat-food"}, 2},
		{"by type", service.TransactionFilter{Types: []model.TransactionType{model.TypeLoan}}, 2},
		{
			"by multiple types",
			service.TransactionFilter{Types: []model.TransactionType{model.TypeIncome, model.TypeExpense}},
			3,
		},
		{
			"open loans",
			service.TransactionFilter{
				Types:      []model.TransactionType{model.TypeLoan},
				LoanStatus: model.LoanStatusOpen,
			},
			1,
		},
		{"limit", service.TransactionFilter{Limit: 2}, 2},
		{"limit and offset", service.TransactionFilter{Limit: 10, Offset: 4}, 1},
		{
			"combined account and date",
			service.TransactionFilter{AccountID: "acc-1", StartDate: &feb1},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.GetTransactions(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("failed to get transactions: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d transactions, got %d", tt.want, len(got))
			}
		})
	}
}

func TestGetTransactionsInvalidDateRange(t *testing.T) {
	storage := createTestStorage(t)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := storage.GetTransactions(context.Background(), service.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
	})
	if err != ErrInvalidDateRange {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateTransaction(ctx, &model.Transaction{
		Type:   model.TypeExpense,
		Amount: decimal.NewFromInt(100),
		Note:   "before",
		Date:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}

	created.Amount = decimal.NewFromInt(160)
	created.Note = "after"
	created.Tags = []string{"updated"}
	if err := storage.UpdateTransaction(ctx, created); err != nil {
		t.Fatalf("failed to update transaction: %v", err)
	}

	got, err := storage.GetTransactionByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to re-read transaction: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(160)) || got.Note != "after" {
		t.Errorf("update not applied: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "updated" {
		t.Errorf("tags not updated: %v", got.Tags)
	}
}

func TestUpdateMissingTransaction(t *testing.T) {
	storage := createTestStorage(t)

	err := storage.UpdateTransaction(context.Background(), &model.Transaction{
		ID:     "missing",
		Type:   model.TypeExpense,
		Amount: decimal.NewFromInt(1),
		Date:   time.Now().UTC(),
	})
	if err == nil {
		t.Error("expected error for updating a missing transaction")
	}
}

func TestDeleteMissingTransactionIsNotAnError(t *testing.T) {
	storage := createTestStorage(t)

	if err := storage.DeleteTransaction(context.Background(), "missing"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestGetCategorySummary(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	seed := []model.Transaction{
		{Type: model.TypeExpense, Amount: decimal.NewFromInt(20), CategoryName: "Food", Date: date},
		{Type: model.TypeExpense, Amount: decimal.NewFromInt(30), CategoryName: "Food", Date: date},
		{Type: model.TypeIncome, Amount: decimal.NewFromInt(500), CategoryName: "Salary", Date: date},
		{Type: model.TypeExpense, Amount: decimal.NewFromInt(7), Date: date}, // uncategorized
	}
	for i := range seed {
		if _, err := storage.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("failed to seed transaction %d: %v", i, err)
		}
	}

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	summary, err := storage.GetCategorySummary(ctx, start, end)
	if err != nil {
		t.Fatalf("failed to get category summary: %v", err)
	}

	food := summary["Food"]
	if food.Count != 2 || !food.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Food summary: %+v", food)
	}
	salary := summary["Salary"]
	if salary.Count != 1 || !salary.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Salary summary: %+v", salary)
	}
	uncategorized := summary[""]
	if uncategorized.Count != 1 || !uncategorized.Amount.Equal(decimal.NewFromInt(7)) {
		t.Errorf("uncategorized summary: %+v", uncategorized)
	}

	if _, err := storage.GetCategorySummary(ctx, end, start); err != ErrInvalidDateRange {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestGetCashFlow(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	seed := []model.Transaction{
		{Type: model.TypeIncome, Amount: decimal.NewFromInt(1000), Date: date},
		{Type: model.TypeExpense, Amount: decimal.NewFromInt(300), Date: date},
		{Type: model.TypeLoan, LoanType: model.LoanTypeBorrow, LoanStatus: model.LoanStatusOpen, Amount: decimal.NewFromInt(200), Date: date},
		{Type: model.TypeLoan, LoanType: model.LoanTypeLend, LoanStatus: model.LoanStatusOpen, Amount: decimal.NewFromInt(50), Date: date},
		// Outside the window.
		{Type: model.TypeExpense, Amount: decimal.NewFromInt(999), Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i := range seed {
		if _, err := storage.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("failed to seed transaction %d: %v", i, err)
		}
	}
	if _, err := storage.CreateTransfer(ctx, &model.Transfer{
		FromAccountID: "a1",
		ToAccountID:   "a2",
		Amount:        decimal.NewFromInt(400),
		Date:          date,
	}); err != nil {
		t.Fatalf("failed to seed transfer: %v", err)
	}

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	summary, err := storage.GetCashFlow(ctx, start, end)
	if err != nil {
		t.Fatalf("failed to get cash flow: %v", err)
	}

	if !summary.TotalIncome.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("income: got %s", summary.TotalIncome)
	}
	if !summary.TotalExpenses.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expenses: got %s", summary.TotalExpenses)
	}
	if !summary.TotalBorrowed.Equal(decimal.NewFromInt(200)) {
		t.Errorf("borrowed: got %s", summary.TotalBorrowed)
	}
	if !summary.TotalLent.Equal(decimal.NewFromInt(50)) {
		t.Errorf("lent: got %s", summary.TotalLent)
	}
	if !summary.NetCashFlow.Equal(decimal.NewFromInt(850)) {
		t.Errorf("net: got %s", summary.NetCashFlow)
	}
	if !summary.TransferVolume.Equal(decimal.NewFromInt(400)) {
		t.Errorf("transfer volume: got %s", summary.TransferVolume)
	}
}

func TestTagsNormalizedOnWrite(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateTransaction(ctx, &model.Transaction{
		Type:   model.TypeExpense,
		Amount: decimal.NewFromInt(1),
		Date:   time.Now().UTC(),
		Tags:   []string{" food ", "food", "", "work"},
	})
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}

	got, err := storage.GetTransactionByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "food" || got.Tags[1] != "work" {
		t.Errorf("expected normalized tags [food work], got %v", got.Tags)
	}
}
