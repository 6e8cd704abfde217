package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

func TestValidateContext(t *testing.T) {
	if err := validateContext(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	var nilCtx context.Context
	if err := validateContext(nilCtx); !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", "hello", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.value, "param")
			if tt.wantErr && !errors.Is(err, ErrEmptyString) {
				t.Errorf("expected ErrEmptyString, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateTransaction(t *testing.T) {
	tests := []struct {
		name    string
		txn     *model.Transaction
		wantErr bool
	}{
		{
			name: "valid",
			txn: &model.Transaction{
				Type:   model.TypeExpense,
				Amount: decimal.NewFromInt(1),
				Date:   time.Now(),
			},
		},
		{name: "nil", txn: nil, wantErr: true},
		{
			name:    "zero amount",
			txn:     &model.Transaction{Type: model.TypeExpense, Date: time.Now()},
			wantErr: true,
		},
		{
			name:    "zero date",
			txn:     &model.Transaction{Type: model.TypeExpense, Amount: decimal.NewFromInt(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransaction(tt.txn)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateEntityHelpers(t *testing.T) {
	if err := validateAccount(nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("expected ErrNilParameter, got %v", err)
	}
	if err := validateAccount(&model.Account{Name: "  "}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
	if err := validateAccount(&model.Account{Name: "Cash"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := validateCategory(nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("expected ErrNilParameter, got %v", err)
	}
	if err := validateCategory(&model.Category{Name: ""}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}

	if err := validateTransfer(nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("expected ErrNilParameter, got %v", err)
	}
	if err := validateTransfer(&model.Transfer{
		FromAccountID: "a",
		Amount:        decimal.NewFromInt(1),
	}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for missing destination, got %v", err)
	}
	if err := validateTransfer(&model.Transfer{
		FromAccountID: "a",
		ToAccountID:   "b",
		Amount:        decimal.Zero,
	}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for zero amount, got %v", err)
	}
}
