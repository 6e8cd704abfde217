package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// BalanceDelta returns the signed amount a transaction applies to its primary
// account. Income and borrowed money flow in; expenses and lent money flow
// out. Unknown types count as expenses, matching the normalization applied at
// the entry of every public operation.
func BalanceDelta(t *model.Transaction) decimal.Decimal {
	switch t.Type {
	case model.TypeIncome:
		return t.Amount
	case model.TypeLoan:
		if t.LoanType == model.LoanTypeBorrow {
			return t.Amount
		}
		return t.Amount.Neg()
	default:
		return t.Amount.Neg()
	}
}

// SettlementDelta returns the signed amount a transaction applies to its loan
// settlement account. It is zero unless the loan is settled: repaying a
// borrowed loan drains the settlement account, collecting a lent loan fills
// it. The settlement delta is independent of the primary delta; the two may
// hit different accounts.
func SettlementDelta(t *model.Transaction) decimal.Decimal {
	if t.LoanStatus != model.LoanStatusSettled {
		return decimal.Zero
	}
	switch t.LoanType {
	case model.LoanTypeBorrow:
		return t.Amount.Neg()
	case model.LoanTypeLend:
		return t.Amount
	default:
		return decimal.Zero
	}
}
