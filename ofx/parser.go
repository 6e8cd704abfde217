// Package ofx parses OFX/QFX bank and credit card statement downloads into
// ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRegex  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting defects in downloaded statements:
// leading blank lines before the header, mixed-case SEVERITY values, and
// SGML tags missing their closing bracket.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = openTagRegex.ReplaceAllString(content, "$1>")
	return content
}

// ParseFile parses an OFX/QFX statement and returns ledger transactions.
// Amounts become positive decimals; the statement's sign decides the type
// (debits are expenses, credits income). Account links are left for the
// caller to resolve.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			transactions = append(transactions, p.convertStatement(stmt.BankTranList)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			transactions = append(transactions, p.convertStatement(stmt.BankTranList)...)
		}
	}

	slog.Info("parsed OFX file",
		"transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return transactions, nil
}

func (p *Parser) convertStatement(list *ofxgo.TransactionList) []model.Transaction {
	if list == nil {
		return nil
	}
	transactions := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTxn := range list.Transactions {
		txn, err := p.convertTransaction(ofxTxn)
		if err != nil {
			slog.Warn("skipped statement transaction", "fitid", string(ofxTxn.FiTID), "error", err)
			continue
		}
		transactions = append(transactions, txn)
	}
	return transactions
}

func (p *Parser) convertTransaction(ofxTxn ofxgo.Transaction) (model.Transaction, error) {
	// Two fractional digits cover every OFX currency amount; going through
	// the rational keeps floats away from money.
	amount, err := decimal.NewFromString(ofxTxn.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to parse amount: %w", err)
	}

	txnType := model.TypeExpense
	if amount.IsPositive() {
		txnType = model.TypeIncome
	}

	return model.Transaction{
		Date:         ofxTxn.DtPosted.Time.UTC(),
		Type:         txnType,
		Amount:       amount.Abs(),
		Counterparty: p.extractPayeeName(ofxTxn),
		Note:         strings.TrimSpace(string(ofxTxn.Memo)),
		Tags:         []string{},
	}, nil
}

// extractPayeeName pulls the cleanest available merchant name out of a
// statement line.
func (p *Parser) extractPayeeName(txn ofxgo.Transaction) string {
	if txn.Payee != nil && txn.Payee.Name != "" {
		return string(txn.Payee.Name)
	}

	name := string(txn.Name)
	if txn.Memo != "" && isGenericDescription(name) {
		name = string(txn.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"POS DEBIT ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Processors often prepend an "MM/DD " posting date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}
	upper := strings.ToUpper(name)
	for _, g := range generic {
		if upper == g {
			return true
		}
	}
	return false
}
