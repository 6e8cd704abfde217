package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paisabook/paisabook/common"
	"github.com/paisabook/paisabook/model"
	"github.com/paisabook/paisabook/service"
)

// Bundle is the JSON interchange envelope for the whole ledger. Accounts are
// optional: a bundle without them has its accounts synthesized from payment
// methods and every balance recomputed from transaction deltas.
type Bundle struct {
	Settings     *model.Settings     `json:"settings,omitempty"`
	Categories   []model.Category    `json:"categories"`
	Transactions []model.Transaction `json:"transactions"`
	Accounts     []model.Account     `json:"accounts,omitempty"`
}

// Export returns the current store as a bundle.
func (e *Engine) Export(ctx context.Context) (*Bundle, error) {
	settings, err := e.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := e.storage.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	transactions, err := e.storage.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	accounts, err := e.storage.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	return &Bundle{
		Settings:     settings,
		Categories:   categories,
		Transactions: transactions,
		Accounts:     accounts,
	}, nil
}

// ExportJSON returns the bundle serialized as indented JSON.
func (e *Engine) ExportJSON(ctx context.Context) ([]byte, error) {
	bundle, err := e.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return data, nil
}

// Import merges a bundle into the store. Transactions are inserted directly,
// bypassing CreateTransaction's balance side effects; replaying those here
// would double-count every delta. Balances come from the bundle's accounts
// when it has any, otherwise they are recomputed from scratch by folding the
// delta calculators over every stored transaction.
func (e *Engine) Import(ctx context.Context, bundle *Bundle) error {
	if bundle == nil {
		return fmt.Errorf("%w: bundle is required", common.ErrValidation)
	}

	existing, err := e.storage.GetTransactions(ctx, service.TransactionFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	if len(existing) > 0 {
		e.autoCheckpoint(ctx, "import")
	}

	err = e.withTx(ctx, func(tx service.Transaction) error {
		if err := e.importSettings(ctx, tx, bundle.Settings); err != nil {
			return err
		}
		if err := importCategories(ctx, tx, bundle.Categories); err != nil {
			return err
		}

		oldIDToName, err := importAccounts(ctx, tx, bundle)
		if err != nil {
			return err
		}

		nameToID := make(map[string]string)
		accounts, err := tx.GetAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to load accounts: %w", err)
		}
		for _, account := range accounts {
			nameToID[account.Name] = account.ID
		}

		for i := range bundle.Transactions {
			if err := importTransaction(ctx, tx, &bundle.Transactions[i], oldIDToName, nameToID); err != nil {
				return err
			}
		}

		if len(bundle.Accounts) == 0 {
			return recomputeBalances(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("imported bundle",
		"categories", len(bundle.Categories),
		"transactions", len(bundle.Transactions),
		"accounts", len(bundle.Accounts))
	return nil
}

func (e *Engine) importSettings(ctx context.Context, tx service.Transaction, incoming *model.Settings) error {
	settings, err := tx.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if settings == nil {
		settings = &model.Settings{Currency: e.defaultCurrency}
	}
	if incoming != nil {
		if incoming.Currency != "" {
			settings.Currency = incoming.Currency
		}
		settings.SetupComplete = incoming.SetupComplete
	}
	settings.UpdatedAt = time.Now().UTC()
	if err := tx.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// importCategories upserts categories by their unique name. Matches keep
// their current ID and take the incoming color and type.
func importCategories(ctx context.Context, tx service.Transaction, categories []model.Category) error {
	for _, incoming := range categories {
		if incoming.Name == "" {
			continue
		}
		existing, err := tx.GetCategoryByName(ctx, incoming.Name)
		if err != nil {
			return fmt.Errorf("failed to look up category %q: %w", incoming.Name, err)
		}
		if existing == nil {
			category := model.Category{
				Name:  incoming.Name,
				Color: incoming.Color,
				Type:  incoming.Type,
			}
			if category.Type == "" {
				category.Type = model.TypeExpense
			}
			if _, err := tx.CreateCategory(ctx, &category); err != nil {
				return fmt.Errorf("failed to create category %q: %w", incoming.Name, err)
			}
			continue
		}
		patch := model.CategoryPatch{Color: &incoming.Color}
		if incoming.Type != "" {
			patch.Type = &incoming.Type
		}
		if err := tx.UpdateCategory(ctx, existing.ID, patch); err != nil {
			return fmt.Errorf("failed to update category %q: %w", incoming.Name, err)
		}
	}
	return nil
}

// importAccounts upserts the bundle's accounts by name, or synthesizes one
// account per distinct payment method when the bundle carries none. It
// returns the bundle's old account ID to name map for transaction remapping.
func importAccounts(ctx context.Context, tx service.Transaction, bundle *Bundle) (map[string]string, error) {
	oldIDToName := make(map[string]string)

	if len(bundle.Accounts) > 0 {
		for _, incoming := range bundle.Accounts {
			if incoming.Name == "" {
				continue
			}
			if incoming.ID != "" {
				oldIDToName[incoming.ID] = incoming.Name
			}
			accountType := incoming.Type
			switch accountType {
			case model.AccountTypeCash, model.AccountTypeBank, model.AccountTypeMobile:
			default:
				accountType = model.DefaultAccountType(incoming.Name)
			}

			existing, err := tx.GetAccountByName(ctx, incoming.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to look up account %q: %w", incoming.Name, err)
			}
			if existing == nil {
				account := model.Account{
					Name:    incoming.Name,
					Type:    accountType,
					Balance: incoming.Balance,
				}
				if _, err := tx.CreateAccount(ctx, &account); err != nil {
					return nil, fmt.Errorf("failed to create account %q: %w", incoming.Name, err)
				}
				continue
			}
			// Supplied balances are trusted as-is; the bundle is the
			// authority when it carries accounts.
			patch := model.AccountPatch{Type: &accountType, Balance: &incoming.Balance}
			if err := tx.UpdateAccount(ctx, existing.ID, patch); err != nil {
				return nil, fmt.Errorf("failed to update account %q: %w", incoming.Name, err)
			}
		}
		return oldIDToName, nil
	}

	names := make([]string, 0, 4)
	seen := make(map[string]struct{})
	for i := range bundle.Transactions {
		name := bundle.Transactions[i].PaymentMethod
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		names = append(names, model.DefaultAccountName)
	}

	for _, name := range names {
		existing, err := tx.GetAccountByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up account %q: %w", name, err)
		}
		if existing != nil {
			continue
		}
		account := model.Account{
			Name: name,
			Type: model.DefaultAccountType(name),
		}
		if _, err := tx.CreateAccount(ctx, &account); err != nil {
			return nil, fmt.Errorf("failed to create account %q: %w", name, err)
		}
	}
	return oldIDToName, nil
}

// importTransaction remaps an incoming transaction's references to the
// current store and inserts it with a fresh ID.
func importTransaction(ctx context.Context, tx service.Transaction, incoming *model.Transaction, oldIDToName, nameToID map[string]string) error {
	t := incoming.Clone()
	t.ID = ""

	// Category IDs from the bundle belong to the source store; only the
	// name survives the crossing.
	t.CategoryID = ""
	if t.CategoryName != "" {
		category, err := tx.GetCategoryByName(ctx, t.CategoryName)
		if err != nil {
			return fmt.Errorf("failed to resolve category %q: %w", t.CategoryName, err)
		}
		if category != nil {
			t.CategoryID = category.ID
		}
	}

	t.AccountID = remapAccountID(t.AccountID, t.PaymentMethod, oldIDToName, nameToID)
	t.LoanSettlementAccountID = remapAccountID(t.LoanSettlementAccountID, "", oldIDToName, nameToID)
	if t.AccountID != "" {
		for name, id := range nameToID {
			if id == t.AccountID {
				t.PaymentMethod = name
				break
			}
		}
	}

	switch t.Type {
	case model.TypeExpense, model.TypeIncome, model.TypeLoan:
	default:
		t.Type = model.TypeExpense
	}
	if t.IsLoan() {
		if t.LoanType == "" {
			t.LoanType = model.DefaultLoanType(t.CategoryName)
		}
		if t.LoanStatus == "" {
			t.LoanStatus = model.LoanStatusOpen
		}
		if t.LoanStatus == model.LoanStatusSettled && t.LoanSettlementAccountID == "" {
			t.LoanSettlementAccountID = t.AccountID
		}
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	t.Tags = model.NormalizeTags(t.Tags)

	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: imported transaction amount must be positive, got %s", common.ErrValidation, t.Amount)
	}

	if _, err := tx.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("failed to insert imported transaction: %w", err)
	}
	return nil
}

// remapAccountID translates a bundle account reference into the current
// store: old ID to name to current ID, falling back to the payment method.
func remapAccountID(oldID, paymentMethod string, oldIDToName, nameToID map[string]string) string {
	if oldID != "" {
		if name, ok := oldIDToName[oldID]; ok {
			if id, ok := nameToID[name]; ok {
				return id
			}
		}
	}
	if paymentMethod != "" {
		if id, ok := nameToID[paymentMethod]; ok {
			return id
		}
	}
	return ""
}

// recomputeBalances overwrites every account balance with the fold of both
// delta calculators over every stored transaction.
func recomputeBalances(ctx context.Context, tx service.Transaction) error {
	transactions, err := tx.GetTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for i := range transactions {
		t := &transactions[i]
		if t.AccountID != "" {
			totals[t.AccountID] = totals[t.AccountID].Add(BalanceDelta(t))
		}
		if t.LoanSettlementAccountID != "" {
			totals[t.LoanSettlementAccountID] = totals[t.LoanSettlementAccountID].Add(SettlementDelta(t))
		}
	}

	accounts, err := tx.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, account := range accounts {
		balance := totals[account.ID]
		if err := tx.UpdateAccount(ctx, account.ID, model.AccountPatch{Balance: &balance}); err != nil {
			return fmt.Errorf("failed to recompute balance for %q: %w", account.Name, err)
		}
	}

	slog.Debug("recomputed balances", "accounts", len(accounts), "transactions", len(transactions))
	return nil
}

// ImportJSON decodes a bundle from its JSON interchange form and imports it.
// Dates tolerate the formats older exports used: RFC 3339, a bare date, a
// space-separated datetime, and epoch milliseconds. Amounts may be JSON
// strings or numbers.
func (e *Engine) ImportJSON(ctx context.Context, data []byte) error {
	bundle, err := DecodeBundle(data)
	if err != nil {
		return err
	}
	return e.Import(ctx, bundle)
}

// DecodeBundle parses the JSON interchange form into a Bundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	var raw struct {
		Settings     *model.Settings     `json:"settings"`
		Categories   []model.Category    `json:"categories"`
		Transactions []bundleTransaction `json:"transactions"`
		Accounts     []model.Account     `json:"accounts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed bundle: %s", common.ErrValidation, err)
	}

	bundle := &Bundle{
		Settings:   raw.Settings,
		Categories: raw.Categories,
		Accounts:   raw.Accounts,
	}
	bundle.Transactions = make([]model.Transaction, 0, len(raw.Transactions))
	for i := range raw.Transactions {
		txn, err := raw.Transactions[i].toModel()
		if err != nil {
			return nil, err
		}
		bundle.Transactions = append(bundle.Transactions, txn)
	}
	return bundle, nil
}

// bundleTransaction mirrors model.Transaction with a tolerant date field.
type bundleTransaction struct {
	Date                    json.RawMessage       `json:"date"`
	ID                      string                `json:"id"`
	Type                    model.TransactionType `json:"type"`
	CategoryID              string                `json:"categoryId"`
	CategoryName            string                `json:"categoryName"`
	PaymentMethod           string                `json:"paymentMethod"`
	AccountID               string                `json:"accountId"`
	LoanType                model.LoanType        `json:"loanType"`
	LoanStatus              model.LoanStatus      `json:"loanStatus"`
	LoanSettlementAccountID string                `json:"loanSettlementAccountId"`
	Counterparty            string                `json:"counterparty"`
	Note                    string                `json:"note"`
	Amount                  decimal.Decimal       `json:"amount"`
	Tags                    []string              `json:"tags"`
}

func (b *bundleTransaction) toModel() (model.Transaction, error) {
	date, err := parseBundleDate(b.Date)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:                      b.ID,
		Date:                    date,
		Type:                    b.Type,
		CategoryID:              b.CategoryID,
		CategoryName:            b.CategoryName,
		PaymentMethod:           b.PaymentMethod,
		AccountID:               b.AccountID,
		LoanType:                b.LoanType,
		LoanStatus:              b.LoanStatus,
		LoanSettlementAccountID: b.LoanSettlementAccountID,
		Counterparty:            b.Counterparty,
		Note:                    b.Note,
		Amount:                  b.Amount,
		Tags:                    b.Tags,
	}, nil
}

var bundleDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseBundleDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		for _, layout := range bundleDateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unrecognized date %q", common.ErrValidation, text)
	}

	// Epoch milliseconds, as stored by exports of native date values.
	if millis, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %s", common.ErrValidation, raw)
}
