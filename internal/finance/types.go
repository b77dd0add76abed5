package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/money"
)

// Family is the identity every data-layer query is scoped to.
type Family struct {
	// ID uniquely identifies the family.
	ID string
	// Name is a display name.
	Name string
	// Currency is the reporting currency (ISO code).
	Currency string
	// DateFormat is a Go time layout used for all date output.
	DateFormat string
	// Location is the family timezone.
	Location *time.Location
}

// DefaultDateFormat renders dates as dd-mm-yyyy.
const DefaultDateFormat = "02-01-2006"

// Now returns the current time in the family timezone.
func (f Family) Now() time.Time {
	return time.Now().In(f.location())
}

// In converts t to the family timezone.
func (f Family) In(t time.Time) time.Time {
	return t.In(f.location())
}

// FormatDate renders t with the family date preference.
func (f Family) FormatDate(t time.Time) string {
	layout := f.DateFormat
	if layout == "" {
		layout = DefaultDateFormat
	}
	return t.In(f.location()).Format(layout)
}

// Money tags amount with the family currency.
func (f Family) Money(amount decimal.Decimal) money.Money {
	return money.New(amount, f.Currency)
}

func (f Family) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// AccountKind classifies an account on the balance sheet.
type AccountKind string

const (
	AccountDepository AccountKind = "depository"
	AccountInvestment AccountKind = "investment"
	AccountProperty   AccountKind = "property"
	AccountCreditCard AccountKind = "credit_card"
	AccountLoan       AccountKind = "loan"
	AccountOther      AccountKind = "other"
)

// IsLiability reports whether balances of this kind are owed.
func (k AccountKind) IsLiability() bool {
	return k == AccountCreditCard || k == AccountLoan
}

type Account struct {
	ID       string
	FamilyID string
	Name     string
	Kind     AccountKind
	Balance  decimal.Decimal
	Currency string
}

// MonthlyBalance is an end-of-month snapshot of assets and liabilities.
type MonthlyBalance struct {
	Month       time.Time
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
}

// Transaction amounts are negative for spending and positive for income.
type Transaction struct {
	ID          string
	FamilyID    string
	AccountID   string
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Description string
	Merchant    string
	CategoryID  string
	// CategoryLocked blocks automatic category overwrites.
	CategoryLocked bool
	// CategorySource records who set the category (user, rule, ai).
	CategorySource string
}

// IsExpense reports whether the transaction is an outflow.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Category sources.
const (
	SourceUser = "user"
	SourceRule = "rule"
	SourceAI   = "ai"
)

type Category struct {
	ID       string
	FamilyID string
	Name     string
	// Classification is "expense" or "income".
	Classification string
}

// HoldingKind classifies an investment holding.
type HoldingKind string

const (
	HoldingEquity     HoldingKind = "equity"
	HoldingMutualFund HoldingKind = "mutual_fund"
	HoldingFixed      HoldingKind = "fixed_deposit"
	HoldingGold       HoldingKind = "gold"
	HoldingOther      HoldingKind = "other"
)

// Holding is one investment position.
type Holding struct {
	ID        string
	FamilyID  string
	AccountID string
	Name      string
	Symbol    string
	Kind      HoldingKind
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	CostBasis decimal.Decimal
	Currency  string
}

// Value is quantity times price.
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.Price)
}

// Loan is an amortizing loan repaid by monthly EMIs.
type Loan struct {
	ID          string
	FamilyID    string
	AccountID   string
	Name        string
	Lender      string
	Principal   decimal.Decimal
	Outstanding decimal.Decimal
	// AnnualRate is the nominal yearly interest rate in percent.
	AnnualRate decimal.Decimal
	EMI        decimal.Decimal
	// EMIDay is the day of month the EMI is debited.
	EMIDay    int
	StartDate time.Time
	Currency  string
}

// Rule maps a description pattern to a category for future automatic matching.
type Rule struct {
	ID         string
	FamilyID   string
	Pattern    string
	CategoryID string
	Source     string
	CreatedAt  time.Time
}

// TransactionQuery filters transactions. Zero values disable a filter.
type TransactionQuery struct {
	Start time.Time
	End   time.Time
	// CategoryID filters on an exact category.
	CategoryID string
	// Merchant matches case-insensitively as a substring.
	Merchant string
	// Search matches description or merchant case-insensitively.
	Search string
	// IDs restricts to the given transaction ids.
	IDs []string
}
