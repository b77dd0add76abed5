package memory

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/finassist/finassist/internal/finance"
)

// Dataset is the YAML document accepted by Load.
type Dataset struct {
	// Families lists every family with its data.
	Families []FamilyData `yaml:"families"`
}

// FamilyData holds one family and all of its rows.
type FamilyData struct {
	ID             string               `yaml:"id"`
	Name           string               `yaml:"name"`
	Currency       string               `yaml:"currency"`
	DateFormat     string               `yaml:"date_format"`
	Timezone       string               `yaml:"timezone"`
	Accounts       []AccountData        `yaml:"accounts"`
	BalanceHistory []MonthlyBalanceData `yaml:"balance_history"`
	Categories     []CategoryData       `yaml:"categories"`
	Transactions   []TransactionData    `yaml:"transactions"`
	Holdings       []HoldingData        `yaml:"holdings"`
	Loans          []LoanData           `yaml:"loans"`
}

// AccountData is one account row; balances accept grouping commas.
type AccountData struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Balance string `yaml:"balance"`
}

// MonthlyBalanceData is one month-end snapshot.
type MonthlyBalanceData struct {
	// Month is formatted as YYYY-MM.
	Month       string `yaml:"month"`
	Assets      string `yaml:"assets"`
	Liabilities string `yaml:"liabilities"`
}

// CategoryData is one category row.
type CategoryData struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Classification string `yaml:"classification"`
}

// TransactionData is one transaction row; dates are YYYY-MM-DD.
type TransactionData struct {
	ID          string `yaml:"id"`
	AccountID   string `yaml:"account_id"`
	Date        string `yaml:"date"`
	Amount      string `yaml:"amount"`
	Description string `yaml:"description"`
	Merchant    string `yaml:"merchant"`
	CategoryID  string `yaml:"category_id"`
	Locked      bool   `yaml:"locked"`
}

// HoldingData is one investment holding row.
type HoldingData struct {
	ID        string `yaml:"id"`
	AccountID string `yaml:"account_id"`
	Name      string `yaml:"name"`
	Symbol    string `yaml:"symbol"`
	Kind      string `yaml:"kind"`
	Quantity  string `yaml:"quantity"`
	Price     string `yaml:"price"`
	CostBasis string `yaml:"cost_basis"`
}

// LoanData is one loan row; annual_rate is in percent.
type LoanData struct {
	ID          string `yaml:"id"`
	AccountID   string `yaml:"account_id"`
	Name        string `yaml:"name"`
	Lender      string `yaml:"lender"`
	Principal   string `yaml:"principal"`
	Outstanding string `yaml:"outstanding"`
	AnnualRate  string `yaml:"annual_rate"`
	EMI         string `yaml:"emi"`
	EMIDay      int    `yaml:"emi_day"`
	StartDate   string `yaml:"start_date"`
}

// LoadFile reads a YAML dataset from path.
func LoadFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Load(raw)
}

// Load parses a YAML dataset into a Store.
func Load(data []byte) (*Store, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	store := New()
	for i, fd := range ds.Families {
		if strings.TrimSpace(fd.ID) == "" {
			return nil, fmt.Errorf("families[%d].id is required", i)
		}
		if err := store.addFamily(fd); err != nil {
			return nil, fmt.Errorf("family %s: %w", fd.ID, err)
		}
	}
	return store, nil
}

func (s *Store) addFamily(fd FamilyData) error {
	loc := time.UTC
	if tz := strings.TrimSpace(fd.Timezone); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		loc = parsed
	}
	fam := finance.Family{
		ID:         fd.ID,
		Name:       fd.Name,
		Currency:   fd.Currency,
		DateFormat: fd.DateFormat,
		Location:   loc,
	}
	if fam.Currency == "" {
		fam.Currency = "INR"
	}
	s.AddFamily(fam)

	for i, a := range fd.Accounts {
		balance, err := parseDecimal(a.Balance)
		if err != nil {
			return fmt.Errorf("accounts[%d].balance: %w", i, err)
		}
		kind := finance.AccountKind(a.Kind)
		if kind == "" {
			kind = finance.AccountOther
		}
		s.AddAccount(finance.Account{ID: a.ID, FamilyID: fam.ID, Name: a.Name, Kind: kind, Balance: balance, Currency: fam.Currency})
	}
	for i, b := range fd.BalanceHistory {
		month, err := time.ParseInLocation("2006-01", b.Month, loc)
		if err != nil {
			return fmt.Errorf("balance_history[%d].month: %w", i, err)
		}
		assets, err := parseDecimal(b.Assets)
		if err != nil {
			return fmt.Errorf("balance_history[%d].assets: %w", i, err)
		}
		liabilities, err := parseDecimal(b.Liabilities)
		if err != nil {
			return fmt.Errorf("balance_history[%d].liabilities: %w", i, err)
		}
		s.AddMonthlyBalance(fam.ID, finance.MonthlyBalance{Month: month, Assets: assets, Liabilities: liabilities})
	}
	for _, c := range fd.Categories {
		classification := c.Classification
		if classification == "" {
			classification = "expense"
		}
		s.AddCategory(finance.Category{ID: c.ID, FamilyID: fam.ID, Name: c.Name, Classification: classification})
	}
	for i, t := range fd.Transactions {
		date, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		if err != nil {
			return fmt.Errorf("transactions[%d].date: %w", i, err)
		}
		amount, err := parseDecimal(t.Amount)
		if err != nil {
			return fmt.Errorf("transactions[%d].amount: %w", i, err)
		}
		txn := finance.Transaction{
			ID:             t.ID,
			FamilyID:       fam.ID,
			AccountID:      t.AccountID,
			Date:           date,
			Amount:         amount,
			Currency:       fam.Currency,
			Description:    t.Description,
			Merchant:       t.Merchant,
			CategoryID:     t.CategoryID,
			CategoryLocked: t.Locked,
		}
		if txn.CategoryID != "" {
			txn.CategorySource = finance.SourceUser
		}
		s.AddTransaction(txn)
	}
	for i, h := range fd.Holdings {
		qty, err := parseDecimal(h.Quantity)
		if err != nil {
			return fmt.Errorf("holdings[%d].quantity: %w", i, err)
		}
		price, err := parseDecimal(h.Price)
		if err != nil {
			return fmt.Errorf("holdings[%d].price: %w", i, err)
		}
		cost, err := parseDecimal(h.CostBasis)
		if err != nil {
			return fmt.Errorf("holdings[%d].cost_basis: %w", i, err)
		}
		kind := finance.HoldingKind(h.Kind)
		if kind == "" {
			kind = finance.HoldingOther
		}
		s.AddHolding(finance.Holding{
			ID: h.ID, FamilyID: fam.ID, AccountID: h.AccountID, Name: h.Name, Symbol: h.Symbol,
			Kind: kind, Quantity: qty, Price: price, CostBasis: cost, Currency: fam.Currency,
		})
	}
	for i, l := range fd.Loans {
		loan, err := parseLoan(fam, loc, l)
		if err != nil {
			return fmt.Errorf("loans[%d]: %w", i, err)
		}
		s.AddLoan(loan)
	}
	return nil
}

func parseLoan(fam finance.Family, loc *time.Location, l LoanData) (finance.Loan, error) {
	principal, err := parseDecimal(l.Principal)
	if err != nil {
		return finance.Loan{}, fmt.Errorf("principal: %w", err)
	}
	outstanding, err := parseDecimal(l.Outstanding)
	if err != nil {
		return finance.Loan{}, fmt.Errorf("outstanding: %w", err)
	}
	rate, err := parseDecimal(l.AnnualRate)
	if err != nil {
		return finance.Loan{}, fmt.Errorf("annual_rate: %w", err)
	}
	emi, err := parseDecimal(l.EMI)
	if err != nil {
		return finance.Loan{}, fmt.Errorf("emi: %w", err)
	}
	var start time.Time
	if l.StartDate != "" {
		start, err = time.ParseInLocation("2006-01-02", l.StartDate, loc)
		if err != nil {
			return finance.Loan{}, fmt.Errorf("start_date: %w", err)
		}
	}
	if l.EMIDay < 0 || l.EMIDay > 31 {
		return finance.Loan{}, fmt.Errorf("emi_day must be between 1 and 31")
	}
	return finance.Loan{
		ID: l.ID, FamilyID: fam.ID, AccountID: l.AccountID, Name: l.Name, Lender: l.Lender,
		Principal: principal, Outstanding: outstanding, AnnualRate: rate, EMI: emi,
		EMIDay: l.EMIDay, StartDate: start, Currency: fam.Currency,
	}, nil
}

func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
