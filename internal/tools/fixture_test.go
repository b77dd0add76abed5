package tools

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/audit"
	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/store/memory"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// fixedNow is mid-October so this_month holds the first half of the month.
var fixedNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, ist)

var testFamily = finance.Family{ID: "fam-1", Name: "Sharma", Currency: "INR", Location: ist}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, ist)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore() *memory.Store {
	s := memory.New()
	s.AddFamily(testFamily)
	s.AddFamily(finance.Family{ID: "fam-2", Currency: "INR", Location: ist})

	s.AddAccount(finance.Account{ID: "acc-1", FamilyID: "fam-1", Name: "HDFC Savings", Kind: finance.AccountDepository, Balance: dec("150000")})
	s.AddAccount(finance.Account{ID: "acc-2", FamilyID: "fam-1", Name: "Zerodha", Kind: finance.AccountInvestment, Balance: dec("350000")})
	s.AddAccount(finance.Account{ID: "acc-3", FamilyID: "fam-1", Name: "Home Loan", Kind: finance.AccountLoan, Balance: dec("-2500000")})
	s.AddAccount(finance.Account{ID: "acc-x", FamilyID: "fam-2", Name: "Other", Kind: finance.AccountDepository, Balance: dec("999999")})

	s.AddMonthlyBalance("fam-1", finance.MonthlyBalance{Month: time.Date(2026, time.September, 1, 0, 0, 0, 0, ist), Assets: dec("480000"), Liabilities: dec("2520000")})
	s.AddMonthlyBalance("fam-1", finance.MonthlyBalance{Month: time.Date(2026, time.October, 1, 0, 0, 0, 0, ist), Assets: dec("500000"), Liabilities: dec("2500000")})
	s.AddMonthlyBalance("fam-1", finance.MonthlyBalance{Month: time.Date(2025, time.January, 1, 0, 0, 0, 0, ist), Assets: dec("100000"), Liabilities: dec("0")})

	s.AddCategory(finance.Category{ID: "cat-food", FamilyID: "fam-1", Name: "Food"})
	s.AddCategory(finance.Category{ID: "cat-shop", FamilyID: "fam-1", Name: "Shopping"})
	s.AddCategory(finance.Category{ID: "cat-salary", FamilyID: "fam-1", Name: "Salary", Classification: "income"})

	s.AddTransaction(finance.Transaction{ID: "t1", FamilyID: "fam-1", AccountID: "acc-1", Date: day(2026, time.October, 2), Amount: dec("-450"), Description: "UPI/SWIGGY/8812", Merchant: "Swiggy", CategoryID: "cat-food"})
	s.AddTransaction(finance.Transaction{ID: "t2", FamilyID: "fam-1", AccountID: "acc-1", Date: day(2026, time.October, 3), Amount: dec("-12000"), Description: "Amazon order", Merchant: "Amazon", CategoryID: "cat-shop"})
	s.AddTransaction(finance.Transaction{ID: "t3", FamilyID: "fam-1", AccountID: "acc-1", Date: day(2026, time.October, 5), Amount: dec("90000"), Description: "SALARY OCT", CategoryID: "cat-salary"})
	s.AddTransaction(finance.Transaction{ID: "t4", FamilyID: "fam-1", AccountID: "acc-1", Date: day(2026, time.September, 20), Amount: dec("-800"), Description: "Swiggy dinner", Merchant: "Swiggy", CategoryID: "cat-food"})
	s.AddTransaction(finance.Transaction{ID: "t5", FamilyID: "fam-1", AccountID: "acc-1", Date: day(2026, time.October, 7), Amount: dec("-300"), Description: "Chai point"})
	s.AddTransaction(finance.Transaction{ID: "x1", FamilyID: "fam-2", AccountID: "acc-x", Date: day(2026, time.October, 2), Amount: dec("-10"), Description: "other family"})

	s.AddHolding(finance.Holding{ID: "h1", FamilyID: "fam-1", Name: "Nifty 50 Index Fund", Kind: finance.HoldingMutualFund, Quantity: dec("1000"), Price: dec("250"), CostBasis: dec("200000")})
	s.AddHolding(finance.Holding{ID: "h2", FamilyID: "fam-1", Name: "Infosys", Symbol: "INFY", Kind: finance.HoldingEquity, Quantity: dec("50"), Price: dec("1500"), CostBasis: dec("80000")})

	s.AddLoan(finance.Loan{ID: "l1", FamilyID: "fam-1", Name: "Home Loan", Lender: "HDFC", Principal: dec("3000000"), Outstanding: dec("2500000"), AnnualRate: dec("8.5"), EMI: dec("25000"), EMIDay: 5, StartDate: day(2022, time.April, 5)})
	s.AddLoan(finance.Loan{ID: "l2", FamilyID: "fam-1", Name: "Car Loan", Lender: "ICICI", Principal: dec("600000"), Outstanding: dec("0"), AnnualRate: dec("9"), EMI: dec("12000"), EMIDay: 10})
	return s
}

func newTestExecutor(t *testing.T) (*Executor, *audit.Recorder) {
	t.Helper()
	rec := &audit.Recorder{}
	return &Executor{
		Catalog: DefaultCatalog(),
		Data:    newTestStore(),
		Audit:   rec,
		Now:     func() time.Time { return fixedNow },
	}, rec
}
