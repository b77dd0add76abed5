package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
	"github.com/finassist/finassist/internal/period"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 200
	isoDate                 = "2006-01-02"
)

// TransactionList is the output of get_transactions.
type TransactionList struct {
	Period       PeriodInfo        `json:"period"`
	Count        int               `json:"count"`
	Returned     int               `json:"returned"`
	TotalIncome  money.Money       `json:"total_income"`
	TotalExpense money.Money       `json:"total_expense"`
	Net          money.Money       `json:"net"`
	Transactions []TransactionItem `json:"transactions"`
}

// PeriodInfo describes the resolved date range.
type PeriodInfo struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// TransactionItem is one formatted transaction.
type TransactionItem struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Merchant    string      `json:"merchant,omitempty"`
	Category    string      `json:"category"`
	Amount      money.Money `json:"amount"`
}

func (e *Executor) transactions(ctx context.Context, fam finance.Family, args TransactionsArgs) (TransactionList, error) {
	p, err := e.resolvePeriod(fam, args.Period, args.StartDate, args.EndDate)
	if err != nil {
		return TransactionList{}, err
	}
	categories, err := e.Data.Categories(ctx, fam.ID)
	if err != nil {
		return TransactionList{}, fmt.Errorf("load categories: %w", err)
	}
	names := categoryNames(categories)

	query := finance.TransactionQuery{
		Start:    p.Start,
		End:      endOfDay(p.End),
		Merchant: args.Merchant,
		Search:   args.Search,
	}
	if args.Category != "" {
		id, ok := findCategory(categories, args.Category)
		if !ok {
			return TransactionList{}, fmt.Errorf("unknown category %q", args.Category)
		}
		query.CategoryID = id
	}
	rows, err := e.Data.Transactions(ctx, fam.ID, query)
	if err != nil {
		return TransactionList{}, fmt.Errorf("load transactions: %w", err)
	}

	limit := clamp(args.Limit, defaultTransactionLimit, 1, maxTransactionLimit)
	income, expense := decimal.Zero, decimal.Zero
	out := TransactionList{Period: periodInfo(fam, p), Count: len(rows)}
	for i, t := range rows {
		if t.IsExpense() {
			expense = expense.Add(t.Amount.Abs())
		} else {
			income = income.Add(t.Amount)
		}
		if i >= limit {
			continue
		}
		out.Transactions = append(out.Transactions, TransactionItem{
			ID:          t.ID,
			Date:        fam.FormatDate(t.Date),
			Description: t.Description,
			Merchant:    t.Merchant,
			Category:    categoryLabel(names, t.CategoryID),
			Amount:      fam.Money(t.Amount),
		})
	}
	out.Returned = len(out.Transactions)
	out.TotalIncome = fam.Money(income)
	out.TotalExpense = fam.Money(expense)
	out.Net = fam.Money(income.Sub(expense))
	return out, nil
}

// resolvePeriod prefers explicit dates over the named token.
func (e *Executor) resolvePeriod(fam finance.Family, token, startDate, endDate string) (period.Period, error) {
	now := e.now(fam)
	if startDate == "" && endDate == "" {
		return period.Resolve(token, now)
	}
	loc := now.Location()
	start, end := period.Day(now).AddDate(0, 0, -29), period.Day(now)
	if startDate != "" {
		t, err := time.ParseInLocation(isoDate, startDate, loc)
		if err != nil {
			return period.Period{}, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", startDate)
		}
		start = t
	}
	if endDate != "" {
		t, err := time.ParseInLocation(isoDate, endDate, loc)
		if err != nil {
			return period.Period{}, fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", endDate)
		}
		end = t
	}
	if end.Before(start) {
		return period.Period{}, fmt.Errorf("end_date %s is before start_date %s", endDate, startDate)
	}
	return period.Between(start, end), nil
}

func periodInfo(fam finance.Family, p period.Period) PeriodInfo {
	return PeriodInfo{Name: p.Name, Start: fam.FormatDate(p.Start), End: fam.FormatDate(p.End)}
}

func endOfDay(day time.Time) time.Time {
	return period.Day(day).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func categoryNames(categories []finance.Category) map[string]string {
	out := make(map[string]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out
}

func findCategory(categories []finance.Category, name string) (string, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.ID, true
		}
	}
	return "", false
}

const uncategorized = "Uncategorized"

func categoryLabel(names map[string]string, id string) string {
	if name, ok := names[id]; ok && id != "" {
		return name
	}
	return uncategorized
}
