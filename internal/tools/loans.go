package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
	"github.com/finassist/finassist/internal/period"
)

const (
	defaultEMIWindowDays = 30
	maxEMIWindowDays     = 365
	// maxTenureMonths bounds amortization; anything longer is treated as never repaid.
	maxTenureMonths = 1200
)

// LoanSummary is the output of get_loans.
type LoanSummary struct {
	TotalOutstanding money.Money `json:"total_outstanding"`
	TotalEMI         money.Money `json:"total_monthly_emi"`
	Loans            []LoanItem  `json:"loans"`
}

// LoanItem is one formatted loan.
type LoanItem struct {
	Name            string      `json:"name"`
	Lender          string      `json:"lender,omitempty"`
	Principal       money.Money `json:"principal"`
	Outstanding     money.Money `json:"outstanding"`
	AnnualRate      string      `json:"interest_rate"`
	EMI             money.Money `json:"emi"`
	EMIDay          int         `json:"emi_day"`
	RemainingMonths *int        `json:"remaining_months"`
	NextDueDate     string      `json:"next_due_date,omitempty"`
	RepaidPercent   string      `json:"repaid_percent"`
}

func (e *Executor) loans(ctx context.Context, fam finance.Family) (LoanSummary, error) {
	loans, err := e.Data.Loans(ctx, fam.ID)
	if err != nil {
		return LoanSummary{}, fmt.Errorf("load loans: %w", err)
	}
	today := period.Day(e.now(fam))
	outstanding, emi := decimal.Zero, decimal.Zero
	out := LoanSummary{}
	for _, l := range loans {
		item := LoanItem{
			Name:            l.Name,
			Lender:          l.Lender,
			Principal:       fam.Money(l.Principal),
			Outstanding:     fam.Money(l.Outstanding),
			AnnualRate:      l.AnnualRate.StringFixed(2) + "%",
			EMI:             fam.Money(l.EMI),
			EMIDay:          l.EMIDay,
			RemainingMonths: RemainingMonths(l.Outstanding, l.AnnualRate, l.EMI),
			RepaidPercent:   percent(l.Principal.Sub(l.Outstanding), l.Principal),
		}
		if l.Outstanding.IsPositive() {
			outstanding = outstanding.Add(l.Outstanding)
			emi = emi.Add(l.EMI)
			if due, ok := nextDue(l, today); ok {
				item.NextDueDate = fam.FormatDate(due)
			}
		}
		out.Loans = append(out.Loans, item)
	}
	out.TotalOutstanding = fam.Money(outstanding)
	out.TotalEMI = fam.Money(emi)
	return out, nil
}

// UpcomingEMIs is the output of get_upcoming_emis.
type UpcomingEMIs struct {
	Days  int           `json:"days"`
	From  string        `json:"from"`
	To    string        `json:"to"`
	Total money.Money   `json:"total"`
	EMIs  []UpcomingEMI `json:"emis"`
}

// UpcomingEMI is one EMI due inside the window.
type UpcomingEMI struct {
	Loan      string      `json:"loan"`
	Lender    string      `json:"lender,omitempty"`
	DueDate   string      `json:"due_date"`
	DaysUntil int         `json:"days_until"`
	Amount    money.Money `json:"amount"`
	due       time.Time
}

func (e *Executor) upcomingEMIs(ctx context.Context, fam finance.Family, args UpcomingEMIsArgs) (UpcomingEMIs, error) {
	days := clamp(args.Days, defaultEMIWindowDays, 1, maxEMIWindowDays)
	loans, err := e.Data.Loans(ctx, fam.ID)
	if err != nil {
		return UpcomingEMIs{}, fmt.Errorf("load loans: %w", err)
	}
	today := period.Day(e.now(fam))
	until := today.AddDate(0, 0, days)
	total := decimal.Zero
	out := UpcomingEMIs{Days: days, From: fam.FormatDate(today), To: fam.FormatDate(until)}
	for _, l := range loans {
		if !l.Outstanding.IsPositive() || !l.EMI.IsPositive() {
			continue
		}
		remaining := maxTenureMonths
		if n := RemainingMonths(l.Outstanding, l.AnnualRate, l.EMI); n != nil {
			remaining = *n
		}
		due, ok := nextDue(l, today)
		for i := 0; ok && i < remaining && !due.After(until); i++ {
			out.EMIs = append(out.EMIs, UpcomingEMI{
				Loan:      l.Name,
				Lender:    l.Lender,
				DueDate:   fam.FormatDate(due),
				DaysUntil: int(due.Sub(today).Hours()/24 + 0.5),
				Amount:    fam.Money(l.EMI),
				due:       due,
			})
			total = total.Add(l.EMI)
			due = dueDate(due.AddDate(0, 0, 1-due.Day()).AddDate(0, 1, 0), l.EMIDay)
		}
	}
	sort.SliceStable(out.EMIs, func(i, j int) bool { return out.EMIs[i].due.Before(out.EMIs[j].due) })
	out.Total = fam.Money(total)
	return out, nil
}

// RemainingMonths solves the annuity formula for the number of EMIs left.
// It returns nil when the EMI does not cover the monthly interest.
func RemainingMonths(outstanding, annualRate, emi decimal.Decimal) *int {
	if !outstanding.IsPositive() {
		zero := 0
		return &zero
	}
	if !emi.IsPositive() {
		return nil
	}
	p := outstanding.InexactFloat64()
	e := emi.InexactFloat64()
	r := annualRate.InexactFloat64() / 1200
	var n float64
	if r == 0 {
		n = p / e
	} else {
		x := 1 - r*p/e
		if x <= 0 {
			return nil
		}
		n = -math.Log(x) / math.Log(1+r)
	}
	months := int(math.Ceil(n - 1e-9))
	if months > maxTenureMonths {
		return nil
	}
	return &months
}

// nextDue returns the first EMI date on or after from, honouring the loan start date.
func nextDue(l finance.Loan, from time.Time) (time.Time, bool) {
	if l.EMIDay <= 0 {
		return time.Time{}, false
	}
	if !l.StartDate.IsZero() && period.Day(l.StartDate).After(from) {
		from = period.Day(l.StartDate.In(from.Location()))
	}
	due := dueDate(from, l.EMIDay)
	if due.Before(from) {
		first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
		due = dueDate(first.AddDate(0, 1, 0), l.EMIDay)
	}
	return due, true
}

// dueDate places day within the month of t, clamped to the month's last day.
func dueDate(t time.Time, day int) time.Time {
	last := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location())
}
