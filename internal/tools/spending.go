package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
	"github.com/finassist/finassist/internal/period"
)

const (
	maxAnomalies    = 5
	topMerchants    = 5
	anomalyMultiple = 2
)

// DailySpend is the total outflow on one calendar day.
type DailySpend struct {
	Day    time.Time
	Amount decimal.Decimal
}

// SpendingAnalysis is the output of get_spending_analysis.
type SpendingAnalysis struct {
	Period           PeriodInfo      `json:"period"`
	TotalSpent       money.Money     `json:"total_spent"`
	TransactionCount int             `json:"transaction_count"`
	DailyAverage     money.Money     `json:"daily_average"`
	ByCategory       []CategorySpend `json:"by_category"`
	TopMerchants     []MerchantSpend `json:"top_merchants"`
	Anomalies        []AnomalyDay    `json:"unusual_days"`
}

// CategorySpend is the outflow of one category with its share of the total.
type CategorySpend struct {
	Category string      `json:"category"`
	Amount   money.Money `json:"amount"`
	Percent  string      `json:"percent"`
	Count    int         `json:"transactions"`
}

// MerchantSpend is the outflow at one merchant.
type MerchantSpend struct {
	Merchant string      `json:"merchant"`
	Amount   money.Money `json:"amount"`
	Count    int         `json:"transactions"`
}

// AnomalyDay is a day whose spend exceeds twice the daily mean.
type AnomalyDay struct {
	Date   string      `json:"date"`
	Amount money.Money `json:"amount"`
}

func (e *Executor) spendingAnalysis(ctx context.Context, fam finance.Family, args SpendingAnalysisArgs) (SpendingAnalysis, error) {
	p, err := period.Resolve(args.Period, e.now(fam))
	if err != nil {
		return SpendingAnalysis{}, err
	}
	categories, err := e.Data.Categories(ctx, fam.ID)
	if err != nil {
		return SpendingAnalysis{}, fmt.Errorf("load categories: %w", err)
	}
	names := categoryNames(categories)
	rows, err := e.Data.Transactions(ctx, fam.ID, finance.TransactionQuery{Start: p.Start, End: endOfDay(p.End)})
	if err != nil {
		return SpendingAnalysis{}, fmt.Errorf("load transactions: %w", err)
	}

	total := decimal.Zero
	byCategory := map[string]*CategorySpend{}
	byMerchant := map[string]*MerchantSpend{}
	byDay := map[time.Time]decimal.Decimal{}
	count := 0
	for _, t := range rows {
		if !t.IsExpense() {
			continue
		}
		amount := t.Amount.Abs()
		total = total.Add(amount)
		count++

		label := categoryLabel(names, t.CategoryID)
		cs, ok := byCategory[label]
		if !ok {
			cs = &CategorySpend{Category: label, Amount: fam.Money(decimal.Zero)}
			byCategory[label] = cs
		}
		cs.Amount = cs.Amount.Add(fam.Money(amount))
		cs.Count++

		if merchant := strings.TrimSpace(t.Merchant); merchant != "" {
			key := strings.ToLower(merchant)
			ms, ok := byMerchant[key]
			if !ok {
				ms = &MerchantSpend{Merchant: merchant, Amount: fam.Money(decimal.Zero)}
				byMerchant[key] = ms
			}
			ms.Amount = ms.Amount.Add(fam.Money(amount))
			ms.Count++
		}

		day := period.Day(fam.In(t.Date))
		byDay[day] = byDay[day].Add(amount)
	}

	out := SpendingAnalysis{
		Period:           periodInfo(fam, p),
		TotalSpent:       fam.Money(total),
		TransactionCount: count,
		DailyAverage:     fam.Money(total.Div(decimal.NewFromInt(int64(max(p.Days(), 1)))).Round(2)),
	}
	for _, cs := range byCategory {
		cs.Percent = percent(cs.Amount.Amount, total)
		out.ByCategory = append(out.ByCategory, *cs)
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		a, b := out.ByCategory[i], out.ByCategory[j]
		if a.Amount.Amount.Equal(b.Amount.Amount) {
			return a.Category < b.Category
		}
		return a.Amount.Amount.GreaterThan(b.Amount.Amount)
	})
	for _, ms := range byMerchant {
		out.TopMerchants = append(out.TopMerchants, *ms)
	}
	sort.Slice(out.TopMerchants, func(i, j int) bool {
		a, b := out.TopMerchants[i], out.TopMerchants[j]
		if a.Amount.Amount.Equal(b.Amount.Amount) {
			return a.Merchant < b.Merchant
		}
		return a.Amount.Amount.GreaterThan(b.Amount.Amount)
	})
	if len(out.TopMerchants) > topMerchants {
		out.TopMerchants = out.TopMerchants[:topMerchants]
	}

	days := make([]DailySpend, 0, len(byDay))
	for day, amount := range byDay {
		days = append(days, DailySpend{Day: day, Amount: amount})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })
	for _, d := range DetectAnomalies(days) {
		out.Anomalies = append(out.Anomalies, AnomalyDay{Date: fam.FormatDate(d.Day), Amount: fam.Money(d.Amount)})
	}
	return out, nil
}

// DetectAnomalies returns the days whose spend exceeds twice the mean of all
// given days, largest first, at most five. The mean divides by max(len, 1).
func DetectAnomalies(days []DailySpend) []DailySpend {
	sum := decimal.Zero
	for _, d := range days {
		sum = sum.Add(d.Amount)
	}
	mean := sum.Div(decimal.NewFromInt(int64(max(len(days), 1))))
	threshold := mean.Mul(decimal.NewFromInt(anomalyMultiple))

	var out []DailySpend
	for _, d := range days {
		if d.Amount.GreaterThan(threshold) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Equal(out[j].Amount) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	if len(out) > maxAnomalies {
		out = out[:maxAnomalies]
	}
	return out
}
