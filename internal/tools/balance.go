package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
	"github.com/finassist/finassist/internal/period"
)

const (
	defaultHistoryMonths = 6
	maxHistoryMonths     = 60
)

// BalanceSheet is the output of get_balance_sheet.
type BalanceSheet struct {
	AsOf        string           `json:"as_of"`
	Assets      money.Money      `json:"assets"`
	Liabilities money.Money      `json:"liabilities"`
	NetWorth    money.Money      `json:"net_worth"`
	ByKind      []KindTotal      `json:"by_account_type"`
	History     []NetWorthPoint  `json:"net_worth_history"`
	Accounts    []AccountBalance `json:"accounts"`
}

// KindTotal sums balances of one account kind.
type KindTotal struct {
	Kind      string      `json:"type"`
	Liability bool        `json:"liability"`
	Total     money.Money `json:"total"`
	Count     int         `json:"accounts"`
}

// NetWorthPoint is one month of the net worth history.
type NetWorthPoint struct {
	Month       string      `json:"month"`
	Assets      money.Money `json:"assets"`
	Liabilities money.Money `json:"liabilities"`
	NetWorth    money.Money `json:"net_worth"`
}

// AccountBalance is one account line.
type AccountBalance struct {
	Name    string      `json:"name"`
	Kind    string      `json:"type"`
	Balance money.Money `json:"balance"`
}

func (e *Executor) balanceSheet(ctx context.Context, fam finance.Family, args BalanceSheetArgs) (BalanceSheet, error) {
	months := clamp(args.Months, defaultHistoryMonths, 1, maxHistoryMonths)

	accounts, err := e.Data.Accounts(ctx, fam.ID)
	if err != nil {
		return BalanceSheet{}, fmt.Errorf("load accounts: %w", err)
	}
	now := e.now(fam)

	assets, liabilities := decimal.Zero, decimal.Zero
	kinds := map[finance.AccountKind]*KindTotal{}
	out := BalanceSheet{AsOf: fam.FormatDate(now)}
	for _, acc := range accounts {
		amount := acc.Balance
		if acc.Kind.IsLiability() {
			amount = amount.Abs()
			liabilities = liabilities.Add(amount)
		} else {
			assets = assets.Add(amount)
		}
		kt, ok := kinds[acc.Kind]
		if !ok {
			kt = &KindTotal{Kind: string(acc.Kind), Liability: acc.Kind.IsLiability(), Total: fam.Money(decimal.Zero)}
			kinds[acc.Kind] = kt
		}
		kt.Total = kt.Total.Add(fam.Money(amount))
		kt.Count++
		out.Accounts = append(out.Accounts, AccountBalance{Name: acc.Name, Kind: string(acc.Kind), Balance: fam.Money(acc.Balance)})
	}
	out.Assets = fam.Money(assets)
	out.Liabilities = fam.Money(liabilities)
	out.NetWorth = fam.Money(assets.Sub(liabilities))

	for _, kt := range kinds {
		out.ByKind = append(out.ByKind, *kt)
	}
	sort.Slice(out.ByKind, func(i, j int) bool {
		if out.ByKind[i].Liability != out.ByKind[j].Liability {
			return !out.ByKind[i].Liability
		}
		return out.ByKind[i].Total.Amount.GreaterThan(out.ByKind[j].Total.Amount)
	})

	window := period.Month(now)
	start := window.Start.AddDate(0, -(months - 1), 0)
	history, err := e.Data.BalanceHistory(ctx, fam.ID, start, window.End)
	if err != nil {
		return BalanceSheet{}, fmt.Errorf("load balance history: %w", err)
	}
	for _, snap := range history {
		a := snap.Assets
		l := snap.Liabilities.Abs()
		out.History = append(out.History, NetWorthPoint{
			Month:       snap.Month.Format("Jan 2006"),
			Assets:      fam.Money(a),
			Liabilities: fam.Money(l),
			NetWorth:    fam.Money(a.Sub(l)),
		})
	}
	return out, nil
}

// clamp applies a default for non-positive values and bounds the result.
func clamp(value, def, lo, hi int) int {
	if value <= 0 {
		value = def
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
