package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Investments is the output of get_investments.
type Investments struct {
	TotalValue   money.Money       `json:"total_value"`
	TotalCost    money.Money       `json:"total_cost"`
	TotalGain    money.Money       `json:"total_gain"`
	GainPercent  string            `json:"gain_percent"`
	Allocation   []AllocationSlice `json:"allocation"`
	Holdings     []HoldingItem     `json:"holdings"`
	HoldingCount int               `json:"holding_count"`
}

// AllocationSlice is the value held in one holding kind.
type AllocationSlice struct {
	Kind    string      `json:"kind"`
	Value   money.Money `json:"value"`
	Percent string      `json:"percent"`
}

// HoldingItem is one formatted holding.
type HoldingItem struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol,omitempty"`
	Kind        string      `json:"kind"`
	Quantity    string      `json:"quantity"`
	Price       money.Money `json:"price"`
	Value       money.Money `json:"value"`
	Cost        money.Money `json:"cost"`
	Gain        money.Money `json:"gain"`
	GainPercent string      `json:"gain_percent"`
}

func (e *Executor) investments(ctx context.Context, fam finance.Family) (Investments, error) {
	holdings, err := e.Data.Holdings(ctx, fam.ID)
	if err != nil {
		return Investments{}, fmt.Errorf("load holdings: %w", err)
	}
	totalValue, totalCost := decimal.Zero, decimal.Zero
	byKind := map[finance.HoldingKind]decimal.Decimal{}
	out := Investments{HoldingCount: len(holdings)}
	for _, h := range holdings {
		value := h.Value()
		gain := value.Sub(h.CostBasis)
		totalValue = totalValue.Add(value)
		totalCost = totalCost.Add(h.CostBasis)
		byKind[h.Kind] = byKind[h.Kind].Add(value)
		out.Holdings = append(out.Holdings, HoldingItem{
			Name:        h.Name,
			Symbol:      h.Symbol,
			Kind:        string(h.Kind),
			Quantity:    h.Quantity.String(),
			Price:       fam.Money(h.Price),
			Value:       fam.Money(value),
			Cost:        fam.Money(h.CostBasis),
			Gain:        fam.Money(gain),
			GainPercent: percent(gain, h.CostBasis),
		})
	}
	sort.SliceStable(out.Holdings, func(i, j int) bool {
		return out.Holdings[i].Value.Amount.GreaterThan(out.Holdings[j].Value.Amount)
	})
	for kind, value := range byKind {
		out.Allocation = append(out.Allocation, AllocationSlice{
			Kind:    string(kind),
			Value:   fam.Money(value),
			Percent: percent(value, totalValue),
		})
	}
	sort.Slice(out.Allocation, func(i, j int) bool {
		if out.Allocation[i].Value.Amount.Equal(out.Allocation[j].Value.Amount) {
			return out.Allocation[i].Kind < out.Allocation[j].Kind
		}
		return out.Allocation[i].Value.Amount.GreaterThan(out.Allocation[j].Value.Amount)
	})
	out.TotalValue = fam.Money(totalValue)
	out.TotalCost = fam.Money(totalCost)
	out.TotalGain = fam.Money(totalValue.Sub(totalCost))
	out.GainPercent = percent(totalValue.Sub(totalCost), totalCost)
	return out, nil
}

// percent renders part/whole*100 with two decimals; a zero whole yields "0.00".
func percent(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0.00"
	}
	return part.Div(whole).Mul(hundred).StringFixed(2)
}
