package tools

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/finassist/finassist/internal/period"
)

// Name identifies a built-in tool.
type Name string

// Built-in tool names.
const (
	GetBalanceSheet     Name = "get_balance_sheet"
	GetTransactions     Name = "get_transactions"
	GetInvestments      Name = "get_investments"
	GetLoans            Name = "get_loans"
	GetUpcomingEMIs     Name = "get_upcoming_emis"
	GetSpendingAnalysis Name = "get_spending_analysis"
	CalculatePrepayment Name = "calculate_prepayment"
)

func periodEnum() []any {
	names := period.Names()
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, name)
	}
	return out
}

func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func builtinDefinitions() []Definition {
	periodProp := &jsonschema.Schema{
		Type:        "string",
		Description: "Named period such as this_month, last_month or last_N_months (calendar months). Defaults to this_month.",
		Enum:        periodEnum(),
	}
	return []Definition{
		{
			Name:        string(GetBalanceSheet),
			Description: "Current assets, liabilities and net worth with a monthly net worth history.",
			Parameters: object(map[string]*jsonschema.Schema{
				"months": {Type: "integer", Description: "Number of months of net worth history (default 6, max 60)."},
			}),
		},
		{
			Name:        string(GetTransactions),
			Description: "List transactions filtered by period, category, merchant or free text, with income and expense totals.",
			Parameters: object(map[string]*jsonschema.Schema{
				"period":     periodProp,
				"start_date": {Type: "string", Description: "Start date YYYY-MM-DD; overrides period."},
				"end_date":   {Type: "string", Description: "End date YYYY-MM-DD; overrides period."},
				"category":   {Type: "string", Description: "Category name."},
				"merchant":   {Type: "string", Description: "Merchant name or part of it."},
				"search":     {Type: "string", Description: "Text to match in description or merchant."},
				"limit":      {Type: "integer", Description: "Maximum rows to return (default 50, max 200)."},
			}),
		},
		{
			Name:        string(GetInvestments),
			Description: "Investment holdings with value, cost, gains and allocation by asset kind.",
			Parameters:  object(nil),
		},
		{
			Name:        string(GetLoans),
			Description: "Loans with outstanding principal, interest rate, EMI, remaining tenure and next due date.",
			Parameters:  object(nil),
		},
		{
			Name:        string(GetUpcomingEMIs),
			Description: "EMIs due within the next N days.",
			Parameters: object(map[string]*jsonschema.Schema{
				"days": {Type: "integer", Description: "Look-ahead window in days (default 30, max 365)."},
			}),
		},
		{
			Name:        string(GetSpendingAnalysis),
			Description: "Spending breakdown by category and merchant for a period, including unusually high spending days.",
			Parameters: object(map[string]*jsonschema.Schema{
				"period": periodProp,
			}),
		},
		{
			Name:        string(CalculatePrepayment),
			Description: "Estimate interest and tenure saved by prepaying a lump sum on one or all loans.",
			Parameters: object(map[string]*jsonschema.Schema{
				"amount":    {Type: "number", Description: "Prepayment amount in the family currency."},
				"loan_name": {Type: "string", Description: "Loan or lender name to restrict the calculation."},
				"strategy": {
					Type:        "string",
					Description: "reduce_tenure keeps the EMI and shortens the loan; reduce_emi keeps the tenure and lowers the EMI.",
					Enum:        []any{StrategyReduceTenure, StrategyReduceEMI},
				},
			}, "amount"),
		},
	}
}
