package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// Call is a decoded tool invocation. Each built-in tool has its own argument type.
type Call interface {
	ToolName() Name
}

// BalanceSheetArgs are the arguments of get_balance_sheet.
type BalanceSheetArgs struct {
	Months int `json:"months"`
}

// TransactionsArgs are the arguments of get_transactions.
type TransactionsArgs struct {
	Period    string `json:"period"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Category  string `json:"category"`
	Merchant  string `json:"merchant"`
	Search    string `json:"search"`
	Limit     int    `json:"limit"`
}

// InvestmentsArgs are the (empty) arguments of get_investments.
type InvestmentsArgs struct{}

// LoansArgs are the (empty) arguments of get_loans.
type LoansArgs struct{}

// UpcomingEMIsArgs are the arguments of get_upcoming_emis.
type UpcomingEMIsArgs struct {
	Days int `json:"days"`
}

// SpendingAnalysisArgs are the arguments of get_spending_analysis.
type SpendingAnalysisArgs struct {
	Period string `json:"period"`
}

// PrepaymentArgs are the arguments of calculate_prepayment.
type PrepaymentArgs struct {
	Amount   decimal.Decimal `json:"amount"`
	LoanName string          `json:"loan_name"`
	Strategy string          `json:"strategy"`
}

// UnknownCall names a tool with no decoder.
type UnknownCall struct {
	Requested string
}

func (BalanceSheetArgs) ToolName() Name     { return GetBalanceSheet }
func (TransactionsArgs) ToolName() Name     { return GetTransactions }
func (InvestmentsArgs) ToolName() Name      { return GetInvestments }
func (LoansArgs) ToolName() Name            { return GetLoans }
func (UpcomingEMIsArgs) ToolName() Name     { return GetUpcomingEMIs }
func (SpendingAnalysisArgs) ToolName() Name { return GetSpendingAnalysis }
func (PrepaymentArgs) ToolName() Name       { return CalculatePrepayment }
func (c UnknownCall) ToolName() Name        { return Name(c.Requested) }

var decoders = map[Name]func(map[string]any) (Call, error){
	GetBalanceSheet:     decodeAs[BalanceSheetArgs],
	GetTransactions:     decodeAs[TransactionsArgs],
	GetInvestments:      decodeAs[InvestmentsArgs],
	GetLoans:            decodeAs[LoansArgs],
	GetUpcomingEMIs:     decodeAs[UpcomingEMIsArgs],
	GetSpendingAnalysis: decodeAs[SpendingAnalysisArgs],
	CalculatePrepayment: decodeAs[PrepaymentArgs],
}

// Decode converts loosely typed arguments into the typed call for name.
// Names without a decoder yield UnknownCall.
func Decode(name string, args map[string]any) (Call, error) {
	decode, ok := decoders[Name(name)]
	if !ok {
		return UnknownCall{Requested: name}, nil
	}
	return decode(args)
}

func decodeAs[T Call](args map[string]any) (Call, error) {
	var out T
	if len(args) == 0 {
		return out, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(decimalHook),
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(args); err != nil {
		return nil, err
	}
	return out, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		cleaned := strings.NewReplacer(",", "", "₹", "", " ", "").Replace(strings.TrimSpace(v))
		if cleaned == "" {
			return decimal.Zero, nil
		}
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return parsed, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case nil:
		return decimal.Zero, nil
	default:
		return nil, fmt.Errorf("unsupported number type %T", data)
	}
}

// missingRequired returns the first required property absent from args.
func missingRequired(def Definition, args map[string]any) string {
	if def.Parameters == nil {
		return ""
	}
	for _, key := range def.Parameters.Required {
		value, ok := args[key]
		if !ok || value == nil {
			return key
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return key
		}
	}
	return ""
}
