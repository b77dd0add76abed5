package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a family has no currency preference.
const DefaultCurrency = "INR"

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AED": "AED ",
	"SGD": "S$",
}

// Money is an amount tagged with its ISO 4217 currency code.
type Money struct {
	// Amount is the decimal value.
	Amount decimal.Decimal
	// Currency is the ISO currency code.
	Currency string
}

// New returns Money for amount in currency.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: normalizeCurrency(currency)}
}

// Zero returns a zero amount in currency.
func Zero(currency string) Money {
	return New(decimal.Zero, currency)
}

// FromFloat is a convenience for tests and computed values.
func FromFloat(value float64, currency string) Money {
	return New(decimal.NewFromFloat(value), currency)
}

// Add returns m + other. The receiver's currency wins.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Currency: m.Currency}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// String renders the amount with the currency symbol and, for INR, lakh/crore grouping.
func (m Money) String() string {
	return Format(m.Amount, m.Currency)
}

// MarshalJSON emits {"amount":"1234.50","currency":"INR","formatted":"₹1,234.50"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
		Formatted string `json:"formatted"`
	}{
		Amount:    m.Amount.StringFixed(2),
		Currency:  m.Currency,
		Formatted: m.String(),
	})
}

// Format renders amount in currency.
func Format(amount decimal.Decimal, currency string) string {
	currency = normalizeCurrency(currency)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	if currency == "INR" {
		whole = groupIndian(whole)
	} else {
		whole = groupThousands(whole)
	}
	symbol, ok := symbols[currency]
	if !ok {
		symbol = currency + " "
	}
	return sign + symbol + whole + "." + frac
}

// groupIndian groups the last three digits, then every two: 12,34,567.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	return strings.Join(parts, ",")
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}
