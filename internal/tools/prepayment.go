package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/money"
)

// Prepayment strategies.
const (
	StrategyReduceTenure = "reduce_tenure"
	StrategyReduceEMI    = "reduce_emi"
)

var (
	errNonPositivePrepayment = errors.New("prepayment amount must be positive")
	errNoOutstandingLoans    = errors.New("no loans with outstanding principal")
)

// PrepaymentPlan is the output of calculate_prepayment.
type PrepaymentPlan struct {
	Amount             money.Money         `json:"prepayment_amount"`
	Strategy           string              `json:"strategy"`
	TotalInterestSaved money.Money         `json:"total_interest_saved"`
	Loans              []PrepaymentOutcome `json:"loans"`
}

// PrepaymentOutcome is the effect of the prepayment on one loan.
type PrepaymentOutcome struct {
	Loan               string      `json:"loan"`
	Lender             string      `json:"lender,omitempty"`
	Outstanding        money.Money `json:"outstanding"`
	NewOutstanding     money.Money `json:"new_outstanding"`
	CurrentEMI         money.Money `json:"current_emi"`
	NewEMI             money.Money `json:"new_emi"`
	RemainingMonths    *int        `json:"remaining_months"`
	NewRemainingMonths *int        `json:"new_remaining_months"`
	MonthsSaved        int         `json:"months_saved"`
	InterestBefore     money.Money `json:"interest_before"`
	InterestAfter      money.Money `json:"interest_after"`
	InterestSaved      money.Money `json:"interest_saved"`
	Closes             bool        `json:"closes_loan"`
	Note               string      `json:"note,omitempty"`
}

func (e *Executor) prepayment(ctx context.Context, fam finance.Family, args PrepaymentArgs) (PrepaymentPlan, error) {
	if !args.Amount.IsPositive() {
		return PrepaymentPlan{}, errNonPositivePrepayment
	}
	strategy := strings.ToLower(strings.TrimSpace(args.Strategy))
	switch strategy {
	case "":
		strategy = StrategyReduceTenure
	case StrategyReduceTenure, StrategyReduceEMI:
	default:
		return PrepaymentPlan{}, fmt.Errorf("unknown strategy %q: use %s or %s", args.Strategy, StrategyReduceTenure, StrategyReduceEMI)
	}

	loans, err := e.Data.Loans(ctx, fam.ID)
	if err != nil {
		return PrepaymentPlan{}, fmt.Errorf("load loans: %w", err)
	}
	matched := matchLoans(loans, args.LoanName)
	if len(matched) == 0 {
		if args.LoanName != "" {
			return PrepaymentPlan{}, fmt.Errorf("no matching loans for %q", args.LoanName)
		}
		return PrepaymentPlan{}, errors.New("no matching loans")
	}
	var eligible []finance.Loan
	for _, l := range matched {
		if l.Outstanding.IsPositive() {
			eligible = append(eligible, l)
		}
	}
	if len(eligible) == 0 {
		return PrepaymentPlan{}, errNoOutstandingLoans
	}

	plan := PrepaymentPlan{Amount: fam.Money(args.Amount), Strategy: strategy}
	saved := decimal.Zero
	for _, l := range eligible {
		outcome := simulatePrepayment(fam, l, args.Amount, strategy)
		saved = saved.Add(outcome.InterestSaved.Amount)
		plan.Loans = append(plan.Loans, outcome)
	}
	plan.TotalInterestSaved = fam.Money(saved)
	return plan, nil
}

func matchLoans(loans []finance.Loan, name string) []finance.Loan {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return loans
	}
	var out []finance.Loan
	for _, l := range loans {
		if strings.Contains(strings.ToLower(l.Name), needle) || strings.Contains(strings.ToLower(l.Lender), needle) {
			out = append(out, l)
		}
	}
	return out
}

func simulatePrepayment(fam finance.Family, l finance.Loan, amount decimal.Decimal, strategy string) PrepaymentOutcome {
	rate := l.AnnualRate.Div(decimal.NewFromInt(1200))
	out := PrepaymentOutcome{
		Loan:            l.Name,
		Lender:          l.Lender,
		Outstanding:     fam.Money(l.Outstanding),
		CurrentEMI:      fam.Money(l.EMI),
		RemainingMonths: RemainingMonths(l.Outstanding, l.AnnualRate, l.EMI),
	}
	before, ok := amortize(l.Outstanding, rate, l.EMI)
	if !ok {
		out.NewOutstanding = fam.Money(decimal.Max(l.Outstanding.Sub(amount), decimal.Zero))
		out.NewEMI = fam.Money(l.EMI)
		out.Note = "EMI does not cover the monthly interest; savings cannot be estimated"
		return out
	}
	out.InterestBefore = fam.Money(before.interest)

	if amount.GreaterThanOrEqual(l.Outstanding) {
		zero := 0
		out.Closes = true
		out.NewOutstanding = fam.Money(decimal.Zero)
		out.NewEMI = fam.Money(decimal.Zero)
		out.NewRemainingMonths = &zero
		out.MonthsSaved = before.months
		out.InterestAfter = fam.Money(decimal.Zero)
		out.InterestSaved = fam.Money(before.interest)
		return out
	}

	remaining := l.Outstanding.Sub(amount)
	emi := l.EMI
	if strategy == StrategyReduceEMI {
		emi = annuity(remaining, rate, before.months)
	}
	after, _ := amortize(remaining, rate, emi)
	out.NewOutstanding = fam.Money(remaining)
	out.NewEMI = fam.Money(emi)
	out.NewRemainingMonths = &after.months
	out.MonthsSaved = before.months - after.months
	out.InterestAfter = fam.Money(after.interest)
	out.InterestSaved = fam.Money(before.interest.Sub(after.interest))
	return out
}

type schedule struct {
	months   int
	interest decimal.Decimal
}

// amortize runs the monthly schedule to payoff. ok is false when the EMI
// never reduces the principal.
func amortize(principal, monthlyRate, emi decimal.Decimal) (schedule, bool) {
	var s schedule
	balance := principal
	for balance.IsPositive() {
		if s.months >= maxTenureMonths {
			return s, false
		}
		interest := balance.Mul(monthlyRate).Round(2)
		if emi.LessThanOrEqual(interest) {
			return s, false
		}
		payment := decimal.Min(emi, balance.Add(interest))
		balance = balance.Add(interest).Sub(payment)
		s.interest = s.interest.Add(interest)
		s.months++
	}
	return s, true
}

// annuity returns the EMI that repays principal in n months, rounded up to the paisa.
func annuity(principal, monthlyRate decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return principal
	}
	if monthlyRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n))).RoundUp(2)
	}
	r := monthlyRate.InexactFloat64()
	factor := math.Pow(1+r, float64(n))
	return principal.Mul(decimal.NewFromFloat(r * factor / (factor - 1))).RoundUp(2)
}
