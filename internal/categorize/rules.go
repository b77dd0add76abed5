package categorize

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/finassist/finassist/internal/finance"
)

const maxRuleWords = 2

// railPrefixes are payment-rail markers that carry no merchant information.
var railPrefixes = map[string]struct{}{
	"upi":  {},
	"neft": {},
	"imps": {},
	"rtgs": {},
	"pos":  {},
	"ach":  {},
	"nach": {},
	"atm":  {},
}

// DeriveRulePattern reduces a bank description to a reusable match pattern,
// e.g. "UPI/SWIGGY INSTAMART/88123" becomes "swiggy instamart". It returns an
// empty string when nothing stable remains.
func DeriveRulePattern(description string) string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make([]string, 0, maxRuleWords)
	for _, f := range fields {
		if strings.IndexFunc(f, unicode.IsDigit) >= 0 {
			continue
		}
		if _, ok := railPrefixes[f]; ok {
			continue
		}
		words = append(words, f)
		if len(words) == maxRuleWords {
			break
		}
	}
	return strings.Join(words, " ")
}

// learnRule stores a rule for txn. Failures are logged and never affect the batch.
func (p *Pipeline) learnRule(ctx context.Context, fam finance.Family, txn finance.Transaction, categoryID string) {
	pattern := DeriveRulePattern(txn.Description)
	if pattern == "" {
		return
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	err := p.Store.CreateRule(ctx, finance.Rule{
		ID:         uuid.NewString(),
		FamilyID:   fam.ID,
		Pattern:    pattern,
		CategoryID: categoryID,
		Source:     finance.SourceAI,
		CreatedAt:  now,
	})
	if err != nil {
		p.logger().Debug("rule not created", "transaction_id", txn.ID, "pattern", pattern, "error", err)
	}
}
