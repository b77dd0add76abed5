package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFamilyFormatsInItsTimezone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	fam := Family{ID: "f1", Currency: "INR", Location: ist}
	utc := time.Date(2026, time.March, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "01-04-2026", fam.FormatDate(utc))

	fam.DateFormat = "2006-01-02"
	assert.Equal(t, "2026-04-01", fam.FormatDate(utc))
}

func TestFamilyMoneyUsesFamilyCurrency(t *testing.T) {
	fam := Family{Currency: "usd"}
	assert.Equal(t, "USD", fam.Money(decimal.NewFromInt(5)).Currency)
}

func TestLiabilityKinds(t *testing.T) {
	assert.True(t, AccountLoan.IsLiability())
	assert.True(t, AccountCreditCard.IsLiability())
	assert.False(t, AccountDepository.IsLiability())
}
