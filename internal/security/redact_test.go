package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactArguments(t *testing.T) {
	out := RedactArguments(map[string]any{
		"account_number": "50100012345678",
		"api_key":        "k",
		"search":         "NEFT 50100012345678 rent",
		"amount":         5000,
		"shopping":       "x",
	})
	assert.Equal(t, "***", out["account_number"])
	assert.Equal(t, "***", out["api_key"])
	assert.Equal(t, "NEFT XXXXXXXXXX5678 rent", out["search"])
	assert.Equal(t, 5000, out["amount"])
	assert.Equal(t, "x", out["shopping"])
	assert.Nil(t, RedactArguments(nil))
}

func TestMaskDigitsLeavesShortNumbers(t *testing.T) {
	assert.Equal(t, "EMI 45000 due", MaskDigits("EMI 45000 due"))
}
