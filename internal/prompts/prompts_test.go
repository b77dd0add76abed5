package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist/internal/finance"
)

func TestLoadFallsBackToEnglish(t *testing.T) {
	b, err := Load("xx")
	require.NoError(t, err)
	assert.Equal(t, "en", b.Lang())
}

func TestRenderChatInstructions(t *testing.T) {
	b, err := Load("")
	require.NoError(t, err)
	out := b.ChatInstructions()(finance.Family{ID: "fam-1", Name: "Sharma", Currency: "INR"})
	assert.Contains(t, out, "Sharma family")
	assert.Contains(t, out, "INR")
	assert.Contains(t, out, "DD-MM-YYYY")
}

func TestRenderCategorizeMessage(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	out, err := b.Render(CategorizeMessage, map[string]any{
		"Categories": []string{"Food", "Rent"},
		"Transactions": []map[string]any{
			{"ID": "t1", "Date": "2026-10-02", "Amount": "-450", "Description": "UPI/SWIGGY", "Merchant": "Swiggy"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- Food\n- Rent\n")
	assert.Contains(t, out, `id=t1 date=2026-10-02 amount=-450 description="UPI/SWIGGY" merchant="Swiggy"`)
}

func TestRenderUnknownKey(t *testing.T) {
	b, err := Load("en")
	require.NoError(t, err)
	_, err = b.Render("nope", nil)
	assert.EqualError(t, err, "template not found: nope")
}
