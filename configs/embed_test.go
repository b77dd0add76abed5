package configs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist/internal/store/memory"
)

func TestSampleDatasetLoads(t *testing.T) {
	assert.Contains(t, Names(), SampleDataset)

	raw, err := Load(SampleDataset)
	require.NoError(t, err)
	store, err := memory.Load(raw)
	require.NoError(t, err)

	fam, err := store.Family(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "INR", fam.Currency)

	pending, err := store.UncategorizedTransactions(context.Background(), "demo", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, pending)
}

func TestLoadUnknownDataset(t *testing.T) {
	_, err := Load("missing.yaml")
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
