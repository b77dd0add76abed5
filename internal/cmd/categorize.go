package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/finassist/finassist/internal/categorize"
	"github.com/finassist/finassist/internal/gateway"
)

var categorizeIDs []string

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Auto-categorize uncategorized transactions",
	Long: `Send the family's uncategorized, unlocked transactions to the LLM backend in
batches and apply the returned categories. Failed batches are skipped.`,
	RunE: runCategorize,
}

func init() {
	rootCmd.AddCommand(categorizeCmd)

	categorizeCmd.Flags().StringSliceVar(&categorizeIDs, "ids", nil, "Restrict to these transaction ids")
}

func runCategorize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	pipeline := &categorize.Pipeline{
		Store:     e.store,
		Prompts:   e.prompts,
		BatchSize: e.cfg.CategorizeBatchSize,
		Limiter:   newLimiter(e.cfg.CategorizeRatePerMinute),
		Logger:    e.logger,
		Notifier: categorize.NotifierFunc(func(_ context.Context, o categorize.BatchOutcome) error {
			status := "ok"
			if o.Err != nil {
				status = "skipped: " + o.Err.Error()
			}
			_, err := fmt.Fprintf(errOut, "batch %d/%d (%d transactions): %d categorized, %s\n", o.Index+1, o.Batches, o.Size, o.Modified, status)
			return err
		}),
	}
	if e.cfg.GatewayURL != "" {
		pipeline.Gateway = gateway.New(e.cfg.Gateway(), e.logger)
	}

	modified, err := pipeline.Categorize(ctx, e.family, categorizeIDs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Categorized %d transactions\n", modified)
	return nil
}

// newLimiter allows perMinute calls a minute; zero disables pacing.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
