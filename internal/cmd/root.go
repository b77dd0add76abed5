package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	dataPath string
	familyID string
)

var rootCmd = &cobra.Command{
	Use:   "finassist",
	Short: "Personal finance assistant",
	Long: `finassist answers questions about a family's finances with an LLM backend,
auto-categorizes transactions and exposes its finance tools over MCP.

Settings come from FINASSIST_* environment variables; --data and --family override
the dataset and family for one invocation.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Path to a YAML dataset (default: FINASSIST_DATA_PATH or the embedded sample)")
	rootCmd.PersistentFlags().StringVar(&familyID, "family", "", "Family id (default: FINASSIST_FAMILY_ID)")
}
