package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finassist/finassist/internal/assistant"
	"github.com/finassist/finassist/internal/gateway"
)

var (
	askHistoryFile string
	askPrevious    string
	askShowTools   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question about the family's finances",
	Long: `Run one assistant turn: the question goes to the LLM backend together with the
finance tool catalog, requested tools run against the dataset and the final answer
is streamed to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askHistoryFile, "history", "", "JSON file with prior messages [{\"role\",\"content\"}]")
	askCmd.Flags().StringVar(&askPrevious, "previous-response-id", "", "Response id of the previous turn")
	askCmd.Flags().BoolVar(&askShowTools, "show-tools", false, "Print executed tool calls to stderr")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	if e.cfg.GatewayURL == "" {
		return gateway.ErrNotConfigured
	}
	history, err := readHistory(askHistoryFile)
	if err != nil {
		return err
	}

	orch := &assistant.Orchestrator{
		Gateway:      gateway.New(e.cfg.Gateway(), e.logger),
		Tools:        e.executor,
		Catalog:      e.catalog,
		Instructions: e.prompts.ChatInstructions(),
		HistoryLimit: e.cfg.HistoryLimit,
		Logger:       e.logger,
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	events := orch.Respond(ctx, e.family, assistant.TurnRequest{
		Message:            strings.Join(args, " "),
		History:            history,
		PreviousResponseID: askPrevious,
	})
	for ev := range events {
		switch ev.Kind {
		case assistant.EventDelta:
			fmt.Fprint(out, ev.Text)
		case assistant.EventToolResult:
			if askShowTools {
				status := "ok"
				if ev.ToolResult.IsError() {
					status = ev.ToolResult.ErrorMessage()
				}
				fmt.Fprintf(errOut, "[tool] %s: %s\n", ev.ToolResult.Name, status)
			}
		case assistant.EventComplete:
			fmt.Fprintln(out)
			e.logger.Debug("turn complete", "turn_id", ev.Completion.TurnID, "response_id", ev.Completion.ResponseID)
		case assistant.EventError:
			fmt.Fprintln(out)
			return fmt.Errorf("assistant turn failed: %w", ev.Err)
		}
	}
	return nil
}

func readHistory(path string) ([]gateway.Message, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []gateway.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return history, nil
}
