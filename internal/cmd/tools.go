package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finassist/finassist/internal/tools"
)

var toolsCallArgs string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeJSON(cmd, tools.DefaultCatalog().All())
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Run one tool against the dataset and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsCall,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsCallCmd)

	toolsCallCmd.Flags().StringVar(&toolsCallArgs, "args", "{}", "Tool arguments as a JSON object")
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var arguments map[string]any
	if err := json.Unmarshal([]byte(toolsCallArgs), &arguments); err != nil {
		return fmt.Errorf("parse --args: %w", err)
	}
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	res := e.executor.Execute(ctx, e.family, tools.Request{
		CallID:    uuid.NewString(),
		Name:      args[0],
		Arguments: arguments,
	})
	if err := writeJSON(cmd, res); err != nil {
		return err
	}
	if res.IsError() {
		return errors.New(res.ErrorMessage())
	}
	return nil
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
