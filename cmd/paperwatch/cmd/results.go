package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"paperwatch/internal/render"
	"paperwatch/internal/report"
)

var resultsCmd = &cobra.Command{
	Use:   "results <session-id>",
	Short: "Fetch and display the final report for a completed session",
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	client := NewClient()

	raw, err := client.FetchResults(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch results: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	renderer := render.New(cmd.OutOrStdout())
	renderer.Report(report.Normalize(raw))
	return nil
}
