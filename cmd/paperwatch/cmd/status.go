package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paperwatch/internal/reconcile"
	"paperwatch/internal/render"
	"paperwatch/internal/stage"
	"paperwatch/pkg/metrics"
)

var followStatus bool

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the current status of an analysis session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&followStatus, "follow", "f", false, "Keep polling until the session reaches a terminal state")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := NewClient()
	sessionID := args[0]
	ctx := cmd.Context()

	if !followStatus {
		snap, err := client.FetchStatus(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to fetch status: %w", err)
		}
		if IsJSONOutput() {
			output, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Println(string(output))
			return nil
		}
		fmt.Printf("Session:  %s\n", sessionID)
		fmt.Printf("Status:   %s\n", snap.Status)
		fmt.Printf("Progress: %d%%\n", snap.Progress)
		if snap.CurrentAgent != "" {
			fmt.Printf("Stage:    %s\n", stage.Label(stage.FromAgent(snap.CurrentAgent)))
		}
		if snap.Error != "" {
			fmt.Printf("Error:    %s\n", snap.Error)
		}
		return nil
	}

	// Follow mode feeds every snapshot through a fresh display state, so a
	// mid-pipeline attach reconstructs the stage view the same way a live
	// submission would.
	st := reconcile.New()
	renderer := render.New(cmd.OutOrStdout())
	m := metrics.NewPollerMetrics()
	interval := GetPollInterval()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := client.FetchStatus(ctx, sessionID)
		if err == nil {
			st.Apply(snap)
			renderer.Update(st)
			m.ObservePoll()
			m.SetProgress(st.Progress)
			if st.Terminal() {
				break
			}
		} else {
			m.ObserveTransientError()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	renderer.StageTable(st)
	if st.Failed {
		return fmt.Errorf("analysis failed: %s", st.ErrorMessage)
	}
	if st.Results != nil {
		renderer.Report(st.Results)
	}
	return nil
}
