package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paperwatch/internal/poller"
	"paperwatch/internal/reconcile"
	"paperwatch/internal/render"
	"paperwatch/pkg/metrics"
)

var (
	submitLogs    []string
	submitScripts []string
	submitBibtex  string
	metricsPort   string
	noHold        bool
)

// completionHold keeps the final stage view on screen briefly before the
// report is printed, mirroring the reference UI's completion animation.
const completionHold = 1200 * time.Millisecond

var submitCmd = &cobra.Command{
	Use:   "submit <paper-file>",
	Short: "Submit a paper for analysis and follow it to completion",
	Long: `Submit uploads the paper (plus any optional supporting files), then polls
the analysis status at a fixed cadence, streaming stage transitions and log
lines until the pipeline reaches a terminal state.

Example:
  paperwatch submit paper.pdf
  paperwatch submit paper.tex --log train.log --log eval.log --script train.py --bibtex refs.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringSliceVar(&submitLogs, "log", nil, "Experiment log file (repeatable)")
	submitCmd.Flags().StringSliceVar(&submitScripts, "script", nil, "Experiment script file (repeatable)")
	submitCmd.Flags().StringVar(&submitBibtex, "bibtex", "", "BibTeX references file")
	submitCmd.Flags().StringVar(&metricsPort, "metrics-port", "", "Serve Prometheus poller metrics on this port (disabled when empty)")
	submitCmd.Flags().BoolVar(&noHold, "no-hold", false, "Print the report immediately on completion")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	logger := NewLogger()
	renderer := render.New(os.Stdout)

	m := metrics.NewPollerMetrics()
	if metricsPort != "" {
		go func() {
			if err := http.ListenAndServe(":"+metricsPort, m.Handler()); err != nil {
				logger.Warn("metrics server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	session := poller.NewSession(NewClient(), poller.Config{
		Interval: GetPollInterval(),
		Logger:   logger,
		Metrics:  m,
		OnUpdate: func(st *reconcile.State) {
			renderer.Update(st)
		},
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Ctrl+C resets the session: the poll cycle stops, any in-flight
	// response is discarded, and the backend session is deleted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, resetting session...")
		session.Reset(context.Background())
		cancel()
	}()

	req := poller.UploadRequest{
		PaperPath:   args[0],
		LogPaths:    submitLogs,
		ScriptPaths: submitScripts,
		BibtexPath:  submitBibtex,
	}

	sessionID, err := session.Submit(ctx, req)
	if err != nil {
		var subErr *poller.SubmissionError
		if errors.As(err, &subErr) {
			return fmt.Errorf("upload failed, nothing was submitted: %w", subErr.Err)
		}
		return err
	}

	fmt.Printf("Session %s started, polling every %s\n\n", sessionID, GetPollInterval())

	select {
	case <-session.Done():
	case <-ctx.Done():
		return nil
	}

	st := session.State()
	switch {
	case st.Completed:
		if !noHold {
			time.Sleep(completionHold)
		}
		if IsJSONOutput() {
			return printResultsJSON(ctx, session, sessionID)
		}
		renderer.StageTable(st)
		renderer.Report(st.Results)
	case st.Failed:
		fmt.Fprintf(os.Stderr, "\n✗ Analysis failed: %s\n", st.ErrorMessage)
		renderer.StageTable(st)
		return &poller.BackendError{Message: st.ErrorMessage}
	}

	return nil
}

// printResultsJSON fetches the raw results payload so --output json shows
// exactly what the backend produced.
func printResultsJSON(ctx context.Context, session *poller.Session, sessionID string) error {
	results, err := NewClient().FetchResults(ctx, sessionID)
	if err != nil {
		return err
	}
	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
