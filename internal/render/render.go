// Package render draws the live analysis view and the final report in the
// terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"paperwatch/internal/reconcile"
	"paperwatch/internal/report"
	"paperwatch/internal/stage"
)

// Renderer streams reconciled state to a terminal. The reconciler's log is
// append-only, so live output just prints entries beyond the last printed
// index.
type Renderer struct {
	out     io.Writer
	printed int
}

// New creates a renderer writing to out.
func New(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// Update prints log entries appended since the previous call, with the
// current progress value.
func (r *Renderer) Update(st *reconcile.State) {
	for ; r.printed < len(st.Log); r.printed++ {
		entry := st.Log[r.printed]
		marker := " "
		switch entry.Severity {
		case reconcile.SeveritySuccess:
			marker = "✓"
		case reconcile.SeverityError:
			marker = "✗"
		}
		label := entry.StageLabel
		if label == "" {
			label = "pipeline"
		}
		fmt.Fprintf(r.out, "[%s] %s %-20s %s (%d%%)\n",
			entry.Timestamp.Format("15:04:05"), marker, label, entry.Message, st.Progress)
	}
}

// StageTable prints the per-stage status map as a table, with the active
// incoming edges of the running stage.
func (r *Renderer) StageTable(st *reconcile.State) {
	table := tablewriter.NewWriter(r.out)
	table.Header("Stage", "Status", "Active Inputs")

	for _, id := range stage.Order {
		inputs := "-"
		if st.Stages[id] == stage.StatusRunning {
			var from []string
			for _, e := range stage.Incoming(id) {
				if st.ActiveEdges[e] {
					from = append(from, stage.Label(e.From))
				}
			}
			if len(from) > 0 {
				inputs = strings.Join(from, ", ")
			}
		}
		table.Append(stage.Label(id), string(st.Stages[id]), inputs)
	}

	table.Render()
	fmt.Fprintf(r.out, "Progress: %d%%\n", st.Progress)
}

// Report prints the normalized analysis report.
func (r *Renderer) Report(rep *report.Report) {
	if rep == nil {
		fmt.Fprintln(r.out, "No results available.")
		return
	}

	fmt.Fprintln(r.out, "\n=== Final Verdict ===")
	table := tablewriter.NewWriter(r.out)
	table.Header("Field", "Value")
	table.Append("Readiness", orDash(rep.Verdict.Readiness))
	table.Append("Verdict", orDash(rep.Verdict.OverallVerdict))
	table.Append("Confidence", fmt.Sprintf("%.0f", rep.Verdict.ConfidenceScore))
	table.Append("Reproducibility Score", fmt.Sprintf("%.0f", rep.Repro.Score))
	table.Render()

	r.list("Critical Issues", rep.Verdict.CriticalIssues)
	r.list("Claims", rep.Paper.Claims)
	r.list("Datasets", rep.Paper.Datasets)
	r.list("Missing Reproducibility Items", rep.Repro.MissingItems)
	r.list("Untraceable Results", rep.Evidence.UntraceableResults)
	r.list("Related Work Gaps", rep.RelatedWork.Gaps)

	if len(rep.Stats.WeakClaims) > 0 {
		fmt.Fprintln(r.out, "\n=== Statistically Weak Claims ===")
		table := tablewriter.NewWriter(r.out)
		table.Header("Claim", "Severity", "Reason")
		for _, wc := range rep.Stats.WeakClaims {
			table.Append(wc.Claim, orDash(wc.Severity), wc.Reason)
		}
		table.Render()
	}

	if len(rep.Reviewer.Comments) > 0 {
		fmt.Fprintln(r.out, "\n=== Reviewer Comments ===")
		table := tablewriter.NewWriter(r.out)
		table.Header("Severity", "Category", "Comment")
		for _, c := range rep.Reviewer.Comments {
			table.Append(orDash(c.Severity), orDash(c.Category), c.Comment)
		}
		table.Render()
	}

	if len(rep.Verdict.ActionItems) > 0 {
		fmt.Fprintln(r.out, "\n=== Action Items ===")
		table := tablewriter.NewWriter(r.out)
		table.Header("Priority", "Category", "Action")
		for _, a := range rep.Verdict.ActionItems {
			table.Append(orDash(a.Priority), orDash(a.Category), a.Action)
		}
		table.Render()
	}
}

func (r *Renderer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(r.out, "  - %s\n", item)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
