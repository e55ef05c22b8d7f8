package render

import (
	"bytes"
	"strings"
	"testing"

	"paperwatch/internal/reconcile"
	"paperwatch/internal/report"
	"paperwatch/pkg/models"
)

func runningSnap(agent string, progress int) *models.StatusSnapshot {
	return &models.StatusSnapshot{
		Progress:     progress,
		CurrentAgent: agent,
		Status:       models.StatusRunning,
	}
}

func TestUpdatePrintsOnlyNewEntries(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	st := reconcile.New()

	st.Apply(runningSnap("PaperParserAgent", 20))
	r.Update(st)
	first := buf.String()
	if !strings.Contains(first, "Paper Parser") || !strings.Contains(first, "processing started") {
		t.Errorf("first update output = %q", first)
	}

	// No new log entries, nothing new printed.
	r.Update(st)
	if buf.String() != first {
		t.Error("repeated update reprinted old entries")
	}

	st.Apply(runningSnap("ReproducibilityAgent", 35))
	r.Update(st)
	rest := strings.TrimPrefix(buf.String(), first)
	if strings.Contains(rest, "processing started\n") && !strings.Contains(rest, "Reproducibility") {
		t.Errorf("second update output = %q", rest)
	}
	paperStarts := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Paper Parser") && strings.Contains(line, "processing started") {
			paperStarts++
		}
	}
	if paperStarts != 1 {
		t.Errorf("paper start line printed %d times:\n%s", paperStarts, buf.String())
	}
}

func TestStageTableListsAllStages(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	st := reconcile.New()
	st.Apply(runningSnap("ReproducibilityAgent", 35))

	r.StageTable(st)
	out := buf.String()
	for _, label := range []string{"Paper Parser", "Reproducibility", "Experiment Evidence",
		"Statistical Audit", "Related Work", "Reviewer Simulation", "Final Verdict"} {
		if !strings.Contains(out, label) {
			t.Errorf("table missing stage %q", label)
		}
	}
	if !strings.Contains(out, "Progress: 35%") {
		t.Errorf("table missing progress line:\n%s", out)
	}
}

func TestReportNilResults(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Report(nil)
	if !strings.Contains(buf.String(), "No results available") {
		t.Errorf("nil report output = %q", buf.String())
	}
}

func TestReportSections(t *testing.T) {
	rep := report.Normalize(map[string]interface{}{
		"reproducibility": map[string]interface{}{
			"missing_items": []interface{}{"random seeds"},
		},
		"statistical_audit": map[string]interface{}{
			"weak_claims": []interface{}{
				map[string]interface{}{"claim": "2x faster", "severity": "high", "reason": "single run"},
			},
		},
		"verdict": map[string]interface{}{
			"submission_readiness": "Major revisions needed",
			"overall_verdict":      "weak reject",
			"critical_issues":      []interface{}{"unsupported speedup claim"},
		},
	})

	var buf bytes.Buffer
	New(&buf).Report(rep)
	out := buf.String()

	for _, want := range []string{
		"Final Verdict",
		"Major revisions needed",
		"weak reject",
		"Critical Issues",
		"unsupported speedup claim",
		"Missing Reproducibility Items",
		"random seeds",
		"Statistically Weak Claims",
		"2x faster",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q", want)
		}
	}

	// Empty sections stay out of the output.
	if strings.Contains(out, "Reviewer Comments") {
		t.Error("empty reviewer section rendered")
	}
}
