// Package reconcile turns a sequence of backend status snapshots into
// consistent display state: a per-stage status map, edge activity for the
// pipeline graph, an append-only log stream and a monotonic progress value.
// Snapshots may arrive with gaps or carry stale values; the reducer restores
// the display invariants regardless of what the network delivered.
package reconcile

import (
	"time"

	"paperwatch/internal/report"
	"paperwatch/internal/stage"
	"paperwatch/pkg/models"
)

// Severity classifies a log entry for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// LogEntry is one immutable line of the terminal log stream.
type LogEntry struct {
	Timestamp  time.Time
	StageLabel string
	Message    string
	Severity   Severity
}

// State is the derived display state for one analysis session. It is only
// mutated through Apply; at most one stage is ever StatusRunning, every known
// stage before the running one is StatusSuccess and every stage after it is
// StatusIdle.
type State struct {
	Stages      map[stage.ID]stage.Status
	ActiveEdges map[stage.Edge]bool
	Log         []LogEntry
	Progress    int

	// Active is the currently running stage, or "" between stages.
	Active stage.ID

	Completed    bool
	Failed       bool
	ErrorMessage string
	Results      *report.Report

	now func() time.Time
}

// New returns a fresh state with all seven stages idle.
func New() *State {
	s := &State{
		Stages:      make(map[stage.ID]stage.Status, len(stage.Order)),
		ActiveEdges: make(map[stage.Edge]bool),
		now:         time.Now,
	}
	for _, id := range stage.Order {
		s.Stages[id] = stage.StatusIdle
	}
	return s
}

// Terminal reports whether no further snapshot can change this state.
func (s *State) Terminal() bool {
	return s.Completed || s.Failed
}

// Apply folds one snapshot into the state. Applying a duplicate terminal
// snapshot is a no-op, so feeding the same completed snapshot twice yields
// identical state with no duplicated log lines.
func (s *State) Apply(snap *models.StatusSnapshot) {
	if snap == nil || s.Terminal() {
		return
	}

	s.applyProgress(snap.Progress)

	switch snap.Status {
	case models.StatusCompleted:
		s.complete(snap)
	case models.StatusError:
		s.fail(snap.Error)
	default:
		if snap.CurrentAgent != "" {
			s.advance(stage.FromAgent(snap.CurrentAgent))
		}
	}
}

// applyProgress keeps the stored value monotonically non-decreasing and
// clamped to [0,100]; a regressive value from a stale response is ignored.
func (s *State) applyProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > s.Progress {
		s.Progress = p
	}
}

// advance handles an active-stage change. Runs at most one transition per
// snapshot: stages the backend silently skipped between polls jump straight
// to success without ever showing as running.
func (s *State) advance(next stage.ID) {
	if next == s.Active {
		return
	}
	// A snapshot naming a stage already passed is stale; the order comparison
	// only applies when both sides are known stages.
	if stage.Known(next) && stage.Known(s.Active) && stage.Index(next) < stage.Index(s.Active) {
		return
	}

	if s.Active != "" {
		s.finishStage(s.Active)
	}

	// Restore the ordering invariant for stages a missed snapshot skipped.
	// Skipped stages get no log line of their own; they were never shown as
	// running, so they jump straight to success.
	if idx := stage.Index(next); idx >= 0 {
		for i, id := range stage.Order {
			switch {
			case i < idx:
				s.Stages[id] = stage.StatusSuccess
				for _, e := range stage.Incoming(id) {
					delete(s.ActiveEdges, e)
				}
			case i > idx:
				s.Stages[id] = stage.StatusIdle
			}
		}
	}

	s.Stages[next] = stage.StatusRunning
	for _, e := range stage.Incoming(next) {
		s.ActiveEdges[e] = true
	}
	s.appendLog(next, "processing started", SeverityInfo)
	s.Active = next
}

// finishStage marks one stage complete and retires its incoming edges.
func (s *State) finishStage(id stage.ID) {
	s.Stages[id] = stage.StatusSuccess
	for _, e := range stage.Incoming(id) {
		delete(s.ActiveEdges, e)
	}
	s.appendLog(id, "completed", SeveritySuccess)
}

// complete forces every stage to success, retires all edges and stores the
// normalized results payload.
func (s *State) complete(snap *models.StatusSnapshot) {
	for _, id := range stage.Order {
		s.Stages[id] = stage.StatusSuccess
	}
	s.ActiveEdges = make(map[stage.Edge]bool)
	s.Progress = 100
	s.Results = report.Normalize(snap.Results)
	s.Active = ""
	s.Completed = true
	s.appendLog("", "analysis complete", SeveritySuccess)
}

// fail records a backend-reported error. Stage statuses are left exactly as
// they were so the user can see which stage was in progress at failure time.
func (s *State) fail(msg string) {
	if msg == "" {
		msg = "analysis failed"
	}
	s.ErrorMessage = msg
	s.Failed = true
	s.appendLog(s.Active, msg, SeverityError)
}

func (s *State) appendLog(id stage.ID, msg string, sev Severity) {
	label := ""
	if id != "" {
		label = stage.Label(id)
	}
	s.Log = append(s.Log, LogEntry{
		Timestamp:  s.now(),
		StageLabel: label,
		Message:    msg,
		Severity:   sev,
	})
}

// RunningStage returns the stage currently marked running, or "" when none.
// Derived from the status map so tests can verify the single-running
// invariant independently of Active.
func (s *State) RunningStage() stage.ID {
	for _, id := range stage.Order {
		if s.Stages[id] == stage.StatusRunning {
			return id
		}
	}
	// Unknown pass-through stages live outside the fixed order.
	for id, st := range s.Stages {
		if st == stage.StatusRunning {
			return id
		}
	}
	return ""
}
