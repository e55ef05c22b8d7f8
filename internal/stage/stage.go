// Package stage defines the seven processing stages of the verification
// pipeline as tracked by the client, their dependency graph, and the mapping
// from backend agent names to stage identifiers.
package stage

// ID identifies one processing stage. The seven known values are ordered;
// backend agent names the client does not recognize pass through as opaque
// IDs so a backend contract change stays visible instead of being masked.
type ID string

const (
	Paper    ID = "paper"
	Repro    ID = "repro"
	Evidence ID = "evidence"
	Stats    ID = "stats"
	Related  ID = "related"
	Reviewer ID = "reviewer"
	Verdict  ID = "verdict"
)

// Status is the display state of a single stage.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Order is the total ordering used for "already passed" comparisons.
// The underlying dependency structure is a DAG (see Edges), but the backend
// pipeline executes sequentially in this order.
var Order = []ID{Paper, Repro, Evidence, Stats, Related, Reviewer, Verdict}

var orderIndex = func() map[ID]int {
	m := make(map[ID]int, len(Order))
	for i, id := range Order {
		m[id] = i
	}
	return m
}()

// Index returns the position of id in the total order, or -1 for an
// unknown (pass-through) stage ID.
func Index(id ID) int {
	i, ok := orderIndex[id]
	if !ok {
		return -1
	}
	return i
}

// Known reports whether id is one of the seven fixed stages.
func Known(id ID) bool {
	_, ok := orderIndex[id]
	return ok
}

// labels are the human-readable stage names used in log lines and tables.
var labels = map[ID]string{
	Paper:    "Paper Parser",
	Repro:    "Reproducibility",
	Evidence: "Experiment Evidence",
	Stats:    "Statistical Audit",
	Related:  "Related Work",
	Reviewer: "Reviewer Simulation",
	Verdict:  "Final Verdict",
}

// Label returns the display label for a stage. Unknown IDs render as
// themselves so they are never dropped silently.
func Label(id ID) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return string(id)
}

// agentNames maps the backend-side agent vocabulary to client stage IDs.
var agentNames = map[string]ID{
	"PaperParserAgent":         Paper,
	"ReproducibilityAgent":     Repro,
	"ExperimentEvidenceAgent":  Evidence,
	"StatisticalAuditorAgent":  Stats,
	"RelatedWorkBaselineAgent": Related,
	"ReviewerSimulationAgent":  Reviewer,
	"VerdictAgent":             Verdict,
}

// AgentName returns the backend agent name for a known stage ID.
func AgentName(id ID) string {
	for name, sid := range agentNames {
		if sid == id {
			return name
		}
	}
	return string(id)
}

// FromAgent resolves a backend agent name to a stage ID. Names outside the
// fixed lookup pass through unchanged as opaque IDs.
func FromAgent(name string) ID {
	if id, ok := agentNames[name]; ok {
		return id
	}
	return ID(name)
}

// Edge is one dependency edge in the stage graph.
type Edge struct {
	From ID
	To   ID
}

// Edges is the stage dependency graph: paper fans out to repro, evidence and
// stats; those converge with related (fed by repro) into reviewer, which
// feeds verdict.
var Edges = []Edge{
	{Paper, Repro},
	{Paper, Evidence},
	{Paper, Stats},
	{Repro, Related},
	{Repro, Reviewer},
	{Evidence, Reviewer},
	{Stats, Reviewer},
	{Related, Reviewer},
	{Reviewer, Verdict},
}

// Incoming returns the edges feeding into id. Unknown IDs have none.
func Incoming(id ID) []Edge {
	var in []Edge
	for _, e := range Edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}
