// Package report normalizes the loosely-typed results payload returned by the
// verification backend into one canonical shape. The backend has used several
// historically-inconsistent key names for the same concepts; every known alias
// is checked here, once, at the boundary, so downstream consumers never see
// the inconsistency.
package report

// Report is the canonical analysis report. All fields default to empty or
// zero; a missing section in the payload is never an error.
type Report struct {
	Paper       PaperAnalysis
	Repro       Reproducibility
	Evidence    ExperimentEvidence
	Stats       StatisticalAudit
	RelatedWork RelatedWork
	Reviewer    ReviewerSimulation
	Verdict     Verdict
}

// PaperAnalysis holds what the parser stage extracted from the paper.
type PaperAnalysis struct {
	Title           string
	Abstract        string
	Claims          []string
	Datasets        []string
	Metrics         []string
	Baselines       []string
	ReportedResults []ReportedResult
}

// ReportedResult is one numerical result reported in the paper.
type ReportedResult struct {
	MetricName string
	Value      string
	Location   string
	Context    string
}

// Reproducibility summarizes reproducibility findings. MissingItems is the
// union of every alias the backend has used for the missing-items list.
type Reproducibility struct {
	Score         float64
	MissingItems  []string
	FoundSeeds    []string
	FoundHardware []string
}

// ExperimentEvidence maps claimed results to the experimental evidence found.
type ExperimentEvidence struct {
	ExperimentMap      map[string]ExperimentMapping
	UntraceableResults []string
	MissingExperiments []string
	Issues             []string
}

// ExperimentMapping ties one claimed result to its evidence.
type ExperimentMapping struct {
	ClaimedResult    string
	LogFile          string
	ScriptFile       string
	EvidenceStrength string
	Notes            string
}

// StatisticalAudit holds statistical-audit findings.
type StatisticalAudit struct {
	WeakClaims         []WeakClaim
	VarianceIssues     []string
	SignificanceIssues []string
	MetricMisuse       []string
}

// WeakClaim is one statistically weak claim.
type WeakClaim struct {
	Claim          string
	Reason         string
	Severity       string
	Recommendation string
}

// RelatedWork summarizes related-work coverage. Gaps concatenates the three
// alias-laden list fields the backend may populate simultaneously.
type RelatedWork struct {
	CitationsFound  int
	Gaps            []string
	WeakComparisons []string
}

// ReviewerSimulation holds simulated reviewer feedback.
type ReviewerSimulation struct {
	Comments          []ReviewerComment
	Strengths         []string
	Weaknesses        []string
	OverallAssessment string
}

// ReviewerComment is one simulated reviewer comment with a severity tag.
type ReviewerComment struct {
	Comment  string
	Category string
	Severity string
	Section  string
}

// Verdict is the final assessment.
type Verdict struct {
	Readiness            string
	OverallVerdict       string
	ConfidenceScore      float64
	ReproducibilityScore float64
	CriticalIssues       []string
	ReviewerRisks        []string
	ReproducibilityGaps  []string
	ActionItems          []ActionItem
}

// ActionItem is one prioritized follow-up for the researcher.
type ActionItem struct {
	Action          string
	Priority        string
	Category        string
	EstimatedEffort string
}
