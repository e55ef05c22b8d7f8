package report

// Normalize converts a raw results payload into the canonical Report.
// Every field is optional; absent or malformed values yield empty defaults,
// never a panic. Where multiple aliases can be populated at once the values
// are unioned, not overwritten.
func Normalize(raw map[string]interface{}) *Report {
	r := &Report{}
	if raw == nil {
		return r
	}

	if sec := section(raw, "paper_analysis"); sec != nil {
		r.Paper = PaperAnalysis{
			Title:           str(sec, "paper_title", "title"),
			Abstract:        str(sec, "abstract"),
			Claims:          strList(sec, "claims"),
			Datasets:        strList(sec, "datasets"),
			Metrics:         strList(sec, "metrics"),
			Baselines:       strList(sec, "baselines"),
			ReportedResults: reportedResults(sec["reported_results"]),
		}
	}

	if sec := section(raw, "reproducibility"); sec != nil {
		r.Repro = Reproducibility{
			Score: num(sec, "reproducibility_score", "score"),
			// Two aliases for the same list; both may carry entries.
			MissingItems:  concat(strList(sec, "missing_items"), strList(sec, "missing_reproducibility_items")),
			FoundSeeds:    strList(sec, "found_seeds", "seeds"),
			FoundHardware: strList(sec, "found_hardware", "hardware"),
		}
	}

	if sec := section(raw, "experiment_evidence"); sec != nil {
		r.Evidence = ExperimentEvidence{
			ExperimentMap:      experimentMap(sec["experiment_map"]),
			UntraceableResults: strList(sec, "untraceable_results"),
			MissingExperiments: strList(sec, "missing_experiments"),
			Issues:             strList(sec, "issues"),
		}
	}

	if sec := section(raw, "statistical_audit"); sec != nil {
		r.Stats = StatisticalAudit{
			WeakClaims:         weakClaims(sec["weak_claims"]),
			VarianceIssues:     strList(sec, "variance_issues"),
			SignificanceIssues: strList(sec, "significance_issues"),
			MetricMisuse:       strList(sec, "metric_misuse"),
		}
	}

	if sec := section(raw, "related_work"); sec != nil {
		r.RelatedWork = RelatedWork{
			CitationsFound: int(num(sec, "citations_found")),
			// Three fields have historically carried citation gaps; all are
			// kept, concatenated in a fixed order.
			Gaps: concat(
				strList(sec, "missing_baselines"),
				strList(sec, "related_work_gaps"),
				strList(sec, "citation_issues"),
			),
			WeakComparisons: strList(sec, "weak_comparisons"),
		}
	}

	if sec := section(raw, "reviewer_simulation"); sec != nil {
		comments := sec["reviewer_comments"]
		if comments == nil {
			comments = sec["comments"]
		}
		r.Reviewer = ReviewerSimulation{
			Comments:          reviewerComments(comments),
			Strengths:         strList(sec, "strengths"),
			Weaknesses:        strList(sec, "weaknesses"),
			OverallAssessment: str(sec, "overall_assessment"),
		}
	}

	if sec := section(raw, "verdict"); sec != nil {
		r.Verdict = Verdict{
			Readiness:            str(sec, "submission_readiness", "readiness"),
			OverallVerdict:       str(sec, "overall_verdict", "verdict"),
			ConfidenceScore:      num(sec, "confidence_score", "confidence"),
			ReproducibilityScore: num(sec, "reproducibility_score"),
			CriticalIssues:       strList(sec, "critical_issues"),
			ReviewerRisks:        strList(sec, "reviewer_risks"),
			ReproducibilityGaps:  strList(sec, "reproducibility_gaps"),
			ActionItems:          actionItems(sec["action_items"]),
		}
		// The verdict stage sometimes carries the reproducibility score the
		// repro section omitted.
		if r.Repro.Score == 0 && r.Verdict.ReproducibilityScore != 0 {
			r.Repro.Score = r.Verdict.ReproducibilityScore
		}
	}

	return r
}

// section returns a nested object, or nil when absent or not an object.
func section(m map[string]interface{}, key string) map[string]interface{} {
	sec, _ := m[key].(map[string]interface{})
	return sec
}

// str returns the first non-empty string found under keys.
func str(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// num returns the first numeric value found under keys. JSON numbers decode
// as float64; integers that arrive as strings are ignored.
func num(m map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

// strList collects string entries from the first populated list among keys.
// Non-string list elements are skipped rather than failing the whole list.
func strList(m map[string]interface{}, keys ...string) []string {
	for _, k := range keys {
		list, ok := m[k].([]interface{})
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// concat appends the given lists in order, returning nil when all are empty.
func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func reportedResults(v interface{}) []ReportedResult {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []ReportedResult
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, ReportedResult{
			MetricName: str(m, "metric_name", "metric"),
			Value:      str(m, "value"),
			Location:   str(m, "location"),
			Context:    str(m, "context"),
		})
	}
	return out
}

func experimentMap(v interface{}) map[string]ExperimentMapping {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]ExperimentMapping, len(raw))
	for claim, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			// Some runs emit bare strings as evidence notes.
			if s, ok := item.(string); ok {
				out[claim] = ExperimentMapping{ClaimedResult: claim, Notes: s}
			}
			continue
		}
		out[claim] = ExperimentMapping{
			ClaimedResult:    str(m, "claimed_result"),
			LogFile:          str(m, "log_file"),
			ScriptFile:       str(m, "script_file"),
			EvidenceStrength: str(m, "evidence_strength"),
			Notes:            str(m, "notes"),
		}
	}
	return out
}

// weakClaims accepts both object entries and bare strings; the LLM output is
// not reliable about which it emits.
func weakClaims(v interface{}) []WeakClaim {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []WeakClaim
	for _, item := range list {
		switch c := item.(type) {
		case string:
			out = append(out, WeakClaim{Claim: c})
		case map[string]interface{}:
			out = append(out, WeakClaim{
				Claim:          str(c, "claim"),
				Reason:         str(c, "reason"),
				Severity:       str(c, "severity"),
				Recommendation: str(c, "recommendation"),
			})
		}
	}
	return out
}

func reviewerComments(v interface{}) []ReviewerComment {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []ReviewerComment
	for _, item := range list {
		switch c := item.(type) {
		case string:
			out = append(out, ReviewerComment{Comment: c})
		case map[string]interface{}:
			out = append(out, ReviewerComment{
				Comment:  str(c, "comment"),
				Category: str(c, "category"),
				Severity: str(c, "severity"),
				Section:  str(c, "section"),
			})
		}
	}
	return out
}

func actionItems(v interface{}) []ActionItem {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []ActionItem
	for _, item := range list {
		switch a := item.(type) {
		case string:
			out = append(out, ActionItem{Action: a})
		case map[string]interface{}:
			out = append(out, ActionItem{
				Action:          str(a, "action"),
				Priority:        str(a, "priority"),
				Category:        str(a, "category"),
				EstimatedEffort: str(a, "estimated_effort"),
			})
		}
	}
	return out
}
