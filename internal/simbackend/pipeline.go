package simbackend

import (
	"context"
	"time"

	"paperwatch/pkg/logging"
	"paperwatch/pkg/models"
)

// agentSteps reproduces the backend's per-agent progress map: each agent
// name and the overall progress reported while it runs.
var agentSteps = []struct {
	Agent    string
	Progress int
}{
	{"PaperParserAgent", 20},
	{"ReproducibilityAgent", 35},
	{"ExperimentEvidenceAgent", 50},
	{"StatisticalAuditorAgent", 65},
	{"RelatedWorkBaselineAgent", 75},
	{"ReviewerSimulationAgent", 85},
	{"VerdictAgent", 95},
}

// Pipeline simulates the multi-agent analysis run for a session, walking the
// seven agents on a timer and finishing with a canned results payload that
// deliberately uses the backend's historical alias keys.
type Pipeline struct {
	store         *Store
	stageDuration time.Duration
	logger        *logging.Logger

	// FailAt, when set to an agent name, makes the run end in an error
	// state while that agent is active. Used to exercise client error
	// handling.
	FailAt string
}

// NewPipeline creates a pipeline simulator
func NewPipeline(store *Store, stageDuration time.Duration, logger *logging.Logger) *Pipeline {
	if stageDuration <= 0 {
		stageDuration = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Pipeline{
		store:         store,
		stageDuration: stageDuration,
		logger:        logger,
	}
}

// Run executes the simulated pipeline for one session. Runs in its own
// goroutine; a deleted session simply stops receiving updates.
func (p *Pipeline) Run(ctx context.Context, sessionID string) {
	log := p.logger.WithField("session_id", sessionID)
	log.Info("pipeline started")

	p.update(sessionID, func(s *Session) {
		s.Status = models.StatusRunning
		s.Progress = 5
	})

	if !p.sleep(ctx) {
		return
	}
	p.update(sessionID, func(s *Session) { s.Progress = 10 })

	for _, step := range agentSteps {
		p.update(sessionID, func(s *Session) {
			s.CurrentAgent = step.Agent
			s.Progress = step.Progress
		})
		log.Debug("agent running", map[string]interface{}{"agent": step.Agent})

		if p.FailAt == step.Agent {
			p.update(sessionID, func(s *Session) {
				s.Status = models.StatusError
				s.Error = "simulated failure in " + step.Agent
			})
			log.Warn("pipeline failed", map[string]interface{}{"agent": step.Agent})
			return
		}

		if !p.sleep(ctx) {
			return
		}
	}

	now := time.Now()
	p.update(sessionID, func(s *Session) {
		s.Status = models.StatusCompleted
		s.Progress = 100
		s.CurrentAgent = ""
		s.Results = sampleResults()
		s.CompletedAt = &now
	})
	log.Info("pipeline completed")
}

func (p *Pipeline) update(sessionID string, fn func(*Session)) {
	if err := p.store.Update(sessionID, fn); err != nil {
		p.logger.Debug("session gone, dropping update", map[string]interface{}{"session_id": sessionID})
	}
}

func (p *Pipeline) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.stageDuration):
		return true
	}
}

// sampleResults builds a results payload in the shape the real backend
// produces, alias keys included, so the client's normalization path is
// exercised end to end.
func sampleResults() map[string]interface{} {
	return map[string]interface{}{
		"paper_analysis": map[string]interface{}{
			"status":      "success",
			"paper_title": "Improved Convergence Bounds for Stochastic Gradient Methods",
			"claims": []interface{}{
				"Achieves 94.2% accuracy on CIFAR-10",
				"Converges 2x faster than the SGD baseline",
			},
			"datasets": []interface{}{"CIFAR-10", "ImageNet"},
			"metrics":  []interface{}{"accuracy", "convergence rate"},
			"reported_results": []interface{}{
				map[string]interface{}{
					"metric_name": "accuracy",
					"value":       "94.2%",
					"location":    "Table 2",
				},
			},
		},
		"reproducibility": map[string]interface{}{
			"status":                        "success",
			"missing_reproducibility_items": []interface{}{"random seeds", "hardware specification"},
			"found_seeds":                   []interface{}{},
			"reproducibility_score":         float64(62),
		},
		"experiment_evidence": map[string]interface{}{
			"status": "success",
			"experiment_map": map[string]interface{}{
				"94.2% accuracy": map[string]interface{}{
					"log_file":          "train.log",
					"evidence_strength": "moderate",
				},
			},
			"untraceable_results": []interface{}{"2x convergence speedup"},
		},
		"statistical_audit": map[string]interface{}{
			"status": "success",
			"weak_claims": []interface{}{
				map[string]interface{}{
					"claim":    "Converges 2x faster than the SGD baseline",
					"reason":   "single run, no variance reported",
					"severity": "high",
				},
			},
			"variance_issues": []interface{}{"no standard deviations in Table 2"},
		},
		"related_work": map[string]interface{}{
			"status":            "success",
			"citations_found":   float64(24),
			"missing_baselines": []interface{}{"Adam", "AdaGrad"},
			"related_work_gaps": []interface{}{"no comparison with variance-reduction methods"},
			"citation_issues":   []interface{}{"key 2023 baseline uncited"},
		},
		"reviewer_simulation": map[string]interface{}{
			"status": "success",
			"reviewer_comments": []interface{}{
				map[string]interface{}{
					"comment":  "The speedup claim needs multiple runs with error bars.",
					"category": "results",
					"severity": "high",
				},
			},
			"strengths":  []interface{}{"clear problem formulation"},
			"weaknesses": []interface{}{"weak statistical reporting"},
		},
		"verdict": map[string]interface{}{
			"status":                "success",
			"submission_readiness":  "Major revisions needed",
			"overall_verdict":       "Promising results undermined by reproducibility and statistical gaps.",
			"confidence_score":      float64(78),
			"reproducibility_score": float64(62),
			"critical_issues": []interface{}{
				"convergence claim unsupported by evidence",
			},
			"action_items": []interface{}{
				map[string]interface{}{
					"action":   "Report mean and variance over at least 5 seeds",
					"priority": "high",
					"category": "statistics",
				},
			},
		},
	}
}

// AgentNames returns the simulated agents in pipeline order. Exposed so
// operators can pick a valid --fail-at value.
func AgentNames() []string {
	names := make([]string, 0, len(agentSteps))
	for _, s := range agentSteps {
		names = append(names, s.Agent)
	}
	return names
}
