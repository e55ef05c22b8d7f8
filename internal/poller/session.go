// Package poller owns the lifecycle of one analysis job: submitting the
// upload, polling the status endpoint at a fixed cadence until a terminal
// state, and feeding each snapshot to the reconciler.
//
// Cancellation is cooperative. An in-flight status request cannot always be
// aborted, so correctness does not depend on timer or request cancellation:
// every response is keyed by the generation current when its request was
// issued, plus a monotonic sequence number, and is discarded if either check
// fails at delivery time.
package poller

import (
	"context"
	"sync"
	"time"

	"paperwatch/internal/reconcile"
	"paperwatch/internal/stage"
	"paperwatch/pkg/logging"
	"paperwatch/pkg/metrics"
	"paperwatch/pkg/models"
)

// DefaultInterval is the polling cadence used when none is configured.
const DefaultInterval = 800 * time.Millisecond

// Config configures a polling session.
type Config struct {
	// Interval is how often to poll the status endpoint.
	Interval time.Duration

	// OnUpdate is called after each applied snapshot with the current
	// derived state. Called from the polling goroutine.
	OnUpdate func(*reconcile.State)

	// Logger for output (optional)
	Logger *logging.Logger

	// Metrics collectors (optional)
	Metrics *metrics.PollerMetrics
}

// Session drives at most one active analysis job per client session.
// Starting a new job or resetting cancels the previous polling cycle before
// a new one is armed; no two cycles ever run against the same state.
type Session struct {
	client *Client
	cfg    Config
	logger *logging.Logger

	mu         sync.Mutex
	generation uint64
	lastSeq    uint64
	nextSeq    uint64
	sessionID  string
	state      *reconcile.State
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession creates a session around a backend client.
func NewSession(client *Client, cfg Config) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Session{
		client: client,
		cfg:    cfg,
		logger: logger,
		state:  reconcile.New(),
	}
}

// Submit uploads the files and, on success, immediately starts the polling
// cycle. Any previous job is reset first.
func (s *Session) Submit(ctx context.Context, req UploadRequest) (string, error) {
	s.Reset(ctx)

	id, err := s.client.Submit(ctx, req)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	gen := s.generation
	s.sessionID = id
	s.state = reconcile.New()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("analysis session started", map[string]interface{}{"session_id": id})

	go s.run(runCtx, gen, id, done)

	return id, nil
}

// run is the polling cycle: one immediate poll, then one per tick, until a
// terminal snapshot is applied or the context is canceled.
func (s *Session) run(ctx context.Context, gen uint64, sessionID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.pollOnce(ctx, gen, sessionID) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.pollOnce(ctx, gen, sessionID) {
				return
			}
		}
	}
}

// pollOnce issues a single status fetch and delivers the result. Returns
// true when polling should stop. A failed poll is swallowed; transient
// failures are expected during a long-running backend job.
func (s *Session) pollOnce(ctx context.Context, gen uint64, sessionID string) bool {
	seq := s.issueSeq()
	s.cfg.Metrics.ObservePoll()

	snap, err := s.client.FetchStatus(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.cfg.Metrics.ObserveTransientError()
		s.logger.Debug("poll failed, will retry next tick", map[string]interface{}{"error": err.Error()})
		return false
	}

	return s.deliver(gen, seq, snap)
}

// issueSeq assigns the next request sequence number. Sequence numbers follow
// issue order, not completion order, so a slow earlier poll can never
// overwrite the state a faster later one already produced.
func (s *Session) issueSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// deliver applies one snapshot unless it is stale. A response is stale when
// the session generation moved on (reset or new submit) or when a response
// with a later issue sequence has already been applied. Returns true when
// the session reached a terminal state.
func (s *Session) deliver(gen, seq uint64, snap *models.StatusSnapshot) bool {
	s.mu.Lock()
	if gen != s.generation || seq <= s.lastSeq {
		s.mu.Unlock()
		s.cfg.Metrics.ObserveStaleDiscard()
		return gen != s.generation
	}
	s.lastSeq = seq

	prevActive := s.state.Active
	s.state.Apply(snap)
	state := s.state
	s.mu.Unlock()

	s.cfg.Metrics.SetProgress(state.Progress)
	if state.Active != "" && state.Active != prevActive {
		s.cfg.Metrics.ObserveStage(stage.Label(state.Active))
	}

	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(state)
	}

	if state.Terminal() {
		outcome := "completed"
		if state.Failed {
			outcome = "error"
		}
		s.cfg.Metrics.ObserveSessionEnd(outcome)
		s.logger.Info("analysis session finished", map[string]interface{}{
			"session_id": s.SessionID(),
			"outcome":    outcome,
		})
		return true
	}
	return false
}

// Reset discards the current job: the polling cycle is canceled, the session
// generation is bumped so any in-flight response becomes inert, the backend
// session is deleted best-effort, and the derived state returns to idle.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	id := s.sessionID
	cancel := s.cancel
	hadJob := id != ""
	s.generation++
	s.lastSeq = 0
	s.sessionID = ""
	s.cancel = nil
	s.state = reconcile.New()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if hadJob {
		s.cfg.Metrics.ObserveSessionEnd("reset")
		if err := s.client.DeleteSession(ctx, id); err != nil {
			s.logger.Debug("session delete failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// State returns the current derived display state.
func (s *Session) State() *reconcile.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the backend-assigned job identifier, or "" when no job
// is active.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Done returns a channel closed when the current polling cycle stops.
// Returns nil when no cycle has been started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
