package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paperwatch/internal/reconcile"
	"paperwatch/internal/stage"
	"paperwatch/pkg/models"
)

// scriptedBackend serves an upload endpoint plus a status endpoint that walks
// through a fixed snapshot sequence, holding the last one forever.
type scriptedBackend struct {
	snapshots []models.StatusSnapshot

	mu          sync.Mutex
	statusCalls int
	deleteCalls int
	deletedID   string
}

func (b *scriptedBackend) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.UploadResponse{SessionID: "sess-test"})
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		i := b.statusCalls
		b.statusCalls++
		b.mu.Unlock()
		if i >= len(b.snapshots) {
			i = len(b.snapshots) - 1
		}
		json.NewEncoder(w).Encode(b.snapshots[i])
	})
	mux.HandleFunc("/api/session/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			b.mu.Lock()
			b.deleteCalls++
			b.deletedID = r.URL.Path[len("/api/session/"):]
			b.mu.Unlock()
		}
		w.Write([]byte(`{"message":"deleted"}`))
	})
	return httptest.NewServer(mux)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("polling cycle did not finish in time")
	}
}

func TestSessionLifecycleToCompletion(t *testing.T) {
	backend := &scriptedBackend{snapshots: []models.StatusSnapshot{
		{Progress: 20, CurrentAgent: "PaperParserAgent", Status: models.StatusRunning},
		{Progress: 35, CurrentAgent: "ReproducibilityAgent", Status: models.StatusRunning},
		{Progress: 100, Status: models.StatusCompleted, Results: map[string]interface{}{
			"verdict": map[string]interface{}{"verdict": "accept"},
		}},
	}}

	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")
	server := backend.server()
	defer server.Close()

	var updates int32
	session := NewSession(NewClient(server.URL), Config{
		Interval: 10 * time.Millisecond,
		OnUpdate: func(st *reconcile.State) { atomic.AddInt32(&updates, 1) },
	})

	id, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id != "sess-test" {
		t.Errorf("session ID = %q", id)
	}

	waitDone(t, session)

	st := session.State()
	if !st.Completed {
		t.Fatal("session did not complete")
	}
	if st.Progress != 100 {
		t.Errorf("progress = %d", st.Progress)
	}
	if st.Results == nil || st.Results.Verdict.OverallVerdict != "accept" {
		t.Errorf("results = %+v", st.Results)
	}
	if atomic.LoadInt32(&updates) == 0 {
		t.Error("OnUpdate was never called")
	}

	// Polling must stop after the terminal snapshot.
	backend.mu.Lock()
	calls := backend.statusCalls
	backend.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	backend.mu.Lock()
	after := backend.statusCalls
	backend.mu.Unlock()
	if after != calls {
		t.Errorf("status polled %d more times after terminal state", after-calls)
	}
}

func TestSessionLifecycleToFailure(t *testing.T) {
	backend := &scriptedBackend{snapshots: []models.StatusSnapshot{
		{Progress: 50, CurrentAgent: "ExperimentEvidenceAgent", Status: models.StatusRunning},
		{Progress: 50, Status: models.StatusError, Error: "evidence agent crashed"},
	}}

	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")
	server := backend.server()
	defer server.Close()

	session := NewSession(NewClient(server.URL), Config{Interval: 10 * time.Millisecond})
	if _, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitDone(t, session)

	st := session.State()
	if !st.Failed {
		t.Fatal("session did not fail")
	}
	if st.ErrorMessage != "evidence agent crashed" {
		t.Errorf("error message = %q", st.ErrorMessage)
	}
	if st.Stages[stage.Evidence] != stage.StatusRunning {
		t.Errorf("evidence stage = %q, want running retained at failure", st.Stages[stage.Evidence])
	}

	// An error terminal stops the poll loop just like completion does.
	backend.mu.Lock()
	calls := backend.statusCalls
	backend.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	backend.mu.Lock()
	after := backend.statusCalls
	backend.mu.Unlock()
	if after != calls {
		t.Errorf("status polled %d more times after error terminal", after-calls)
	}
}

func TestSessionSurvivesTransientPollFailures(t *testing.T) {
	var statusCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.UploadResponse{SessionID: "sess-flaky"})
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		// The first two polls fail; the loop must keep ticking.
		if atomic.AddInt32(&statusCalls, 1) <= 2 {
			http.Error(w, "hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(models.StatusSnapshot{Progress: 100, Status: models.StatusCompleted})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")

	session := NewSession(NewClient(server.URL), Config{Interval: 10 * time.Millisecond})
	if _, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitDone(t, session)

	if !session.State().Completed {
		t.Error("session did not recover from transient poll failures")
	}
}

func TestDeliverDiscardsOutOfOrderResponses(t *testing.T) {
	session := NewSession(NewClient("http://localhost:0"), Config{})
	gen := session.generation

	seqEarly := session.issueSeq()
	seqLate := session.issueSeq()

	// The later-issued request completes first.
	session.deliver(gen, seqLate, &models.StatusSnapshot{
		Progress: 35, CurrentAgent: "ReproducibilityAgent", Status: models.StatusRunning,
	})
	// The earlier one straggles in afterwards and must be inert.
	session.deliver(gen, seqEarly, &models.StatusSnapshot{
		Progress: 20, CurrentAgent: "PaperParserAgent", Status: models.StatusRunning,
	})

	st := session.State()
	if st.RunningStage() != stage.Repro {
		t.Errorf("running stage = %q, want repro preserved", st.RunningStage())
	}
	if st.Progress != 35 {
		t.Errorf("progress = %d, want 35", st.Progress)
	}
}

func TestDeliverDiscardsStaleGeneration(t *testing.T) {
	session := NewSession(NewClient("http://localhost:0"), Config{})
	oldGen := session.generation
	seq := session.issueSeq()

	// A reset between issue and delivery makes the response inert.
	session.Reset(context.Background())

	stop := session.deliver(oldGen, seq, &models.StatusSnapshot{
		Progress: 95, CurrentAgent: "VerdictAgent", Status: models.StatusRunning,
	})
	if !stop {
		t.Error("stale-generation delivery should tell the cycle to stop")
	}

	st := session.State()
	if st.Progress != 0 || st.RunningStage() != "" {
		t.Errorf("stale delivery mutated state: progress=%d running=%q", st.Progress, st.RunningStage())
	}
}

func TestResetDeletesBackendSession(t *testing.T) {
	backend := &scriptedBackend{snapshots: []models.StatusSnapshot{
		{Progress: 20, CurrentAgent: "PaperParserAgent", Status: models.StatusRunning},
	}}

	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")
	server := backend.server()
	defer server.Close()

	session := NewSession(NewClient(server.URL), Config{Interval: 10 * time.Millisecond})
	if _, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	session.Reset(context.Background())
	waitDone(t, session)

	backend.mu.Lock()
	deletes, deletedID := backend.deleteCalls, backend.deletedID
	backend.mu.Unlock()
	if deletes != 1 || deletedID != "sess-test" {
		t.Errorf("delete calls = %d (id %q), want 1 for sess-test", deletes, deletedID)
	}

	if session.SessionID() != "" {
		t.Errorf("session ID after reset = %q, want empty", session.SessionID())
	}
	st := session.State()
	if st.Progress != 0 || len(st.Log) != 0 {
		t.Errorf("state after reset not fresh: progress=%d log=%d", st.Progress, len(st.Log))
	}
}

func TestResubmitInvalidatesPreviousCycle(t *testing.T) {
	backend := &scriptedBackend{snapshots: []models.StatusSnapshot{
		{Progress: 20, CurrentAgent: "PaperParserAgent", Status: models.StatusRunning},
		{Progress: 100, Status: models.StatusCompleted},
	}}

	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")
	server := backend.server()
	defer server.Close()

	session := NewSession(NewClient(server.URL), Config{Interval: 10 * time.Millisecond})

	if _, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	firstDone := session.Done()

	if _, err := session.Submit(context.Background(), UploadRequest{PaperPath: paper}); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}

	// The first cycle must wind down; the second runs to completion.
	select {
	case <-firstDone:
	case <-time.After(5 * time.Second):
		t.Fatal("first polling cycle never stopped after resubmit")
	}
	waitDone(t, session)

	if !session.State().Completed {
		t.Error("second session did not complete")
	}
}
