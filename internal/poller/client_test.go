package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"paperwatch/pkg/models"
	"paperwatch/pkg/retry"
)

// writeTempFile creates a throwaway upload fixture.
func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

// fastRetry keeps test retries from sleeping for real.
func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries:     2,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestSubmitSuccess(t *testing.T) {
	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "paper bytes")
	log1 := writeTempFile(t, dir, "train.log", "epoch 1")
	log2 := writeTempFile(t, dir, "eval.log", "acc 0.92")
	script := writeTempFile(t, dir, "train.py", "print('hi')")
	bibtex := writeTempFile(t, dir, "refs.bib", "@article{}")

	var gotFields map[string]int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		gotFields = make(map[string]int)
		for field, files := range r.MultipartForm.File {
			gotFields[field] = len(files)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id":"sess-123","status":"uploading"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.Submit(context.Background(), UploadRequest{
		PaperPath:   paper,
		LogPaths:    []string{log1, log2},
		ScriptPaths: []string{script},
		BibtexPath:  bibtex,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id != "sess-123" {
		t.Errorf("session ID = %q, want sess-123", id)
	}

	want := map[string]int{"paper": 1, "logs": 2, "scripts": 1, "bibtex": 1}
	for field, n := range want {
		if gotFields[field] != n {
			t.Errorf("field %q: %d parts, want %d", field, gotFields[field], n)
		}
	}
}

func TestSubmitRequiresPaper(t *testing.T) {
	client := NewClient("http://localhost:0")
	_, err := client.Submit(context.Background(), UploadRequest{})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want SubmissionError", err)
	}
}

func TestSubmitServerError(t *testing.T) {
	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad paper", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.retryCfg = fastRetry()

	_, err := client.Submit(context.Background(), UploadRequest{PaperPath: paper})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want SubmissionError", err)
	}
	// A 400 is not transient; no retry should have happened.
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id":"sess-retry"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.retryCfg = fastRetry()

	id, err := client.Submit(context.Background(), UploadRequest{PaperPath: paper})
	if err != nil {
		t.Fatalf("Submit failed after transient 503: %v", err)
	}
	if id != "sess-retry" {
		t.Errorf("session ID = %q", id)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestSubmitMissingSessionID(t *testing.T) {
	dir := t.TempDir()
	paper := writeTempFile(t, dir, "paper.pdf", "x")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"uploading"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.retryCfg = fastRetry()

	_, err := client.Submit(context.Background(), UploadRequest{PaperPath: paper})
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want SubmissionError for missing session_id", err)
	}
}

func TestFetchStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status/sess-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"progress":35,"current_agent":"ReproducibilityAgent","status":"running"}`))
	}))
	defer server.Close()

	snap, err := NewClient(server.URL).FetchStatus(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if snap.Progress != 35 || snap.CurrentAgent != "ReproducibilityAgent" || snap.Status != models.StatusRunning {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestFetchStatusFailuresAreTransient(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{truncated"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(server.URL).FetchStatus(context.Background(), "sess-1")
			var transient *TransientError
			if !errors.As(err, &transient) {
				t.Fatalf("error = %v, want TransientError", err)
			}
		})
	}
}

func TestFetchStatusAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"progress":5,"status":"running"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetAPIKey("secret")
	if _, err := client.FetchStatus(context.Background(), "s"); err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestDeleteSession(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{"message":"deleted"}`))
	}))
	defer server.Close()

	if err := NewClient(server.URL).DeleteSession(context.Background(), "sess-9"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/session/sess-9" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}
