package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"paperwatch/pkg/models"
	"paperwatch/pkg/retry"
)

// Client manages communication with the verification backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	retryCfg   retry.Config
}

// NewClient creates a new backend client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

// SetAPIKey sets the API key for authentication
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// addAuthHeader adds authentication header to request
func (c *Client) addAuthHeader(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// UploadRequest names the files to submit for analysis. PaperPath is
// required; everything else is optional.
type UploadRequest struct {
	PaperPath   string
	LogPaths    []string
	ScriptPaths []string
	BibtexPath  string
}

// Submit uploads the files and returns the session ID assigned by the
// backend. Transient transport failures are retried with backoff before a
// SubmissionError is declared.
func (c *Client) Submit(ctx context.Context, req UploadRequest) (string, error) {
	if req.PaperPath == "" {
		return "", &SubmissionError{Err: fmt.Errorf("a paper file is required")}
	}

	body, contentType, err := buildUploadBody(req)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	var sessionID string
	err = retry.Do(ctx, c.retryCfg, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", contentType)
		c.addAuthHeader(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send upload: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		var upload models.UploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
			return fmt.Errorf("failed to decode upload response: %w", err)
		}
		if upload.SessionID == "" {
			return fmt.Errorf("upload response missing session_id")
		}

		sessionID = upload.SessionID
		return nil
	})
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	return sessionID, nil
}

// buildUploadBody assembles the multipart form the backend expects: one
// "paper" part, zero or more "logs" and "scripts" parts, at most one
// "bibtex" part.
func buildUploadBody(req UploadRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := attachFile(w, "paper", req.PaperPath); err != nil {
		return nil, "", err
	}
	for _, p := range req.LogPaths {
		if err := attachFile(w, "logs", p); err != nil {
			return nil, "", err
		}
	}
	for _, p := range req.ScriptPaths {
		if err := attachFile(w, "scripts", p); err != nil {
			return nil, "", err
		}
	}
	if req.BibtexPath != "" {
		if err := attachFile(w, "bibtex", req.BibtexPath); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize upload body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy %s file: %w", field, err)
	}
	return nil
}

// FetchStatus retrieves one status snapshot for a session. Any failure is a
// TransientError; the poll loop decides whether to retry.
func (c *Client) FetchStatus(ctx context.Context, sessionID string) (*models.StatusSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/status/%s", c.baseURL, sessionID), nil)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.addAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to fetch status: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &TransientError{Err: fmt.Errorf("status fetch failed with status %d: %s", resp.StatusCode, string(body))}
	}

	var snap models.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to decode status: %w", err)}
	}

	return &snap, nil
}

// FetchResults retrieves the full results payload for a completed session.
func (c *Client) FetchResults(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/results/%s", c.baseURL, sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("results fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var results map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	return results, nil
}

// DeleteSession discards a session and its uploaded files on the backend.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/api/session/%s", c.baseURL, sessionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("session delete failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
