// Package models defines the wire types exchanged with the verification
// backend. Only the shape consumed by the client is specified here; the
// backend's internals are out of scope.
package models

// SessionStatus is the overall status tag of an analysis session.
type SessionStatus string

const (
	StatusUploading SessionStatus = "uploading"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
)

// Terminal reports whether no further status change can occur.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
}

// StatusSnapshot is one response from GET /api/status/{session_id}.
// Results is kept opaque here; normalization into the canonical report shape
// happens at the boundary, in one place.
type StatusSnapshot struct {
	Progress     int                    `json:"progress"`
	CurrentAgent string                 `json:"current_agent,omitempty"`
	Status       SessionStatus          `json:"status"`
	Results      map[string]interface{} `json:"results,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Files        *UploadManifest        `json:"files,omitempty"`
}

// UploadManifest echoes the file names stored for a session.
type UploadManifest struct {
	Paper   string   `json:"paper"`
	Logs    []string `json:"logs,omitempty"`
	Scripts []string `json:"scripts,omitempty"`
	Bibtex  string   `json:"bibtex,omitempty"`
}
