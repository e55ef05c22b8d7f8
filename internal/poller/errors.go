package poller

import "fmt"

// SubmissionError means the upload call failed or returned an unusable body.
// It is user-visible; the caller must re-enable the submit action.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientError means a single poll cycle failed (network error, non-200,
// malformed body). It is swallowed by the poll loop and retried on the next
// tick; it never reaches the user.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient poll failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// BackendError means the backend explicitly reported a failed analysis.
// It is terminal: polling stops and the message is surfaced to the user.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("analysis failed: %s", e.Message)
}
