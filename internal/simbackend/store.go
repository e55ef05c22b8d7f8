package simbackend

import (
	"errors"
	"sync"
	"time"

	"paperwatch/pkg/models"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is the backend-side record of one analysis run.
type Session struct {
	ID           string
	Status       models.SessionStatus
	Progress     int
	CurrentAgent string
	Results      map[string]interface{}
	Error        string
	Files        *models.UploadManifest
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Store is an in-memory session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Put adds or replaces a session
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get retrieves a copy of a session by ID
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// Update applies fn to a session under the store lock
func (s *Store) Update(id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(sess)
	return nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// CountByStatus returns session counts keyed by status
func (s *Store) CountByStatus() map[models.SessionStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.SessionStatus]int)
	for _, sess := range s.sessions {
		counts[sess.Status]++
	}
	return counts
}
