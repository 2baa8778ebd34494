package core

import (
	"sync"
	"time"
)

// Session owns the state of one running process: the set of opportunity
// ids already handled. It is never persisted, so a restart may reprocess
// messages that were fetched but not completed.
type Session struct {
	mu        sync.RWMutex
	processed map[string]struct{}
	startedAt time.Time
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		processed: make(map[string]struct{}),
		startedAt: time.Now(),
	}
}

// Seen reports whether the id was already marked
func (s *Session) Seen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[id]
	return ok
}

// Mark records the id as fully processed
func (s *Session) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = struct{}{}
}

// Len returns the number of processed ids
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processed)
}

// StartedAt returns when the session was created
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}
