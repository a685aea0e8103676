package session

import (
	"sort"
	"sync"
)

// Summary describes one session for listing endpoints
type Summary struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
}

// Store holds per-session conversation histories in memory. Sessions
// are created lazily on first append and live for the process lifetime
// unless explicitly deleted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Message

	// Per-session run locks so the endpoint layer can serialize
	// concurrent chat requests on the same session.
	locksMu  sync.Mutex
	runLocks map[string]*sync.Mutex
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string][]Message),
		runLocks: make(map[string]*sync.Mutex),
	}
}

// Append adds a message to a session, creating the session if needed
func (s *Store) Append(sessionID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
}

// Get returns a copy of a session's history, empty if unknown
func (s *Store) Get(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.runLocks, sessionID)
	s.locksMu.Unlock()
}

// Summaries lists all sessions with their message counts, ordered by id
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.sessions))
	for id, msgs := range s.sessions {
		out = append(out, Summary{ID: id, MessageCount: len(msgs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunLock returns the mutex serializing chat runs for a session,
// creating it on first use
func (s *Store) RunLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.runLocks[sessionID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	s.runLocks[sessionID] = lock
	return lock
}
