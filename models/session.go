package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds all state derived from one uploaded contract: the extracted
// clauses, the suggestions produced so far and the chat history. It lives in
// memory only and is discarded when the client uploads a new contract.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	ContractText string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`

	mu          sync.RWMutex
	clauses     []Clause
	clauseIndex map[string]int
	suggestions map[string]string
	chatHistory []ChatTurn
}

// NewSession creates a session for an extracted clause list. Clause order is
// preserved for display; lookups go through the heading index.
func NewSession(contractText string, clauses []Clause) *Session {
	index := make(map[string]int, len(clauses))
	for i, c := range clauses {
		index[c.Heading] = i
	}
	return &Session{
		ID:           uuid.New(),
		ContractText: contractText,
		CreatedAt:    time.Now(),
		clauses:      clauses,
		clauseIndex:  index,
		suggestions:  make(map[string]string),
	}
}

// Clauses returns the extracted clauses in document order
func (s *Session) Clauses() []Clause {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Clause, len(s.clauses))
	copy(out, s.clauses)
	return out
}

// Clause looks up a clause by heading
func (s *Session) Clause(heading string) (Clause, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.clauseIndex[heading]
	if !ok {
		return Clause{}, false
	}
	return s.clauses[i], true
}

// ClauseMap returns the clause map in the heading → body form the QA layer
// consumes
func (s *Session) ClauseMap() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.clauses))
	for _, c := range s.clauses {
		out[c.Heading] = c.Body
	}
	return out
}

// Suggestion returns the cached suggestion for a clause, if one has been
// recorded
func (s *Session) Suggestion(heading string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.suggestions[heading]
	return text, ok
}

// SetSuggestion records the final suggestion for a clause. Re-running the
// workflow for the same clause would store an equal value, so overwrites are
// harmless.
func (s *Session) SetSuggestion(heading, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions[heading] = text
}

// Suggestions returns a snapshot of the current (possibly partial)
// suggestion map
func (s *Session) Suggestions() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.suggestions))
	for k, v := range s.suggestions {
		out[k] = v
	}
	return out
}

// AppendChat appends one turn to the session chat history
func (s *Session) AppendChat(role ChatRole, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatHistory = append(s.chatHistory, ChatTurn{Role: role, Content: content})
}

// ChatHistory returns the chat history in append order
func (s *Session) ChatHistory() []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatTurn, len(s.chatHistory))
	copy(out, s.chatHistory)
	return out
}
