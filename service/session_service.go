package service

import (
	"sync"

	"clauseguard-backend/ingest"
	"clauseguard-backend/models"

	"github.com/google/uuid"
)

// SessionService owns the in-memory session store. A session is created when
// a contract is uploaded and holds everything derived from it; nothing
// survives a process restart.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
}

// NewSessionService creates a new session service
func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[uuid.UUID]*models.Session),
	}
}

// CreateSessionRequest represents a request to start a session from contract
// text
type CreateSessionRequest struct {
	ContractText string
	DocumentID   *uuid.UUID
}

// CreateSessionResult represents the result of creating a session
type CreateSessionResult struct {
	Session *models.Session
}

// CreateSession extracts clauses from the contract text and registers a new
// session for them. Returns ingest.ErrNoClauses when no clause headings are
// found.
func (s *SessionService) CreateSession(req CreateSessionRequest) (*CreateSessionResult, error) {
	text := ingest.NormalizeText(req.ContractText)
	clauses, err := ingest.ExtractClauses(text)
	if err != nil {
		return nil, err
	}

	session := models.NewSession(text, clauses)
	session.DocumentID = req.DocumentID

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return &CreateSessionResult{Session: session}, nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession destroys a session and all its derived state
func (s *SessionService) DeleteSession(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
