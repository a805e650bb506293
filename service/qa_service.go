package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NoClausesFallback is returned for questions asked before any contract has
// been loaded. It is produced locally; no model call is made.
const NoClausesFallback = "I'm sorry - there are no clauses loaded yet."

const defaultTopK = 4

// QAService answers free-form questions about a session's clauses and
// suggestions. The retrieval index is rebuilt from scratch on every question;
// retrieved documents ground a single completion call and their sources are
// stripped from the reply.
type QAService struct {
	completer Completer
	embedder  Embedder
	topK      int
}

// QAServiceOption is a functional option for QAService
type QAServiceOption func(*QAService)

// QAWithCompleter sets the text-completion backend
func QAWithCompleter(c Completer) QAServiceOption {
	return func(s *QAService) {
		s.completer = c
	}
}

// QAWithEmbedder sets the embedding backend
func QAWithEmbedder(e Embedder) QAServiceOption {
	return func(s *QAService) {
		s.embedder = e
	}
}

// QAWithTopK sets how many documents ground each answer (default 4)
func QAWithTopK(k int) QAServiceOption {
	return func(s *QAService) {
		s.topK = k
	}
}

// NewQAService creates a new question-answering service
func NewQAService(opts ...QAServiceOption) *QAService {
	s := &QAService{topK: defaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnswerRequest represents a question against the current session state
type AnswerRequest struct {
	Question    string
	Clauses     map[string]string
	Suggestions map[string]string
	K           int
}

// Answer retrieves the top-k most relevant clause/suggestion documents and
// composes a grounded reply. An empty clause map short-circuits with the
// fixed fallback before any external call.
func (s *QAService) Answer(ctx context.Context, req AnswerRequest) (string, error) {
	if len(req.Clauses) == 0 {
		return NoClausesFallback, nil
	}
	if s.completer == nil {
		return "", errors.New("completer not set")
	}
	if s.embedder == nil {
		return "", errors.New("embedder not set")
	}

	docs := buildRetrievalDocuments(req.Clauses, req.Suggestions)
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("failed to embed documents: %w", err)
	}

	index, err := newRetrievalIndex(docs, vectors)
	if err != nil {
		return "", err
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	k := req.K
	if k <= 0 {
		k = s.topK
	}
	retrieved := index.TopK(queryVec, k)

	var grounding strings.Builder
	for _, doc := range retrieved {
		grounding.WriteString(doc.Content)
		grounding.WriteString("\n\n---\n\n")
	}

	prompt := fmt.Sprintf(`You are reviewing a rental contract. Use only the clause excerpts and AI suggestions below to answer the question. If the answer is not in the excerpts, say so.

%s
Question: %s

Answer:`, grounding.String(), req.Question)

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	return strings.TrimSpace(answer), nil
}
