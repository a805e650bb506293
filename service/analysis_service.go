package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clauseguard-backend/models"
	"clauseguard-backend/workflow"

	"golang.org/x/sync/singleflight"
)

// State fields of the clause-analysis graph
const (
	FieldClauseID       = "clause_id"
	FieldText           = "text"
	FieldSummary        = "summary"
	FieldCaseExcerpts   = "case_excerpts"
	FieldRiskAssessment = "risk_assessment"
	FieldSuggestion     = "suggestion"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrClauseNotFound  = errors.New("clause not found")
	ErrRetrievalFailed = errors.New("failed to retrieve legal context")
)

// ProvisionSearcher is the read-only statutory corpus consulted by the
// RetrieveCaseLaw stage
type ProvisionSearcher interface {
	Search(ctx context.Context, embedding []float64, limit int) ([]models.ProvisionChunk, error)
}

// AnalysisService runs the clause-analysis workflow and memoizes its result
// per clause. The workflow is a fixed four-node graph:
//
//	Summarize → RetrieveCaseLaw → AssessRisk → DraftImprovement
//
// with AssessRisk additionally depending on Summarize directly, making it the
// fan-in join over the accumulated case_excerpts field.
type AnalysisService struct {
	completer      Completer
	embedder       Embedder
	provisionRepo  ProvisionSearcher
	retrievalLimit int

	graph  *workflow.CompiledGraph
	flight singleflight.Group
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithCompleter sets the text-completion backend
func AnalysisWithCompleter(c Completer) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.completer = c
	}
}

// AnalysisWithEmbedder sets the embedding backend
func AnalysisWithEmbedder(e Embedder) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.embedder = e
	}
}

// AnalysisWithProvisionRepository sets the statutory corpus repository
func AnalysisWithProvisionRepository(repo ProvisionSearcher) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.provisionRepo = repo
	}
}

// AnalysisWithRetrievalLimit sets how many provision chunks RetrieveCaseLaw
// pulls from the corpus (default 5)
func AnalysisWithRetrievalLimit(k int) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.retrievalLimit = k
	}
}

// NewAnalysisService creates a new analysis service with the fixed clause
// graph compiled and ready
func NewAnalysisService(opts ...AnalysisServiceOption) (*AnalysisService, error) {
	s := &AnalysisService{retrievalLimit: 5}
	for _, opt := range opts {
		opt(s)
	}

	graph, err := s.buildGraph().Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile clause graph: %w", err)
	}
	s.graph = graph

	return s, nil
}

// buildGraph wires the four task units into the dependency graph.
// case_excerpts is the one fan-in field: contributions append in arrival
// order and are joined at read time.
func (s *AnalysisService) buildGraph() *workflow.Graph {
	return workflow.NewGraph().
		AddNode("Summarize",
			[]string{FieldClauseID, FieldText},
			[]string{FieldSummary},
			s.summarizeNode).
		AddNode("RetrieveCaseLaw",
			[]string{FieldSummary},
			[]string{FieldCaseExcerpts},
			s.retrieveCaseLawNode).
		AddNode("AssessRisk",
			[]string{FieldSummary, FieldCaseExcerpts},
			[]string{FieldRiskAssessment},
			s.assessRiskNode).
		AddNode("DraftImprovement",
			[]string{FieldSummary, FieldRiskAssessment},
			[]string{FieldSuggestion},
			s.draftImprovementNode).
		AddEdge("Summarize", "RetrieveCaseLaw").
		AddEdge("Summarize", "AssessRisk").
		AddEdge("RetrieveCaseLaw", "AssessRisk").
		AddEdge("AssessRisk", "DraftImprovement").
		SetEntryPoint("Summarize").
		SetFinishPoint("DraftImprovement").
		WithReducer(FieldCaseExcerpts, workflow.AppendStrings)
}

// summarizeNode condenses the clause into its obligations and parties
func (s *AnalysisService) summarizeNode(ctx context.Context, state workflow.State) (workflow.State, error) {
	clauseID, err := state.GetString(FieldClauseID)
	if err != nil {
		return nil, err
	}
	text, err := state.GetString(FieldText)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Clause ID: %s
Clause Text:
%s

Summarize the clause obligations and parties.`, clauseID, text)

	summary, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return workflow.State{FieldSummary: summary}, nil
}

// retrieveCaseLawNode embeds the clause summary, pulls the nearest statutory
// provisions from the corpus and condenses them into one excerpt. The
// excerpt is a single contribution to the case_excerpts append field.
func (s *AnalysisService) retrieveCaseLawNode(ctx context.Context, state workflow.State) (workflow.State, error) {
	summary, err := state.GetString(FieldSummary)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.EmbedQuery(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	chunks, err := s.provisionRepo.Search(ctx, embedding, s.retrievalLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	var corpus strings.Builder
	for _, chunk := range chunks {
		if chunk.ProvisionCitation != nil {
			corpus.WriteString(*chunk.ProvisionCitation)
			corpus.WriteString(": ")
		}
		corpus.WriteString(chunk.Text)
		corpus.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(`Relevant statutory provisions and case-law excerpts:
%s
Clause summary:
%s

Using only the provisions above, state which rules govern this clause and how courts have applied them. Quote the controlling passages.`,
		corpus.String(), summary)

	excerpts, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return workflow.State{FieldCaseExcerpts: []string{excerpts}}, nil
}

// assessRiskNode scores the clause's legal risks against the accumulated
// excerpts
func (s *AnalysisService) assessRiskNode(ctx context.Context, state workflow.State) (workflow.State, error) {
	summary, err := state.GetString(FieldSummary)
	if err != nil {
		return nil, err
	}
	excerpts, err := state.GetStrings(FieldCaseExcerpts)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Given this clause summary:
%s
And these relevant case excerpts:
%s

Identify and score the top legal risks (1-5) in bullet points.`,
		summary, strings.Join(excerpts, "\n\n"))

	assessment, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return workflow.State{FieldRiskAssessment: assessment}, nil
}

// draftImprovementNode rewrites the clause to mitigate the assessed risks
func (s *AnalysisService) draftImprovementNode(ctx context.Context, state workflow.State) (workflow.State, error) {
	summary, err := state.GetString(FieldSummary)
	if err != nil {
		return nil, err
	}
	assessment, err := state.GetString(FieldRiskAssessment)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Clause Summary:
%s
Risk Assessment:
%s

Suggest an alternative clause wording to mitigate these risks.`,
		summary, assessment)

	suggestion, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return workflow.State{FieldSuggestion: suggestion}, nil
}

// AnalyzeClauseRequest represents a request to analyze one clause of a
// session
type AnalyzeClauseRequest struct {
	Session  *models.Session
	ClauseID string
}

// AnalyzeClauseResult represents the outcome of a clause analysis.
// Suggestion carries the drafted wording; when the workflow completed
// without producing one, Suggestion is empty and State carries the full
// accumulated state so the caller can still extract partial information.
type AnalyzeClauseResult struct {
	Suggestion string
	State      workflow.State
	Cached     bool
}

// AnalyzeClause runs the workflow for a clause, memoized per clause
// identity. Concurrent calls for the same clause share one underlying
// execution; calls for different clauses never block each other. Only a
// state containing the terminal suggestion field is recorded on the session.
func (s *AnalysisService) AnalyzeClause(ctx context.Context, req AnalyzeClauseRequest) (*AnalyzeClauseResult, error) {
	if s.completer == nil {
		return nil, errors.New("completer not set")
	}
	if s.embedder == nil {
		return nil, errors.New("embedder not set")
	}
	if s.provisionRepo == nil {
		return nil, errors.New("provision repository not set")
	}
	if req.Session == nil {
		return nil, ErrSessionNotFound
	}

	clause, ok := req.Session.Clause(req.ClauseID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClauseNotFound, req.ClauseID)
	}

	if text, ok := req.Session.Suggestion(req.ClauseID); ok {
		return &AnalyzeClauseResult{Suggestion: text, Cached: true}, nil
	}

	// Singleflight keyed by session and clause identity: concurrent triggers
	// for the same clause wait for the first execution and share its result.
	key := req.Session.ID.String() + "\x00" + req.ClauseID
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		// A waiter that lost the race may arrive after the winner stored
		// the suggestion
		if text, ok := req.Session.Suggestion(req.ClauseID); ok {
			return &AnalyzeClauseResult{Suggestion: text, Cached: true}, nil
		}

		final, err := s.graph.Execute(ctx, workflow.State{
			FieldClauseID: req.ClauseID,
			FieldText:     clause.Body,
		})
		if err != nil {
			return nil, err
		}

		suggestion, err := final.GetString(FieldSuggestion)
		if err != nil || suggestion == "" {
			// Recoverable: hand back the full state, cache nothing
			return &AnalyzeClauseResult{State: final}, nil
		}

		req.Session.SetSuggestion(req.ClauseID, suggestion)
		return &AnalyzeClauseResult{Suggestion: suggestion}, nil
	})
	if err != nil {
		return nil, err
	}

	result := v.(*AnalyzeClauseResult)
	if shared && result.Suggestion != "" {
		out := *result
		out.Cached = true
		return &out, nil
	}
	return result, nil
}
