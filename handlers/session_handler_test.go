package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clauseguard-backend/models"
	"clauseguard-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContract = "§ 1 Rent\nThe rent is 800 euros per month.\n\n§ 2 Pets\nPets are not permitted."

// fakeCompleter answers every prompt with a fixed reply
type fakeCompleter struct {
	answer string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeEmbedder returns a constant unit vector for every input
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

// emptySearcher returns no provision chunks
type emptySearcher struct{}

func (emptySearcher) Search(ctx context.Context, embedding []float64, limit int) ([]models.ProvisionChunk, error) {
	return nil, nil
}

type fixture struct {
	router         *gin.Engine
	sessionService *service.SessionService
}

func newFixture(t *testing.T, completer service.Completer) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessionService := service.NewSessionService()

	analysisService, err := service.NewAnalysisService(
		service.AnalysisWithCompleter(completer),
		service.AnalysisWithEmbedder(fakeEmbedder{}),
		service.AnalysisWithProvisionRepository(emptySearcher{}),
	)
	require.NoError(t, err)

	qaService := service.NewQAService(
		service.QAWithCompleter(completer),
		service.QAWithEmbedder(fakeEmbedder{}),
	)

	handler := NewSessionHandler(sessionService, analysisService, qaService)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/sessions", handler.CreateSession)
	api.GET("/sessions/:id", handler.GetSession)
	api.DELETE("/sessions/:id", handler.DeleteSession)
	api.GET("/sessions/:id/clauses/:heading", handler.GetClause)
	api.POST("/sessions/:id/clauses/:heading/analyze", handler.AnalyzeClause)
	api.POST("/sessions/:id/questions", handler.AskQuestion)
	api.GET("/sessions/:id/chat", handler.GetChatHistory)

	return &fixture{router: router, sessionService: sessionService}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	w, envelope := f.do(t, http.MethodPost, "/api/sessions", gin.H{"text": sampleContract})
	require.Equal(t, http.StatusCreated, w.Code)
	data := envelope["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestCreateSessionReturnsClauseList(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})

	w, envelope := f.do(t, http.MethodPost, "/api/sessions", gin.H{"text": sampleContract})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]interface{})
	_, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)

	clauses := data["clauses"].([]interface{})
	require.Len(t, clauses, 2)
	first := clauses[0].(map[string]interface{})
	assert.Equal(t, "§ 1 Rent", first["heading"])
	assert.Equal(t, false, first["analyzed"])
}

func TestCreateSessionNoClauses(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})

	w, envelope := f.do(t, http.MethodPost, "/api/sessions", gin.H{"text": "no headings here"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "NO_CLAUSES_FOUND", errObj["code"])
}

func TestGetSessionInvalidID(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})

	w, envelope := f.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_ID", errObj["code"])
}

func TestGetSessionUnknownID(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})

	w, envelope := f.do(t, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func TestAnalyzeClauseMarksClauseAnalyzed(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "redrafted wording"})
	id := f.createSession(t)

	w, envelope := f.do(t, http.MethodPost, "/api/sessions/"+id+"/clauses/"+escapeHeading("§ 1 Rent")+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "redrafted wording", data["suggestion"])
	assert.Equal(t, false, data["cached"])

	// The sidebar now shows the clause as analyzed
	_, envelope = f.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	clauses := envelope["data"].(map[string]interface{})["clauses"].([]interface{})
	first := clauses[0].(map[string]interface{})
	assert.Equal(t, true, first["analyzed"])
}

func TestAnalyzeClauseUnknownClause(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})
	id := f.createSession(t)

	w, envelope := f.do(t, http.MethodPost, "/api/sessions/"+id+"/clauses/"+escapeHeading("§ 99")+"/analyze", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "CLAUSE_NOT_FOUND", errObj["code"])
}

func TestAskQuestionAppendsChatHistory(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "Rent is due monthly."})
	id := f.createSession(t)

	w, envelope := f.do(t, http.MethodPost, "/api/sessions/"+id+"/questions", gin.H{"question": "When is rent due?"})
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "Rent is due monthly.", data["answer"])

	_, envelope = f.do(t, http.MethodGet, "/api/sessions/"+id+"/chat", nil)
	history := envelope["data"].([]interface{})
	require.Len(t, history, 2)

	userTurn := history[0].(map[string]interface{})
	assert.Equal(t, "user", userTurn["role"])
	assert.Equal(t, "When is rent due?", userTurn["content"])

	assistantTurn := history[1].(map[string]interface{})
	assert.Equal(t, "assistant", assistantTurn["role"])
}

func TestAskQuestionFailureLeavesChatUntouched(t *testing.T) {
	f := newFixture(t, &fakeCompleter{err: errors.New("quota exceeded")})
	id := f.createSession(t)

	w, envelope := f.do(t, http.MethodPost, "/api/sessions/"+id+"/questions", gin.H{"question": "When is rent due?"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	errObj := envelope["error"].(map[string]interface{})
	assert.Equal(t, "ANSWER_UNAVAILABLE", errObj["code"])

	_, envelope = f.do(t, http.MethodGet, "/api/sessions/"+id+"/chat", nil)
	assert.Empty(t, envelope["data"])
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, &fakeCompleter{answer: "ok"})
	id := f.createSession(t)

	w, _ := f.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// escapeHeading escapes a clause heading for use as a path segment
func escapeHeading(heading string) string {
	return strings.ReplaceAll(strings.ReplaceAll(heading, "§", "%C2%A7"), " ", "%20")
}
