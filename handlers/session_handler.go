package handlers

import (
	"errors"
	"net/http"

	"clauseguard-backend/ingest"
	"clauseguard-backend/models"
	"clauseguard-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles HTTP requests for sessions, clause analysis and the
// suggestion chatbot
type SessionHandler struct {
	sessionService  *service.SessionService
	analysisService *service.AnalysisService
	qaService       *service.QAService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessionService *service.SessionService,
	analysisService *service.AnalysisService,
	qaService *service.QAService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		analysisService: analysisService,
		qaService:       qaService,
	}
}

// CreateSessionRequest represents the request body for creating a session
// from already-extracted contract text
type CreateSessionRequest struct {
	Text string `json:"text" binding:"required"`
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.sessionService.CreateSession(service.CreateSessionRequest{
		ContractText: req.Text,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrNoClauses) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NO_CLAUSES_FOUND",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"id":      result.Session.ID,
			"clauses": clauseList(result.Session),
		},
	})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":         session.ID,
			"created_at": session.CreatedAt,
			"clauses":    clauseList(session),
		},
	})
}

// GetClause handles GET /api/sessions/:id/clauses/:heading
func (h *SessionHandler) GetClause(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	heading := c.Param("heading")
	clause, ok := session.Clause(heading)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CLAUSE_NOT_FOUND",
				"message": "Clause not found",
			},
		})
		return
	}

	data := gin.H{
		"heading": clause.Heading,
		"body":    clause.Body,
	}
	if suggestion, ok := session.Suggestion(heading); ok {
		data["suggestion"] = suggestion
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// AnalyzeClause handles POST /api/sessions/:id/clauses/:heading/analyze
func (h *SessionHandler) AnalyzeClause(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	heading := c.Param("heading")
	result, err := h.analysisService.AnalyzeClause(c.Request.Context(), service.AnalyzeClauseRequest{
		Session:  session,
		ClauseID: heading,
	})
	if err != nil {
		if errors.Is(err, service.ErrClauseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CLAUSE_NOT_FOUND",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANALYSIS_UNAVAILABLE",
				"message": err.Error(),
			},
		})
		return
	}

	data := gin.H{
		"heading": heading,
		"cached":  result.Cached,
	}
	if result.Suggestion != "" {
		data["suggestion"] = result.Suggestion
	} else {
		// Workflow completed without the terminal field; hand the caller
		// the full state instead
		data["state"] = result.State
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// AskQuestionRequest represents the request body for a chatbot question
type AskQuestionRequest struct {
	Question string `json:"question" binding:"required"`
	K        int    `json:"k"`
}

// AskQuestion handles POST /api/sessions/:id/questions
func (h *SessionHandler) AskQuestion(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	answer, err := h.qaService.Answer(c.Request.Context(), service.AnswerRequest{
		Question:    req.Question,
		Clauses:     session.ClauseMap(),
		Suggestions: session.Suggestions(),
		K:           req.K,
	})
	if err != nil {
		// Chat history stays untouched on failure
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANSWER_UNAVAILABLE",
				"message": err.Error(),
			},
		})
		return
	}

	session.AppendChat(models.ChatRoleUser, req.Question)
	session.AppendChat(models.ChatRoleAssistant, answer)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"answer": answer,
		},
	})
}

// GetChatHistory handles GET /api/sessions/:id/chat
func (h *SessionHandler) GetChatHistory(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    session.ChatHistory(),
	})
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	h.sessionService.DeleteSession(session.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// lookupSession parses the :id param and loads the session, writing the
// error response itself on failure
func (h *SessionHandler) lookupSession(c *gin.Context) (*models.Session, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid session ID format",
			},
		})
		return nil, false
	}

	session, err := h.sessionService.GetSession(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Session not found",
			},
		})
		return nil, false
	}

	return session, true
}

// clauseList renders the sidebar view of a session: every clause heading
// with its analyzed flag
func clauseList(session *models.Session) []gin.H {
	clauses := session.Clauses()
	out := make([]gin.H, 0, len(clauses))
	for _, clause := range clauses {
		_, analyzed := session.Suggestion(clause.Heading)
		out = append(out, gin.H{
			"heading":  clause.Heading,
			"analyzed": analyzed,
		})
	}
	return out
}
