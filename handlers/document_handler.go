package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clauseguard-backend/ingest"
	"clauseguard-backend/models"
	"clauseguard-backend/repository"
	"clauseguard-backend/service"
	"clauseguard-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles HTTP requests for contract file operations
type DocumentHandler struct {
	docRepo          *repository.DocumentRepository
	sessionService   *service.SessionService
	storage          storage.Storage
	maxFileSize      int64
	allowedMimeTypes map[string]bool
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docRepo *repository.DocumentRepository, sessionService *service.SessionService, store storage.Storage) *DocumentHandler {
	return &DocumentHandler{
		docRepo:        docRepo,
		sessionService: sessionService,
		storage:        store,
		maxFileSize:    10 * 1024 * 1024, // 10MB
		allowedMimeTypes: map[string]bool{
			"application/pdf":    true,
			"text/plain":         true,
			"application/msword": true, // .doc
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true, // .docx
		},
	}
}

// UploadContract handles POST /api/documents/upload.
// The raw file is stored as-is; a session is created from the contract text
// when the file is plain text or a pre-extracted "text" form field is
// supplied (binary parsing happens client-side).
func (h *DocumentHandler) UploadContract(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "File is required",
			},
		})
		return
	}

	if fileHeader.Size > h.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_TOO_LARGE",
				"message": fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize),
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_OPEN_ERROR",
				"message": err.Error(),
			},
		})
		return
	}
	defer file.Close()

	mimeType := contractMimeType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if !h.allowedMimeTypes[mimeType] && !strings.HasPrefix(mimeType, "text/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_TYPE",
				"message": "File type not allowed. Allowed types: PDF, TXT, DOC, DOCX",
			},
		})
		return
	}

	// Contract text for clause extraction: the file itself when it is plain
	// text, otherwise the pre-extracted form field
	contractText := c.PostForm("text")
	var payload []byte
	if strings.HasPrefix(mimeType, "text/") {
		payload, err = io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_READ_ERROR",
					"message": err.Error(),
				},
			})
			return
		}
		if contractText == "" {
			contractText = string(payload)
		}
	}

	docID := uuid.New()

	var body io.Reader = file
	if payload != nil {
		body = strings.NewReader(string(payload))
	}
	storagePath, err := h.storage.Upload(c.Request.Context(), docID, fileHeader.Filename, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": fmt.Sprintf("Failed to upload file: %v", err),
			},
		})
		return
	}

	var session *models.Session
	if contractText != "" {
		result, err := h.sessionService.CreateSession(service.CreateSessionRequest{
			ContractText: contractText,
			DocumentID:   &docID,
		})
		if err != nil && !errors.Is(err, ingest.ErrNoClauses) {
			h.storage.Delete(c.Request.Context(), storagePath)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SESSION_CREATE_FAILED",
					"message": err.Error(),
				},
			})
			return
		}
		if err == nil {
			session = result.Session
		}
	}

	doc := &models.ContractDocument{
		ID:          docID,
		Filename:    fileHeader.Filename,
		MimeType:    mimeType,
		Size:        fileHeader.Size,
		StoragePath: storagePath,
	}
	if session != nil {
		doc.ClauseCount = len(session.Clauses())
	}

	if err := h.docRepo.Create(c.Request.Context(), doc); err != nil {
		// Try to clean up the uploaded file
		h.storage.Delete(c.Request.Context(), storagePath)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to save document record: %v", err),
			},
		})
		return
	}

	data := gin.H{
		"id":           doc.ID,
		"filename":     doc.Filename,
		"mime_type":    doc.MimeType,
		"size":         doc.Size,
		"clause_count": doc.ClauseCount,
		"created_at":   doc.CreatedAt,
	}
	if session != nil {
		data["session_id"] = session.ID
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetContract handles GET /api/documents/:id
func (h *DocumentHandler) GetContract(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid document ID format",
			},
		})
		return
	}

	doc, err := h.docRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Document not found",
			},
		})
		return
	}

	reader, err := h.storage.Download(c.Request.Context(), doc.StoragePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOWNLOAD_FAILED",
				"message": fmt.Sprintf("Failed to download file: %v", err),
			},
		})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", doc.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", doc.Filename))
	c.DataFromReader(http.StatusOK, doc.Size, doc.MimeType, reader, nil)
}

// contractMimeType resolves the MIME type from the upload header, falling
// back to the file extension
func contractMimeType(headerType, filename string) string {
	if headerType != "" {
		return headerType
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	case strings.HasSuffix(lower, ".doc"):
		return "application/msword"
	case strings.HasSuffix(lower, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
