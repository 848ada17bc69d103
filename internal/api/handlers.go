// Package api exposes the document lifecycle and question answering over
// REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/agent"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// DocumentService is the document lifecycle surface the handlers need.
type DocumentService interface {
	Ingest(ctx context.Context, data []byte, filename string) (*domain.DocumentRecord, error)
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
	Delete(ctx context.Context, id string) error
}

// QueryService answers one question against one document.
type QueryService interface {
	Answer(ctx context.Context, documentID, filename, question string) (*agent.Result, error)
}

// HealthChecker reports whether the vector store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler carries the services behind the REST surface.
type Handler struct {
	documents      DocumentService
	queries        QueryService
	health         HealthChecker
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler wires the REST handlers. maxUploadBytes bounds upload body
// size.
func NewHandler(documents DocumentService, queries QueryService, health HealthChecker, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		documents:      documents,
		queries:        queries,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"pages_count"`
	ChunkCount int    `json:"chunks_count"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id"`
}

// QueryResponse is returned by POST /query.
type QueryResponse struct {
	Success       bool   `json:"success"`
	Answer        string `json:"answer"`
	ToolCallsMade int    `json:"tool_calls_made"`
}

// DocumentListResponse is returned by GET /documents.
type DocumentListResponse struct {
	Documents []domain.DocumentRecord `json:"documents"`
}

// DeleteResponse is returned by DELETE /documents/{documentID}.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: multipart field \"file\" is required: %v", domain.ErrInvalidArgument, err))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: only .pdf files are accepted", domain.ErrInvalidArgument))
		return
	}

	data, err := readUpload(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidArgument, err))
		return
	}

	rec, err := h.documents.Ingest(r.Context(), data, header.Filename)
	if err != nil {
		h.logger.Error("upload failed", "filename", header.Filename, "error", err)
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, UploadResponse{
		Success:    true,
		Message:    fmt.Sprintf("Document %q uploaded and processed successfully", rec.Filename),
		DocumentID: rec.ID,
		Filename:   rec.Filename,
		PageCount:  rec.PageCount,
		ChunkCount: rec.ChunkCount,
	})
}

func (h *Handler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err))
		return
	}
	if req.Query == "" || req.DocumentID == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: query and document_id are required", domain.ErrInvalidArgument))
		return
	}

	// Resolve the document up front so an unknown or not-yet-ready id is a
	// clean 404 instead of a failed tool call mid-conversation.
	rec, err := h.documents.Get(r.Context(), req.DocumentID)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	if !rec.Queryable() {
		h.writeError(w, http.StatusNotFound,
			fmt.Errorf("%w: document %s is %s", domain.ErrNotFound, rec.ID, rec.Status))
		return
	}

	result, err := h.queries.Answer(r.Context(), rec.ID, rec.Filename, req.Query)
	if err != nil {
		h.logger.Error("query failed", "document_id", rec.ID, "error", err)
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, QueryResponse{
		Success:       true,
		Answer:        result.Answer,
		ToolCallsMade: result.ToolCalls,
	})
}

func (h *Handler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.documents.List(r.Context())
	if err != nil {
		h.logger.Error("listing documents failed", "error", err)
		h.writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []domain.DocumentRecord{}
	}
	h.writeJSON(w, http.StatusOK, DocumentListResponse{Documents: records})
}

func (h *Handler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")

	if err := h.documents.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete failed", "document_id", id, "error", err)
		h.writeError(w, statusFor(err), err)
		return
	}

	h.writeJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("Document %s deleted successfully", id),
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Health(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Message: fmt.Sprintf("vector store unreachable: %v", err),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "RAG Document Q&A service is running",
	})
}

// readUpload drains the multipart part. MaxBytesReader already bounds
// the total body, so a plain ReadAll is safe here.
func readUpload(file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded file is empty")
	}
	return data, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrResourceBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("writing response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Success: false, Error: err.Error()})
}
