package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/agent"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

type fakeDocuments struct {
	records   map[string]*domain.DocumentRecord
	ingestErr error
	deleteErr error
	deleted   []string
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{records: make(map[string]*domain.DocumentRecord)}
}

func (f *fakeDocuments) Ingest(ctx context.Context, data []byte, filename string) (*domain.DocumentRecord, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	rec := &domain.DocumentRecord{
		ID:         "abc123",
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
		PageCount:  3,
		ChunkCount: 12,
		Status:     domain.StatusReady,
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeDocuments) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

func (f *fakeDocuments) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	var records []domain.DocumentRecord
	for _, rec := range f.records {
		records = append(records, *rec)
	}
	return records, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	delete(f.records, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeQueries struct {
	result *agent.Result
	err    error
}

func (f *fakeQueries) Answer(ctx context.Context, documentID, filename, question string) (*agent.Result, error) {
	return f.result, f.err
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Health(ctx context.Context) error { return f.err }

func newTestServer(docs *fakeDocuments, queries *fakeQueries, health *fakeHealth) http.Handler {
	if queries == nil {
		queries = &fakeQueries{result: &agent.Result{Answer: "ok"}}
	}
	if health == nil {
		health = &fakeHealth{}
	}
	return NewRouter(NewHandler(docs, queries, health, 1<<20, nil))
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	docs := newFakeDocuments()
	srv := newTestServer(docs, nil, nil)

	body, contentType := multipartBody(t, "file", "report.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "abc123", resp.DocumentID)
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, 3, resp.PageCount)
	assert.Equal(t, 12, resp.ChunkCount)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	body, contentType := multipartBody(t, "file", "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, ".pdf")
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpload_IngestFailure(t *testing.T) {
	docs := newFakeDocuments()
	docs.ingestErr = fmt.Errorf("%w: embedding service down", domain.ErrUpstreamFailure)
	srv := newTestServer(docs, nil, nil)

	body, contentType := multipartBody(t, "file", "report.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestQuery_Success(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Filename: "report.pdf", Status: domain.StatusReady}
	queries := &fakeQueries{result: &agent.Result{Answer: "the answer", ToolCalls: 2}}
	srv := newTestServer(docs, queries, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query":"what is this","document_id":"abc123"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "the answer", resp.Answer)
	assert.Equal(t, 2, resp.ToolCallsMade)
}

func TestQuery_UnknownDocument(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query":"anything","document_id":"missing"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuery_NotReadyDocument(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Filename: "report.pdf", Status: domain.StatusIngesting}
	srv := newTestServer(docs, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query":"anything","document_id":"abc123"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuery_MissingFields(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"no document id"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuery_UpstreamTimeout(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Filename: "report.pdf", Status: domain.StatusReady}
	queries := &fakeQueries{err: fmt.Errorf("%w: completion deadline", domain.ErrUpstreamTimeout)}
	srv := newTestServer(docs, queries, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query":"anything","document_id":"abc123"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
}

func TestListDocuments(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Filename: "report.pdf", Status: domain.StatusReady}
	srv := newTestServer(docs, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DocumentListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "abc123", resp.Documents[0].ID)
}

func TestListDocuments_Empty(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"documents":[]`)
}

func TestDeleteDocument_Success(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Status: domain.StatusReady}
	srv := newTestServer(docs, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/abc123", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp DeleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"abc123"}, docs.deleted)
}

func TestDeleteDocument_NotFound(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/missing", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteDocument_Busy(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["abc123"] = &domain.DocumentRecord{ID: "abc123", Status: domain.StatusReady}
	docs.deleteErr = fmt.Errorf("%w: live retrieval handles", domain.ErrResourceBusy)
	srv := newTestServer(docs, nil, nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/abc123", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHealth_OK(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealth_StoreUnreachable(t *testing.T) {
	srv := newTestServer(newFakeDocuments(), nil, &fakeHealth{err: fmt.Errorf("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
}
