// Package docstore orchestrates the document lifecycle: ingestion into a
// per-document vector index, registry bookkeeping, and deletion that
// never races an in-flight query.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/chunker"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/pdf"
)

// Embedder turns chunk texts into vectors at ingestion time.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is one document's vector index handle.
type Index interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)
	Close() error
	Destroy(ctx context.Context) error
}

// IndexStore creates, reopens, and drops per-document indexes.
type IndexStore interface {
	Create(ctx context.Context, documentID string) (Index, error)
	Open(documentID string) Index
}

// Catalog is the durable document registry.
type Catalog interface {
	Create(ctx context.Context, id, filename, collection string) (*domain.DocumentRecord, error)
	MarkReady(ctx context.Context, id string, pageCount, chunkCount int) error
	MarkFailed(ctx context.Context, id string) error
	MarkDeleted(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}

// handle tracks the live leases against one document's index so deletion
// can wait for them to drain.
type handle struct {
	index    Index
	refs     int
	deleting bool
}

// Manager is the Document Store Manager.
type Manager struct {
	registry Catalog
	indexes  IndexStore
	embedder Embedder
	chunker  *chunker.Chunker
	logger   *slog.Logger

	// extract is swapped in tests to avoid real PDF fixtures.
	extract func(data []byte) (*pdf.Document, error)

	// deleteRetryInterval and deleteRetryElapsed bound how long Delete
	// waits for live leases before giving up with ErrResourceBusy.
	deleteRetryInterval time.Duration
	deleteRetryElapsed  time.Duration

	mu      sync.Mutex
	handles map[string]*handle
}

// NewManager wires the ingestion pipeline and lifecycle bookkeeping.
func NewManager(registry Catalog, indexes IndexStore, embedder Embedder, ch *chunker.Chunker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:            registry,
		indexes:             indexes,
		embedder:            embedder,
		chunker:             ch,
		logger:              logger,
		extract:             pdf.Extract,
		deleteRetryInterval: 100 * time.Millisecond,
		deleteRetryElapsed:  5 * time.Second,
		handles:             make(map[string]*handle),
	}
}

// Ingest extracts, chunks, embeds, and indexes one uploaded PDF. On any
// failure the record is marked failed, partially written index data is
// dropped, and the error is returned; a failed ingest never leaves a
// ready record or an orphaned collection.
func (m *Manager) Ingest(ctx context.Context, data []byte, filename string) (*domain.DocumentRecord, error) {
	id := newDocumentID()

	rec, err := m.registry.Create(ctx, id, filename, collectionFor(id))
	if err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}
	m.logger.Info("ingestion started", "document_id", id, "filename", filename)

	doc, err := m.extract(data)
	if err != nil {
		return nil, m.failIngest(ctx, id, nil, fmt.Errorf("extract text: %w", err))
	}

	chunks := m.chunker.Split(id, doc.Text())
	if len(chunks) == 0 {
		return nil, m.failIngest(ctx, id, nil, fmt.Errorf("document produced no chunks"))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, m.failIngest(ctx, id, nil, fmt.Errorf("embed chunks: %w", err))
	}
	if len(embeddings) != len(chunks) {
		return nil, m.failIngest(ctx, id, nil,
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks)))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	ix, err := m.indexes.Create(ctx, id)
	if err != nil {
		return nil, m.failIngest(ctx, id, nil, fmt.Errorf("create index: %w", err))
	}

	if err := ix.Add(ctx, chunks); err != nil {
		return nil, m.failIngest(ctx, id, ix, fmt.Errorf("index chunks: %w", err))
	}
	if err := ix.Close(); err != nil {
		m.logger.Warn("closing ingest index handle failed", "document_id", id, "error", err)
	}

	if err := m.registry.MarkReady(ctx, id, doc.PageCount(), len(chunks)); err != nil {
		return nil, m.failIngest(ctx, id, m.indexes.Open(id), fmt.Errorf("mark ready: %w", err))
	}

	rec.PageCount = doc.PageCount()
	rec.ChunkCount = len(chunks)
	rec.Status = domain.StatusReady
	m.logger.Info("ingestion complete", "document_id", id, "pages", rec.PageCount, "chunks", rec.ChunkCount)
	return rec, nil
}

// failIngest marks the record failed and removes any partially written
// index data. Cleanup is best-effort and logged; the original cause is
// what the caller sees.
func (m *Manager) failIngest(ctx context.Context, id string, ix Index, cause error) error {
	// Cleanup must land even when the request context is already
	// cancelled, or the record stays ingesting in the registry forever.
	ctx = context.WithoutCancel(ctx)

	if err := m.registry.MarkFailed(ctx, id); err != nil {
		m.logger.Error("marking document failed did not apply", "document_id", id, "error", err)
	}
	if ix != nil {
		if err := ix.Close(); err != nil {
			m.logger.Warn("closing index during cleanup failed", "document_id", id, "error", err)
		}
		if err := ix.Destroy(ctx); err != nil {
			m.logger.Error("removing partial index data failed", "document_id", id, "error", err)
		}
	}
	m.logger.Warn("ingestion failed", "document_id", id, "error", cause)
	return cause
}

// Get returns the record for id. Unknown and deleted ids yield
// ErrNotFound; failed and ingesting records are returned for diagnostics
// but are not queryable.
func (m *Manager) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	return m.registry.Get(ctx, id)
}

// List returns all non-deleted records in registration order.
func (m *Manager) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	return m.registry.List(ctx)
}

// Acquire leases the document's index for a query. The returned release
// function must be called on every exit path; it is safe to call more
// than once. Documents that are not ready cannot be leased.
func (m *Manager) Acquire(ctx context.Context, id string) (Index, func(), error) {
	rec, err := m.registry.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.Queryable() {
		return nil, nil, fmt.Errorf("%w: document %s is %s", domain.ErrNotFound, id, rec.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handles[id]
	if h == nil {
		h = &handle{index: m.indexes.Open(id)}
		m.handles[id] = h
	}
	if h.deleting {
		return nil, nil, fmt.Errorf("%w: document %s is being deleted", domain.ErrNotFound, id)
	}
	h.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			h.refs--
			// Drop idle entries so the table tracks live documents, not
			// every document ever queried. A handle being drained for
			// deletion stays until the delete resolves it.
			if h.refs == 0 && !h.deleting && m.handles[id] == h {
				delete(m.handles, id)
			}
			m.mu.Unlock()
		})
	}
	return h.index, release, nil
}

// Delete removes a document: it stops new leases, waits for in-flight
// leases to drain under bounded backoff, closes the handle, destroys the
// index data, and only then tombstones the registry record. If leases
// never drain or the storage refuses removal, the caller gets
// ErrResourceBusy and the registry still shows the document.
func (m *Manager) Delete(ctx context.Context, id string) error {
	rec, err := m.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == domain.StatusIngesting {
		return fmt.Errorf("%w: document %s is still ingesting", domain.ErrResourceBusy, id)
	}

	m.mu.Lock()
	h := m.handles[id]
	if h == nil {
		h = &handle{index: m.indexes.Open(id)}
		m.handles[id] = h
	}
	if h.deleting {
		m.mu.Unlock()
		return fmt.Errorf("%w: document %s deletion already in progress", domain.ErrResourceBusy, id)
	}
	h.deleting = true
	m.mu.Unlock()

	if err := m.drainAndDestroy(ctx, id, h); err != nil {
		// Leave the document usable again; the registry never claimed the
		// delete happened. The cached index handle may have been closed
		// for the destroy attempt, so swap in a fresh one.
		m.mu.Lock()
		h.deleting = false
		h.index = m.indexes.Open(id)
		m.mu.Unlock()
		return err
	}

	// The index data is gone; the registry update must not be skipped on
	// a cancelled request or the record would claim data that no longer
	// exists.
	if err := m.registry.MarkDeleted(context.WithoutCancel(ctx), id); err != nil {
		return fmt.Errorf("mark deleted %s: %w", id, err)
	}

	m.mu.Lock()
	delete(m.handles, id)
	m.mu.Unlock()

	m.logger.Info("document deleted", "document_id", id)
	return nil
}

func (m *Manager) drainAndDestroy(ctx context.Context, id string, h *handle) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.deleteRetryInterval
	b.MaxElapsedTime = m.deleteRetryElapsed

	// Wait for live leases to release.
	err := backoff.Retry(func() error {
		m.mu.Lock()
		refs := h.refs
		m.mu.Unlock()
		if refs > 0 {
			return fmt.Errorf("%d leases still live", refs)
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("%w: document %s has live retrieval handles: %v", domain.ErrResourceBusy, id, err)
	}

	// Close only now that the destroy will actually be attempted; an
	// earlier close would leave the handle dead if the drain gave up.
	if err := h.index.Close(); err != nil {
		m.logger.Warn("closing index before destroy failed", "document_id", id, "error", err)
	}

	// The storage may briefly still report itself busy after the close;
	// retry the removal before surfacing ResourceBusy. The retries run
	// detached from request cancellation so a disconnect cannot strand a
	// half-removed collection.
	destroyCtx := context.WithoutCancel(ctx)
	b2 := backoff.NewExponentialBackOff()
	b2.InitialInterval = m.deleteRetryInterval
	b2.MaxElapsedTime = m.deleteRetryElapsed
	err = backoff.Retry(func() error {
		return h.index.Destroy(destroyCtx)
	}, backoff.WithContext(b2, destroyCtx))
	if err != nil {
		return fmt.Errorf("%w: removing index data for %s: %v", domain.ErrResourceBusy, id, err)
	}
	return nil
}

// newDocumentID returns a short opaque identifier, the first uuid group.
func newDocumentID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func collectionFor(id string) string {
	return "doc_" + id
}
