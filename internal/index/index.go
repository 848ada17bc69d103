package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// Index is a handle to one document's collection. Add and Search fail
// with ErrClosed after Close; Destroy requires Close first.
type Index struct {
	store      *Store
	collection string

	mu     sync.Mutex
	closed bool
}

// Add appends chunks to the index. Chunks are visible to Search once Add
// returns; the upsert waits for the write to be applied.
func (ix *Index) Add(ctx context.Context, chunks []domain.Chunk) error {
	if err := ix.check(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != ix.store.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrInvalidArgument, i, len(chunk.Embedding), ix.store.dimension)
		}
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":        chunk.Text,
				"ordinal":     chunk.Ordinal,
				"document_id": chunk.DocumentID,
			}),
		}
	}

	if err := ix.upsertWithRetry(ctx, points); err != nil {
		return fmt.Errorf("add chunks to %s: %w", ix.collection, err)
	}
	return nil
}

// upsertWithRetry writes points with exponential backoff on transient
// failures. Wait=true keeps the write-then-queryable contract.
func (ix *Index) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := ix.store.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: ix.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search returns up to k chunks ordered by decreasing cosine similarity.
// An empty index yields an empty slice, not an error.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if err := ix.check(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(vector) != ix.store.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			domain.ErrInvalidArgument, len(vector), ix.store.dimension)
	}

	results, err := ix.store.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", ix.collection, err)
	}

	hits := make([]domain.ScoredChunk, 0, len(results))
	for _, result := range results {
		hits = append(hits, domain.ScoredChunk{
			Text:  result.Payload["text"].GetStringValue(),
			Score: result.Score,
		})
	}
	return hits, nil
}

// Close releases the handle. Idempotent; later Add/Search return
// ErrClosed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	return nil
}

// Destroy drops the collection's persisted data. The handle must be
// closed first so no in-flight operation can observe a half-dropped
// collection.
func (ix *Index) Destroy(ctx context.Context) error {
	ix.mu.Lock()
	closed := ix.closed
	ix.mu.Unlock()

	if !closed {
		return fmt.Errorf("destroy %s: index must be closed first", ix.collection)
	}
	if err := ix.store.client.DeleteCollection(ctx, ix.collection); err != nil {
		return fmt.Errorf("destroy %s: %w", ix.collection, err)
	}
	return nil
}

func (ix *Index) check() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("%w: %s", domain.ErrClosed, ix.collection)
	}
	return nil
}
