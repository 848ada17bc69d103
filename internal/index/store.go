// Package index provides per-document vector indexes backed by Qdrant.
// Each document owns one collection, created at ingestion and dropped at
// deletion, so the blast radius of a delete is a single collection and
// no document's chunks can ever appear in another document's results.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// Store wraps the shared Qdrant connection and hands out per-document
// Index handles.
type Store struct {
	client    *qdrant.Client
	dimension int
}

// NewStore connects to Qdrant and validates the connection with a health
// check under exponential backoff, failing fast if the server stays
// unreachable.
func NewStore(host string, port, dimension int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &Store{client: client, dimension: dimension}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}

	return store, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Dimension returns the vector dimension every collection is created with.
func (s *Store) Dimension() int {
	return s.dimension
}

// Create makes a fresh collection for the given document and returns an
// open handle to it.
func (s *Store) Create(ctx context.Context, documentID string) (*Index, error) {
	collection := CollectionName(documentID)

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collection, err)
	}

	return &Index{store: s, collection: collection}, nil
}

// Open returns a handle to an existing document collection without
// touching the server; a missing collection surfaces on first use.
func (s *Store) Open(documentID string) *Index {
	return &Index{store: s, collection: CollectionName(documentID)}
}

// Drop permanently removes a document's collection. Callers must have
// closed every handle first; the Document Store Manager sequences that.
func (s *Store) Drop(ctx context.Context, documentID string) error {
	collection := CollectionName(documentID)
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	return nil
}

// Close releases the shared Qdrant connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// CollectionName returns the collection owned by a document.
func CollectionName(documentID string) string {
	return "doc_" + documentID
}
