package docstore

import (
	"context"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/index"
)

// qdrantIndexes adapts *index.Store to the IndexStore interface; the
// concrete methods return *index.Index rather than the Index interface.
type qdrantIndexes struct {
	store *index.Store
}

// NewQdrantIndexes wraps a Qdrant-backed index store for the Manager.
func NewQdrantIndexes(store *index.Store) IndexStore {
	return &qdrantIndexes{store: store}
}

func (q *qdrantIndexes) Create(ctx context.Context, documentID string) (Index, error) {
	ix, err := q.store.Create(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

func (q *qdrantIndexes) Open(documentID string) Index {
	return q.store.Open(documentID)
}
