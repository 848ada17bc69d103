// Package retrieval adapts the per-document vector index into the single
// tool the agent can invoke.
package retrieval

import (
	"context"
	"fmt"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/docstore"
)

// Embedder maps query text into the same embedding space the document
// was ingested with. The model is pinned per deployment, never per call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Leases grants scoped access to a ready document's index.
type Leases interface {
	Acquire(ctx context.Context, documentID string) (docstore.Index, func(), error)
}

// Tool retrieves the top-k most similar chunk texts from one document.
type Tool struct {
	leases   Leases
	embedder Embedder
}

// NewTool creates the retrieval tool.
func NewTool(leases Leases, embedder Embedder) *Tool {
	return &Tool{leases: leases, embedder: embedder}
}

// Retrieve embeds the query and searches the document's index, returning
// chunk texts ordered by decreasing similarity. The index lease is
// released on every exit path so deletion is never blocked by a leaked
// handle. Fails with ErrNotFound unless the document is ready.
func (t *Tool) Retrieve(ctx context.Context, documentID, query string, k int) ([]string, error) {
	ix, release, err := t.leases.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	vector, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := ix.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search document %s: %w", documentID, err)
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
	}
	return texts, nil
}
