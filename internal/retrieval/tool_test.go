package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/docstore"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

type stubIndex struct {
	hits      []domain.ScoredChunk
	searchErr error
	gotVector []float32
	gotK      int
}

func (s *stubIndex) Add(ctx context.Context, chunks []domain.Chunk) error { return nil }

func (s *stubIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	s.gotVector = vector
	s.gotK = k
	return s.hits, s.searchErr
}

func (s *stubIndex) Close() error { return nil }

func (s *stubIndex) Destroy(ctx context.Context) error { return nil }

type stubLeases struct {
	index      docstore.Index
	acquireErr error
	released   bool
}

func (s *stubLeases) Acquire(ctx context.Context, documentID string) (docstore.Index, func(), error) {
	if s.acquireErr != nil {
		return nil, nil, s.acquireErr
	}
	return s.index, func() { s.released = true }, nil
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector, s.err
}

func TestRetrieve_ReturnsRankedTexts(t *testing.T) {
	ix := &stubIndex{hits: []domain.ScoredChunk{
		{Text: "most relevant", Score: 0.92},
		{Text: "less relevant", Score: 0.71},
	}}
	leases := &stubLeases{index: ix}
	tool := NewTool(leases, &stubEmbedder{vector: []float32{0.1, 0.2}})

	texts, err := tool.Retrieve(context.Background(), "abc123", "what is this", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"most relevant", "less relevant"}, texts)
	assert.Equal(t, []float32{0.1, 0.2}, ix.gotVector)
	assert.Equal(t, 5, ix.gotK)
	assert.True(t, leases.released)
}

func TestRetrieve_EmptyIndexYieldsEmptySlice(t *testing.T) {
	leases := &stubLeases{index: &stubIndex{}}
	tool := NewTool(leases, &stubEmbedder{vector: []float32{0.1}})

	texts, err := tool.Retrieve(context.Background(), "abc123", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, texts)
	assert.True(t, leases.released)
}

func TestRetrieve_UnknownDocument(t *testing.T) {
	leases := &stubLeases{acquireErr: domain.ErrNotFound}
	tool := NewTool(leases, &stubEmbedder{})

	_, err := tool.Retrieve(context.Background(), "missing", "anything", 5)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRetrieve_ReleasesLeaseOnError(t *testing.T) {
	leases := &stubLeases{index: &stubIndex{searchErr: errors.New("search exploded")}}
	tool := NewTool(leases, &stubEmbedder{vector: []float32{0.1}})

	_, err := tool.Retrieve(context.Background(), "abc123", "anything", 5)
	require.Error(t, err)
	assert.True(t, leases.released, "a failed search must still release the lease")
}

func TestRetrieve_EmbedFailureReleasesLease(t *testing.T) {
	leases := &stubLeases{index: &stubIndex{}}
	tool := NewTool(leases, &stubEmbedder{err: domain.ErrUpstreamFailure})

	_, err := tool.Retrieve(context.Background(), "abc123", "anything", 5)
	assert.True(t, errors.Is(err, domain.ErrUpstreamFailure))
	assert.True(t, leases.released)
}
