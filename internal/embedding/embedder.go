// Package embedding generates vector embeddings for chunk and query text.
// One embedding model is pinned per deployment; ingest and query must go
// through the same Embedder or retrieval quality degrades silently.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate
// limits. OpenAI accepts up to 2048 texts per batch.
const DefaultBatchSize = 500

// Embedder generates embeddings with a pinned model and dimension. It
// batches requests and retries rate-limit errors with exponential
// backoff; every call carries a hard timeout.
type Embedder struct {
	client    *Client
	model     string
	dimension int
	timeout   time.Duration
	batchSize int
}

// NewEmbedder creates an Embedder. batchSize <= 0 uses DefaultBatchSize.
func NewEmbedder(client *Client, model string, dimension int, timeout time.Duration, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		model:     model,
		dimension: dimension,
		timeout:   timeout,
		batchSize: batchSize,
	}
}

// Model returns the pinned embedding model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// Dimension returns the pinned vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed generates an embedding for a single text, used on the query path.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrUpstreamFailure)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for the given texts, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		embeddings, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// embedBatchWithRetry runs one batch under the per-call timeout, retrying
// HTTP 429 with exponential backoff. Other API errors are permanent.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: e.model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // retried with backoff
			}
			return backoff.Permanent(err)
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = e.timeout

	if err := backoff.Retry(operation, backoff.WithContext(b, callCtx)); err != nil {
		return nil, classify(callCtx, err)
	}

	for i, vec := range embeddings {
		if len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				domain.ErrUpstreamFailure, i, len(vec), e.dimension)
		}
	}
	return embeddings, nil
}

// classify maps provider errors onto the shared taxonomy: deadline expiry
// becomes UpstreamTimeout, everything else UpstreamFailure.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
}

// isRateLimitError checks for HTTP 429.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 vectors to the storage type.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
