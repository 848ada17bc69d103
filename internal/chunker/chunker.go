// Package chunker splits document text into fixed-size overlapping
// windows, the unit of retrieval.
package chunker

import (
	"fmt"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// DefaultChunkSize is the default window length in runes.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of runes shared between
// neighboring windows, chosen so no fact falls cleanly on a boundary.
const DefaultOverlap = 200

// Chunker produces deterministic overlapping windows over source text.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters and returns a Chunker. The overlap
// must be strictly smaller than the size or the window would never
// advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", domain.ErrInvalidConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split windows the text into ordered chunks. Each window starts
// size-overlap runes after the previous one; the last window may be
// shorter. Empty input yields no chunks. Same input, same output.
func (c *Chunker) Split(documentID, text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(runes)/stride+1)

	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text:       string(runes[start:end]),
			DocumentID: documentID,
			Ordinal:    len(chunks),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
