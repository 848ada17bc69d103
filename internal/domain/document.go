// Package domain holds the core types and error taxonomy shared across
// the ingestion, retrieval, and agent layers.
package domain

import "time"

// Status is the lifecycle state of an uploaded document.
type Status string

const (
	// StatusIngesting marks a document whose index is still being built.
	StatusIngesting Status = "ingesting"
	// StatusReady marks a document that is fully indexed and queryable.
	StatusReady Status = "ready"
	// StatusFailed marks a document whose ingestion failed. Retained for
	// diagnostics, never queryable.
	StatusFailed Status = "failed"
	// StatusDeleted marks a tombstoned document.
	StatusDeleted Status = "deleted"
)

// DocumentRecord is the registry entry for one uploaded document.
type DocumentRecord struct {
	ID         string    `json:"document_id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	PageCount  int       `json:"pages_count"`
	ChunkCount int       `json:"chunks_count"`
	// Collection is the name of the vector index owned exclusively by
	// this record.
	Collection string `json:"-"`
	Status     Status `json:"status"`
}

// Queryable reports whether retrieval against this record is allowed.
func (r *DocumentRecord) Queryable() bool {
	return r.Status == StatusReady
}

// Chunk is the retrievable unit: a bounded overlapping text window from a
// single document, paired permanently with its embedding.
type Chunk struct {
	Text       string
	Embedding  []float32
	DocumentID string
	Ordinal    int
}

// ScoredChunk is a search hit with its similarity score.
type ScoredChunk struct {
	Text  string
	Score float32
}
