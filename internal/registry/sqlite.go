// Package registry persists DocumentRecords in SQLite so the document
// catalog survives process restarts.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// Registry is the durable mapping from document_id to ingestion metadata
// and index location. Mutations are atomic per document_id; SQLite's
// single-writer model plus WAL gives the required isolation for
// concurrent ingests and deletes.
type Registry struct {
	db *sql.DB
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}

	r := &Registry{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		filename    TEXT NOT NULL,
		uploaded_at TEXT NOT NULL,
		page_count  INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		collection  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('ingesting', 'ready', 'failed', 'deleted')),
		seq         INTEGER -- registration order for listing
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_seq ON documents (seq);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Create inserts a new record in the ingesting state and returns it.
func (r *Registry) Create(ctx context.Context, id, filename, collection string) (*domain.DocumentRecord, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, uploaded_at, collection, status, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents))`,
		id, filename, now.Format(time.RFC3339Nano), collection, string(domain.StatusIngesting))
	if err != nil {
		return nil, fmt.Errorf("insert document %s: %w", id, err)
	}
	return &domain.DocumentRecord{
		ID:         id,
		Filename:   filename,
		UploadedAt: now,
		Collection: collection,
		Status:     domain.StatusIngesting,
	}, nil
}

// MarkReady transitions ingesting -> ready, recording the derived counts
// in the same statement so a ready record always carries them.
func (r *Registry) MarkReady(ctx context.Context, id string, pageCount, chunkCount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, page_count = ?, chunk_count = ? WHERE id = ? AND status = ?`,
		string(domain.StatusReady), pageCount, chunkCount, id, string(domain.StatusIngesting))
	if err != nil {
		return fmt.Errorf("mark ready %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// MarkFailed transitions ingesting -> failed. The record stays listable
// for diagnostics but is never queryable.
func (r *Registry) MarkFailed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ? AND status = ?`,
		string(domain.StatusFailed), id, string(domain.StatusIngesting))
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// MarkDeleted tombstones a record. A second delete of the same id fails
// with ErrNotFound because the status is no longer deletable.
func (r *Registry) MarkDeleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ? AND status IN (?, ?)`,
		string(domain.StatusDeleted), id, string(domain.StatusReady), string(domain.StatusFailed))
	if err != nil {
		return fmt.Errorf("mark deleted %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// RecoverStale marks every ingesting record failed and returns how many
// were affected. An ingesting row can only outlive its ingest through a
// process crash, so the server runs this once at startup; callers must
// not run it while another process may have an ingest in flight.
func (r *Registry) RecoverStale(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE status = ?`,
		string(domain.StatusFailed), string(domain.StatusIngesting))
	if err != nil {
		return 0, fmt.Errorf("recover stale documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Get returns a record by id. Deleted tombstones and unknown ids both
// yield ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, uploaded_at, page_count, chunk_count, collection, status
		FROM documents WHERE id = ? AND status != ?`,
		id, string(domain.StatusDeleted))

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return rec, nil
}

// List returns all non-deleted records in registration order.
func (r *Registry) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, uploaded_at, page_count, chunk_count, collection, status
		FROM documents WHERE status != ? ORDER BY seq ASC`,
		string(domain.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	var uploadedAt, status string
	if err := row.Scan(&rec.ID, &rec.Filename, &uploadedAt, &rec.PageCount,
		&rec.ChunkCount, &rec.Collection, &status); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	rec.UploadedAt = ts
	rec.Status = domain.Status(status)
	return &rec, nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}
