package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tmorring/membank/internal/model"
)

// PutEmbedding inserts or replaces the embedding row for a memory. The
// foreign key ensures the memory exists.
func (s *SQLiteStore) PutEmbedding(ctx context.Context, memoryID int64, vector []byte, modelVersion string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (memory_id, embedding, model_version, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(memory_id) DO UPDATE SET
		   embedding = excluded.embedding,
		   model_version = excluded.model_version,
		   created_at = excluded.created_at`,
		memoryID, vector, modelVersion, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}
	return nil
}

// PutEmbeddings writes a batch of embedding rows in a single transaction.
func (s *SQLiteStore) PutEmbeddings(ctx context.Context, recs []model.EmbeddingRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range recs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (memory_id, embedding, model_version, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(memory_id) DO UPDATE SET
			   embedding = excluded.embedding,
			   model_version = excluded.model_version,
			   created_at = excluded.created_at`,
			r.MemoryID, r.Vector, r.ModelVersion, now); err != nil {
			return fmt.Errorf("put embedding %d: %w", r.MemoryID, err)
		}
	}
	return tx.Commit()
}

// GetEmbedding retrieves the embedding row for a memory. Returns (nil, nil)
// if absent.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, memoryID int64) (*model.EmbeddingRecord, error) {
	var r model.EmbeddingRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT memory_id, embedding, model_version, created_at FROM embeddings WHERE memory_id = ?`,
		memoryID).Scan(&r.MemoryID, &r.Vector, &r.ModelVersion, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

// ListEmbeddings returns every embedding row, for the linear similarity scan.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context) ([]model.EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_id, embedding, model_version, created_at FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.EmbeddingRecord
	for rows.Next() {
		var r model.EmbeddingRecord
		var createdAt string
		if err := rows.Scan(&r.MemoryID, &r.Vector, &r.ModelVersion, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CountEmbeddings returns the number of embedding rows.
func (s *SQLiteStore) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}
