// Package store provides the durable memory store: the memories relation,
// its exact-term index, and the persisted embedding rows.
package store

import (
	"context"
	"time"

	"github.com/tmorring/membank/internal/model"
)

// AddParams holds parameters for inserting a memory.
type AddParams struct {
	Content    string
	MemoryType string // defaults to "note"
	Title      string
	Metadata   map[string]any
	SourceType string   // defaults to "manual"
	SourceID   string
	Importance *float64  // nil means model.DefaultImportance
	Timestamp  time.Time // zero means "now"
}

// Store defines the memory storage interface.
type Store interface {
	// Add inserts a memory and its exact-term index entry in one transaction.
	Add(ctx context.Context, p AddParams) (int64, error)

	// Get retrieves a memory by id. Returns (nil, nil) if absent.
	Get(ctx context.Context, id int64) (*model.Memory, error)

	// Update applies the non-nil fields of the patch. Returns false if the
	// id does not exist.
	Update(ctx context.Context, id int64, patch model.Patch) (bool, error)

	// Delete removes a memory, its embedding, and its index entry.
	// Returns false if the id does not exist.
	Delete(ctx context.Context, id int64) (bool, error)

	// List returns memories newest-first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]model.Memory, error)

	// ListBySourceType returns memories with the given source type,
	// newest-first.
	ListBySourceType(ctx context.Context, sourceType string) ([]model.Memory, error)

	// RecordAccess increments access_count and sets last_accessed.
	RecordAccess(ctx context.Context, id int64) error

	// SearchKeywords runs an exact-term query, returning memory id ->
	// relevance score (higher is better). Malformed query syntax degrades
	// to an empty result.
	SearchKeywords(ctx context.Context, query string, limit int) (map[int64]float64, error)

	// Stats returns store statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}
