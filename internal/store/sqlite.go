package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tmorring/membank/internal/model"
)

// SQLiteStore implements Store using SQLite with an FTS5 exact-term index.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	// memories_fts is a regular FTS5 table (not external-content) so the
	// index can be kept in sync with plain INSERT/DELETE statements inside
	// the same transaction as the memories row. No triggers.
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		memory_type      TEXT NOT NULL DEFAULT 'note',
		title            TEXT,
		content          TEXT NOT NULL,
		metadata         TEXT NOT NULL DEFAULT '{}',
		timestamp        TEXT NOT NULL,
		importance_score REAL NOT NULL DEFAULT 0.5,
		access_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed    TEXT,
		source_type      TEXT NOT NULL DEFAULT 'manual',
		source_id        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source_type);

	CREATE TABLE IF NOT EXISTS embeddings (
		memory_id     INTEGER PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
		embedding     BLOB NOT NULL,
		model_version TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(title, content);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add inserts a memory and its index entry in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, p AddParams) (int64, error) {
	if p.Content == "" {
		return 0, fmt.Errorf("content is required")
	}

	memoryType := p.MemoryType
	if memoryType == "" {
		memoryType = "note"
	}
	sourceType := p.SourceType
	if sourceType == "" {
		sourceType = "manual"
	}

	importance := model.DefaultImportance
	if p.Importance != nil {
		importance = *p.Importance
	}
	if importance < 0 || importance > 1 {
		return 0, fmt.Errorf("importance %v out of range [0,1]", importance)
	}

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metaJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO memories (memory_type, title, content, metadata, timestamp, importance_score, access_count, source_type, source_id)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		memoryType, nullable(p.Title), p.Content, metaJSON,
		ts.Format(time.RFC3339), importance, sourceType, nullable(p.SourceID))
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_fts (rowid, title, content) VALUES (?, ?, ?)`,
		id, p.Title, p.Content); err != nil {
		return 0, fmt.Errorf("index memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Get retrieves a memory by id. Returns (nil, nil) if absent.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, selectMemory+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Update applies the non-nil fields of the patch and re-synchronizes the
// index entry when title or content changed, all in one transaction.
// Returns false if the id does not exist.
func (s *SQLiteStore) Update(ctx context.Context, id int64, patch model.Patch) (bool, error) {
	if patch.Importance != nil && (*patch.Importance < 0 || *patch.Importance > 1) {
		return false, fmt.Errorf("importance %v out of range [0,1]", *patch.Importance)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var title sql.NullString
	var content, metaJSON string
	var importance float64
	err = tx.QueryRowContext(ctx,
		`SELECT title, content, metadata, importance_score FROM memories WHERE id = ?`, id).
		Scan(&title, &content, &metaJSON, &importance)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if patch.Empty() {
		return true, nil
	}

	textChanged := false
	newTitle := title.String
	if patch.Title != nil {
		newTitle = *patch.Title
		textChanged = true
	}
	newContent := content
	if patch.Content != nil {
		newContent = *patch.Content
		textChanged = true
	}
	if patch.Metadata != nil {
		metaJSON, err = marshalMetadata(*patch.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if patch.Importance != nil {
		importance = *patch.Importance
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET title = ?, content = ?, metadata = ?, importance_score = ? WHERE id = ?`,
		nullable(newTitle), newContent, metaJSON, importance, id)
	if err != nil {
		return false, fmt.Errorf("update memory: %w", err)
	}

	if textChanged {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE rowid = ?`, id); err != nil {
			return false, fmt.Errorf("deindex memory: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memories_fts (rowid, title, content) VALUES (?, ?, ?)`,
			id, newTitle, newContent); err != nil {
			return false, fmt.Errorf("reindex memory: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a memory, its embedding (via cascade), and its index entry.
// Returns false if the id does not exist.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE rowid = ?`, id); err != nil {
		return false, fmt.Errorf("deindex memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// List returns memories newest-first. limit <= 0 means all.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Memory, error) {
	query := selectMemory + ` ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryMemories(ctx, query, args...)
}

// ListBySourceType returns memories with the given source type, newest-first.
func (s *SQLiteStore) ListBySourceType(ctx context.Context, sourceType string) ([]model.Memory, error) {
	return s.queryMemories(ctx,
		selectMemory+` WHERE source_type = ? ORDER BY timestamp DESC, id DESC`, sourceType)
}

// RecordAccess increments access_count and sets last_accessed. The increment
// happens in SQL, so concurrent calls never lose updates. Unknown ids are a
// no-op.
func (s *SQLiteStore) RecordAccess(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectMemory = `SELECT id, memory_type, title, content, metadata, timestamp,
	importance_score, access_count, last_accessed, source_type, source_id FROM memories`

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var title, lastAccessed, sourceID sql.NullString
	var metaJSON, timestamp string

	err := row.Scan(
		&m.ID, &m.MemoryType, &title, &m.Content, &metaJSON, &timestamp,
		&m.Importance, &m.AccessCount, &lastAccessed, &m.SourceType, &sourceID,
	)
	if err != nil {
		return m, err
	}

	m.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	if title.Valid {
		m.Title = title.String
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		m.LastAccessed = &t
	}
	if sourceID.Valid {
		m.SourceID = sourceID.String
	}
	if metaJSON != "" {
		json.Unmarshal([]byte(metaJSON), &m.Metadata)
	}
	if len(m.Metadata) == 0 {
		m.Metadata = nil
	}

	return m, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
