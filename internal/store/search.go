package store

import (
	"context"
)

// SearchKeywords runs an FTS5 MATCH query over title and content, returning
// memory id -> relevance score with higher meaning more relevant. FTS5 ranks
// with BM25 where values closer to zero from below are better, so the rank is
// negated.
//
// FTS5 reports malformed MATCH syntax as a plain SQLITE_ERROR, which is not
// distinguishable from other statement errors without string matching; a
// query that fails to execute degrades to an empty candidate set so hybrid
// search can continue on semantic candidates alone.
func (s *SQLiteStore) SearchKeywords(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, rank FROM memories_fts WHERE memories_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit)
	if err != nil {
		return map[int64]float64{}, nil
	}
	defer rows.Close()

	results := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		results[id] = -rank
	}
	return results, rows.Err()
}
