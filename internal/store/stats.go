package store

import (
	"context"
	"math"
	"os"
)

// Stats holds store statistics.
type Stats struct {
	DBPath            string         `json:"db_path"`
	DBSizeBytes       int64          `json:"db_size_bytes"`
	DBSizeMB          float64        `json:"db_size_mb"`
	TotalMemories     int            `json:"total_memories"`
	ByType            map[string]int `json:"by_type"`
	EmbeddingRows     int            `json:"embedding_rows"`
	EmbeddingCoverage float64        `json:"embedding_coverage"`
}

// Stats returns totals, per-type counts, on-disk size, and embedding
// coverage.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, ByType: map[string]int{}}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
		st.DBSizeMB = math.Round(float64(info.Size())/(1024*1024)*100) / 100
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*) FROM memories GROUP BY memory_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		st.ByType[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if st.EmbeddingRows, err = s.CountEmbeddings(ctx); err != nil {
		return nil, err
	}
	if st.TotalMemories > 0 {
		st.EmbeddingCoverage = float64(st.EmbeddingRows) / float64(st.TotalMemories)
	}

	return st, nil
}
