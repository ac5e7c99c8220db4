package store

import (
	"context"

	"github.com/tmorring/membank/internal/model"
)

// ExportAll returns every memory ordered by id, for a round-trippable dump.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	return s.queryMemories(ctx, selectMemory+` ORDER BY id`)
}

// ImportJSON stores memories from an export. Ids are reassigned; timestamps,
// types, metadata, and provenance are preserved.
func (s *SQLiteStore) ImportJSON(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for _, m := range memories {
		importance := m.Importance
		_, err := s.Add(ctx, AddParams{
			Content:    m.Content,
			MemoryType: m.MemoryType,
			Title:      m.Title,
			Metadata:   m.Metadata,
			SourceType: m.SourceType,
			SourceID:   m.SourceID,
			Importance: &importance,
			Timestamp:  m.Timestamp,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
