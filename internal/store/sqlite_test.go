package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tmorring/membank/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	importance := 0.8
	id, err := s.Add(ctx, AddParams{
		Content:    "quarterly planning is on Thursdays",
		MemoryType: "fact",
		Title:      "Planning cadence",
		Metadata:   map[string]any{"tags": []string{"work"}},
		SourceType: "voice",
		SourceID:   "rec-0042",
		Importance: &importance,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected memory, got nil")
	}
	if got.Content != "quarterly planning is on Thursdays" {
		t.Errorf("content = %q", got.Content)
	}
	if got.MemoryType != "fact" {
		t.Errorf("memory_type = %q", got.MemoryType)
	}
	if got.Title != "Planning cadence" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Importance != 0.8 {
		t.Errorf("importance = %v", got.Importance)
	}
	if got.SourceType != "voice" || got.SourceID != "rec-0042" {
		t.Errorf("source = %q/%q", got.SourceType, got.SourceID)
	}
	if got.AccessCount != 0 {
		t.Errorf("access_count = %d", got.AccessCount)
	}
	if got.LastAccessed != nil {
		t.Error("expected nil last_accessed")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected default timestamp")
	}
	tags, ok := got.Metadata["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "work" {
		t.Errorf("metadata tags = %v", got.Metadata["tags"])
	}
}

func TestAddDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, AddParams{Content: "defaults"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, _ := s.Get(ctx, id)
	if got.MemoryType != "note" {
		t.Errorf("default memory_type = %q", got.MemoryType)
	}
	if got.SourceType != "manual" {
		t.Errorf("default source_type = %q", got.SourceType)
	}
	if got.Importance != model.DefaultImportance {
		t.Errorf("default importance = %v", got.Importance)
	}
}

func TestAddRejectsOutOfRangeImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := 1.5
	if _, err := s.Add(ctx, AddParams{Content: "x", Importance: &bad}); err == nil {
		t.Error("expected error for importance > 1")
	}
	neg := -0.1
	if _, err := s.Add(ctx, AddParams{Content: "x", Importance: &neg}); err == nil {
		t.Error("expected error for importance < 0")
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.Get(ctx, 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing id")
	}
}

func TestUpdatePartialFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.Add(ctx, AddParams{Content: "original body", Title: "Original"})

	newTitle := "Renamed"
	ok, err := s.Update(ctx, id, model.Patch{Title: &newTitle})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("expected update to succeed")
	}

	got, _ := s.Get(ctx, id)
	if got.Title != "Renamed" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != "original body" {
		t.Errorf("content changed unexpectedly: %q", got.Content)
	}

	imp := 0.9
	meta := map[string]any{"reviewed": true}
	ok, err = s.Update(ctx, id, model.Patch{Importance: &imp, Metadata: &meta})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, _ = s.Get(ctx, id)
	if got.Importance != 0.9 {
		t.Errorf("importance = %v", got.Importance)
	}
	if got.Metadata["reviewed"] != true {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestUpdateMissingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	title := "x"
	ok, err := s.Update(ctx, 42, model.Patch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Error("expected false for missing id")
	}
}

func TestUpdateRejectsOutOfRangeImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.Add(ctx, AddParams{Content: "x"})
	bad := 2.0
	if _, err := s.Update(ctx, id, model.Patch{Importance: &bad}); err == nil {
		t.Error("expected error for importance > 1")
	}
}

func TestDeleteCascadesToEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.Add(ctx, AddParams{Content: "ephemeral"})
	if err := s.PutEmbedding(ctx, id, []byte{1, 2, 3, 4}, "test-model"); err != nil {
		t.Fatalf("put embedding: %v", err)
	}

	ok, err := s.Delete(ctx, id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to succeed")
	}

	if got, _ := s.Get(ctx, id); got != nil {
		t.Error("memory still present after delete")
	}
	if emb, _ := s.GetEmbedding(ctx, id); emb != nil {
		t.Error("embedding row survived delete")
	}
	if n, _ := s.CountEmbeddings(ctx); n != 0 {
		t.Errorf("embedding count = %d", n)
	}

	// And the index entry is gone too.
	hits, _ := s.SearchKeywords(ctx, "ephemeral", 10)
	if len(hits) != 0 {
		t.Errorf("deleted memory still indexed: %v", hits)
	}
}

func TestDeleteMissingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Delete(ctx, 7)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("expected false for missing id")
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	s.Add(ctx, AddParams{Content: "oldest", Timestamp: old})
	s.Add(ctx, AddParams{Content: "newest", Timestamp: recent})
	s.Add(ctx, AddParams{Content: "middle", Timestamp: mid})

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Content != "newest" || all[2].Content != "oldest" {
		t.Errorf("wrong order: %q, %q, %q", all[0].Content, all[1].Content, all[2].Content)
	}

	two, _ := s.List(ctx, 2)
	if len(two) != 2 {
		t.Errorf("expected 2 with limit, got %d", len(two))
	}
}

func TestListBySourceType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Add(ctx, AddParams{Content: "a", SourceType: "voice"})
	s.Add(ctx, AddParams{Content: "b", SourceType: "consolidated"})
	s.Add(ctx, AddParams{Content: "c", SourceType: "voice"})

	voice, err := s.ListBySourceType(ctx, "voice")
	if err != nil {
		t.Fatalf("list by source: %v", err)
	}
	if len(voice) != 2 {
		t.Errorf("expected 2 voice memories, got %d", len(voice))
	}
}

func TestRecordAccessConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.Add(ctx, AddParams{Content: "hot"})

	const calls = 20
	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordAccess(ctx, id)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("record access: %v", err)
		}
	}

	got, _ := s.Get(ctx, id)
	if got.AccessCount != calls {
		t.Errorf("access_count = %d, want %d", got.AccessCount, calls)
	}
	if got.LastAccessed == nil {
		t.Error("expected last_accessed to be set")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Add(ctx, AddParams{Content: "a", MemoryType: "note"})
	s.Add(ctx, AddParams{Content: "b", MemoryType: "fact"})
	id, _ := s.Add(ctx, AddParams{Content: "c", MemoryType: "fact"})
	s.PutEmbedding(ctx, id, []byte{0, 0, 0, 0}, "m1")

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalMemories != 3 {
		t.Errorf("total = %d", st.TotalMemories)
	}
	if st.ByType["fact"] != 2 || st.ByType["note"] != 1 {
		t.Errorf("by_type = %v", st.ByType)
	}
	if st.EmbeddingRows != 1 {
		t.Errorf("embedding_rows = %d", st.EmbeddingRows)
	}
	if st.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ts := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	imp := 0.7
	s.Add(ctx, AddParams{
		Content: "portable", MemoryType: "insight", Title: "T",
		SourceType: "session", SourceID: "log-1", Importance: &imp, Timestamp: ts,
	})

	dump, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestStore(t)
	n, err := dst.ImportJSON(ctx, dump)
	if err != nil {
		t.Fatalf("import json: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported = %d", n)
	}

	got, _ := dst.List(ctx, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(got))
	}
	m := got[0]
	if m.Content != "portable" || m.MemoryType != "insight" || m.Title != "T" {
		t.Errorf("fields lost in round trip: %+v", m)
	}
	if !m.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, ts)
	}
	if m.Importance != 0.7 {
		t.Errorf("importance = %v", m.Importance)
	}
}
