package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// noteDateFormats are tried in order; first match wins.
var noteDateFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// ImportResult summarizes a structured notes import.
type ImportResult struct {
	Imported      int    `json:"imported"`
	Skipped       int    `json:"skipped"`
	DateFallbacks int    `json:"date_fallbacks"`
	BatchID       string `json:"batch_id"`
}

// ImportNotes parses structured note text and inserts one memory per record.
//
// Records are separated by a line of "---". Within a record the first
// non-empty line (stripped of any "---" wrapper) is the title, a "Date:" line
// supplies the timestamp, a "Tags:" line supplies metadata.tags, and the
// remaining lines become the content. A record with neither content nor
// title is skipped. An unparseable or missing date falls back to "now"; when
// a Date: line was present but failed every format, the fallback is counted
// and logged.
//
// Every record of one call shares a fresh ULID as its source_id, so an
// import batch can be identified later.
func (s *SQLiteStore) ImportNotes(ctx context.Context, text string) (*ImportResult, error) {
	s.mu.Lock()
	batchID := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	s.mu.Unlock()

	res := &ImportResult{BatchID: batchID}

	for _, block := range strings.Split(text, "\n---") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		rec := parseNoteBlock(block)
		if rec.title == "" && rec.content == "" {
			res.Skipped++
			continue
		}

		ts := time.Now().UTC()
		if rec.dateStr != "" {
			parsed, ok := parseNoteDate(rec.dateStr)
			if ok {
				ts = parsed
			} else {
				res.DateFallbacks++
				slog.Warn("unparseable note date, falling back to now",
					"date", rec.dateStr, "title", rec.title)
			}
		}

		var metadata map[string]any
		if len(rec.tags) > 0 {
			metadata = map[string]any{"tags": rec.tags}
		}

		// Title-only records carry the title as their body so the store's
		// content requirement holds.
		content := rec.content
		if content == "" {
			content = rec.title
		}

		_, err := s.Add(ctx, AddParams{
			Content:    content,
			MemoryType: "note",
			Title:      rec.title,
			Metadata:   metadata,
			SourceType: "migrated",
			SourceID:   batchID,
			Timestamp:  ts,
		})
		if err != nil {
			return res, err
		}
		res.Imported++
	}

	return res, nil
}

type noteRecord struct {
	title   string
	dateStr string
	tags    []string
	content string
}

func parseNoteBlock(block string) noteRecord {
	var rec noteRecord
	var contentLines []string

	for i, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)

		if i == 0 {
			rec.title = strings.TrimSpace(strings.ReplaceAll(line, "---", ""))
			continue
		}
		if after, ok := strings.CutPrefix(line, "Date:"); ok {
			rec.dateStr = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "Tags:"); ok {
			for _, t := range strings.Split(after, ",") {
				if t = strings.TrimSpace(t); t != "" {
					rec.tags = append(rec.tags, t)
				}
			}
			continue
		}
		contentLines = append(contentLines, line)
	}

	rec.content = strings.TrimSpace(strings.Join(contentLines, "\n"))
	return rec
}

func parseNoteDate(s string) (time.Time, bool) {
	for _, format := range noteDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
