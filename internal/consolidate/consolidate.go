// Package consolidate extracts durable insights from session logs via a
// summarization model and stores them as memories.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tmorring/membank/internal/retrieval"
	"github.com/tmorring/membank/internal/store"
)

// Sections are the parts of a session log relevant to consolidation. Any of
// them may be empty.
type Sections struct {
	Summary    string
	Transcript string
	Actions    string
}

// Empty reports whether no section was found.
func (s Sections) Empty() bool {
	return s.Summary == "" && s.Transcript == "" && s.Actions == ""
}

// Insight is one extracted piece of durable information.
type Insight struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"type"` // fact | preference | topic
}

// Extractor turns session sections into insights.
type Extractor interface {
	ExtractInsights(ctx context.Context, s Sections) ([]Insight, error)
}

var (
	summaryRe    = regexp.MustCompile(`(?s)SUMMARY\s*-+\s*(.+?)\n\n`)
	transcriptRe = regexp.MustCompile(`(?s)RAW TRANSCRIPT\s*-+\s*(.+?)(?:\n\nACTIONS|\n\n=+)`)
	actionsRe    = regexp.MustCompile(`(?s)ACTIONS TAKEN\s*-+\s*(.+?)(?:\n\n=+)`)
)

// ParseSessionLog splits a session log into its sections.
func ParseSessionLog(content string) Sections {
	var s Sections
	if m := summaryRe.FindStringSubmatch(content); m != nil {
		s.Summary = strings.TrimSpace(m[1])
	}
	if m := transcriptRe.FindStringSubmatch(content); m != nil {
		s.Transcript = strings.TrimSpace(m[1])
	}
	if m := actionsRe.FindStringSubmatch(content); m != nil {
		s.Actions = strings.TrimSpace(m[1])
	}
	return s
}

// Consolidator runs the session-to-insight pipeline.
type Consolidator struct {
	engine    *retrieval.Engine
	extractor Extractor
	logger    *slog.Logger
}

// New creates a consolidator. A nil logger means slog.Default().
func New(engine *retrieval.Engine, extractor Extractor, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{engine: engine, extractor: extractor, logger: logger}
}

// ConsolidateSession extracts insights from one session log file and stores
// them with source_type "consolidated" and source_id set to the file name.
// A log with no recognizable sections, or extractor output with no valid
// insights, yields zero — not an error.
func (c *Consolidator) ConsolidateSession(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read session log: %w", err)
	}

	sections := ParseSessionLog(string(data))
	if sections.Empty() {
		c.logger.Warn("no recognizable sections in session log", "path", path)
		return 0, nil
	}

	insights, err := c.extractor.ExtractInsights(ctx, sections)
	if err != nil {
		return 0, fmt.Errorf("extract insights: %w", err)
	}

	sourceID := filepath.Base(path)
	saved := 0
	for _, insight := range insights {
		_, err := c.engine.AddWithEmbedding(ctx, store.AddParams{
			Content:    insight.Content,
			MemoryType: memoryTypeFor(insight.Category),
			Title:      insight.Title,
			SourceType: "consolidated",
			SourceID:   sourceID,
		})
		if err != nil {
			c.logger.Warn("failed to save insight", "title", insight.Title, "error", err)
			continue
		}
		saved++
	}

	c.logger.Info("consolidated session", "path", sourceID, "insights", saved)
	return saved, nil
}

// ConsolidateDir consolidates every session_*.txt file in a directory,
// returning the total insight count.
func (c *Consolidator) ConsolidateDir(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "session_*.txt"))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, path := range paths {
		n, err := c.ConsolidateSession(ctx, path)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// memoryTypeFor maps an insight category to a memory type. Facts stay
// facts; everything else, including unknown categories, becomes an insight.
func memoryTypeFor(category string) string {
	if category == "fact" {
		return "fact"
	}
	return "insight"
}
