// Package model defines the core memory data types.
package model

import "time"

// DefaultImportance is the importance score assigned when none is given.
const DefaultImportance = 0.5

// Memory represents a stored memory entry.
type Memory struct {
	ID           int64          `json:"id"`
	MemoryType   string         `json:"memory_type"`
	Title        string         `json:"title,omitempty"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Importance   float64        `json:"importance_score"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	SourceType   string         `json:"source_type"`
	SourceID     string         `json:"source_id,omitempty"`
}

// EmbeddingRecord is the persisted vector for a memory. At most one exists
// per memory; deleting the memory deletes it.
type EmbeddingRecord struct {
	MemoryID     int64     `json:"memory_id"`
	Vector       []byte    `json:"-"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Title      *string
	Content    *string
	Metadata   *map[string]any
	Importance *float64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Metadata == nil && p.Importance == nil
}

// SearchCandidate is a memory with its per-factor ranking scores. It exists
// only for the duration of a query and is never persisted.
type SearchCandidate struct {
	Memory     Memory
	Keyword    float64
	Semantic   float64
	Recency    float64
	Importance float64
	Final      float64
}

// ValidMemoryTypes are the allowed memory types.
var ValidMemoryTypes = map[string]bool{
	"note":         true,
	"conversation": true,
	"insight":      true,
	"fact":         true,
}

// ValidSourceTypes are the allowed provenance types.
var ValidSourceTypes = map[string]bool{
	"manual":       true,
	"voice":        true,
	"session":      true,
	"consolidated": true,
	"migrated":     true,
}
