package retrieval

import (
	"context"

	"github.com/tmorring/membank/internal/model"
)

// ContextParams holds parameters for prompt context assembly.
type ContextParams struct {
	Query  string
	Budget int // max tokens in output (rough proxy: 1 token ≈ 4 chars)
}

// ContextMemory is one memory formatted for context output.
type ContextMemory struct {
	ID         int64  `json:"id"`
	MemoryType string `json:"memory_type"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	Excerpt    bool   `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Memories []ContextMemory `json:"memories"`
}

// Context packs the best hybrid-search matches for the query into a token
// budget, excerpting the last entry when only part of it fits.
func (e *Engine) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = 4000
	}
	charBudget := budget * 4

	matches, err := e.HybridSearch(ctx, p.Query, candidateLimit, nil)
	if err != nil {
		return nil, err
	}

	result := &ContextResult{Budget: budget, Memories: []ContextMemory{}}
	used := 0

	for _, m := range matches {
		if used+len(m.Content) <= charBudget {
			result.Memories = append(result.Memories, contextMemory(m, m.Content, false))
			used += len(m.Content)
			continue
		}

		// Partial fit, but only if a meaningful excerpt remains.
		if remaining := charBudget - used; remaining >= 100 {
			excerpt := m.Content[:remaining] + "..."
			result.Memories = append(result.Memories, contextMemory(m, excerpt, true))
			used += len(excerpt)
		}
		break
	}

	result.Used = used / 4
	return result, nil
}

func contextMemory(m model.Memory, content string, excerpt bool) ContextMemory {
	return ContextMemory{
		ID:         m.ID,
		MemoryType: m.MemoryType,
		Title:      m.Title,
		Content:    content,
		Excerpt:    excerpt,
	}
}
