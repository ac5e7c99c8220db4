// Package retrieval implements hybrid memory search: keyword and semantic
// candidates merged, scored on relevance, recency, and importance, then
// diversified.
package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tmorring/membank/internal/embedding"
	"github.com/tmorring/membank/internal/model"
	"github.com/tmorring/membank/internal/store"
)

const (
	// candidateLimit caps each candidate source before merging.
	candidateLimit = 20

	// diversityThreshold is the cosine similarity above which a candidate
	// is suppressed as a near-duplicate of an already-admitted result.
	diversityThreshold = 0.95

	// recencyDecayDays controls the exponential recency decay.
	recencyDecayDays = 30.0
)

// Weights are the per-factor multipliers of the final score. They need not
// sum to 1.
type Weights struct {
	Keyword    float64
	Semantic   float64
	Recency    float64
	Importance float64
}

// DefaultWeights returns the standard score weighting.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.3, Semantic: 0.5, Recency: 0.1, Importance: 0.1}
}

// Engine issues queries against the store and the embedding index, merging
// and ranking candidates. The embedder may be nil, in which case search runs
// on keyword candidates alone and new memories are stored without vectors.
type Engine struct {
	store    *store.SQLiteStore
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil logger means slog.Default().
func NewEngine(s *store.SQLiteStore, e embedding.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, embedder: e, logger: logger}
}

// HybridSearch returns up to topK memories ranked best-first.
//
// Keyword and semantic candidate sets (up to 20 each) are merged, keyword
// scores min-max normalized over the candidate set, recency scored as
// exp(-ageDays/30), and the weighted sum sorted descending. A final pass
// suppresses candidates whose embedding is more than 0.95 cosine-similar to
// any already-admitted result. topK <= 0 and an empty store both yield an
// empty result.
func (e *Engine) HybridSearch(ctx context.Context, query string, topK int, weights *Weights) ([]model.Memory, error) {
	if topK <= 0 {
		return nil, nil
	}
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}

	keyword, err := e.store.SearchKeywords(ctx, query, candidateLimit)
	if err != nil {
		return nil, err
	}

	semantic, vectors, err := e.semanticCandidates(ctx, query, candidateLimit)
	if err != nil {
		return nil, err
	}

	candidates, err := e.mergeCandidates(ctx, keyword, semantic)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	rerank(candidates, w, time.Now())

	return e.diversify(ctx, candidates, vectors, topK)
}

// semanticCandidates embeds the query and linearly scans every stored
// vector, returning the top matches by cosine similarity plus every scanned
// vector for reuse by the diversity filter.
func (e *Engine) semanticCandidates(ctx context.Context, query string, limit int) (map[int64]float64, map[int64]embedding.Vector, error) {
	if e.embedder == nil {
		return nil, map[int64]embedding.Vector{}, nil
	}

	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	rows, err := e.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, nil, err
	}

	type scored struct {
		id  int64
		sim float64
	}
	vectors := make(map[int64]embedding.Vector, len(rows))
	scores := make([]scored, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		vec := embedding.Deserialize(row.Vector)
		vectors[row.MemoryID] = vec
		scores = append(scores, scored{id: row.MemoryID, sim: embedding.CosineSimilarity(qvec, vec)})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].sim > scores[j].sim })
	if len(scores) > limit {
		scores = scores[:limit]
	}

	top := make(map[int64]float64, len(scores))
	for _, s := range scores {
		top[s.id] = s.sim
	}
	return top, vectors, nil
}

// mergeCandidates unions both candidate sets, resolving each id to its
// memory. Ids with no memory (orphaned embeddings) are dropped; a missing
// score defaults to 0.
func (e *Engine) mergeCandidates(ctx context.Context, keyword, semantic map[int64]float64) ([]*model.SearchCandidate, error) {
	ids := make(map[int64]bool, len(keyword)+len(semantic))
	for id := range keyword {
		ids[id] = true
	}
	for id := range semantic {
		ids[id] = true
	}

	candidates := make([]*model.SearchCandidate, 0, len(ids))
	for id := range ids {
		mem, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if mem == nil {
			continue
		}
		candidates = append(candidates, &model.SearchCandidate{
			Memory:   *mem,
			Keyword:  keyword[id],
			Semantic: semantic[id],
		})
	}
	return candidates, nil
}

// rerank normalizes keyword scores over the candidate set, computes recency
// and importance, and sorts by the weighted final score.
func rerank(candidates []*model.SearchCandidate, w Weights, now time.Time) {
	kwMin, kwMax := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		kwMin = math.Min(kwMin, c.Keyword)
		kwMax = math.Max(kwMax, c.Keyword)
	}
	kwRange := kwMax - kwMin

	for _, c := range candidates {
		if kwRange > 0 {
			c.Keyword = (c.Keyword - kwMin) / kwRange
		} else {
			c.Keyword = 0
		}

		if c.Memory.Timestamp.IsZero() {
			c.Recency = 0
		} else {
			ageDays := now.Sub(c.Memory.Timestamp).Hours() / 24
			c.Recency = math.Exp(-ageDays / recencyDecayDays)
		}

		c.Importance = c.Memory.Importance

		c.Final = w.Keyword*c.Keyword +
			w.Semantic*c.Semantic +
			w.Recency*c.Recency +
			w.Importance*c.Importance
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Final > candidates[j].Final
	})
}

// diversify walks the ranked candidates, admitting one only if its embedding
// is at most diversityThreshold cosine-similar to every already-admitted
// result. Candidates without a retrievable embedding skip the check entirely
// and are never compared against later candidates.
func (e *Engine) diversify(ctx context.Context, candidates []*model.SearchCandidate, vectors map[int64]embedding.Vector, topK int) ([]model.Memory, error) {
	var admitted []model.Memory
	var admittedVecs []embedding.Vector

	for _, c := range candidates {
		if len(admitted) >= topK {
			break
		}

		vec, err := e.candidateVector(ctx, c.Memory.ID, vectors)
		if err != nil {
			return nil, err
		}
		if vec == nil {
			admitted = append(admitted, c.Memory)
			continue
		}

		redundant := false
		for _, av := range admittedVecs {
			if embedding.CosineSimilarity(vec, av) > diversityThreshold {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}

		admitted = append(admitted, c.Memory)
		admittedVecs = append(admittedVecs, vec)
	}
	return admitted, nil
}

// candidateVector returns the embedding for a memory, preferring the
// vectors already deserialized by the semantic scan and falling back to the
// store for keyword-only candidates. Returns nil when no embedding exists.
func (e *Engine) candidateVector(ctx context.Context, id int64, vectors map[int64]embedding.Vector) (embedding.Vector, error) {
	if vec, ok := vectors[id]; ok {
		return vec, nil
	}
	rec, err := e.store.GetEmbedding(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	vec := embedding.Deserialize(rec.Vector)
	vectors[id] = vec
	return vec, nil
}

// AddWithEmbedding stores a memory, then embeds title+content and persists
// the vector. The two steps are deliberately not atomic: if embedding fails
// after the memory is stored, the memory persists without a vector and is
// excluded from semantic search until a rebuild runs. A storage failure
// writing the vector is returned alongside the already-assigned id.
func (e *Engine) AddWithEmbedding(ctx context.Context, p store.AddParams) (int64, error) {
	id, err := e.store.Add(ctx, p)
	if err != nil {
		return 0, err
	}

	if e.embedder == nil {
		e.logger.Debug("embedding disabled, memory stored without vector", "id", id)
		return id, nil
	}

	vec, err := e.embedder.Embed(ctx, embeddingText(p.Title, p.Content))
	if err != nil {
		e.logger.Warn("embedding failed, memory stored without vector", "id", id, "error", err)
		return id, nil
	}

	if err := e.store.PutEmbedding(ctx, id, embedding.Serialize(vec), e.embedder.ModelVersion()); err != nil {
		return id, err
	}
	return id, nil
}

// RebuildEmbeddings regenerates every memory's vector with the current
// model, replacing any existing row per id. Each batch commits separately,
// so readers and writers interleave between batches; a crash mid-rebuild
// leaves a mix of model versions, each row self-describing via its tag.
// Returns the number of memories processed.
func (e *Engine) RebuildEmbeddings(ctx context.Context, batchSize int) (int, error) {
	if e.embedder == nil {
		return 0, embedding.ErrUnavailable
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	memories, err := e.store.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	version := e.embedder.ModelVersion()
	for start := 0; start < len(memories); start += batchSize {
		end := start + batchSize
		if end > len(memories) {
			end = len(memories)
		}
		batch := memories[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = embeddingText(m.Title, m.Content)
		}

		vecs, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return start, err
		}

		recs := make([]model.EmbeddingRecord, len(batch))
		for i, m := range batch {
			recs[i] = model.EmbeddingRecord{
				MemoryID:     m.ID,
				Vector:       embedding.Serialize(vecs[i]),
				ModelVersion: version,
			}
		}
		if err := e.store.PutEmbeddings(ctx, recs); err != nil {
			return start, err
		}

		e.logger.Info("rebuilt embeddings", "done", end, "total", len(memories), "model", version)
	}

	return len(memories), nil
}

// RecordAccess updates access statistics for retrieved memories.
func (e *Engine) RecordAccess(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := e.store.RecordAccess(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func embeddingText(title, content string) string {
	return strings.TrimSpace(title + " " + content)
}
