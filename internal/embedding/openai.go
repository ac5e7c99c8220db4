package embedding

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tmorring/membank/internal/chunker"
)

// OpenAIEmbedder uses any OpenAI-compatible embeddings API.
//
// Inputs longer than one chunk window are split and their chunk vectors
// average-pooled into a single vector, so arbitrarily long memories still
// map to one fixed-dimension embedding.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dims       int
	maxRetries int
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dims:       dims,
		maxRetries: 3,
	}
}

// Embed generates a vector for a single text. Blank text yields the zero
// vector without an API call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates vectors index-aligned with texts. Blank entries map
// to zero vectors; the remaining chunks go upstream in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))

	// Expand each non-blank text into its chunk windows, remembering which
	// chunks belong to which input.
	var inputs []string
	owner := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make(Vector, e.dims)
			continue
		}
		for _, c := range chunker.Split(text, chunker.DefaultWindowWords, chunker.DefaultOverlapWords) {
			inputs = append(inputs, c)
			owner = append(owner, i)
		}
	}
	if len(inputs) == 0 {
		return out, nil
	}

	var resp openai.EmbeddingResponse
	err := e.withRetry(ctx, func() error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(e.model),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	chunkVecs := make(map[int][]Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(owner) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		idx := owner[d.Index]
		chunkVecs[idx] = append(chunkVecs[idx], d.Embedding)
	}

	for i := range texts {
		if out[i] != nil {
			continue
		}
		out[i] = Average(chunkVecs[i])
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

func (e *OpenAIEmbedder) ModelVersion() string { return e.model }

func (e *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	backoff := time.Second
	var err error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// NewFromEnv creates an embedder from environment variables, wrapped in the
// process cache. Returns nil when embeddings are disabled.
//
// MEMBANK_EMBED_PROVIDER: "openai" | "" (disabled)
// MEMBANK_EMBED_MODEL: model name
// MEMBANK_EMBED_URL: base URL override
// MEMBANK_EMBED_DIMS: vector dimensionality override
// OPENAI_API_KEY: API key
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv("MEMBANK_EMBED_PROVIDER")
	if provider == "" {
		return nil, nil
	}
	if provider != "openai" {
		return nil, fmt.Errorf("unknown embed provider %q", provider)
	}

	dims := 0
	if v := os.Getenv("MEMBANK_EMBED_DIMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MEMBANK_EMBED_DIMS: %w", err)
		}
		dims = n
	}

	inner := NewOpenAIEmbedder(
		os.Getenv("MEMBANK_EMBED_URL"),
		os.Getenv("OPENAI_API_KEY"),
		os.Getenv("MEMBANK_EMBED_MODEL"),
		dims,
	)
	return NewCachedEmbedder(inner)
}
