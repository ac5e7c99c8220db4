// Package embedding converts text into fixed-dimension vectors for
// similarity comparison, with provider backends, caching, and a persistence
// codec.
package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// ErrUnavailable is returned when no embedding provider is configured.
var ErrUnavailable = errors.New("embedding provider not configured")

// Embedder generates embedding vectors from text.
//
// Implementations are deterministic for a fixed model version and safe for
// concurrent use. Empty or whitespace-only text maps to the zero vector of
// the model's dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch returns vectors index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	Dims() int

	// ModelVersion tags produced vectors so rows from a retired model can
	// be identified and rebuilt.
	ModelVersion() string
}

// CosineSimilarity computes cosine similarity between two vectors, in
// [-1, 1]. Mismatched lengths or a zero-norm vector yield 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Serialize encodes a vector as little-endian float32 bytes for storage.
func Serialize(v Vector) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

// Deserialize decodes bytes produced by Serialize.
func Deserialize(b []byte) Vector {
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// Average pools several vectors into one by element-wise mean. Used to fold
// per-chunk vectors of an overlong input into a single vector.
func Average(vs []Vector) Vector {
	if len(vs) == 0 {
		return nil
	}
	n := len(vs[0])
	out := make(Vector, n)
	for _, v := range vs {
		for i := 0; i < n && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	count := float32(len(vs))
	for i := range out {
		out[i] /= count
	}
	return out
}
