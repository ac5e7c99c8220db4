package embedding

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	v := Vector{1, 2, 3}
	if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", got)
	}

	a := Vector{1, 0}
	b := Vector{0, 1}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("orthogonal similarity = %v, want 0", got)
	}

	neg := Vector{-1, -2, -3}
	if got := CosineSimilarity(v, neg); math.Abs(got+1) > 1e-9 {
		t.Errorf("opposite similarity = %v, want -1", got)
	}

	zero := Vector{0, 0, 0}
	if got := CosineSimilarity(v, zero); got != 0 {
		t.Errorf("zero-norm similarity = %v, want 0", got)
	}

	if got := CosineSimilarity(Vector{1, 2}, Vector{1, 2, 3}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	v := Vector{0.5, -1.25, 3.75, 0}
	b := Serialize(v)
	if len(b) != 16 {
		t.Fatalf("serialized length = %d", len(b))
	}
	got := Deserialize(b)
	if len(got) != len(v) {
		t.Fatalf("deserialized length = %d", len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestAverage(t *testing.T) {
	got := Average([]Vector{{1, 2}, {3, 4}})
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("average = %v", got)
	}
	if Average(nil) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestOpenAIEmbedderBlankText(t *testing.T) {
	// No network: blank inputs short-circuit to zero vectors.
	e := NewOpenAIEmbedder("", "test-key", "", 8)

	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 8 {
		t.Fatalf("dims = %d", len(vec))
	}
	for i, f := range vec {
		if f != 0 {
			t.Errorf("element %d = %v, want 0", i, f)
		}
	}
}

func TestOpenAIEmbedderDefaults(t *testing.T) {
	e := NewOpenAIEmbedder("", "k", "", 0)
	if e.Dims() != 1536 {
		t.Errorf("dims = %d", e.Dims())
	}
	if e.ModelVersion() != "text-embedding-3-small" {
		t.Errorf("model = %q", e.ModelVersion())
	}
}

func TestNewFromEnvDisabled(t *testing.T) {
	t.Setenv("MEMBANK_EMBED_PROVIDER", "")
	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != nil {
		t.Error("expected nil embedder when provider unset")
	}
}

func TestNewFromEnvUnknownProvider(t *testing.T) {
	t.Setenv("MEMBANK_EMBED_PROVIDER", "tealeaves")
	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error for unknown provider")
	}
}
