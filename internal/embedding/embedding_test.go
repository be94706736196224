package embedding

import (
	"context"
	"math"
	"testing"

	"document-qa/internal/config"
)

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)

	a, err := e.EmbedQuery(ctx, "Quarterly budget review")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	b, err := NewHashEmbedder(64).EmbedQuery(ctx, "quarterly BUDGET review")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm(a))
	}
}

func TestHashEmbedderNeverZero(t *testing.T) {
	e := NewHashEmbedder(32)
	for _, text := range []string{"", "   ", "the and of", "!!!"} {
		v, err := e.EmbedQuery(context.Background(), text)
		if err != nil {
			t.Fatalf("EmbedQuery(%q): %v", text, err)
		}
		if math.Abs(norm(v)-1) > 1e-5 {
			t.Fatalf("expected unit vector for %q, got norm %f", text, norm(v))
		}
	}
}

func TestHashEmbedderEmbedDocuments(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimensions() != defaultHashDimensions {
		t.Fatalf("expected default dimensions, got %d", e.Dimensions())
	}
	vecs, err := e.EmbedDocuments(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
}

func TestHashEmbedderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).EmbedDocuments(ctx, []string{"x"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	e, err := New(&config.LLMConfig{Provider: "local", Dimensions: 16})
	if err != nil {
		t.Fatalf("New(local): %v", err)
	}
	if h, ok := e.(*HashEmbedder); !ok || h.Dimensions() != 16 {
		t.Fatalf("expected 16-dim hash embedder, got %T", e)
	}
	if _, err := New(&config.LLMConfig{Provider: "word2vec"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
