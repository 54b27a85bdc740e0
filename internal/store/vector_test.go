package store

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -0.5, 3.14, 0}
	blob := encodeVector(vec)

	decoded, err := decodeVector(blob, len(vec))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], vec[i])
		}
	}
}

func TestDecodeVectorBadSize(t *testing.T) {
	blob := encodeVector([]float32{1, 2, 3})
	if _, err := decodeVector(blob, 4); err == nil {
		t.Error("expected error for mismatched dimension")
	}
	if _, err := decodeVector(blob[:5], 3); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("cosineSimilarity: %v", err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("identical vectors: similarity = %v, want 1", sim)
	}

	sim, err = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("cosineSimilarity: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("orthogonal vectors: similarity = %v, want 0", sim)
	}

	if _, err := cosineSimilarity([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
	if _, err := cosineSimilarity([]float32{0, 0}, []float32{1, 2}); err == nil {
		t.Error("expected error for zero-norm vector")
	}
}
