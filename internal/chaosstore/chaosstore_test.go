package chaosstore

import (
	"math"
	"testing"
)

func TestAddIsIdempotentOnID(t *testing.T) {
	s := New()
	s.Add(1, [2]uint64{0xFF, 0}, []float32{1, 0})
	s.Add(1, [2]uint64{0x0F, 0}, []float32{0, 1})

	if s.Len() != 1 {
		t.Fatalf("expected a single entry after re-adding id 1, got %d", s.Len())
	}
	vec, ok := s.Vector(1)
	if !ok || vec[0] != 0 || vec[1] != 1 {
		t.Errorf("expected the second Add to overwrite the first, got %v", vec)
	}
}

func TestCoarseFilterHammingDistance(t *testing.T) {
	s := New()
	s.Add(1, [2]uint64{0, 0}, nil)
	s.Add(2, [2]uint64{0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF}, nil)

	matches := s.CoarseFilter([2]uint64{0, 0}, 64)
	if len(matches) != 1 || matches[0].ID != 1 {
		t.Errorf("expected only id 1 within distance 64, got %+v", matches)
	}
}

func TestCosineSimilarityRoundTrip(t *testing.T) {
	s := New()
	s.Add(1, [2]uint64{}, []float32{1, 0, 0})

	sim, ok := s.CosineSimilarity(1, []float32{1, 0, 0})
	if !ok {
		t.Fatal("expected cosine similarity to succeed")
	}
	if math.Abs(float64(sim)-1.0) > 1e-3 {
		t.Errorf("cosine of identical vectors = %f, want ~1.0", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	s := New()
	s.Add(1, [2]uint64{}, []float32{1, 0})

	sim, ok := s.CosineSimilarity(1, []float32{0, 1})
	if !ok {
		t.Fatal("expected cosine similarity to succeed")
	}
	if math.Abs(float64(sim)) > 1e-3 {
		t.Errorf("cosine of orthogonal vectors = %f, want ~0", sim)
	}
}

func TestCosineSimilarityMissingID(t *testing.T) {
	s := New()
	if _, ok := s.CosineSimilarity(99, []float32{1}); ok {
		t.Error("expected missing id to report false")
	}
}
