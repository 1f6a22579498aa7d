package embedmodel

import (
	"os"
	"path/filepath"
	"testing"
)

func newFixture() *Model {
	m := New(2)
	m.Vocab["rust"] = []float32{1, 0}
	m.Vocab["go"] = []float32{0, 1}
	m.Vocab["人"] = []float32{2, 2}
	return m
}

func TestVectorizeWholeTokenMatch(t *testing.T) {
	m := newFixture()
	vec, ok := m.Vectorize("rust go")
	if !ok {
		t.Fatalf("expected a result")
	}
	if vec[0] != 0.5 || vec[1] != 0.5 {
		t.Errorf("vec = %v, want [0.5 0.5]", vec)
	}
}

func TestVectorizeCharFallback(t *testing.T) {
	m := newFixture()
	vec, ok := m.Vectorize("人工智能")
	if !ok {
		t.Fatalf("expected a result from char-level fallback")
	}
	if vec[0] != 2 || vec[1] != 2 {
		t.Errorf("vec = %v, want [2 2] (one char hit, rest unknown)", vec)
	}
}

func TestVectorizeNoResult(t *testing.T) {
	m := newFixture()
	if _, ok := m.Vectorize("nothing matches here"); ok {
		t.Errorf("expected no result")
	}
}

func TestVectorizeWeightedRangePrefersOverlap(t *testing.T) {
	m := newFixture()
	text := "rust go"
	// "go" occupies bytes [5,7); weight it at 5.0, "rust" stays default 1.0.
	vec, ok := m.VectorizeWeighted(text, []WeightedRange{{Start: 5, End: 7, Weight: 5.0}})
	if !ok {
		t.Fatalf("expected a result")
	}
	// total weight = 1 (rust) + 5 (go) = 6; acc = [1*1, 1*5] = [1,5]
	wantX := float32(1.0 / 6.0)
	wantY := float32(5.0 / 6.0)
	if abs32(vec[0]-wantX) > 1e-6 || abs32(vec[1]-wantY) > 1e-6 {
		t.Errorf("vec = %v, want [%v %v]", vec, wantX, wantY)
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0}
	if got := CosineSimilarity(a, b); got < 0.999 {
		t.Errorf("CosineSimilarity(a,a) = %v, want ~1", got)
	}
	c := []float32{0, 1}
	if got := CosineSimilarity(a, c); got > 1e-6 {
		t.Errorf("CosineSimilarity(a,c) = %v, want ~0", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newFixture()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.pedsa_vec")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dimension != m.Dimension {
		t.Errorf("dimension = %d, want %d", loaded.Dimension, m.Dimension)
	}
	if len(loaded.Vocab) != len(m.Vocab) {
		t.Errorf("vocab size = %d, want %d", len(loaded.Vocab), len(m.Vocab))
	}
	for w, v := range m.Vocab {
		gv, ok := loaded.Vocab[w]
		if !ok {
			t.Errorf("missing word %q after round trip", w)
			continue
		}
		for i := range v {
			if gv[i] != v[i] {
				t.Errorf("word %q dim %d = %v, want %v", w, i, gv[i], v[i])
			}
		}
	}
}

func TestLoadFromBytesInvalidMagic(t *testing.T) {
	_, err := LoadFromBytes([]byte("not a pedsa vec file at all"))
	if err != ErrInvalidFormat {
		t.Errorf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "does-not-exist.pedsa_vec")); err == nil {
		t.Errorf("expected error loading nonexistent file")
	}
}
