// Package chaosstore implements the dual-precision chaos vector index: an
// append-only struct-of-arrays keyed by event id, holding a 128-bit
// sign-quantized fingerprint for coarse Hamming ranking and a
// half-precision vector for a cosine-similarity rerank pass. Modeled on the
// teacher's internal/embedding cache (struct-of-arrays, not a map of
// structs); x448/float16 is promoted from o9nn-echo.go's go.mod, which
// lists it as a direct dependency for half-precision storage.
package chaosstore

import (
	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/vthunder/pedsa/internal/fingerprint"
)

// Store is the append-only chaos index. Not safe for concurrent use; the
// engine façade serializes access per spec §5.
type Store struct {
	ids       []int64
	fps       [][2]uint64
	vecs      [][]float16.Float16
	idToIndex map[int64]int
}

// New creates an empty chaos store.
func New() *Store {
	return &Store{idToIndex: make(map[int64]int)}
}

// Add inserts or overwrites the chaos entry for id (idempotent on id, spec
// §4.4). vec is stored down-converted to half precision.
func (s *Store) Add(id int64, fp [2]uint64, vec []float32) {
	half := make([]float16.Float16, len(vec))
	for i, v := range vec {
		half[i] = float16.Fromfloat32(v)
	}
	if idx, ok := s.idToIndex[id]; ok {
		s.fps[idx] = fp
		s.vecs[idx] = half
		return
	}
	s.idToIndex[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.fps = append(s.fps, fp)
	s.vecs = append(s.vecs, half)
}

// Len reports how many entries the store holds.
func (s *Store) Len() int { return len(s.ids) }

// CandidateDistance is a single chaos-store entry surviving the coarse
// Hamming filter, spec §4.8 S8 step 2.
type CandidateDistance struct {
	ID       int64
	Distance int
}

// CoarseFilter scans the whole store for entries whose Hamming distance to
// queryFP128 is strictly less than maxDistance, spec §4.8 S8 step 2.
func (s *Store) CoarseFilter(queryFP128 [2]uint64, maxDistance int) []CandidateDistance {
	var out []CandidateDistance
	for i, fp := range s.fps {
		d := fingerprint.Hamming128(fp, queryFP128)
		if d < maxDistance {
			out = append(out, CandidateDistance{ID: s.ids[i], Distance: d})
		}
	}
	return out
}

// CosineSimilarity computes the cosine similarity between a float32 query
// vector and the half-precision vector stored for id, promoting the stored
// vector back to float32 first (spec §4.8 S8 step 4). Returns (0, false)
// if id isn't present or the dimensions mismatch.
func (s *Store) CosineSimilarity(id int64, query []float32) (float32, bool) {
	idx, ok := s.idToIndex[id]
	if !ok {
		return 0, false
	}
	stored := s.vecs[idx]
	if len(stored) != len(query) || len(query) == 0 {
		return 0, false
	}
	promoted := make([]float32, len(stored))
	for i, h := range stored {
		promoted[i] = h.Float32()
	}

	qv := blas32.Vector{N: len(query), Inc: 1, Data: query}
	sv := blas32.Vector{N: len(promoted), Inc: 1, Data: promoted}

	dot := blas32.Dot(qv, sv)
	qNorm := blas32.Nrm2(qv)
	sNorm := blas32.Nrm2(sv)
	if qNorm == 0 || sNorm == 0 {
		return 0, true
	}
	return dot / (qNorm * sNorm), true
}

// promote converts a half-precision slice back to float32.
func promote(vec []float16.Float16) []float32 {
	out := make([]float32, len(vec))
	for i, h := range vec {
		out[i] = h.Float32()
	}
	return out
}

// Vector returns the promoted float32 vector stored for id.
func (s *Store) Vector(id int64) ([]float32, bool) {
	idx, ok := s.idToIndex[id]
	if !ok {
		return nil, false
	}
	return promote(s.vecs[idx]), true
}
