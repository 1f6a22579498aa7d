// Package embedmodel implements the PEDSA static word-embedding model: the
// .pedsa_vec binary loader and span-weighted, character-fallback
// vectorization described in spec §4.2.
package embedmodel

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"unicode/utf8"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/vthunder/pedsa/internal/pedsalog"
)

var magic = [10]byte{'P', 'E', 'D', 'S', 'A', '_', 'V', 'E', 'C', 0x00}

// ErrInvalidFormat is returned when a .pedsa_vec stream fails the magic
// check or is truncated (spec §7 InvalidFormat).
var ErrInvalidFormat = errors.New("embedmodel: invalid data")

// Model is a word -> vector lookup table, loaded once and shared read-only
// thereafter (spec §5 "the embedding model is read-only after load").
type Model struct {
	Dimension int
	Vocab     map[string][]float32
}

// New creates an empty model of the given dimension, mirroring the
// original's StaticModel::new used to build fixtures and converted models.
func New(dimension int) *Model {
	return &Model{Dimension: dimension, Vocab: make(map[string][]float32)}
}

// Load reads a .pedsa_vec model from disk.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(bufio.NewReader(f))
}

// LoadFromBytes reads a .pedsa_vec model from an in-memory buffer (the host
// binding's entry point — spec §6 load_model_from_bytes).
func LoadFromBytes(data []byte) (*Model, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromReader implements the common header+entry decode loop.
func LoadFromReader(r io.Reader) (*Model, error) {
	var gotMagic [10]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, ErrInvalidFormat
	}
	if gotMagic != magic {
		return nil, ErrInvalidFormat
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrInvalidFormat
	}
	// Any version is accepted (spec §4.2).

	var dimension16 uint16
	if err := binary.Read(r, binary.LittleEndian, &dimension16); err != nil {
		return nil, ErrInvalidFormat
	}
	dimension := int(dimension16)

	var vocabSize uint32
	if err := binary.Read(r, binary.LittleEndian, &vocabSize); err != nil {
		return nil, ErrInvalidFormat
	}

	m := New(dimension)
	vecBuf := make([]byte, dimension*4)

	for i := uint32(0); i < vocabSize; i++ {
		var wordLen uint8
		if err := binary.Read(r, binary.LittleEndian, &wordLen); err != nil {
			return nil, ErrInvalidFormat
		}
		wordBuf := make([]byte, wordLen)
		if _, err := io.ReadFull(r, wordBuf); err != nil {
			return nil, ErrInvalidFormat
		}
		if !utf8.Valid(wordBuf) {
			return nil, ErrInvalidFormat
		}
		word := string(wordBuf)

		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return nil, ErrInvalidFormat
		}
		vec := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			bits := binary.LittleEndian.Uint32(vecBuf[j*4 : j*4+4])
			vec[j] = math.Float32frombits(bits)
		}
		m.Vocab[word] = vec
	}

	return m, nil
}

// Save writes the model back out in .pedsa_vec format, used to build test
// fixtures and model conversions (supplemented from the original's
// StaticModel::save, §D.1 of SPEC_FULL.md). Words longer than 255 bytes are
// silently skipped (spec §7 LengthOverflow) rather than erroring.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(m.Dimension)); err != nil {
		return err
	}

	entries := make(map[string][]float32, len(m.Vocab))
	for word, vec := range m.Vocab {
		if len(word) > 255 {
			pedsalog.Warn("embedmodel", "skipping word over 255 bytes on save: %q", pedsalog.Truncate(word, 32))
			continue
		}
		entries[word] = vec
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for word, vec := range entries {
		if err := w.WriteByte(byte(len(word))); err != nil {
			return err
		}
		if _, err := w.WriteString(word); err != nil {
			return err
		}
		for _, v := range vec {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// WeightedRange is a byte-offset span of the original text carrying an
// extra vectorization weight (spec §4.2: feature-keyword matches are
// weighted 5.0 when add_event builds a chaos vector).
type WeightedRange struct {
	Start, End int
	Weight     float32
}

// Vectorize is VectorizeWeighted with no extra-weighted ranges.
func (m *Model) Vectorize(text string) ([]float32, bool) {
	return m.VectorizeWeighted(text, nil)
}

// VectorizeWeighted splits text on whitespace, looks up each token in the
// vocabulary (falling back to per-rune lookup when the whole token misses),
// and returns the weighted mean of the hits. The weight for a token (or,
// in the fallback, a single rune) is the max weight of any WeightedRange
// overlapping its original byte span; ranges default the weight to 1.0.
func (m *Model) VectorizeWeighted(text string, ranges []WeightedRange) ([]float32, bool) {
	acc := make([]float32, m.Dimension)
	var totalWeight float32

	add := func(vec []float32, w float32) {
		for i, v := range vec {
			if i >= len(acc) {
				break
			}
			acc[i] += v * w
		}
		totalWeight += w
	}

	weightFor := func(start, end int) float32 {
		w := float32(1.0)
		for _, r := range ranges {
			if start < r.End && end > r.Start && r.Weight > w {
				w = r.Weight
			}
		}
		return w
	}

	for _, span := range splitWhitespaceSpans(text) {
		token := text[span.start:span.end]
		tokenWeight := weightFor(span.start, span.end)

		if vec, ok := m.Vocab[token]; ok {
			add(vec, tokenWeight)
			continue
		}

		// Character-level fallback.
		for idx := 0; idx < len(token); {
			r, size := utf8.DecodeRuneInString(token[idx:])
			charStart := span.start + idx
			charEnd := charStart + size
			charWeight := weightFor(charStart, charEnd)
			if vec, ok := m.Vocab[string(r)]; ok {
				add(vec, charWeight)
			}
			idx += size
		}
	}

	if totalWeight == 0 {
		return nil, false
	}
	for i := range acc {
		acc[i] /= totalWeight
	}
	return acc, true
}

type span struct{ start, end int }

// splitWhitespaceSpans mimics Rust's str::split_whitespace() but also
// returns each token's original byte offsets, needed to evaluate the
// weighted ranges against the caller's text.
func splitWhitespaceSpans(text string) []span {
	var spans []span
	i := 0
	n := len(text)
	for i < n {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isSpace(r) {
			break
		}
		i += size
	}
	for i < n {
		start := i
		for i < n {
			r, size := utf8.DecodeRuneInString(text[i:])
			if isSpace(r) {
				break
			}
			i += size
		}
		spans = append(spans, span{start, i})
		for i < n {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !isSpace(r) {
				break
			}
			i += size
		}
	}
	return spans
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return r == 0x85 || r == 0xA0 || (r >= 0x2000 && r <= 0x200a)
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors via gonum's blas32 Dot/Nrm2, returning 0 for mismatched lengths or
// zero-norm vectors (kept as a standalone exported helper per the
// original's StaticModel::cosine_similarity, §D.2 of SPEC_FULL.md).
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	va := blas32.Vector{N: len(a), Inc: 1, Data: a}
	vb := blas32.Vector{N: len(b), Inc: 1, Data: b}
	dot := blas32.Dot(va, vb)
	normA := blas32.Nrm2(va)
	normB := blas32.Nrm2(vb)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}

