// Package fingerprint implements the PEDSA multimodal fingerprint codec:
// the 64-bit partitioned fingerprint (semantic SimHash + temporal hash +
// emotion bitmap + entity type) and the 128-bit sign-quantized chaos
// fingerprint, plus masked Hamming similarity over the 64-bit layout.
package fingerprint

import (
	"math/bits"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Field masks over the 64-bit layout, little-endian bit order (bit 0 is the
// least significant bit of the uint64).
const (
	MaskSemantic uint64 = 0x00000000FFFFFFFF // bits [0,32)  — 32-bit SimHash
	MaskTemporal uint64 = 0x0000FFFF00000000 // bits [32,48) — 16-bit temporal hash
	MaskEmotion  uint64 = 0x00FF000000000000 // bits [48,56) — 8-bit emotion bitmap
	MaskType     uint64 = 0xFF00000000000000 // bits [56,64) — 8-bit entity type
)

// Entity type byte values (§3 Fingerprint layout).
const (
	TypeUnknown  uint8 = 0
	TypePerson   uint8 = 1
	TypeTech     uint8 = 2
	TypeEvent    uint8 = 3
	TypeLocation uint8 = 4
	TypeObject   uint8 = 5
	TypeValues   uint8 = 6
)

// Plutchik emotion bit positions (§3): joy, shy, fear, surprise, sadness,
// disgust, anger, anticipation.
const (
	EmotionJoy uint8 = iota
	EmotionShy
	EmotionFear
	EmotionSurprise
	EmotionSadness
	EmotionDisgust
	EmotionAnger
	EmotionAnticipation
)

const defaultTimestampAnchor uint64 = 1672531200 // extract_timestamp default anchor

// hashSeeded computes XXH64(data, seed). Seed 0 uses the one-shot Sum64
// (XXH64 with its reference-default seed); any other seed goes through a
// Digest created with NewWithSeed.
func hashSeeded(data []byte, seed uint64) uint64 {
	if seed == 0 {
		return xxhash.Sum64(data)
	}
	d := xxhash.NewWithSeed(seed)
	d.Write(data)
	return d.Sum64()
}

// ComputeTextHash32 produces the 32-bit semantic SimHash of text.
//
// Lowercases the input, then feeds every whitespace-split token AND,
// independently, every Unicode scalar of the lowercased text through
// XXHash64(seed=0), incrementing or decrementing 32 signed counters per the
// hash's low 32 bits. The double contribution (token-level and
// character-level) is deliberate: it is how CJK text, which carries no
// whitespace, still activates the semantic bits. Preserve it exactly.
func ComputeTextHash32(text string) uint32 {
	lower := strings.ToLower(text)
	var counters [32]int32

	accumulate := func(piece string) {
		h := hashSeeded([]byte(piece), 0)
		for i := 0; i < 32; i++ {
			if h&(1<<uint(i)) != 0 {
				counters[i]++
			} else {
				counters[i]--
			}
		}
	}

	for _, tok := range strings.Fields(lower) {
		accumulate(tok)
	}
	for _, r := range lower {
		accumulate(string(r))
	}

	var fp uint32
	for i := 0; i < 32; i++ {
		if counters[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// ComputeTemporalHash returns the 16-bit temporal hash of a unix-seconds
// timestamp: the low 16 bits of XXHash64(seed=12345) over the raw 8-byte
// little-endian timestamp. A zero timestamp means "no time" and always
// hashes to zero.
func ComputeTemporalHash(ts uint64) uint16 {
	if ts == 0 {
		return 0
	}
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(ts >> (8 * uint(i)))
	}
	h := hashSeeded(buf[:], 12345)
	return uint16(h & 0xFFFF)
}

// ComputeMultimodal packs the four fields into the 64-bit fingerprint via
// bitwise OR of the shifted, masked field encoders (P2: fields never bleed
// across mask boundaries).
func ComputeMultimodal(text string, ts uint64, emotionByte, typeByte uint8) uint64 {
	semantic := uint64(ComputeTextHash32(text))
	temporal := uint64(ComputeTemporalHash(ts)) << 32
	emotion := uint64(emotionByte) << 48
	etype := uint64(typeByte) << 56
	return (semantic & MaskSemantic) | (temporal & MaskTemporal) | (emotion & MaskEmotion) | (etype & MaskType)
}

// TemporalField extracts the 16-bit temporal field from a fingerprint.
func TemporalField(fp uint64) uint16 {
	return uint16((fp & MaskTemporal) >> 32)
}

// EmotionByte extracts the 8-bit emotion bitmap from a fingerprint.
func EmotionByte(fp uint64) uint8 {
	return uint8((fp & MaskEmotion) >> 48)
}

// EntityTypeByte extracts the 8-bit entity type from a fingerprint.
func EntityTypeByte(fp uint64) uint8 {
	return uint8((fp & MaskType) >> 56)
}

// SimilarityWeighted computes 1 - popcount((a XOR b) & mask) / popcount(mask),
// returning 0 when mask is zero (P1: similarity of a value to itself under a
// non-empty mask is always 1).
func SimilarityWeighted(a, b, mask uint64) float32 {
	total := bits.OnesCount64(mask)
	if total == 0 {
		return 0
	}
	diff := bits.OnesCount64((a ^ b) & mask)
	return 1 - float32(diff)/float32(total)
}

// QuantizeVector128 sign-quantizes the first 128 entries of vec into a
// 128-bit chaos fingerprint: bit i is set iff dimension i is > 0. Returned
// as two little-endian halves, [0] holding bits [0,64) and [1] holding bits
// [64,128).
func QuantizeVector128(vec []float32) [2]uint64 {
	var out [2]uint64
	n := len(vec)
	if n > 128 {
		n = 128
	}
	for i := 0; i < n; i++ {
		if vec[i] > 0 {
			word := i / 64
			bit := uint(i % 64)
			out[word] |= 1 << bit
		}
	}
	return out
}

// Hamming128 returns the Hamming distance between two 128-bit fingerprints.
func Hamming128(a, b [2]uint64) int {
	return bits.OnesCount64(a[0]^b[0]) + bits.OnesCount64(a[1]^b[1])
}

// DefaultTimestampAnchor is the fallback timestamp extract_timestamp returns
// on any parse failure, and the fallback "now" used by the Ebbinghaus decay
// step when the caller supplies no ref_time.
func DefaultTimestampAnchor() uint64 { return defaultTimestampAnchor }
