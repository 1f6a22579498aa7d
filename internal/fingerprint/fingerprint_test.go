package fingerprint

import "testing"

func TestSimilarityWeightedSelf(t *testing.T) {
	masks := []uint64{MaskSemantic, MaskTemporal, MaskEmotion, MaskType, ^uint64(0)}
	fp := ComputeMultimodal("hello world", 1700000000, 0x03, TypeTech)
	for _, m := range masks {
		if got := SimilarityWeighted(fp, fp, m); got != 1 {
			t.Errorf("SimilarityWeighted(a,a,%x) = %v, want 1", m, got)
		}
	}
}

func TestSimilarityWeightedZeroMask(t *testing.T) {
	if got := SimilarityWeighted(1, 2, 0); got != 0 {
		t.Errorf("SimilarityWeighted with zero mask = %v, want 0", got)
	}
}

func TestComputeMultimodalFieldsDoNotBleed(t *testing.T) {
	text := "rust programming language"
	ts := uint64(1700000000)
	emotion := uint8(0x05)
	etype := TypePerson

	fp := ComputeMultimodal(text, ts, emotion, etype)

	wantSemantic := uint64(ComputeTextHash32(text))
	wantTemporal := uint64(ComputeTemporalHash(ts)) << 32
	wantEmotion := uint64(emotion) << 48
	wantType := uint64(etype) << 56

	if fp&MaskSemantic != wantSemantic {
		t.Errorf("semantic field mismatch: got %x want %x", fp&MaskSemantic, wantSemantic)
	}
	if fp&MaskTemporal != wantTemporal {
		t.Errorf("temporal field mismatch: got %x want %x", fp&MaskTemporal, wantTemporal)
	}
	if fp&MaskEmotion != wantEmotion {
		t.Errorf("emotion field mismatch: got %x want %x", fp&MaskEmotion, wantEmotion)
	}
	if fp&MaskType != wantType {
		t.Errorf("type field mismatch: got %x want %x", fp&MaskType, wantType)
	}

	// Also bitwise-equal to the OR of the independently-shifted fields (P2).
	want := (wantSemantic & MaskSemantic) | (wantTemporal & MaskTemporal) | (wantEmotion & MaskEmotion) | (wantType & MaskType)
	if fp != want {
		t.Errorf("ComputeMultimodal = %x, want %x", fp, want)
	}
}

func TestComputeTemporalHashZero(t *testing.T) {
	if got := ComputeTemporalHash(0); got != 0 {
		t.Errorf("ComputeTemporalHash(0) = %v, want 0", got)
	}
}

func TestComputeTextHash32CJKContributes(t *testing.T) {
	// CJK text has no whitespace tokens; the per-rune pass must still
	// produce a non-trivial fingerprint.
	fp := ComputeTextHash32("人工智能改变世界")
	if fp == 0 {
		t.Errorf("expected non-zero fingerprint for CJK text")
	}
}

func TestQuantizeVector128(t *testing.T) {
	vec := make([]float32, 130)
	vec[0] = 1
	vec[63] = 1
	vec[64] = 1
	vec[127] = 1
	vec[128] = 1 // out of range, ignored
	got := QuantizeVector128(vec)
	if got[0] != (1<<0)|(1<<63) {
		t.Errorf("low word = %x", got[0])
	}
	if got[1] != (1<<0)|(1<<63) {
		t.Errorf("high word = %x", got[1])
	}
}

func TestHamming128(t *testing.T) {
	a := [2]uint64{0, 0}
	b := [2]uint64{1, 1}
	if d := Hamming128(a, b); d != 2 {
		t.Errorf("Hamming128 = %d, want 2", d)
	}
}

func TestComputeForQueryRelativeTime(t *testing.T) {
	refTime := int64(1750000000)
	fp := ComputeForQuery("what did we do yesterday", refTime)
	got := TemporalField(fp)
	want := ComputeTemporalHash(uint64(refTime - 86400))
	if got != want {
		t.Errorf("temporal field = %v, want %v", got, want)
	}
}

func TestComputeForQueryAbsoluteYearFallback(t *testing.T) {
	fp := ComputeForQuery("something from 2025", 0)
	got := TemporalField(fp)
	want := ComputeTemporalHash(1735689600)
	if got != want {
		t.Errorf("temporal field = %v, want %v", got, want)
	}
}

func TestComputeForQueryEmotionJoy(t *testing.T) {
	fp := ComputeForQuery("I am so happy about this new job", 0)
	if EmotionByte(fp)&(1<<EmotionJoy) == 0 {
		t.Errorf("expected joy bit set")
	}
}

func TestExtractTimestampParsesDate(t *testing.T) {
	got := ExtractTimestamp("2025年06月15日 meeting notes")
	want := uint64((2025-1970)*31536000 + 6*2592000 + 15*86400)
	if got != want {
		t.Errorf("ExtractTimestamp = %d, want %d", got, want)
	}
}

func TestExtractTimestampDefaultsOnFailure(t *testing.T) {
	got := ExtractTimestamp("no date here at all")
	if got != defaultTimestampAnchor {
		t.Errorf("ExtractTimestamp = %d, want default anchor %d", got, defaultTimestampAnchor)
	}
}

func TestExtractTimestampDefaultDay(t *testing.T) {
	got := ExtractTimestamp("2024年03月 planning")
	want := uint64((2024-1970)*31536000 + 3*2592000 + 1*86400)
	if got != want {
		t.Errorf("ExtractTimestamp = %d, want %d", got, want)
	}
}
