package fingerprint

import (
	_ "embed"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed triggers.yaml
var triggersYAML []byte

// triggerTable is the contract table of relative-time, absolute-year,
// emotion and entity-type trigger words. It is loaded once at package init
// from an embedded YAML asset (the teacher's internal/reflex/engine.go loads
// its rule tables the same way, via gopkg.in/yaml.v3) and never mutated
// afterward — a compile-time constant in spirit, §5.
type triggerTable struct {
	RelativeTime []relativeTimeRule  `yaml:"relative_time"`
	AbsoluteYear map[string]int64    `yaml:"absolute_year"`
	Emotion      map[string][]string `yaml:"emotion"`
	EntityType   map[string][]string `yaml:"entity_type"`
}

type relativeTimeRule struct {
	Name    string   `yaml:"name"`
	Words   []string `yaml:"words"`
	OffsetS int64    `yaml:"offset_seconds"` // added to ref_time; may be negative
	AtRef   bool     `yaml:"at_ref"`         // true => result is exactly ref_time (today/now/morning)
}

var triggers triggerTable

var emotionBits = map[string]uint8{
	"joy":          EmotionJoy,
	"shy":          EmotionShy,
	"fear":         EmotionFear,
	"surprise":     EmotionSurprise,
	"sadness":      EmotionSadness,
	"disgust":      EmotionDisgust,
	"anger":        EmotionAnger,
	"anticipation": EmotionAnticipation,
}

var entityTypeBytes = map[string]uint8{
	"person":   TypePerson,
	"tech":     TypeTech,
	"event":    TypeEvent,
	"location": TypeLocation,
	"object":   TypeObject,
	"values":   TypeValues,
}

func init() {
	if err := yaml.Unmarshal(triggersYAML, &triggers); err != nil {
		panic("fingerprint: invalid embedded triggers.yaml: " + err.Error())
	}
}

// ComputeForQuery derives (timestamp, emotion byte, entity-type byte) from
// the lowercased query by substring trigger match, then calls
// ComputeMultimodal on the lowercased query.
func ComputeForQuery(query string, refTime int64) uint64 {
	lower := strings.ToLower(query)
	ts := deriveQueryTimestamp(lower, refTime)
	emotion := deriveEmotionByte(lower)
	etype := deriveEntityTypeByte(lower)
	return ComputeMultimodal(lower, ts, emotion, etype)
}

func saturateZero(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func deriveQueryTimestamp(lower string, refTime int64) uint64 {
	if refTime > 0 {
		for _, rule := range triggers.RelativeTime {
			for _, w := range rule.Words {
				if strings.Contains(lower, w) {
					if rule.AtRef {
						return saturateZero(refTime)
					}
					return saturateZero(refTime + rule.OffsetS)
				}
			}
		}
	}
	// Absolute year fallback, only when no relative match applied.
	for literal, ts := range triggers.AbsoluteYear {
		if strings.Contains(lower, literal) {
			return saturateZero(ts)
		}
	}
	return 0
}

func deriveEmotionByte(lower string) uint8 {
	var out uint8
	for name, words := range triggers.Emotion {
		bit, ok := emotionBits[name]
		if !ok {
			continue
		}
		for _, w := range words {
			if strings.Contains(lower, w) {
				out |= 1 << bit
				break
			}
		}
	}
	return out
}

func deriveEntityTypeByte(lower string) uint8 {
	for name, words := range triggers.EntityType {
		b, ok := entityTypeBytes[name]
		if !ok {
			continue
		}
		for _, w := range words {
			if strings.Contains(lower, w) {
				return b
			}
		}
	}
	return TypeUnknown
}

// ExtractTimestamp scans text for the CJK "年" marker and parses a
// "YYYY年MM月[DD日]" date using the lossy 365-day-year/30-day-month
// arithmetic specified in §4.7. On any parse failure it returns the fixed
// default anchor.
func ExtractTimestamp(text string) uint64 {
	const (
		nian = "年" // U+5E74, 3 UTF-8 bytes
		yue  = "月" // U+6708, 3 UTF-8 bytes
		ri   = "日" // U+65E5, 3 UTF-8 bytes
	)
	b := []byte(text)
	searchFrom := 0
	for {
		idx := indexFrom(b, nian, searchFrom)
		if idx < 0 {
			break
		}
		if ts, ok := tryParseDate(b, idx, nian, yue, ri); ok {
			return ts
		}
		searchFrom = idx + len(nian)
	}
	return defaultTimestampAnchor
}

func indexFrom(b []byte, sub string, from int) int {
	if from >= len(b) {
		return -1
	}
	i := strings.Index(string(b[from:]), sub)
	if i < 0 {
		return -1
	}
	return from + i
}

func tryParseDate(b []byte, nianIdx int, nian, yue, ri string) (uint64, bool) {
	if nianIdx < 4 {
		return 0, false
	}
	yearBytes := b[nianIdx-4 : nianIdx]
	year, err := strconv.Atoi(strings.TrimSpace(string(yearBytes)))
	if err != nil {
		return 0, false
	}
	afterYear := nianIdx + len(nian)

	window := afterYear + 5
	if window > len(b) {
		window = len(b)
	}
	yueIdx := indexFrom(b, yue, afterYear)
	if yueIdx < 0 || yueIdx > window {
		return 0, false
	}
	monthStr := strings.TrimSpace(string(b[afterYear:yueIdx]))
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return 0, false
	}

	afterMonth := yueIdx + len(yue)
	day := 1
	dayWindow := afterMonth + 5
	if dayWindow > len(b) {
		dayWindow = len(b)
	}
	if riIdx := indexFrom(b, ri, afterMonth); riIdx >= 0 && riIdx <= dayWindow {
		dayStr := strings.TrimSpace(string(b[afterMonth:riIdx]))
		if d, err := strconv.Atoi(dayStr); err == nil {
			day = d
		}
	}

	ts := int64(year-1970)*31536000 + int64(month)*2592000 + int64(day)*86400
	if ts < 0 {
		return 0, false
	}
	return uint64(ts), true
}
