package graphstore

import (
	"sort"

	"github.com/vthunder/pedsa/internal/fingerprint"
)

// Compile rebuilds every derived index from scratch: the feature matcher,
// in-degree counts across both graphs, and the temporal/affective indexes
// over Event nodes. Spec §4.6 compile — callers run this after a batch of
// mutations rather than relying solely on the incremental updates AddEvent
// performs, closing the double-count window noted in spec §9.
func (s *Store) Compile() {
	s.rebuildMatcher()
	s.rebuildInDegrees()
	s.rebuildTemporalAndAffective()
}

func (s *Store) rebuildMatcher() {
	entries := make(map[string]int64, len(s.keywordToNode))
	for kw, id := range s.keywordToNode {
		entries[kw] = id
	}
	s.matcher = NewMatcher(entries)
}

func (s *Store) rebuildInDegrees() {
	degrees := make(map[int64]uint32, len(s.nodes))
	count := func(m map[int64]map[int64]*GraphEdge) {
		for _, edges := range m {
			for tgt := range edges {
				degrees[tgt]++
			}
		}
	}
	count(s.memoryEdges)
	count(s.ontologyEdges)
	s.inDegrees = degrees
}

func (s *Store) rebuildTemporalAndAffective() {
	temporal := make(map[uint16][]int64)
	affective := make(map[uint8][]int64)
	for _, n := range s.nodes {
		if n.Kind != KindEvent {
			continue
		}
		field := fingerprint.TemporalField(n.Fingerprint)
		if field != 0 {
			temporal[field] = append(temporal[field], n.ID)
		}
		emotion := fingerprint.EmotionByte(n.Fingerprint)
		for bit := uint8(0); bit < 8; bit++ {
			if emotion&(1<<bit) != 0 {
				affective[bit] = append(affective[bit], n.ID)
			}
		}
	}
	s.temporalIndex = temporal
	s.affectiveIndex = affective
}

// BuildTemporalBackbone links every Event node's PrevEvent/NextEvent
// pointers by sorting on (timestamp, id), spec §4.6.
func (s *Store) BuildTemporalBackbone() {
	var events []*Node
	for _, n := range s.nodes {
		if n.Kind == KindEvent {
			events = append(events, n)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].ID < events[j].ID
	})
	for i, n := range events {
		n.PrevEvent = nil
		n.NextEvent = nil
		if i > 0 {
			id := events[i-1].ID
			n.PrevEvent = &id
		}
		if i < len(events)-1 {
			id := events[i+1].ID
			n.NextEvent = &id
		}
	}
}

// TemporalBucket returns the ids of every Event sharing the given temporal
// hash field.
func (s *Store) TemporalBucket(field uint16) []int64 { return s.temporalIndex[field] }

// AffectiveBucket returns the ids of every Event whose emotion byte has the
// given Plutchik bit set.
func (s *Store) AffectiveBucket(bit uint8) []int64 { return s.affectiveIndex[bit] }

// MatchFeatures runs the compiled matcher over text.
func (s *Store) MatchFeatures(text string) []Match {
	return s.matcher.FindIter(text)
}

// AllNodes returns every node, for callers (such as the engine's Export
// persistence hook) that need a full snapshot.
func (s *Store) AllNodes() []*Node {
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}
