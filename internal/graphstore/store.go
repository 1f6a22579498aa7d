package graphstore

import (
	"strings"

	"github.com/vthunder/pedsa/internal/fingerprint"
	"github.com/vthunder/pedsa/internal/pedsalog"
)

// StopwordRejected is the sentinel node id returned by feature resolution
// when a word is a stopword (spec §7 StopwordRejected). Callers should skip
// edge creation when they see it.
const StopwordRejected int64 = -1

// Store owns both graph layers, the node table, and the derived indexes. It
// is not safe for concurrent use — the engine façade (internal/engine)
// serializes all access per spec §5.
type Store struct {
	nodes map[int64]*Node

	keywordToNode map[string]int64 // Feature keyword -> node id

	memoryEdges   map[int64]map[int64]*GraphEdge
	ontologyEdges map[int64]map[int64]*GraphEdge

	temporalIndex  map[uint16][]int64
	affectiveIndex map[uint8][]int64
	inDegrees      map[int64]uint32

	matcher *Matcher

	nextAutoFeatureID int64 // decrements from -2 for get-or-create Feature nodes
}

// New creates an empty store.
func New() *Store {
	return &Store{
		nodes:             make(map[int64]*Node),
		keywordToNode:     make(map[string]int64),
		memoryEdges:       make(map[int64]map[int64]*GraphEdge),
		ontologyEdges:     make(map[int64]map[int64]*GraphEdge),
		temporalIndex:     make(map[uint16][]int64),
		affectiveIndex:    make(map[uint8][]int64),
		inDegrees:         make(map[int64]uint32),
		matcher:           NewMatcher(nil),
		nextAutoFeatureID: -2,
	}
}

// Node returns the node with the given id, or nil.
func (s *Store) Node(id int64) *Node { return s.nodes[id] }

// NodeCount returns the number of nodes of any kind.
func (s *Store) NodeCount() int { return len(s.nodes) }

// KeywordToNode exposes the keyword index, read-only, for the engine's
// arbitration helpers.
func (s *Store) KeywordToNode() map[string]int64 { return s.keywordToNode }

// InDegree returns the in-degree of id across both graphs (0 if unknown,
// which callers treat via max(1, in_degree) per spec §4.8).
func (s *Store) InDegree(id int64) uint32 { return s.inDegrees[id] }

// AddFeature registers a Feature node with the given id and keyword.
// Lowercases the keyword and rejects stopwords as a silent no-op, spec
// §4.5. Duplicate keywords overwrite the prior node at that keyword.
func (s *Store) AddFeature(id int64, keyword string) {
	lower := strings.ToLower(keyword)
	if IsStopword(lower) {
		pedsalog.Debug("graphstore", "add_feature rejected stopword %q", lower)
		return
	}
	fp := fingerprint.ComputeMultimodal(lower, 0, 0, 0)
	s.nodes[id] = &Node{ID: id, Kind: KindFeature, Content: lower, Fingerprint: fp}
	s.keywordToNode[lower] = id
}

// getOrCreateFeature resolves word to a Feature node id, creating one with
// an internally-allocated id if it doesn't exist yet. Returns
// StopwordRejected for blocked words.
func (s *Store) getOrCreateFeature(word string) int64 {
	lower := strings.ToLower(word)
	if IsStopword(lower) {
		return StopwordRejected
	}
	if id, ok := s.keywordToNode[lower]; ok {
		return id
	}
	id := s.nextAutoFeatureID
	s.nextAutoFeatureID--
	fp := fingerprint.ComputeMultimodal(lower, 0, 0, 0)
	s.nodes[id] = &Node{ID: id, Kind: KindFeature, Content: lower, Fingerprint: fp}
	s.keywordToNode[lower] = id
	return id
}

// AddEvent stores an Event node. ts is extract_timestamp(summary); deriving
// a chaos fingerprint/vector from the summary is the engine façade's job,
// since that step needs the feature matcher and the embedding model, both
// owned by the façade rather than the store.
func (s *Store) AddEvent(id int64, summary string, ts uint64) *Node {
	fp := fingerprint.ComputeMultimodal(summary, ts, 0, 0)
	n := &Node{ID: id, Kind: KindEvent, Content: summary, Fingerprint: fp, Timestamp: ts}
	s.nodes[id] = n
	s.indexEvent(n)
	return n
}

// indexEvent incrementally updates temporal_index/affective_index for a
// single newly-added event. Per spec §4.5 step 5 this is permitted, but
// compile() remains the source of truth and must be re-run to avoid the
// transient double-count window documented in spec §9 Open Question (b).
func (s *Store) indexEvent(n *Node) {
	field := fingerprint.TemporalField(n.Fingerprint)
	if field != 0 {
		s.temporalIndex[field] = append(s.temporalIndex[field], n.ID)
	}
	emotion := fingerprint.EmotionByte(n.Fingerprint)
	for bit := uint8(0); bit < 8; bit++ {
		if emotion&(1<<bit) != 0 {
			s.affectiveIndex[bit] = append(s.affectiveIndex[bit], n.ID)
		}
	}
}

// AddEdge inserts or reinforces a memory-graph edge (spec §4.5 add_edge):
// quantized, clamped weight; existing edge strength becomes
// max(old, new); new edges default to EdgeRepresentation.
func (s *Store) AddEdge(src, tgt int64, weight float64) {
	if _, ok := s.nodes[src]; !ok {
		return
	}
	if _, ok := s.nodes[tgt]; !ok {
		return
	}
	new := QuantizeStrength(weight)
	bySrc, ok := s.memoryEdges[src]
	if !ok {
		bySrc = make(map[int64]*GraphEdge)
		s.memoryEdges[src] = bySrc
	}
	if e, ok := bySrc[tgt]; ok {
		e.Strength = maxU16(e.Strength, new)
		return
	}
	bySrc[tgt] = &GraphEdge{TargetID: tgt, Strength: new, Type: EdgeRepresentation}
}

// MemoryOutEdges returns the outgoing memory-graph edges from id.
func (s *Store) MemoryOutEdges(id int64) []GraphEdge {
	return snapshotEdges(s.memoryEdges[id])
}

// OntologyOutEdges returns the outgoing ontology-graph edges from id.
func (s *Store) OntologyOutEdges(id int64) []GraphEdge {
	return snapshotEdges(s.ontologyEdges[id])
}

func snapshotEdges(m map[int64]*GraphEdge) []GraphEdge {
	if len(m) == 0 {
		return nil
	}
	out := make([]GraphEdge, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	return out
}

// AddOntologyEdge resolves or creates Feature nodes for srcWord/tgtWord and
// inserts or reinforces an ontology edge between them, per spec §4.5.
// Equality takes precedence over inhibition over representation. Returns
// false as a no-op signal when either word is a stopword.
func (s *Store) AddOntologyEdge(srcWord, tgtWord string, weight float64, isEquality, isInhibition bool) bool {
	if IsStopword(strings.ToLower(srcWord)) || IsStopword(strings.ToLower(tgtWord)) {
		return false
	}
	src := s.getOrCreateFeature(srcWord)
	tgt := s.getOrCreateFeature(tgtWord)

	edgeType := EdgeRepresentation
	switch {
	case isEquality:
		edgeType = EdgeEquality
	case isInhibition:
		edgeType = EdgeInhibition
	}

	newStrength := QuantizeStrength(weight)
	s.reinforceOntologyEdge(src, tgt, edgeType, newStrength)

	if edgeType == EdgeEquality || edgeType == EdgeInhibition {
		s.reinforceOntologyEdge(tgt, src, edgeType, newStrength)
	}
	return true
}

// reinforceOntologyEdge applies the Hebbian reinforcement rule:
// strength <- max(strength + new/2, new), saturating.
func (s *Store) reinforceOntologyEdge(src, tgt int64, edgeType EdgeType, new uint16) {
	bySrc, ok := s.ontologyEdges[src]
	if !ok {
		bySrc = make(map[int64]*GraphEdge)
		s.ontologyEdges[src] = bySrc
	}
	e, ok := bySrc[tgt]
	if !ok {
		bySrc[tgt] = &GraphEdge{TargetID: tgt, Strength: new, Type: edgeType}
		return
	}
	half := new / 2
	reinforced := SaturatingAddU16(e.Strength, half)
	e.Strength = maxU16(reinforced, new)
	e.Type = edgeType
}

// MaintainOntology is the string-tagged wrapper around AddOntologyEdge used
// by the maintenance dispatch (spec §4.5, §4.9).
func (s *Store) MaintainOntology(source, target, relation string, strength float64) bool {
	isEquality := relation == "equality" || relation == "equal"
	isInhibition := relation == "inhibition" || relation == "conflict"
	return s.AddOntologyEdge(source, target, strength, isEquality, isInhibition)
}
