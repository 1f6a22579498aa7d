package graphstore

import (
	"fmt"
	"math"
	"sort"
)

// defaultPruneThresholdRatio is 5% of the u16 strength range, spec §4.9
// prune_ontology's documented default threshold.
const defaultPruneThresholdRatio = 0.05

// defaultDecayRate is the LTD-style multiplicative decay applied per
// maintenance pass, spec §4.9.
const defaultDecayRate = 0.99

// maxOntologyOutDegree bounds how many outgoing ontology edges per source
// survive a prune pass, keeping the top-strength subset (spec §4.9).
const maxOntologyOutDegree = 100

// ApplyGlobalDecayAndPruning multiplies every ontology-edge strength by
// decayRate (floor'd) and drops any edge at or below threshold. Only the
// ontology graph decays — the memory graph is driven purely by
// reinforcement (spec §4.9). Returns the number of edges removed.
func (s *Store) ApplyGlobalDecayAndPruning(decayRate float64, threshold uint16) int {
	removed := 0
	for src, edges := range s.ontologyEdges {
		for tgt, e := range edges {
			decayed := uint16(math.Floor(float64(e.Strength) * decayRate))
			if decayed <= threshold {
				delete(edges, tgt)
				removed++
				continue
			}
			e.Strength = decayed
		}
		if len(edges) == 0 {
			delete(s.ontologyEdges, src)
		}
	}
	return removed
}

// PruneOntology runs the default decay-and-threshold pass, then caps each
// node's outgoing ontology fan-out at the top maxOntologyOutDegree edges by
// strength (spec §4.9 prune_ontology).
func (s *Store) PruneOntology() int {
	threshold := uint16(math.Round(defaultPruneThresholdRatio * 65535))
	removed := s.ApplyGlobalDecayAndPruning(defaultDecayRate, threshold)

	for src, edges := range s.ontologyEdges {
		if len(edges) <= maxOntologyOutDegree {
			continue
		}
		type kv struct {
			tgt int64
			e   *GraphEdge
		}
		all := make([]kv, 0, len(edges))
		for tgt, e := range edges {
			all = append(all, kv{tgt, e})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].e.Strength > all[j].e.Strength })
		for _, dropped := range all[maxOntologyOutDegree:] {
			delete(edges, dropped.tgt)
			removed++
		}
	}
	return removed
}

// ArbitrationCandidate is a single "source -> target" ontology-edge line
// produced by TriggerArbitration (spec §4.9's LLM-maintenance-policy
// trigger surface).
type ArbitrationCandidate struct {
	Source   string
	Target   string
	Strength float64 // normalized [0,1]
}

// Formatted renders the candidate the way the spec's arbitration log lines
// are documented: "<source> -> <target> (Strength: 0.xx)".
func (c ArbitrationCandidate) Formatted() string {
	return fmt.Sprintf("%s -> %s (Strength: %.2f)", c.Source, c.Target, c.Strength)
}

// TriggerArbitration lists every ontology edge whose source Feature's
// content matches sourceWord, formatted for hand-off to an external
// maintenance policy (spec §1 Non-goals: the policy itself — an LLM or a
// human — lives outside the engine; this only prepares the candidate set).
func (s *Store) TriggerArbitration(sourceWord string) []ArbitrationCandidate {
	srcID, ok := s.keywordToNode[sourceWord]
	if !ok {
		return nil
	}
	edges := s.ontologyEdges[srcID]
	if len(edges) == 0 {
		return nil
	}
	out := make([]ArbitrationCandidate, 0, len(edges))
	for tgt, e := range edges {
		tgtNode := s.nodes[tgt]
		if tgtNode == nil {
			continue
		}
		out = append(out, ArbitrationCandidate{
			Source:   sourceWord,
			Target:   tgtNode.Content,
			Strength: float64(e.Strength) / 65535.0,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// ApplyArbitration deletes the ontology edges from sourceWord to each word
// in deleteTargets — the effect of an accepted arbitration decision made
// outside the engine (spec §4.9).
func (s *Store) ApplyArbitration(sourceWord string, deleteTargets []string) int {
	srcID, ok := s.keywordToNode[sourceWord]
	if !ok {
		return 0
	}
	edges := s.ontologyEdges[srcID]
	if edges == nil {
		return 0
	}
	removed := 0
	for _, word := range deleteTargets {
		tgtID, ok := s.keywordToNode[word]
		if !ok {
			continue
		}
		if _, exists := edges[tgtID]; exists {
			delete(edges, tgtID)
			removed++
		}
	}
	return removed
}
