// Package retrieval implements the 8-stage PEDSA retrieval pipeline (spec
// §4.8): feature match, temporal/affective index recall, one-hop ontology
// spread, energy normalization, lateral-inhibited memory spread, event
// projection with Ebbinghaus decay, and an optional chaos-vector blend.
// Modeled on the teacher's internal/activation spreading-activation pass,
// generalized from its single-graph BFS to PEDSA's two-graph, multi-signal
// accumulator.
package retrieval

import (
	"math"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/vthunder/pedsa/internal/chaosstore"
	"github.com/vthunder/pedsa/internal/embedmodel"
	"github.com/vthunder/pedsa/internal/fingerprint"
	"github.com/vthunder/pedsa/internal/graphstore"
)

const (
	activationCapTotal   = 10.0
	memorySpreadSeedCap  = 5000
	ontologySpreadDecay  = 0.95
	ontologyDropFloor    = 0.05
	memorySpreadDecay    = 0.85
	memorySpreadDropMin  = 0.01
	eventProjectionTopN  = 50
	semanticBoostWeight  = 0.6
	temporalBoostWeight  = 0.5
	emotionBoostWeight   = 0.6
	entityTypeBoostWeight = 0.8
	ebbinghausFloor      = 0.8
	ebbinghausHalfLifeS  = 31536000.0
	defaultRefTimeFallback = 1777593600
	chaosCoarseMaxDist   = 64
	chaosCoarseKeep      = 5000
	chaosSimThreshold    = 0.95
	chaosSimRange        = 0.05
	chaosScoreScale      = 0.15
)

// Scored is a single (event_id, score) result, spec §4.8 output contract.
type Scored struct {
	ID    int64
	Score float32
}

// queryCache memoizes compute_for_query by (query, ref_time) using a
// blake3 digest as the key, grounded on the teacher's internal/graph
// episode-id hashing (internal/graph/episodes.go) which also keys a cache
// off a blake3 digest of its inputs.
type queryCache struct {
	entries map[[32]byte]uint64
}

func newQueryCache() *queryCache { return &queryCache{entries: make(map[[32]byte]uint64)} }

func (c *queryCache) computeForQuery(query string, refTime int64) uint64 {
	h := blake3.New()
	h.Write([]byte(query))
	var refBuf [8]byte
	for i := 0; i < 8; i++ {
		refBuf[i] = byte(refTime >> (8 * uint(i)))
	}
	h.Write(refBuf[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))

	if fp, ok := c.entries[key]; ok {
		return fp
	}
	fp := fingerprint.ComputeForQuery(query, refTime)
	c.entries[key] = fp
	return fp
}

// Pipeline runs retrieve() against a graphstore.Store, optional
// chaosstore.Store and embedmodel.Model.
type Pipeline struct {
	graph *graphstore.Store
	chaos *chaosstore.Store
	model *embedmodel.Model
	cache *queryCache
}

// New builds a pipeline over the given stores. model and chaos may be nil
// when no embedding model has been loaded (spec §4.8: chaos blend is
// simply skipped).
func New(graph *graphstore.Store, chaos *chaosstore.Store, model *embedmodel.Model) *Pipeline {
	return &Pipeline{graph: graph, chaos: chaos, model: model, cache: newQueryCache()}
}

// Retrieve runs the full 8-stage pipeline and returns results sorted by
// score descending.
func (p *Pipeline) Retrieve(query string, refTime int64, chaosLevel float64) []Scored {
	queryFP := p.cache.computeForQuery(query, refTime)
	activation := make(map[int64]float32)

	p.stageFeatureMatch(query, activation)
	p.stageTemporalRecall(queryFP, activation)
	p.stageAffectiveRecall(queryFP, activation)
	p.stageOntologySpread(activation)
	normalizeEnergy(activation)
	p.stageMemorySpread(activation)

	results := p.stageEventProjection(queryFP, refTime, activation)

	if chaosLevel > 0 {
		results = p.stageChaosBlend(query, results, chaosLevel)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// S1: every feature-matcher hit activates its Feature node at 1.0 (max of
// colliding hits — a single pass already yields non-overlapping hits per
// node, so plain assignment is equivalent to max here).
func (p *Pipeline) stageFeatureMatch(query string, activation map[int64]float32) {
	for _, m := range p.graph.MatchFeatures(query) {
		if cur, ok := activation[m.NodeID]; !ok || cur < 1.0 {
			activation[m.NodeID] = 1.0
		}
	}
}

// S2: temporal field match activates every event sharing the query's
// temporal hash bucket at 0.6.
func (p *Pipeline) stageTemporalRecall(queryFP uint64, activation map[int64]float32) {
	field := fingerprint.TemporalField(queryFP)
	if field == 0 {
		return
	}
	for _, id := range p.graph.TemporalBucket(field) {
		setMax(activation, id, 0.6)
	}
}

// S3: every Plutchik bit set in the query fingerprint activates every event
// in that affective bucket at 0.7.
func (p *Pipeline) stageAffectiveRecall(queryFP uint64, activation map[int64]float32) {
	emotion := fingerprint.EmotionByte(queryFP)
	for bit := uint8(0); bit < 8; bit++ {
		if emotion&(1<<bit) == 0 {
			continue
		}
		for _, id := range p.graph.AffectiveBucket(bit) {
			setMax(activation, id, 0.7)
		}
	}
}

// S4: one-hop spread across the ontology graph from every currently active
// node. Iterates a snapshot of the active set so within-stage activations
// don't cascade further in the same pass (one hop only).
func (p *Pipeline) stageOntologySpread(activation map[int64]float32) {
	seeds := snapshotActive(activation)
	for src, score := range seeds {
		for _, edge := range p.graph.OntologyOutEdges(src) {
			w := float64(edge.Strength) / 65535.0
			switch edge.Type {
			case graphstore.EdgeEquality:
				setMax(activation, edge.TargetID, score)
			case graphstore.EdgeInhibition:
				energy := ontologyEnergy(score, w, p.graph.InDegree(edge.TargetID))
				activation[edge.TargetID] -= float32(energy)
			default: // representation
				energy := ontologyEnergy(score, w, p.graph.InDegree(edge.TargetID))
				if energy >= ontologyDropFloor {
					setMax(activation, edge.TargetID, float32(energy))
				}
			}
		}
	}
}

func ontologyEnergy(score float32, w float64, inDegree uint32) float64 {
	degree := float64(inDegree)
	if degree < 1 {
		degree = 1
	}
	return float64(score) * w * ontologySpreadDecay / (1 + math.Log10(degree))
}

// S5: if total activation exceeds the cap, scale every value down
// uniformly.
func normalizeEnergy(activation map[int64]float32) {
	var total float64
	for _, v := range activation {
		total += float64(v)
	}
	if total <= activationCapTotal {
		return
	}
	scale := float32(activationCapTotal / total)
	for id, v := range activation {
		activation[id] = v * scale
	}
}

// S6: lateral-inhibited one-hop memory-graph spread from the top 5000
// active seeds, merged additively (not max) into a delta map before being
// folded back in.
func (p *Pipeline) stageMemorySpread(activation map[int64]float32) {
	seeds := topSeeds(activation, memorySpreadSeedCap)
	delta := make(map[int64]float32)
	for _, seed := range seeds {
		for _, edge := range p.graph.MemoryOutEdges(seed.ID) {
			w := float64(edge.Strength) / 65535.0
			degree := float64(p.graph.InDegree(edge.TargetID))
			if degree < 1 {
				degree = 1
			}
			energy := float64(seed.Score) * w * memorySpreadDecay / (1 + math.Log10(degree))
			if energy < memorySpreadDropMin {
				continue
			}
			delta[edge.TargetID] += float32(energy)
		}
	}
	for id, v := range delta {
		activation[id] += v
	}
}

// S7: drop non-Event nodes, sort, boost the top 50 against their stored
// fingerprints with an Ebbinghaus recency decay applied first, then
// re-sort the complete projected list.
func (p *Pipeline) stageEventProjection(queryFP uint64, refTime int64, activation map[int64]float32) []Scored {
	var events []Scored
	for id, score := range activation {
		n := p.graph.Node(id)
		if n == nil || n.Kind != graphstore.KindEvent {
			continue
		}
		events = append(events, Scored{ID: id, Score: score})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Score > events[j].Score })

	topN := eventProjectionTopN
	if topN > len(events) {
		topN = len(events)
	}

	tNow := refTime
	if tNow <= 0 {
		tNow = defaultRefTimeFallback
	}

	queryTemporal := fingerprint.TemporalField(queryFP)
	queryEmotion := fingerprint.EmotionByte(queryFP)
	queryType := fingerprint.EntityTypeByte(queryFP)

	for i := 0; i < topN; i++ {
		n := p.graph.Node(events[i].ID)
		score := events[i].Score

		if n.Timestamp > 0 && int64(n.Timestamp) < tNow {
			elapsed := float64(tNow - int64(n.Timestamp))
			factor := math.Max(ebbinghausFloor, math.Exp(-elapsed/ebbinghausHalfLifeS))
			score *= float32(factor)
		}

		score += semanticBoostWeight * fingerprint.SimilarityWeighted(queryFP, n.Fingerprint, fingerprint.MaskSemantic)

		if queryTemporal != 0 {
			score += temporalBoostWeight * fingerprint.SimilarityWeighted(queryFP, n.Fingerprint, fingerprint.MaskTemporal)
		}
		if queryEmotion != 0 && queryEmotion&fingerprint.EmotionByte(n.Fingerprint) != 0 {
			score += emotionBoostWeight
		}
		if queryType != 0 {
			score += entityTypeBoostWeight * fingerprint.SimilarityWeighted(queryFP, n.Fingerprint, fingerprint.MaskType)
		}

		events[i].Score = score
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Score > events[j].Score })
	return events
}

// S8: blend in the chaos vector track. Skipped entirely by the caller when
// chaosLevel <= 0 or no model/chaos vector is available.
func (p *Pipeline) stageChaosBlend(query string, projected []Scored, chaosLevel float64) []Scored {
	if p.model == nil || p.chaos == nil {
		return projected
	}
	queryVec, ok := p.model.Vectorize(query)
	if !ok {
		return projected
	}

	combined := make(map[int64]float32, len(projected))
	for _, s := range projected {
		combined[s.ID] = s.Score * float32(1-chaosLevel)
	}

	queryFP128 := fingerprint.QuantizeVector128(queryVec)
	candidates := p.chaos.CoarseFilter(queryFP128, chaosCoarseMaxDist)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if len(candidates) > chaosCoarseKeep {
		candidates = candidates[:chaosCoarseKeep]
	}

	for _, c := range candidates {
		sim, ok := p.chaos.CosineSimilarity(c.ID, queryVec)
		if !ok || sim <= chaosSimThreshold {
			continue
		}
		chaosScore := (sim - chaosSimThreshold) / chaosSimRange * chaosScoreScale
		combined[c.ID] += float32(chaosLevel) * chaosScore
	}

	out := make([]Scored, 0, len(combined))
	for id, score := range combined {
		out = append(out, Scored{ID: id, Score: score})
	}
	return out
}

func setMax(m map[int64]float32, id int64, v float32) {
	if cur, ok := m[id]; !ok || v > cur {
		m[id] = v
	}
}

func snapshotActive(m map[int64]float32) map[int64]float32 {
	out := make(map[int64]float32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func topSeeds(m map[int64]float32, cap int) []Scored {
	out := make([]Scored, 0, len(m))
	for id, score := range m {
		out = append(out, Scored{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}
