// Package engine is the PEDSA façade: the single entry point a host binds
// against. It owns the graph store, the chaos store, the optional
// embedding model, and serializes every mutation and query behind one
// mutex per spec §5's single-threaded, cooperatively-scheduled model.
// Modeled on the teacher's internal/graph.Graph façade, which wraps its
// own store/index/activation pieces behind the same kind of single
// exclusive-access surface.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/vthunder/pedsa/internal/chaosstore"
	"github.com/vthunder/pedsa/internal/embedmodel"
	"github.com/vthunder/pedsa/internal/fingerprint"
	"github.com/vthunder/pedsa/internal/graphstore"
	"github.com/vthunder/pedsa/internal/pedsalog"
	"github.com/vthunder/pedsa/internal/retrieval"
)

// featureWeight is the vectorization weight given to feature-keyword spans
// when add_event derives a chaos vector from its summary, spec §4.5 step 3.
const featureWeight float32 = 5.0

// Persister is an optional external collaborator a host binding may supply
// to snapshot engine state after a Compile — the core never calls it
// itself (SPEC_FULL.md §D.3; spec §9 treats persistence as an external
// concern the core stays oblivious to).
type Persister interface {
	PersistNode(id int64, content string, timestamp uint64) error
	PersistEdge(src, tgt int64, strength uint16, edgeType graphstore.EdgeType, ontology bool) error
}

// Engine is the façade. Zero value is not usable; construct with New.
type Engine struct {
	mu sync.Mutex

	graph *graphstore.Store
	chaos *chaosstore.Store
	model *embedmodel.Model

	pipeline *retrieval.Pipeline
}

// New constructs an empty engine: no model loaded, empty graphs.
func New() *Engine {
	e := &Engine{
		graph: graphstore.New(),
		chaos: chaosstore.New(),
	}
	e.rebuildPipeline()
	return e
}

func (e *Engine) rebuildPipeline() {
	e.pipeline = retrieval.New(e.graph, e.chaos, e.model)
}

// LoadModelFromBytes loads a .pedsa_vec embedding model from an in-memory
// buffer (spec §6 load_model_from_bytes). Replaces any previously loaded
// model.
func (e *Engine) LoadModelFromBytes(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := embedmodel.LoadFromBytes(data)
	if err != nil {
		return err
	}
	e.model = m
	e.rebuildPipeline()
	pedsalog.Info("engine", "loaded embedding model: dimension=%d vocab=%d", m.Dimension, len(m.Vocab))
	return nil
}

// AddFeature registers a Feature node (spec §4.5 add_feature).
func (e *Engine) AddFeature(id int64, keyword string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.AddFeature(id, keyword)
}

// AddEvent stores an Event node, deriving its timestamp via
// extract_timestamp and, when no explicit chaos inputs are supplied and a
// model is loaded, its chaos fingerprint/vector by vectorizing the summary
// with feature-keyword spans weighted 5.0 (spec §4.5 add_event).
func (e *Engine) AddEvent(id int64, summary string) {
	e.AddEventWithChaos(id, summary, nil, nil)
}

// AddEventWithChaos is add_event with explicit chaos inputs (spec §4.5
// add_event steps 3-4: both inputs absent is the common case that triggers
// auto-derivation from the summary).
func (e *Engine) AddEventWithChaos(id int64, summary string, chaosFP *[2]uint64, chaosVec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := fingerprint.ExtractTimestamp(summary)
	e.graph.AddEvent(id, summary, ts)

	fp := chaosFP
	vec := chaosVec
	if fp == nil && vec == nil && e.model != nil {
		derivedFP, derivedVec, ok := e.deriveChaos(summary)
		if ok {
			fp = &derivedFP
			vec = derivedVec
		}
	}
	// A caller may supply a chaos vector without its fingerprint (the
	// fingerprint is cheap to derive, the vector is not): quantize it
	// ourselves rather than silently dropping the vector.
	if fp == nil && len(vec) > 0 {
		derived := fingerprint.QuantizeVector128(vec)
		fp = &derived
	}

	if fp != nil && (*fp != [2]uint64{} || len(vec) > 0) {
		e.chaos.Add(id, *fp, vec)
	}
}

// deriveChaos vectorizes summary with feature-keyword matches weighted 5.0
// and sign-quantizes the result to 128 bits, spec §4.5 add_event step 3.
func (e *Engine) deriveChaos(summary string) ([2]uint64, []float32, bool) {
	var ranges []embedmodel.WeightedRange
	for _, m := range e.graph.MatchFeatures(summary) {
		ranges = append(ranges, embedmodel.WeightedRange{Start: m.Start, End: m.End, Weight: featureWeight})
	}
	vec, ok := e.model.VectorizeWeighted(summary, ranges)
	if !ok {
		return [2]uint64{}, nil, false
	}
	return fingerprint.QuantizeVector128(vec), vec, true
}

// AddEdge inserts or reinforces a memory-graph edge (spec §4.5 add_edge).
func (e *Engine) AddEdge(src, tgt int64, weight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.AddEdge(src, tgt, weight)
}

// MaintainOntology resolves/creates Feature nodes for source and target
// and reinforces the ontology edge between them, keyed by the string
// relation tag (spec §4.5 maintain_ontology).
func (e *Engine) MaintainOntology(source, target, relation string, strength float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.MaintainOntology(source, target, relation, strength)
}

// AddOntologyEdge is the explicit-flags form of ontology-edge maintenance
// (spec §4.5 add_ontology_edge).
func (e *Engine) AddOntologyEdge(srcWord, tgtWord string, weight float64, isEquality, isInhibition bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.AddOntologyEdge(srcWord, tgtWord, weight, isEquality, isInhibition)
}

// Compile rebuilds the feature matcher, in-degree table, and the temporal
// and affective indexes from scratch (spec §4.5 compile).
func (e *Engine) Compile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.Compile()
}

// BuildTemporalBackbone links every Event's prev/next pointers in
// timestamp order (spec §4.5 build_temporal_backbone).
func (e *Engine) BuildTemporalBackbone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.BuildTemporalBackbone()
}

// ApplyGlobalDecayAndPruning decays and prunes the ontology graph,
// returning the number of edges removed (spec §4.6).
func (e *Engine) ApplyGlobalDecayAndPruning(decayRate float64, threshold uint16) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.ApplyGlobalDecayAndPruning(decayRate, threshold)
}

// PruneOntology runs the default decay-and-cap maintenance pass (spec
// §4.6 prune_ontology).
func (e *Engine) PruneOntology() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.PruneOntology()
}

// TriggerArbitration lists candidate ontology edges from source, formatted
// one per line, or "" if there are none (spec §4.6 trigger_arbitration).
func (e *Engine) TriggerArbitration(source string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	candidates := e.graph.TriggerArbitration(source)
	if len(candidates) == 0 {
		return "", false
	}
	lines := make([]string, len(candidates))
	for i, c := range candidates {
		lines[i] = c.Formatted()
	}
	return strings.Join(lines, "\n"), true
}

// ApplyArbitration removes the accepted set of ontology edges from source
// (spec §4.6 apply_arbitration).
func (e *Engine) ApplyArbitration(source string, deleteTargets []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.ApplyArbitration(source, deleteTargets)
}

// ExecuteMaintenance dispatches a maintenance action by string tag (spec
// §4.9 execute_maintenance). "upsert" reinforces and returns nothing;
// "replace" reinforces then returns the arbitration candidate text so the
// arbitrator sees both the old and the newly-reinforced edge; any other
// action is a silent no-op (spec §7 UnknownMaintenanceAction).
func (e *Engine) ExecuteMaintenance(action, source, target, relation string, strength float64) (string, bool) {
	switch action {
	case "upsert":
		e.MaintainOntology(source, target, relation, strength)
		return "", false
	case "replace":
		e.MaintainOntology(source, target, relation, strength)
		return e.TriggerArbitration(source)
	default:
		pedsalog.Warn("engine", "unknown maintenance action %q, ignoring", action)
		return "", false
	}
}

// Export snapshots every node and edge to p. This is the only place the
// core ever touches a Persister — retrieval and mutation never do — so a
// host binding that wants durable storage calls Export explicitly after a
// Compile, per SPEC_FULL.md §D.3.
func (e *Engine) Export(p Persister) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, n := range e.graph.AllNodes() {
		if err := p.PersistNode(n.ID, n.Content, n.Timestamp); err != nil {
			return err
		}
	}
	for _, n := range e.graph.AllNodes() {
		for _, edge := range e.graph.MemoryOutEdges(n.ID) {
			if err := p.PersistEdge(n.ID, edge.TargetID, edge.Strength, edge.Type, false); err != nil {
				return err
			}
		}
		for _, edge := range e.graph.OntologyOutEdges(n.ID) {
			if err := p.PersistEdge(n.ID, edge.TargetID, edge.Strength, edge.Type, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Retrieve runs the 8-stage retrieval pipeline (spec §4.8). Never fails;
// an empty slice is a valid (non-error) result.
func (e *Engine) Retrieve(query string, refTime int64, chaosLevel float64) []retrieval.Scored {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Retrieve(query, refTime, chaosLevel)
}

// resultRecord mirrors the JSON contract of spec §6: {"id","score","content","timestamp"}.
type resultRecord struct {
	ID        int64
	Score     float32
	Content   string
	Timestamp uint64
}

// RetrieveJSON runs Retrieve and renders the ranked results as the JSON
// array contract from spec §6: score to exactly 4 decimals, content with
// `"` backslash-escaped, order preserved.
func (e *Engine) RetrieveJSON(query string, refTime int64, chaosLevel float64) string {
	scored := e.Retrieve(query, refTime, chaosLevel)

	e.mu.Lock()
	records := make([]resultRecord, 0, len(scored))
	for _, s := range scored {
		n := e.graph.Node(s.ID)
		content := ""
		var ts uint64
		if n != nil {
			content = n.Content
			ts = n.Timestamp
		}
		records = append(records, resultRecord{ID: s.ID, Score: s.Score, Content: content, Timestamp: ts})
	}
	e.mu.Unlock()

	return marshalResults(records)
}

func marshalResults(records []resultRecord) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, r := range records {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"id":%d,"score":%s,"content":%s,"timestamp":%d}`,
			r.ID, strconv.FormatFloat(float64(r.Score), 'f', 4, 32), jsonString(r.Content), r.Timestamp)
	}
	b.WriteByte(']')
	return b.String()
}

// jsonString renders a minimal quoted JSON string, escaping only `"`, the
// backslash that would otherwise break it, and newline; every other
// character is written as is, since Event content is plain
// operator-supplied text, not arbitrary untrusted JSON.
func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
