package retrieval

import (
	"testing"

	"github.com/vthunder/pedsa/internal/chaosstore"
	"github.com/vthunder/pedsa/internal/embedmodel"
	"github.com/vthunder/pedsa/internal/fingerprint"
	"github.com/vthunder/pedsa/internal/graphstore"
)

// Scenario 1: pure feature hit. Model not loaded.
func TestRetrievePureFeatureHit(t *testing.T) {
	g := graphstore.New()
	g.AddFeature(1, "rust")
	g.AddEvent(100, "I wrote rust code", 0)
	g.AddEdge(1, 100, 1.0)
	g.Compile()

	p := New(g, chaosstore.New(), nil)
	results := p.Retrieve("rust", 0, 0.0)

	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != 100 {
		t.Errorf("top result id = %d, want 100", results[0].ID)
	}
	if results[0].Score <= 0.5 {
		t.Errorf("top result score = %f, want > 0.5", results[0].Score)
	}
}

// Scenario 2: temporal recall — a query containing the literal year must
// surface the event via the MASK_TEMPORAL boost with positive score.
func TestRetrieveTemporalRecallByYear(t *testing.T) {
	g := graphstore.New()
	g.AddEvent(200, "2025年06月15日 meeting", fingerprint.ExtractTimestamp("2025年06月15日 meeting"))
	g.Compile()

	p := New(g, chaosstore.New(), nil)
	results := p.Retrieve("2025", 0, 0.0)

	found := false
	for _, r := range results {
		if r.ID == 200 {
			found = true
			if r.Score <= 0 {
				t.Errorf("event 200 score = %f, want > 0", r.Score)
			}
		}
	}
	if !found {
		t.Error("expected event 200 to appear in results for a query containing its year")
	}
}

// Scenario 3: equality bypass — activation propagates at full strength
// with no inverse-frequency dampening.
func TestRetrieveEqualityBypassNoLoss(t *testing.T) {
	g := graphstore.New()
	g.AddFeature(1, "ai")
	g.AddOntologyEdge("ai", "人工智能", 1.0, true, false)
	g.Compile()

	p := New(g, chaosstore.New(), nil)
	activation := map[int64]float32{1: 1.0}
	p.stageOntologySpread(activation)

	tgtID := g.KeywordToNode()["人工智能"]
	if activation[tgtID] != 1.0 {
		t.Errorf("equality-bypassed activation = %f, want exactly 1.0", activation[tgtID])
	}
}

// Scenario 4: inhibition drives the target strictly negative.
func TestRetrieveInhibitionGoesNegative(t *testing.T) {
	g := graphstore.New()
	g.AddFeature(1, "ai")
	g.AddOntologyEdge("ai", "人工智能", 1.0, false, true)
	g.Compile()

	p := New(g, chaosstore.New(), nil)
	activation := map[int64]float32{1: 1.0}
	p.stageOntologySpread(activation)

	tgtID := g.KeywordToNode()["人工智能"]
	if activation[tgtID] >= 0 {
		t.Errorf("inhibited activation = %f, want strictly negative", activation[tgtID])
	}
}

// Scenario 6: chaos blend ranks the cosine-matching event strictly higher
// at chaos_level = 1.0.
func TestRetrieveChaosBlendPrefersCosineMatch(t *testing.T) {
	g := graphstore.New()
	g.AddEvent(1, "alpha event", 0)
	g.AddEvent(2, "beta event", 0)
	g.Compile()

	model := embedmodel.New(2)
	model.Vocab["alpha"] = []float32{1, 0}
	model.Vocab["beta"] = []float32{0, 1}

	chaos := chaosstore.New()
	chaos.Add(1, [2]uint64{}, []float32{1, 0})
	chaos.Add(2, [2]uint64{}, []float32{0, 1})

	p := New(g, chaos, model)
	results := p.Retrieve("alpha", 0, 1.0)

	scoreOf := func(id int64) float32 {
		for _, r := range results {
			if r.ID == id {
				return r.Score
			}
		}
		return 0
	}
	if scoreOf(1) <= scoreOf(2) {
		t.Errorf("expected cosine-matching event 1 (%f) to strictly outrank event 2 (%f)", scoreOf(1), scoreOf(2))
	}
}

// P7: retrieve output is sorted by score descending and every id
// references an Event node.
func TestRetrieveSortedAndEventsOnly(t *testing.T) {
	g := graphstore.New()
	g.AddFeature(1, "rust")
	g.AddEvent(100, "rust one", 0)
	g.AddEvent(200, "rust two", 0)
	g.AddEdge(1, 100, 1.0)
	g.AddEdge(1, 200, 0.5)
	g.Compile()

	p := New(g, chaosstore.New(), nil)
	results := p.Retrieve("rust", 0, 0.0)

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted descending at index %d: %+v", i, results)
		}
	}
	for _, r := range results {
		n := g.Node(r.ID)
		if n == nil || n.Kind != graphstore.KindEvent {
			t.Errorf("result id %d does not reference an Event node", r.ID)
		}
	}
}
