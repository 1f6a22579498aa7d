package engine

import (
	"strings"
	"testing"

	"github.com/vthunder/pedsa/internal/fingerprint"
	"github.com/vthunder/pedsa/internal/graphstore"
)

func TestEngineEndToEndFeatureHit(t *testing.T) {
	e := New()
	e.AddFeature(1, "rust")
	e.AddEvent(100, "I wrote rust code")
	e.AddEdge(1, 100, 1.0)
	e.Compile()

	results := e.Retrieve("rust", 0, 0.0)
	if len(results) == 0 || results[0].ID != 100 {
		t.Fatalf("expected event 100 to rank first, got %+v", results)
	}
}

// spec §4.5 add_event step 4: "if (fp != 0 or vec non-empty) add to chaos
// store" — a caller that supplies only one of the two explicit chaos
// inputs must still land in the chaos store, not be silently dropped.
func TestAddEventWithChaosExplicitInputCombinations(t *testing.T) {
	fp := [2]uint64{0xABCD, 0}
	vec := []float32{1, -1, 0.5}

	cases := []struct {
		name       string
		fp         *[2]uint64
		vec        []float32
		wantStored bool
	}{
		{"vec only derives fingerprint", nil, vec, true},
		{"fp only is stored verbatim", &fp, nil, true},
		{"both nil with no model is a no-op", nil, nil, false},
	}

	for i, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := New()
			id := int64(100 + i)
			e.AddEventWithChaos(id, "chaos input event", c.fp, c.vec)

			gotLen := e.chaos.Len()
			if c.wantStored && gotLen != 1 {
				t.Fatalf("expected 1 chaos entry, got %d", gotLen)
			}
			if !c.wantStored && gotLen != 0 {
				t.Fatalf("expected no chaos entry, got %d", gotLen)
			}
			if !c.wantStored {
				return
			}

			wantFP := fp
			if c.fp == nil {
				wantFP = fingerprint.QuantizeVector128(c.vec)
			}
			matches := e.chaos.CoarseFilter(wantFP, 1)
			found := false
			for _, m := range matches {
				if m.ID == id && m.Distance == 0 {
					found = true
				}
			}
			if !found {
				t.Errorf("expected stored fingerprint to match %v exactly", wantFP)
			}

			if c.vec != nil {
				gotVec, ok := e.chaos.Vector(id)
				if !ok || len(gotVec) != len(c.vec) {
					t.Errorf("expected stored vector to round-trip, got %v ok=%v", gotVec, ok)
				}
			}
		})
	}
}

func TestExecuteMaintenanceUpsertAndReplace(t *testing.T) {
	e := New()

	if _, ok := e.ExecuteMaintenance("upsert", "cat", "dog", "equality", 0.5); ok {
		t.Error("upsert should never return arbitration text")
	}

	text, ok := e.ExecuteMaintenance("replace", "cat", "dog", "equality", 0.9)
	if !ok {
		t.Fatal("replace should return arbitration text once an edge exists")
	}
	if !strings.Contains(text, "cat -> dog") {
		t.Errorf("arbitration text = %q, want it to mention cat -> dog", text)
	}
}

func TestExecuteMaintenanceUnknownActionIsNoOp(t *testing.T) {
	e := New()
	text, ok := e.ExecuteMaintenance("delete-everything", "cat", "dog", "equality", 1.0)
	if ok || text != "" {
		t.Errorf("unknown action should be a silent no-op, got text=%q ok=%v", text, ok)
	}
	if len(e.graph.KeywordToNode()) != 0 {
		t.Error("unknown action must not mutate the graph")
	}
}

func TestRetrieveJSONContract(t *testing.T) {
	e := New()
	e.AddFeature(1, "rust")
	e.AddEvent(100, `says "hi" in rust`)
	e.AddEdge(1, 100, 1.0)
	e.Compile()

	out := e.RetrieveJSON("rust", 0, 0.0)
	if !strings.HasPrefix(out, "[") || !strings.HasSuffix(out, "]") {
		t.Fatalf("expected a JSON array, got %q", out)
	}
	if !strings.Contains(out, `\"hi\"`) {
		t.Errorf("expected embedded quotes to be backslash-escaped, got %q", out)
	}
	if !strings.Contains(out, `"id":100`) {
		t.Errorf("expected id 100 in output, got %q", out)
	}
}

type recordingPersister struct {
	nodes int
	edges int
}

func (r *recordingPersister) PersistNode(id int64, content string, timestamp uint64) error {
	r.nodes++
	return nil
}

func (r *recordingPersister) PersistEdge(src, tgt int64, strength uint16, edgeType graphstore.EdgeType, ontology bool) error {
	r.edges++
	return nil
}

func TestExportVisitsEveryNodeAndEdge(t *testing.T) {
	e := New()
	e.AddFeature(1, "rust")
	e.AddEvent(100, "rust code")
	e.AddEdge(1, 100, 1.0)
	e.Compile()

	var p recordingPersister
	if err := e.Export(&p); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if p.nodes != 2 {
		t.Errorf("expected 2 nodes persisted, got %d", p.nodes)
	}
	if p.edges != 1 {
		t.Errorf("expected 1 edge persisted, got %d", p.edges)
	}
}
