// Command pedsa is a thin CLI over the engine façade: it demonstrates the
// full mutation/maintenance/retrieval surface end to end, the way the
// teacher's cmd/bud/main.go drives its own engram/graph/reflex stack from
// a single entrypoint.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vthunder/pedsa/internal/engine"
	"github.com/vthunder/pedsa/internal/graphstore"
	"github.com/vthunder/pedsa/internal/pedsaconfig"
)

func main() {
	log.SetPrefix("[pedsa] ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := pedsaconfig.Load(os.Getenv("PEDSA_CONFIG"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eng := engine.New()
	if cfg.ModelPath != "" {
		if data, err := os.ReadFile(cfg.ModelPath); err == nil {
			if err := eng.LoadModelFromBytes(data); err != nil {
				log.Printf("warn: failed to load model from %s: %v", cfg.ModelPath, err)
			}
		}
	}

	switch os.Args[1] {
	case "repl":
		runREPL(eng, cfg)
	case "stats":
		printStats()
	case "session-id":
		fmt.Println(uuid.New().String())
	case "export":
		runExport(eng)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pedsa <repl|stats|session-id|export>")
}

// runExport reads the same line-oriented mutation commands as runREPL from
// stdin, applies them, then snapshots the resulting graph to stdout via
// exportPersister — exercising engine.Persister the way SPEC_FULL.md §D.3
// describes.
func runExport(eng *engine.Engine) {
	applyMutationsFromStdin(eng)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	p := &exportPersister{w: w}
	if err := eng.Export(p); err != nil {
		log.Fatalf("export: %v", err)
	}
}

func applyMutationsFromStdin(eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 6)
		switch fields[0] {
		case "add_feature":
			id, _ := strconv.ParseInt(fields[1], 10, 64)
			eng.AddFeature(id, fields[2])
		case "add_event":
			id, _ := strconv.ParseInt(fields[1], 10, 64)
			eng.AddEvent(id, fields[2])
		case "add_edge":
			src, _ := strconv.ParseInt(fields[1], 10, 64)
			tgt, _ := strconv.ParseInt(fields[2], 10, 64)
			w, _ := strconv.ParseFloat(fields[3], 64)
			eng.AddEdge(src, tgt, w)
		case "compile":
			eng.Compile()
		}
	}
}

// runREPL reads line-oriented commands from stdin, one engine operation
// per line, and prints results to stdout. It exists so the façade can be
// exercised manually without embedding it in a larger host.
func runREPL(eng *engine.Engine, cfg pedsaconfig.Config) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 6)
		switch fields[0] {
		case "add_feature":
			id, _ := strconv.ParseInt(fields[1], 10, 64)
			eng.AddFeature(id, fields[2])
		case "add_event":
			id, _ := strconv.ParseInt(fields[1], 10, 64)
			eng.AddEvent(id, fields[2])
		case "add_edge":
			src, _ := strconv.ParseInt(fields[1], 10, 64)
			tgt, _ := strconv.ParseInt(fields[2], 10, 64)
			w, _ := strconv.ParseFloat(fields[3], 64)
			eng.AddEdge(src, tgt, w)
		case "maintain_ontology":
			w, _ := strconv.ParseFloat(fields[4], 64)
			eng.MaintainOntology(fields[1], fields[2], fields[3], w)
		case "compile":
			eng.Compile()
		case "build_temporal_backbone":
			eng.BuildTemporalBackbone()
		case "prune_ontology":
			removed := eng.PruneOntology()
			fmt.Printf("pruned %d edges\n", removed)
		case "retrieve":
			refTime, _ := strconv.ParseInt(fields[2], 10, 64)
			chaosLevel := cfg.DefaultChaosLevel
			if len(fields) > 3 {
				if parsed, err := strconv.ParseFloat(fields[3], 64); err == nil {
					chaosLevel = parsed
				}
			}
			fmt.Println(eng.RetrieveJSON(fields[1], refTime, chaosLevel))
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
}

// printStats reports host resource usage the way the teacher's
// internal/budget.CPUWatcher samples process CPU — here at the host level,
// since pedsa has no long-running worker pool of its own to profile.
func printStats() {
	if v, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("memory: %s used / %s total (%.1f%%)\n",
			humanize.Bytes(v.Used), humanize.Bytes(v.Total), v.UsedPercent)
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fmt.Printf("cpu: %.1f%%\n", percents[0])
	}
}

// exportPersister is a trivial Persister (engine.Persister) that writes a
// flat line-oriented dump, demonstrating the external-collaborator hook
// from SPEC_FULL.md §D.3 without the core ever calling it directly.
type exportPersister struct {
	w *bufio.Writer
}

func (p *exportPersister) PersistNode(id int64, content string, timestamp uint64) error {
	_, err := fmt.Fprintf(p.w, "node\t%d\t%d\t%s\n", id, timestamp, content)
	return err
}

func (p *exportPersister) PersistEdge(src, tgt int64, strength uint16, edgeType graphstore.EdgeType, ontology bool) error {
	_, err := fmt.Fprintf(p.w, "edge\t%d\t%d\t%d\t%d\t%v\n", src, tgt, strength, edgeType, ontology)
	return err
}
