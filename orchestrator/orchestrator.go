// Package orchestrator drives the three top-level operations the core
// exposes: copy (echo flow facts under a new origin), simplify (build,
// inject, eliminate, re-extract at one level), and transform (project an
// IPET from one representation level to the other via a relation graph).
// It is the only package that wires together ipet, elim, flowfact, and
// transform; callers outside the core talk to this package, not to the
// lower-level ones directly.
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/wcetcore/wcet/elim"
	"github.com/wcetcore/wcet/flowfact"
	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
	"github.com/wcetcore/wcet/transform"
)

// Result is what every orchestrator operation returns: the re-extracted
// (or echoed) flow facts, and, when a Solver was supplied, the resulting
// TimingEntry. Store is exposed for callers that want to inspect or
// serialize the built constraint system directly (e.g. --dump-ilp).
type Result struct {
	FlowFacts []pgm.FlowFact
	Timing    *pgm.TimingEntry
	Store     *ilp.Store
}

// Copy echoes program's flow facts under opts.OriginTag. No ILP is built.
func Copy(program *pgm.Program, opts options.Options) (*Result, *report.Log) {
	log := report.New()
	out := make([]pgm.FlowFact, 0, len(program.FlowFacts))
	for _, f := range program.FlowFacts {
		nf := f
		nf.Origin = opts.OriginTag
		out = append(out, nf)
	}
	log.Log(report.Info, fmt.Sprintf("copy: echoed %d flow fact(s)", len(out)))
	return &Result{FlowFacts: out}, log
}

// Simplify builds the IPET for entryFunc at level, injects program's flow
// facts scoped at that level, eliminates instruction variables, empty
// blocks, and (if opts.EliminateCFGEdges) CFG-edge variables, then
// re-extracts the residual flow facts. If solver is non-nil the built
// system is also solved and returned as a TimingEntry.
func Simplify(program *pgm.Program, entryFunc string, level pp.Level, cost ipet.CostFunc, solver ilp.Solver, opts options.Options) (*Result, *report.Log, error) {
	log := report.New()
	refinement := flowfact.ComputeRefinement(program, program.FlowFacts, log)

	store := ilp.New(opts)
	model, err := ipet.Build(store, program, level, entryFunc, refinement, cost, log)
	if err != nil {
		return nil, log, err
	}

	injected := 0
	for _, f := range program.FlowFacts {
		if f.Level != level {
			continue
		}
		if err := flowfact.Translate(store, model, f, log); err != nil {
			if opts.IgnoreMissingVariables {
				log.Logf(report.Warning, f.Origin, "flow fact skipped: "+err.Error())
				continue
			}
			return nil, log, err
		}
		injected++
	}
	log.Log(report.Info, fmt.Sprintf("simplify: injected %d flow fact(s)", injected))

	eliminate := simplifyTargets(store, model, opts)
	if err := elim.Eliminate(store, eliminate, elim.Options{
		TieBreakBySecondary:   opts.TieBreakBySecondary,
		ProtectZeroEqualities: true,
	}); err != nil {
		return nil, log, err
	}

	facts := flowfact.Extract(store, model, level, opts.OriginTag)

	result := &Result{FlowFacts: facts, Store: store}
	if solver != nil {
		obj, freq, err := store.SolveMax(solver)
		if err != nil {
			return result, log, err
		}
		result.Timing = buildTimingEntry(model, entryFunc, level, freq, obj)
		result.Timing.Origin = log.RunID
	}
	return result, log, nil
}

// simplifyTargets collects the variables Simplify eliminates: every
// instruction (callsite) variable, every empty block's frequency
// variable, and, if requested, every CFG-edge variable.
func simplifyTargets(store *ilp.Store, model *ipet.Model, opts options.Options) []int {
	emptyBlocks := make(map[string]bool)
	for _, fn := range model.ReachableFunctions() {
		f, ok := model.Program().Function(fn, model.Level())
		if !ok {
			continue
		}
		for _, b := range f.Blocks {
			if len(b.Instructions) == 0 {
				emptyBlocks[pp.Block{Func: fn, Block: b.Name, Level: model.Level()}.Name()] = true
			}
		}
	}

	var out []int
	for v := 1; v <= store.NumVars(); v++ {
		name := store.Name(v)
		switch {
		case strings.Contains(name, ":insn:"):
			out = append(out, v)
		case emptyBlocks[name]:
			out = append(out, v)
		case opts.EliminateCFGEdges && strings.Contains(name, ":edge:"):
			out = append(out, v)
		}
	}
	return out
}

func buildTimingEntry(model *ipet.Model, entryFunc string, level pp.Level, freq map[string]int64, obj float64) *pgm.TimingEntry {
	entry := &pgm.TimingEntry{
		Scope:  pp.ContextRef{Point: pp.Function{Func: entryFunc, Level: level}},
		Cycles: int64(obj),
	}
	for _, e := range model.Edges() {
		f := freq[e.Name()]
		if f == 0 {
			continue
		}
		entry.Profile = append(entry.Profile, pgm.ProfileEntry{
			Reference:     e.Name(),
			WCETFrequency: f,
		})
	}
	return entry
}

// Transform projects program's IPET from fromLevel to toLevel via the
// program's relation graphs. Both levels' IPETs are built into one
// combined store; relation constraints are added for every function
// reachable at fromLevel (skipping, with a warning and a
// "missing-relation-graph" count, functions missing a relation graph);
// every flow fact is translated into that same store at the model of its
// own level; every variable that is not a toLevel edge variable is
// eliminated, and the rest is re-extracted. Flow facts are not
// partitioned by function scope: local and global facts share the one
// combined system.
func Transform(program *pgm.Program, entryFunc string, fromLevel, toLevel pp.Level, opts options.Options) (*Result, *report.Log, error) {
	log := report.New()
	refinement := flowfact.ComputeRefinement(program, program.FlowFacts, log)

	store := ilp.New(opts)
	fromModel, err := ipet.Build(store, program, fromLevel, entryFunc, refinement, nil, log)
	if err != nil {
		return nil, log, err
	}
	toModel, err := ipet.Build(store, program, toLevel, entryFunc, refinement, nil, log)
	if err != nil {
		return nil, log, err
	}

	for _, fn := range fromModel.ReachableFunctions() {
		rg, ok := program.RelationGraphFor(fn)
		if !ok {
			log.Logf(report.Warning, fn, transform.ErrMissingRelationGraph.Error())
			log.Count("missing-relation-graph")
			continue
		}
		var src, dst *ipet.Model
		if rg.Src.Level == fromLevel {
			src, dst = fromModel, toModel
		} else {
			src, dst = toModel, fromModel
		}
		if err := transform.BuildRelationConstraints(store, src, dst, rg); err != nil {
			return nil, log, err
		}
	}
	log.Summarize()

	for _, f := range program.FlowFacts {
		target := fromModel
		if f.Level == toLevel {
			target = toModel
		}
		if err := flowfact.Translate(store, target, f, log); err != nil {
			if opts.IgnoreMissingVariables {
				log.Logf(report.Warning, f.Origin, "flow fact skipped: "+err.Error())
				continue
			}
			return nil, log, err
		}
	}

	eliminate := transform.EliminationTargets(store, toLevel)
	if err := elim.Eliminate(store, eliminate, elim.Options{
		TieBreakBySecondary:   opts.TieBreakBySecondary,
		ProtectZeroEqualities: true,
	}); err != nil {
		return nil, log, err
	}

	facts := flowfact.Extract(store, toModel, toLevel, opts.OriginTag)
	return &Result{FlowFacts: facts, Store: store}, log, nil
}
