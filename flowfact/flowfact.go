// Package flowfact translates abstract flow facts to ConstraintStore
// constraints and back, and derives the control-flow Refinement
// (infeasible blocks, restricted callee sets) that globally-valid flow
// facts imply.
package flowfact

import (
	"fmt"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/refine"
	"github.com/wcetcore/wcet/report"
)

// Translate adds fact's constraint to store, resolving its program-point
// terms and scope against model. Context-sensitive scopes and
// instruction-scoped terms are skipped with a log warning rather than
// treated as errors, matching the component design's tolerance for
// partial flow-fact coverage.
func Translate(store *ilp.Store, model *ipet.Model, fact pgm.FlowFact, log *report.Log) error {
	if len(fact.Scope.Context) > 0 {
		log.Logf(report.Warning, fact.Scope.Key(), "context-sensitive scope skipped")
		return nil
	}

	lhsTerms := map[string]int64{}
	for _, t := range fact.LHS {
		contrib, ok, err := termContribution(store, model, t)
		if err != nil {
			return err
		}
		if !ok {
			log.Logf(report.Warning, t.Point.Name(), "term skipped (instruction-scoped or unresolvable)")
			continue
		}
		for v, c := range contrib {
			lhsTerms[v] += c
		}
	}

	scopeTerms, ok := scopeFreqTerms(store, model, fact.Scope)
	if !ok {
		log.Logf(report.Warning, fact.Scope.Key(), "scope unresolvable, flow fact skipped")
		return nil
	}

	name := fmt.Sprintf("flowfact:%s:%s", fact.Origin, fact.Scope.Key())

	switch fact.Op {
	case pgm.FFEqual, pgm.FFLessEqual:
		lhs := make(map[string]int64, len(lhsTerms)+len(scopeTerms))
		for v, c := range lhsTerms {
			lhs[v] += c
		}
		for v, c := range scopeTerms {
			lhs[v] -= fact.RHS * c
		}
		op := ilp.LessEqual
		if fact.Op == pgm.FFEqual {
			op = ilp.Equal
		}
		return store.AddConstraint(lhs, op, 0, name, "flowfact")

	case pgm.FFMaxInterarrival:
		// span - k*sum(lhs) <= 0
		lhs := make(map[string]int64, len(lhsTerms)+len(scopeTerms))
		for v, c := range scopeTerms {
			lhs[v] += c
		}
		for v, c := range lhsTerms {
			lhs[v] -= fact.RHS * c
		}
		return store.AddConstraint(lhs, ilp.LessEqual, 0, name, "flowfact")

	case pgm.FFMinInterarrival:
		// k*sum(lhs) - span <= k
		lhs := make(map[string]int64, len(lhsTerms)+len(scopeTerms))
		for v, c := range lhsTerms {
			lhs[v] += fact.RHS * c
		}
		for v, c := range scopeTerms {
			lhs[v] -= c
		}
		return store.AddConstraint(lhs, ilp.LessEqual, fact.RHS, name, "flowfact")

	default:
		return fmt.Errorf("flowfact: unknown op %q", fact.Op)
	}
}

// ensureNamed adds a variable named name to store if it does not already
// exist, returning its name unchanged either way.
func ensureNamed(store *ilp.Store, name string, level pp.Level) (string, error) {
	if _, ok := store.Index(name); ok {
		return name, nil
	}
	if _, err := store.AddVariable(name, level, nil); err != nil && err != ilp.ErrDuplicateVariable {
		return "", err
	}
	return name, nil
}

// ensureConstant adds a variable pinned by equality to p.Value, if it
// does not already exist.
func ensureConstant(store *ilp.Store, p pp.ConstantProgramPoint, level pp.Level) (string, error) {
	name := p.Name()
	if _, ok := store.Index(name); ok {
		return name, nil
	}
	bound := p.Value
	if _, err := store.AddVariable(name, level, &bound); err != nil && err != ilp.ErrDuplicateVariable {
		return "", err
	}
	if err := store.AddConstraint(map[string]int64{name: 1}, ilp.Equal, p.Value, "const-"+name, "structural"); err != nil {
		return "", err
	}
	return name, nil
}

// termContribution resolves one flow-fact term into the var -> coefficient
// map it contributes to a constraint's lhs. The second return reports
// whether the term could be resolved at all (false for instruction-scoped
// terms, which are refinement-only per the component design).
func termContribution(store *ilp.Store, model *ipet.Model, t pgm.Term) (map[string]int64, bool, error) {
	switch p := t.Point.(type) {
	case pp.Block:
		vars := model.OutgoingEdgeVars(p.Func, p.Block)
		out := make(map[string]int64, len(vars))
		for _, v := range vars {
			out[v] += t.Factor
		}
		return out, true, nil

	case pp.Edge:
		return map[string]int64{p.Name(): t.Factor}, true, nil

	case pp.Function:
		entryBlock, ok := model.EntryBlockName(p.Func)
		if !ok {
			return nil, false, nil
		}
		vars := model.OutgoingEdgeVars(p.Func, entryBlock)
		out := make(map[string]int64, len(vars))
		for _, v := range vars {
			out[v] += t.Factor
		}
		return out, true, nil

	case pp.Instruction:
		return nil, false, nil

	case pp.ConstantProgramPoint:
		name, err := ensureConstant(store, p, model.Level())
		if err != nil {
			return nil, false, err
		}
		return map[string]int64{name: t.Factor}, true, nil

	case pp.FrequencyVariable:
		name, err := ensureNamed(store, p.Name(), model.Level())
		if err != nil {
			return nil, false, err
		}
		return map[string]int64{name: t.Factor}, true, nil

	case pp.GlobalProgramPoint:
		name, err := ensureNamed(store, p.Name(), pp.GCFG)
		if err != nil {
			return nil, false, err
		}
		return map[string]int64{name: t.Factor}, true, nil

	default:
		return nil, false, nil
	}
}

// scopeFreqTerms resolves a flow fact's scope into the var -> coefficient
// map standing for freq(scope) (or sum_loop_entry(scope), for Loop
// scopes).
func scopeFreqTerms(store *ilp.Store, model *ipet.Model, scope pp.ContextRef) (map[string]int64, bool) {
	switch p := scope.Point.(type) {
	case pp.Function:
		v, ok := model.EntryBlockVar(p.Func)
		if !ok {
			return nil, false
		}
		return map[string]int64{v: 1}, true

	case pp.Block:
		return map[string]int64{pp.Block{Func: p.Func, Block: p.Block, Level: p.Level}.Name(): 1}, true

	case pp.Loop:
		vars := model.LoopEntryFreqVars(p.Func, p.Header)
		if len(vars) == 0 {
			return nil, false
		}
		out := make(map[string]int64, len(vars))
		for _, v := range vars {
			out[v] = 1
		}
		return out, true

	case pp.GlobalProgramPoint:
		name, err := ensureNamed(store, p.Name(), pp.GCFG)
		if err != nil {
			return nil, false
		}
		return map[string]int64{name: 1}, true

	case pp.ConstantProgramPoint:
		name, err := ensureConstant(store, p, model.Level())
		if err != nil {
			return nil, false
		}
		return map[string]int64{name: 1}, true

	case pp.FrequencyVariable:
		name, err := ensureNamed(store, p.Name(), model.Level())
		if err != nil {
			return nil, false
		}
		return map[string]int64{name: 1}, true

	default:
		return nil, false
	}
}

// ComputeRefinement derives globally-valid callsite restrictions and
// block-infeasibility facts from facts, propagating infeasibility to
// blocks all of whose predecessors (or all of whose successors) are
// infeasible and which are not a loop back-edge target.
func ComputeRefinement(program *pgm.Program, facts []pgm.FlowFact, log *report.Log) *refine.Refinement {
	r := refine.New()

	for _, f := range facts {
		if len(f.Scope.Context) > 0 {
			continue
		}
		if fn, ok := f.Scope.Point.(pp.Function); ok {
			applyCalleeRestriction(r, fn, f, log)
		}
		applyBlockInfeasibility(r, f)
	}

	propagateInfeasibility(program, r)
	return r
}

// applyCalleeRestriction recognizes a globally valid flow fact of shape
// "callsite - sum(targets) <= 0" with a Function scope and empty context,
// and restricts that callsite's callee set to the named targets. Any
// function scope is accepted; whether it is the analysis entry function
// is not checked.
func applyCalleeRestriction(r *refine.Refinement, fn pp.Function, f pgm.FlowFact, log *report.Log) {
	if f.Op != pgm.FFLessEqual || f.RHS != 0 {
		return
	}
	var callsite string
	var targets []string
	for _, t := range f.LHS {
		switch p := t.Point.(type) {
		case pp.Instruction:
			if t.Factor == 1 && callsite == "" {
				callsite = p.Name()
				continue
			}
			return
		case pp.Function:
			if t.Factor == -1 {
				targets = append(targets, p.Func)
				continue
			}
			return
		default:
			return
		}
	}
	if callsite == "" || len(targets) == 0 {
		return
	}
	r.RestrictCallees(callsite, targets)
	log.Logf(report.Info, callsite, fmt.Sprintf("restricted to %d callee(s) via flow fact", len(targets)))
}

// applyBlockInfeasibility recognizes a block-frequency-0 flow fact
// (Block scope, empty LHS, rhs 0, equal or less-equal) and marks the
// scope block infeasible.
func applyBlockInfeasibility(r *refine.Refinement, f pgm.FlowFact) {
	if f.RHS != 0 || (f.Op != pgm.FFEqual && f.Op != pgm.FFLessEqual) {
		return
	}
	b, ok := f.Scope.Point.(pp.Block)
	if !ok {
		return
	}
	if len(f.LHS) != 0 {
		return
	}
	r.MarkInfeasible(b.Name())
}

// propagateInfeasibility repeatedly marks a block infeasible if every one
// of its predecessors, or every one of its successors, is infeasible and
// it is not itself a loop header reached only via a back-edge.
func propagateInfeasibility(program *pgm.Program, r *refine.Refinement) {
	changed := true
	for changed {
		changed = false
		for fi := range program.Functions {
			f := &program.Functions[fi]
			for bi := range f.Blocks {
				b := &f.Blocks[bi]
				key := pp.Block{Func: f.Name, Block: b.Name, Level: f.Level}.Name()
				if r.IsInfeasible(key) {
					continue
				}
				preds := nonBackEdgeSources(f, b.Predecessors, b.Name)
				if len(preds) > 0 && allInfeasible(f, preds, r) {
					r.MarkInfeasible(key)
					changed = true
					continue
				}
				succs := nonBackEdgeTargets(f, b.Name, b.Successors)
				if len(succs) > 0 && allInfeasible(f, succs, r) {
					r.MarkInfeasible(key)
					changed = true
				}
			}
		}
	}
}

func allInfeasible(f *pgm.Function, names []string, r *refine.Refinement) bool {
	for _, n := range names {
		key := pp.Block{Func: f.Name, Block: n, Level: f.Level}.Name()
		if !r.IsInfeasible(key) {
			return false
		}
	}
	return true
}

// isBackEdge reports whether the edge src->dst is a loop back-edge, i.e.
// dst is the header of a loop that src belongs to.
func isBackEdge(f *pgm.Function, src, dst string) bool {
	b, ok := f.Block(src)
	if !ok {
		return false
	}
	for _, h := range b.Loops {
		if h == dst {
			return true
		}
	}
	return false
}

// nonBackEdgeSources filters target's predecessors down to those reaching
// it along a forward edge, excluding any predecessor whose edge into
// target is a back-edge (target is the loop header, predecessor is in the
// loop body) per spec §4.6's back-edge-target exception.
func nonBackEdgeSources(f *pgm.Function, predNames []string, target string) []string {
	var out []string
	for _, p := range predNames {
		if isBackEdge(f, p, target) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// nonBackEdgeTargets filters source's successors down to those reached by
// a forward edge, excluding any successor whose edge from source is a
// back-edge into a loop header.
func nonBackEdgeTargets(f *pgm.Function, source string, succNames []string) []string {
	var out []string
	for _, s := range succNames {
		if isBackEdge(f, source, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
