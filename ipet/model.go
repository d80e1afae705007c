// Package ipet builds, per program-representation level, the edge
// variables and structural flow-conservation constraints IPET needs:
// block flow-in/flow-out balance, callsite and call-edge constraints, and
// function-reachability discovery. It never looks at flow facts; those
// are layered on top by package flowfact.
package ipet

import (
	"fmt"
	"sort"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/refine"
	"github.com/wcetcore/wcet/report"
)

// Model is the built IPET for one level: it owns the edges it created and
// enough indexing to answer the lookups FlowFactEngine needs (outgoing
// edges of a block, a function's entry block, back-edges of a loop).
type Model struct {
	store      *ilp.Store
	program    *pgm.Program
	level      pp.Level
	entryFunc  string
	refinement *refine.Refinement
	cost       CostFunc
	log        *report.Log

	edges     []Edge
	reachable map[string]bool // function name -> reachable

	// callEdgesInto[calleeFunc] lists the call-edge variable names that
	// target calleeFunc, for the entry-frequency constraint.
	callEdgesInto map[string][]string
}

// Reachable reports whether funcName was discovered reachable from the
// analysis entry function.
func (m *Model) Reachable(funcName string) bool { return m.reachable[funcName] }

// ReachableFunctions returns every function name discovered reachable
// from the analysis entry function, in no particular order.
func (m *Model) ReachableFunctions() []string {
	out := make([]string, 0, len(m.reachable))
	for name := range m.reachable {
		out = append(out, name)
	}
	return out
}

// EntryBlockName returns the block name of funcName's entry block.
func (m *Model) EntryBlockName(funcName string) (string, bool) {
	f, ok := m.program.Function(funcName, m.level)
	if !ok {
		return "", false
	}
	for _, b := range f.Blocks {
		if b.IsEntry() {
			return b.Name, true
		}
	}
	return "", false
}

// EntryBlockVar returns the frequency-variable name of funcName's entry
// block.
func (m *Model) EntryBlockVar(funcName string) (string, bool) {
	name, ok := m.EntryBlockName(funcName)
	if !ok {
		return "", false
	}
	return pp.Block{Func: funcName, Block: name, Level: m.level}.Name(), true
}

// Level returns the representation level this model was built for.
func (m *Model) Level() pp.Level { return m.level }

// Program returns the program this model was built from.
func (m *Model) Program() *pgm.Program { return m.program }

// OutgoingEdgeVars returns the variable names of every CFG edge leaving
// blockName in funcName (including the exit edge, if the block may
// return).
func (m *Model) OutgoingEdgeVars(funcName, blockName string) []string {
	f, ok := m.program.Function(funcName, m.level)
	if !ok {
		return nil
	}
	b, ok := f.Block(blockName)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(b.Successors)+1)
	for _, succ := range b.Successors {
		out = append(out, pp.Edge{Func: funcName, Source: blockName, Target: succ, Level: m.level}.Name())
	}
	if b.MayReturn {
		out = append(out, pp.Edge{Func: funcName, Source: blockName, Target: pp.ExitSink, Level: m.level}.Name())
	}
	return out
}

// BlockFreqVar returns the ConstraintStore variable name standing for
// blockName's execution frequency.
func (m *Model) BlockFreqVar(funcName, blockName string) string {
	return pp.Block{Func: funcName, Block: blockName, Level: m.level}.Name()
}

// LoopEntryFreqVars returns the variable names of the edges entering the
// loop headed by header that are not back-edges (i.e. the loop's entry
// frequency, per the loop-entry frequency helper).
func (m *Model) LoopEntryFreqVars(funcName, header string) []string {
	f, ok := m.program.Function(funcName, m.level)
	if !ok {
		return nil
	}
	var out []string
	for _, b := range f.Blocks {
		for _, succ := range b.Successors {
			if succ != header {
				continue
			}
			if inLoop(&b, header) {
				continue // back-edge
			}
			out = append(out, pp.Edge{Func: funcName, Source: b.Name, Target: header, Level: m.level}.Name())
		}
	}
	return out
}

func inLoop(b *pgm.Block, header string) bool {
	for _, h := range b.Loops {
		if h == header {
			return true
		}
	}
	return false
}

// Edges returns every IPET edge created while building this model.
func (m *Model) Edges() []Edge { return m.edges }

// Build constructs the IPET variables and structural constraints for one
// level, rooted at entryFunc, into store. refinement (possibly empty) is
// consulted to skip infeasible blocks/callsites and to restrict callee
// sets; cost assigns each edge's objective contribution.
func Build(store *ilp.Store, program *pgm.Program, level pp.Level, entryFunc string, refinement *refine.Refinement, cost CostFunc, log *report.Log) (*Model, error) {
	if refinement == nil {
		refinement = refine.New()
	}
	m := &Model{
		store:         store,
		program:       program,
		level:         level,
		entryFunc:     entryFunc,
		refinement:    refinement,
		cost:          cost,
		log:           log,
		reachable:     make(map[string]bool),
		callEdgesInto: make(map[string][]string),
	}

	if err := m.discoverReachable(); err != nil {
		return nil, err
	}

	funcNames := make([]string, 0, len(m.reachable))
	for name := range m.reachable {
		funcNames = append(funcNames, name)
	}
	sort.Strings(funcNames)

	for _, name := range funcNames {
		f, _ := program.Function(name, level)
		if err := m.buildFunction(f); err != nil {
			return nil, err
		}
	}
	for _, name := range funcNames {
		if name == entryFunc {
			continue
		}
		if err := m.constrainEntryFrequency(name); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func blockKey(funcName, blockName string, level pp.Level) string {
	return pp.Block{Func: funcName, Block: blockName, Level: level}.Name()
}

// discoverReachable runs the fixpoint described in the component design:
// ignore infeasible callsites, resolve targets through the refinement,
// add the intersection of static and refined target sets, and propagate
// until no new function is reached.
func (m *Model) discoverReachable() error {
	worklist := []string{m.entryFunc}
	m.reachable[m.entryFunc] = true

	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]

		f, ok := m.program.Function(name, m.level)
		if !ok {
			continue
		}
		for _, b := range f.Blocks {
			bKey := blockKey(name, b.Name, m.level)
			if m.refinement.IsInfeasible(bKey) {
				continue
			}
			for _, instr := range b.Instructions {
				if len(instr.Callees) == 0 && instr.BranchType != pgm.BranchIndirect && instr.BranchType != pgm.BranchCall {
					continue
				}
				callsiteKey := pp.Instruction{Func: name, Block: b.Name, Index: instr.Index, Level: m.level}.Name()
				targets := instr.Callees
				if refined, ok := m.refinement.CalleesFor(callsiteKey); ok {
					targets = intersectStrings(instr.Callees, refined)
				}
				if len(targets) == 0 {
					if instr.BranchType == pgm.BranchIndirect {
						return fmt.Errorf("%w: %s", ErrUnresolvedIndirectCall, callsiteKey)
					}
					continue
				}
				for _, callee := range targets {
					if !m.reachable[callee] {
						m.reachable[callee] = true
						worklist = append(worklist, callee)
					}
				}
			}
		}
	}
	return nil
}

func intersectStrings(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, x := range b {
		set[x] = true
	}
	out := make([]string, 0, len(a))
	for _, x := range a {
		if set[x] {
			out = append(out, x)
		}
	}
	return out
}

// buildFunction emits every block's flow variables/constraints plus
// callsite handling for one reachable function.
func (m *Model) buildFunction(f *pgm.Function) error {
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		freqVar := pp.Block{Func: f.Name, Block: b.Name, Level: m.level}.Name()
		if _, err := m.store.AddVariable(freqVar, m.level, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return err
		}

		for _, succ := range b.Successors {
			e := Edge{PP: pp.Edge{Func: f.Name, Source: b.Name, Target: succ, Level: m.level}, Category: CFGEdge}
			m.addEdge(e)
		}
		if b.MayReturn {
			e := Edge{PP: pp.Edge{Func: f.Name, Source: b.Name, Target: pp.ExitSink, Level: m.level}, Category: CFGEdge}
			m.addEdge(e)
		}
	}

	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		if err := m.constrainBlock(f, b); err != nil {
			return err
		}
		if err := m.buildCallsites(f, b); err != nil {
			return err
		}
	}

	if f.Name == m.entryFunc {
		for _, b := range f.Blocks {
			if b.IsEntry() {
				freqVar := pp.Block{Func: f.Name, Block: b.Name, Level: m.level}.Name()
				if err := m.store.AddConstraint(map[string]int64{freqVar: 1}, ilp.Equal, 1, "entry-freq-"+freqVar, "structural"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *Model) addEdge(e Edge) {
	if _, ok := m.store.Index(e.Name()); !ok {
		m.store.AddVariable(e.Name(), e.PP.Level, nil)
	}
	m.edges = append(m.edges, e)
	if m.cost != nil {
		if c := m.cost(e); c != 0 {
			m.store.AddCost(e.Name(), c)
		}
	}
}

// constrainBlock emits b's flow_in/flow_out conservation and its
// infeasibility marking, if any.
func (m *Model) constrainBlock(f *pgm.Function, b *pgm.Block) error {
	freqVar := pp.Block{Func: f.Name, Block: b.Name, Level: m.level}.Name()
	bKey := blockKey(f.Name, b.Name, m.level)

	if m.refinement.IsInfeasible(bKey) {
		if err := m.store.AddConstraint(map[string]int64{freqVar: 1}, ilp.Equal, 0, "infeasible-"+freqVar, "infeasibility", "structural"); err != nil {
			return err
		}
	}

	if !b.IsEntry() {
		lhs := map[string]int64{freqVar: -1}
		for _, pred := range b.Predecessors {
			lhs[pp.Edge{Func: f.Name, Source: pred, Target: b.Name, Level: m.level}.Name()]++
		}
		if err := m.store.AddConstraint(lhs, ilp.Equal, 0, "flow-in-"+freqVar, "structural"); err != nil {
			return err
		}
	}

	if len(b.Successors) > 0 || b.MayReturn {
		lhs := map[string]int64{freqVar: -1}
		for _, succ := range b.Successors {
			lhs[pp.Edge{Func: f.Name, Source: b.Name, Target: succ, Level: m.level}.Name()]++
		}
		if b.MayReturn {
			lhs[pp.Edge{Func: f.Name, Source: b.Name, Target: pp.ExitSink, Level: m.level}.Name()]++
		}
		if err := m.store.AddConstraint(lhs, ilp.Equal, 0, "flow-out-"+freqVar, "structural"); err != nil {
			return err
		}
	}
	return nil
}

// buildCallsites emits the callsite variable, call edges, and the
// ≤-callsite-frequency constraint for every call instruction in b.
func (m *Model) buildCallsites(f *pgm.Function, b *pgm.Block) error {
	freqVar := pp.Block{Func: f.Name, Block: b.Name, Level: m.level}.Name()
	bKey := blockKey(f.Name, b.Name, m.level)
	if m.refinement.IsInfeasible(bKey) {
		return nil
	}

	for _, instr := range b.Instructions {
		if len(instr.Callees) == 0 && instr.BranchType != pgm.BranchIndirect && instr.BranchType != pgm.BranchCall {
			continue
		}
		callsiteVar := pp.Instruction{Func: f.Name, Block: b.Name, Index: instr.Index, Level: m.level}.Name()
		if _, err := m.store.AddVariable(callsiteVar, m.level, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return err
		}
		if err := m.store.AddConstraint(map[string]int64{callsiteVar: 1, freqVar: -1}, ilp.Equal, 0, "callsite-"+callsiteVar, "structural"); err != nil {
			return err
		}

		targets := instr.Callees
		if refined, ok := m.refinement.CalleesFor(callsiteVar); ok {
			targets = intersectStrings(instr.Callees, refined)
		}
		if len(targets) == 0 {
			if instr.BranchType == pgm.BranchIndirect {
				return fmt.Errorf("%w: %s", ErrUnresolvedIndirectCall, callsiteVar)
			}
			continue
		}

		lhs := map[string]int64{callsiteVar: -1}
		for _, callee := range targets {
			if !m.reachable[callee] {
				continue
			}
			e := Edge{PP: pp.Edge{Func: f.Name, Source: callsiteVar, Target: callee, Level: m.level}, Category: CallEdge}
			m.addEdge(e)
			lhs[e.Name()]++
			m.callEdgesInto[callee] = append(m.callEdgesInto[callee], e.Name())
		}
		if err := m.store.AddConstraint(lhs, ilp.LessEqual, 0, "call-bound-"+callsiteVar, "structural"); err != nil {
			return err
		}
	}
	return nil
}

// constrainEntryFrequency emits "entry frequency = sum of incoming call
// edges" for a non-analysis-entry function.
func (m *Model) constrainEntryFrequency(funcName string) error {
	entryVar, ok := m.EntryBlockVar(funcName)
	if !ok {
		return nil
	}
	lhs := map[string]int64{entryVar: -1}
	for _, e := range m.callEdgesInto[funcName] {
		lhs[e]++
	}
	return m.store.AddConstraint(lhs, ilp.Equal, 0, "entry-freq-"+entryVar, "structural")
}
