// Package sstg composes per-task IPET models through a Static/Global
// State-Transition Graph (SSTG) into one global objective, optionally
// weighted by per-device energy costs for the WCEC variant.
package sstg

import (
	"fmt"
	"sort"

	"github.com/wcetcore/wcet/energy"
	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
)

// loopBound is the large constant relating SSTG loop back-edges to loop
// entries, per the component design ("bounded by a large constant").
const loopBound = int64(1_000_000)

// WCETVariable is the name of the global cost-weighted-sum variable whose
// solved value is the WCET/WCEC bound.
const WCETVariable = "wcet_variable"

// Model is the built SSTG superstructure: node/edge variables plus enough
// bookkeeping to answer which node corresponds to which task ABB.
type Model struct {
	store   *ilp.Store
	program *pgm.Program
	energy  *energy.Model

	nodeVar map[int]string
	costTerms map[string]int64 // var name -> coefficient contributing to WCETVariable
}

func (m *Model) addCostTerm(varName string, c int64) {
	if c == 0 {
		return
	}
	m.costTerms[varName] += c
}

func nodeVarName(n *pgm.SSTGNode) string {
	if n.FrequencyVariable != "" {
		return n.FrequencyVariable
	}
	return pp.GlobalProgramPoint{GlobalName: fmt.Sprintf("sstg:node:%d", n.Index)}.Name()
}

func edgeVarName(src, dst int) string {
	return pp.GlobalProgramPoint{GlobalName: fmt.Sprintf("sstg:edge:%d->%d", src, dst)}.Name()
}

func resumeVarName(isr, abb int) string {
	return pp.GlobalProgramPoint{GlobalName: fmt.Sprintf("sstg:resume:%d->%d", isr, abb)}.Name()
}

// Build constructs the SSTG superstructure over store: node/edge
// variables, flow conservation, loop bounding, interrupt double-accounting
// correction, per-ABB machine-code expansion via perTaskModels, device
// energy costs via energyModel (nil disables the WCEC variant, giving a
// plain cycle-cost WCET), and the final global WCETVariable.
func Build(store *ilp.Store, program *pgm.Program, perTaskModels map[string]*ipet.Model, energyModel *energy.Model) (*Model, error) {
	if program.SSTG == nil {
		return nil, fmt.Errorf("sstg: program has no SSTG")
	}
	m := &Model{
		store:     store,
		program:   program,
		energy:    energyModel,
		nodeVar:   make(map[int]string),
		costTerms: make(map[string]int64),
	}
	g := program.SSTG

	for i := range g.Nodes {
		n := &g.Nodes[i]
		name := nodeVarName(n)
		if _, err := store.AddVariable(name, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return nil, err
		}
		m.nodeVar[n.Index] = name
		if n.Cost != nil {
			m.addCostTerm(name, m.cyclesCost(n, *n.Cost))
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := m.buildNodeEdges(n, g); err != nil {
			return nil, err
		}
	}
	if err := m.buildNodeInflow(g); err != nil {
		return nil, err
	}

	if err := m.buildLoopBounds(g); err != nil {
		return nil, err
	}
	if err := m.buildInterruptCorrection(g, perTaskModels); err != nil {
		return nil, err
	}
	if err := m.buildABBExpansion(g, perTaskModels); err != nil {
		return nil, err
	}
	if err := m.buildWCETVariable(); err != nil {
		return nil, err
	}
	return m, nil
}

// cyclesCost returns the per-activation cost of node n given its WCET
// contribution cycles, folding in per-cycle device energy when an energy
// model is present (the WCEC variant); otherwise cycles itself (WCET).
func (m *Model) cyclesCost(n *pgm.SSTGNode, cycles int64) int64 {
	if m.energy == nil {
		return cycles
	}
	return cycles * m.energy.CostPerCycle(energy.DeviceSet(n.Devices))
}

func (m *Model) successors(n *pgm.SSTGNode) []int {
	all := make([]int, 0, len(n.SuccessorsLocal)+len(n.SuccessorsGlobal))
	seen := make(map[int]bool)
	for _, s := range append(append([]int{}, n.SuccessorsLocal...), n.SuccessorsGlobal...) {
		if !seen[s] {
			seen[s] = true
			all = append(all, s)
		}
	}
	return all
}

// buildNodeEdges emits this node's outgoing edge variables, the node's
// flow-out constraint, and (for the source node) the entry-edges-sum-to-1
// constraint; flow-in constraints are emitted once all edges exist, so
// they are deferred to a second pass keyed by target index.
func (m *Model) buildNodeEdges(n *pgm.SSTGNode, g *pgm.SSTG) error {
	nodeVar := m.nodeVar[n.Index]
	succs := m.successors(n)

	outLHS := map[string]int64{nodeVar: -1}
	for _, succIdx := range succs {
		edgeVar := edgeVarName(n.Index, succIdx)
		if _, err := m.store.AddVariable(edgeVar, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return err
		}
		outLHS[edgeVar]++
		if target := &g.Nodes[succIdx]; target.Devices != nil || n.Devices != nil {
			sw := int64(0)
			if m.energy != nil {
				sw = m.energy.SwitchCost(energy.DeviceSet(n.Devices), energy.DeviceSet(target.Devices))
			}
			m.addCostTerm(edgeVar, sw)
		}
	}
	if n.IsSink || len(succs) == 0 {
		// sinks close the flow without an outgoing edge requirement.
	} else if len(succs) > 0 {
		if err := m.store.AddConstraint(outLHS, ilp.Equal, 0, fmt.Sprintf("sstg-flow-out-%d", n.Index), "structural"); err != nil {
			return err
		}
	}

	if n.IsSource {
		lhs := map[string]int64{}
		for _, succIdx := range succs {
			lhs[edgeVarName(n.Index, succIdx)]++
		}
		if err := m.store.AddConstraint(lhs, ilp.Equal, 1, "sstg-entry-sum", "structural"); err != nil {
			return err
		}
	}
	return nil
}

// buildNodeInflow emits, for every node, "sum(incoming edges) = node"
// (modulo the interrupt correction applied separately in
// buildInterruptCorrection).
func (m *Model) buildNodeInflow(g *pgm.SSTG) error {
	incoming := make(map[int]map[string]int64)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, succIdx := range m.successors(n) {
			if incoming[succIdx] == nil {
				incoming[succIdx] = make(map[string]int64)
			}
			incoming[succIdx][edgeVarName(n.Index, succIdx)]++
		}
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsSource {
			continue
		}
		lhs := incoming[n.Index]
		if lhs == nil {
			lhs = make(map[string]int64)
		}
		lhs[m.nodeVar[n.Index]] = -1
		if err := m.store.AddConstraint(lhs, ilp.Equal, 0, fmt.Sprintf("sstg-flow-in-%d", n.Index), "structural"); err != nil {
			return err
		}
	}
	return nil
}

// loopHeader picks the lowest-index node carrying loopID as the header,
// matching the ABB-index-ordering convention used throughout the SSTG.
func loopHeader(g *pgm.SSTG, loopID int) int {
	header := -1
	for i := range g.Nodes {
		for _, l := range g.Nodes[i].Loops {
			if l == loopID && (header == -1 || g.Nodes[i].Index < header) {
				header = g.Nodes[i].Index
			}
		}
	}
	return header
}

func inLoop(n *pgm.SSTGNode, loopID int) bool {
	for _, l := range n.Loops {
		if l == loopID {
			return true
		}
	}
	return false
}

// buildLoopBounds relates every SSTG loop's back-edges into its header to
// its entry edges by a large constant, bounding otherwise-unbounded loop
// iteration counts.
func (m *Model) buildLoopBounds(g *pgm.SSTG) error {
	loopIDs := make(map[int]bool)
	for i := range g.Nodes {
		for _, l := range g.Nodes[i].Loops {
			loopIDs[l] = true
		}
	}
	ids := make([]int, 0, len(loopIDs))
	for l := range loopIDs {
		ids = append(ids, l)
	}
	sort.Ints(ids)

	for _, loopID := range ids {
		header := loopHeader(g, loopID)
		if header == -1 {
			continue
		}
		entryLHS := map[string]int64{}
		backLHS := map[string]int64{}
		for i := range g.Nodes {
			n := &g.Nodes[i]
			for _, succIdx := range m.successors(n) {
				if succIdx != header {
					continue
				}
				edgeVar := edgeVarName(n.Index, header)
				if inLoop(n, loopID) {
					backLHS[edgeVar]++
				} else {
					entryLHS[edgeVar]++
				}
			}
		}
		if len(backLHS) == 0 {
			continue
		}
		lhs := make(map[string]int64, len(backLHS)+len(entryLHS))
		for v, c := range backLHS {
			lhs[v] += c
		}
		for v, c := range entryLHS {
			lhs[v] -= loopBound * c
		}
		if err := m.store.AddConstraint(lhs, ilp.LessEqual, 0, fmt.Sprintf("sstg-loop-bound-%d", loopID), "structural"); err != nil {
			return err
		}
	}
	return nil
}

// buildInterruptCorrection adds, for every interruptible (non-source,
// non-sink, non-microstructure) ABB node, one resume edge per ISR entry
// node and the pos/neg SOS1 correction pair.
func (m *Model) buildInterruptCorrection(g *pgm.SSTG, perTaskModels map[string]*ipet.Model) error {
	var isrEntries []int
	for i := range g.Nodes {
		if g.Nodes[i].ISREntry {
			isrEntries = append(isrEntries, g.Nodes[i].Index)
		}
	}
	if len(isrEntries) == 0 {
		return nil
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsSource || n.IsSink || n.Microstructure {
			continue
		}
		resumeSum := map[string]int64{}
		irqSum := map[string]int64{}
		for _, isr := range isrEntries {
			rv := resumeVarName(isr, n.Index)
			if _, err := m.store.AddVariable(rv, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
				return err
			}
			// a resume can happen at most once per activation of the
			// interrupting ISR, otherwise nothing bounds it above.
			boundLHS := map[string]int64{rv: 1, m.nodeVar[isr]: -1}
			if err := m.store.AddConstraint(boundLHS, ilp.LessEqual, 0, fmt.Sprintf("sstg-resume-bound-%d-%d", isr, n.Index), "structural"); err != nil {
				return err
			}
			resumeSum[rv]++
			irqSum[m.nodeVar[isr]]++
		}

		posName := fmt.Sprintf("sstg:pos:%d", n.Index)
		negName := fmt.Sprintf("sstg:neg:%d", n.Index)
		if _, err := m.store.AddVariable(posName, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return err
		}
		if _, err := m.store.AddVariable(negName, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
			return err
		}
		if _, err := m.store.AddSOS1(fmt.Sprintf("sstg-sos1-%d", n.Index), []string{posName, negName}, 1); err != nil {
			return err
		}

		lhs := map[string]int64{posName: 1, negName: -1}
		for v, c := range resumeSum {
			lhs[v] -= c
		}
		for v, c := range irqSum {
			lhs[v] += c
		}
		if err := m.store.AddConstraint(lhs, ilp.Equal, 0, fmt.Sprintf("sstg-interrupt-correction-%d", n.Index), "structural"); err != nil {
			return err
		}
	}
	return nil
}

// buildABBExpansion forces each non-microstructure ABB's entry-block
// frequency (in its per-task IPET model) to equal the SSTG inflow,
// corrected by the interrupt pos term where applicable.
func (m *Model) buildABBExpansion(g *pgm.SSTG, perTaskModels map[string]*ipet.Model) error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Microstructure || n.Function == "" {
			continue
		}
		taskModel, ok := perTaskModels[n.Function]
		if !ok {
			continue
		}
		entryVar, ok := taskModel.EntryBlockVar(n.Function)
		if !ok {
			continue
		}
		lhs := map[string]int64{entryVar: -1, m.nodeVar[n.Index]: 1}
		if n.ISREntry {
			// no interrupt correction applied to the ISR's own entry node.
		} else if _, hasPos := m.store.Index(fmt.Sprintf("sstg:pos:%d", n.Index)); hasPos {
			lhs[fmt.Sprintf("sstg:pos:%d", n.Index)] = 1
			for j := range g.Nodes {
				if g.Nodes[j].ISREntry {
					lhs[m.nodeVar[g.Nodes[j].Index]] -= 1
				}
			}
		}
		if err := m.store.AddConstraint(lhs, ilp.Equal, 0, fmt.Sprintf("sstg-abb-expansion-%d", n.Index), "structural"); err != nil {
			return err
		}
	}
	return nil
}

// buildWCETVariable introduces the single global time variable equal to
// the cost-weighted sum accumulated while building the superstructure, and
// makes it the sole objective term.
func (m *Model) buildWCETVariable() error {
	if _, err := m.store.AddVariable(WCETVariable, pp.GCFG, nil); err != nil && err != ilp.ErrDuplicateVariable {
		return err
	}
	lhs := map[string]int64{WCETVariable: -1}
	for v, c := range m.costTerms {
		lhs[v] += c
	}
	if err := m.store.AddConstraint(lhs, ilp.Equal, 0, "sstg-wcet-variable", "structural"); err != nil {
		return err
	}
	return m.store.AddCost(WCETVariable, 1)
}

// NodeVar returns the ConstraintStore variable name for SSTG node index.
func (m *Model) NodeVar(index int) (string, bool) {
	v, ok := m.nodeVar[index]
	return v, ok
}
