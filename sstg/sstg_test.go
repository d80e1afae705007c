package sstg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/pgm"
)

func ptr(v int64) *int64 { return &v }

// interruptibleGraph builds a minimal source -> task -> sink chain plus one
// standalone ISR entry (marked microstructure so it is excluded from its own
// interrupt-correction bookkeeping) able to interrupt the task ABB.
func interruptibleGraph() *pgm.Program {
	return &pgm.Program{
		SSTG: &pgm.SSTG{
			Name: "global",
			Nodes: []pgm.SSTGNode{
				{Index: 0, IsSource: true, SuccessorsLocal: []int{1}},
				{Index: 1, Function: "task", Cost: ptr(5), SuccessorsLocal: []int{2}},
				{Index: 2, IsSink: true},
				{Index: 3, ISREntry: true, Microstructure: true, Function: "isr", Cost: ptr(2)},
			},
		},
	}
}

func findConstraint(store *ilp.Store, name string) *ilp.Constraint {
	for _, c := range store.Constraints() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestBuildWiresWCETVariableAndInterruptCorrection checks, without solving,
// that Build emits the cost-weighted WCETVariable equation over every
// costed node and the SOS1-paired interrupt-correction constraint for the
// one interruptible (non-source/sink/microstructure) ABB node.
func TestBuildWiresWCETVariableAndInterruptCorrection(t *testing.T) {
	program := interruptibleGraph()
	store := ilp.New(options.Default())

	m, err := Build(store, program, map[string]*ipet.Model{}, nil)
	require.NoError(t, err)

	wcetIdx, ok := store.Index(WCETVariable)
	require.True(t, ok)
	require.Equal(t, int64(1), store.Cost()[wcetIdx])

	taskVar, ok := m.NodeVar(1)
	require.True(t, ok)
	isrVar, ok := m.NodeVar(3)
	require.True(t, ok)
	taskIdx, _ := store.Index(taskVar)
	isrIdx, _ := store.Index(isrVar)

	wcetEq := findConstraint(store, "sstg-wcet-variable")
	require.NotNil(t, wcetEq)
	require.Equal(t, ilp.Equal, wcetEq.Op)
	require.Equal(t, int64(-1), wcetEq.GetCoeff(wcetIdx))
	require.Equal(t, int64(5), wcetEq.GetCoeff(taskIdx))
	require.Equal(t, int64(2), wcetEq.GetCoeff(isrIdx))

	// node 3 (the ISR entry) is microstructure, so it gets no resume/pos/neg
	// bookkeeping of its own.
	_, hasPos3 := store.Index("sstg:pos:3")
	require.False(t, hasPos3)

	// node 1 (the task ABB) is interruptible: it must get a resume edge from
	// the one ISR entry plus an SOS1-paired pos/neg correction term.
	posIdx, ok := store.Index("sstg:pos:1")
	require.True(t, ok)
	negIdx, ok := store.Index("sstg:neg:1")
	require.True(t, ok)
	resumeIdx, ok := store.Index("gpp:sstg:resume:3->1")
	require.True(t, ok)

	corrected := findConstraint(store, "sstg-interrupt-correction-1")
	require.NotNil(t, corrected)
	require.Equal(t, ilp.Equal, corrected.Op)
	require.Equal(t, int64(1), corrected.GetCoeff(posIdx))
	require.Equal(t, int64(-1), corrected.GetCoeff(negIdx))
	require.Equal(t, int64(-1), corrected.GetCoeff(resumeIdx))
	require.Equal(t, int64(1), corrected.GetCoeff(isrIdx))

	var group *ilp.SOS1Group
	for _, g := range store.SOS1Groups() {
		if g.Name == "sstg-sos1-1" {
			group = g
		}
	}
	require.NotNil(t, group)
	require.Equal(t, 1, group.Cardinality)
	require.ElementsMatch(t, []int{posIdx, negIdx}, group.Vars)

	// the resume edge must be bounded by the interrupting ISR's own
	// activation variable, otherwise pos (and so entry-frequency, and so
	// WCETVariable) is free-floating under the SOS1 pairing.
	resumeBound := findConstraint(store, "sstg-resume-bound-3-1")
	require.NotNil(t, resumeBound)
	require.Equal(t, ilp.LessEqual, resumeBound.Op)
	require.Equal(t, int64(1), resumeBound.GetCoeff(resumeIdx))
	require.Equal(t, int64(-1), resumeBound.GetCoeff(isrIdx))
	require.Equal(t, int64(0), resumeBound.RHS)
}
