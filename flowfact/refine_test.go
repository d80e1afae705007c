package flowfact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
)

// TestComputeRefinementPropagatesInfeasibility builds entry -> {A, C},
// A -> exit, C -> D -> exit, marks C directly infeasible via a
// block-frequency-zero flow fact, and checks that D (whose only
// predecessor is C) is propagated infeasible too, while A and exit (which
// have a feasible predecessor/successor) are not.
func TestComputeRefinementPropagatesInfeasibility(t *testing.T) {
	const lvl = pp.Bitcode
	program := &pgm.Program{
		Functions: []pgm.Function{{
			Name:  "f",
			Level: lvl,
			Blocks: []pgm.Block{
				{Name: "entry", Successors: []string{"A", "C"}},
				{Name: "A", Predecessors: []string{"entry"}, Successors: []string{"exit"}},
				{Name: "C", Predecessors: []string{"entry"}, Successors: []string{"D"}},
				{Name: "D", Predecessors: []string{"C"}, Successors: []string{"exit"}},
				{Name: "exit", Predecessors: []string{"A", "D"}, MayReturn: true},
			},
		}},
	}

	facts := []pgm.FlowFact{{
		Scope: pp.ContextRef{Point: pp.Block{Func: "f", Block: "C", Level: lvl}},
		LHS:   nil,
		Op:    pgm.FFEqual,
		RHS:   0,
		Level: lvl,
	}}

	log := report.New()
	r := ComputeRefinement(program, facts, log)

	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "C", Level: lvl}.Name()))
	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "D", Level: lvl}.Name()),
		"D's only predecessor C is infeasible, so D must be propagated infeasible")
	require.False(t, r.IsInfeasible(pp.Block{Func: "f", Block: "A", Level: lvl}.Name()))
	require.False(t, r.IsInfeasible(pp.Block{Func: "f", Block: "entry", Level: lvl}.Name()))
	require.False(t, r.IsInfeasible(pp.Block{Func: "f", Block: "exit", Level: lvl}.Name()),
		"exit has a feasible predecessor (A), so it must not be propagated infeasible")
}

// TestComputeRefinementIgnoresBackEdgeForPredecessorPropagation builds a
// loop entry -> header -> {body, exit}, body -> header (back-edge), marks
// only entry infeasible, and checks header is still propagated infeasible
// from its sole forward predecessor even though its back-edge predecessor
// (body) is not independently known infeasible — the back-edge predecessor
// must be excluded from the "every predecessor infeasible" check, not
// treated as a blocking counterexample.
func TestComputeRefinementIgnoresBackEdgeForPredecessorPropagation(t *testing.T) {
	const lvl = pp.Bitcode
	program := &pgm.Program{
		Functions: []pgm.Function{{
			Name:  "f",
			Level: lvl,
			Blocks: []pgm.Block{
				{Name: "entry", Successors: []string{"header"}},
				{Name: "header", Predecessors: []string{"entry", "body"}, Successors: []string{"body", "exit"}, Loops: []string{"header"}},
				{Name: "body", Predecessors: []string{"header"}, Successors: []string{"header"}, Loops: []string{"header"}},
				{Name: "exit", Predecessors: []string{"header"}, MayReturn: true},
			},
		}},
	}

	facts := []pgm.FlowFact{{
		Scope: pp.ContextRef{Point: pp.Block{Func: "f", Block: "entry", Level: lvl}},
		LHS:   nil,
		Op:    pgm.FFEqual,
		RHS:   0,
		Level: lvl,
	}}

	log := report.New()
	r := ComputeRefinement(program, facts, log)

	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "entry", Level: lvl}.Name()))
	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "header", Level: lvl}.Name()),
		"header's only forward predecessor (entry) is infeasible; the back-edge predecessor (body) must not block propagation")
	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "body", Level: lvl}.Name()))
	require.True(t, r.IsInfeasible(pp.Block{Func: "f", Block: "exit", Level: lvl}.Name()))
}
