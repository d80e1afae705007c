package refine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkInfeasibleAndIsInfeasible(t *testing.T) {
	r := New()
	require.False(t, r.IsInfeasible("bc:blk:f/dead"))

	r.MarkInfeasible("bc:blk:f/dead")
	require.True(t, r.IsInfeasible("bc:blk:f/dead"))
	require.False(t, r.IsInfeasible("bc:blk:f/live"))
}

func TestRestrictCalleesIntersectsRepeatedRestrictions(t *testing.T) {
	r := New()
	_, ok := r.CalleesFor("bc:insn:f/entry/0")
	require.False(t, ok)

	r.RestrictCallees("bc:insn:f/entry/0", []string{"a", "b", "c"})
	callees, ok := r.CalleesFor("bc:insn:f/entry/0")
	require.True(t, ok)
	require.ElementsMatch(t, []string{"a", "b", "c"}, callees)

	// a second, narrower restriction on the same callsite must intersect,
	// not replace or union, per the component design's cumulative
	// refinement semantics.
	r.RestrictCallees("bc:insn:f/entry/0", []string{"b", "c", "d"})
	callees, ok = r.CalleesFor("bc:insn:f/entry/0")
	require.True(t, ok)
	require.ElementsMatch(t, []string{"b", "c"}, callees)
}
