package ipet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
)

func callerCalleeProgram() *pgm.Program {
	return &pgm.Program{
		Functions: []pgm.Function{
			{
				Name:  "main",
				Level: pp.Bitcode,
				Blocks: []pgm.Block{
					{Name: "entry", Successors: []string{"exit"}, Instructions: []pgm.Instruction{
						{Index: 0, Opcode: "call", Callees: []string{"callee"}, BranchType: pgm.BranchCall},
					}},
					{Name: "exit", Predecessors: []string{"entry"}, MayReturn: true},
				},
			},
			{
				Name:  "callee",
				Level: pp.Bitcode,
				Blocks: []pgm.Block{
					{Name: "entry", MayReturn: true},
				},
			},
		},
	}
}

// TestBuildWiresCallsiteAndEntryFrequency checks that a direct call emits
// the callsite=block-frequency equality, the sum(call edges)<=callsite
// bound, and that the callee's entry frequency is tied to the sum of
// incoming call edges.
func TestBuildWiresCallsiteAndEntryFrequency(t *testing.T) {
	program := callerCalleeProgram()
	store := ilp.New(options.Default())

	model, err := Build(store, program, pp.Bitcode, "main", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, model.Reachable("callee"))

	callsiteVar := pp.Instruction{Func: "main", Block: "entry", Index: 0, Level: pp.Bitcode}.Name()
	blockVar := pp.Block{Func: "main", Block: "entry", Level: pp.Bitcode}.Name()
	callEdgeVar := pp.Edge{Func: "main", Source: callsiteVar, Target: "callee", Level: pp.Bitcode}.Name()
	calleeEntryVar := pp.Block{Func: "callee", Block: "entry", Level: pp.Bitcode}.Name()

	var tie, bound, entryFreq *ilp.Constraint
	for _, c := range store.Constraints() {
		switch c.Name {
		case "callsite-" + callsiteVar:
			tie = c
		case "call-bound-" + callsiteVar:
			bound = c
		case "entry-freq-" + calleeEntryVar:
			entryFreq = c
		}
	}
	require.NotNil(t, tie)
	require.NotNil(t, bound)
	require.NotNil(t, entryFreq)

	callsiteIdx, _ := store.Index(callsiteVar)
	blockIdx, _ := store.Index(blockVar)
	callEdgeIdx, _ := store.Index(callEdgeVar)
	calleeEntryIdx, _ := store.Index(calleeEntryVar)

	require.Equal(t, ilp.Equal, tie.Op)
	require.Equal(t, int64(1), tie.GetCoeff(callsiteIdx))
	require.Equal(t, int64(-1), tie.GetCoeff(blockIdx))

	require.Equal(t, ilp.LessEqual, bound.Op)
	require.Equal(t, int64(-1), bound.GetCoeff(callsiteIdx))
	require.Equal(t, int64(1), bound.GetCoeff(callEdgeIdx))

	require.Equal(t, ilp.Equal, entryFreq.Op)
	require.Equal(t, int64(-1), entryFreq.GetCoeff(calleeEntryIdx))
	require.Equal(t, int64(1), entryFreq.GetCoeff(callEdgeIdx))
}

// TestBuildRejectsUnresolvedIndirectCall checks that an indirect branch
// with no statically known and no refined target set is fatal, per the
// component design.
func TestBuildRejectsUnresolvedIndirectCall(t *testing.T) {
	program := &pgm.Program{
		Functions: []pgm.Function{{
			Name:  "main",
			Level: pp.Bitcode,
			Blocks: []pgm.Block{
				{Name: "entry", MayReturn: true, Instructions: []pgm.Instruction{
					{Index: 0, Opcode: "icall", BranchType: pgm.BranchIndirect},
				}},
			},
		}},
	}
	store := ilp.New(options.Default())
	_, err := Build(store, program, pp.Bitcode, "main", nil, nil, nil)
	require.ErrorIs(t, err, ErrUnresolvedIndirectCall)
}
