package pgm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/pp"
)

func sampleProgram() *Program {
	return &Program{
		Functions: []Function{{
			Name:  "f",
			Level: pp.Bitcode,
			Blocks: []Block{
				{Name: "entry", Successors: []string{"loop"}},
				{Name: "loop", Predecessors: []string{"entry", "loop"}, Successors: []string{"loop", "exit"}, Loops: []string{"loop"}},
				{Name: "exit", Predecessors: []string{"loop"}, MayReturn: true},
			},
		}},
		FlowFacts: []FlowFact{{
			Scope: pp.ContextRef{Point: pp.Loop{Func: "f", Header: "loop", Level: pp.Bitcode}},
			LHS:   []Term{{Factor: 1, Point: pp.Edge{Func: "f", Source: "loop", Target: "loop", Level: pp.Bitcode}}},
			Op:    FFLessEqual,
			RHS:   10,
			Level: pp.Bitcode,
		}},
	}
}

// TestEncodeDecodeProgramRoundTrips checks that a program with a
// program-point-bearing flow fact survives an Encode/Decode cycle, since
// ProgramPoint is an interface encoding/json cannot handle without the
// kind-tagged document layer.
func TestEncodeDecodeProgramRoundTrips(t *testing.T) {
	original := sampleProgram()

	data, err := EncodeProgram(original)
	require.NoError(t, err)

	decoded, err := DecodeProgram(data)
	require.NoError(t, err)

	require.Len(t, decoded.Functions, 1)
	require.Equal(t, "f", decoded.Functions[0].Name)
	require.Len(t, decoded.FlowFacts, 1)

	fact := decoded.FlowFacts[0]
	require.Equal(t, FFLessEqual, fact.Op)
	require.Equal(t, int64(10), fact.RHS)
	require.Equal(t, pp.Bitcode, fact.Level)

	scope, ok := fact.Scope.Point.(pp.Loop)
	require.True(t, ok)
	require.Equal(t, pp.Loop{Func: "f", Header: "loop", Level: pp.Bitcode}, scope)

	require.Len(t, fact.LHS, 1)
	edge, ok := fact.LHS[0].Point.(pp.Edge)
	require.True(t, ok)
	require.Equal(t, pp.Edge{Func: "f", Source: "loop", Target: "loop", Level: pp.Bitcode}, edge)
	require.Equal(t, int64(1), fact.LHS[0].Factor)
}

// TestEncodeFlowFactsProducesWellFormedJSON checks the bare
// EncodeFlowFacts path (used for --out results with no surrounding
// program) writes the fact's op and rhs fields in the per-fact shape
// DecodeProgram's flowFactDoc uses.
func TestEncodeFlowFactsProducesWellFormedJSON(t *testing.T) {
	facts := []FlowFact{{
		Scope: pp.ContextRef{Point: pp.ConstantProgramPoint{Tag: "one", Value: 1}},
		LHS:   []Term{{Factor: 1, Point: pp.Block{Func: "main", Block: "body", Level: pp.Bitcode}}},
		Op:    FFLessEqual,
		RHS:   3,
		Level: pp.Bitcode,
	}}
	data, err := EncodeFlowFacts(facts)
	require.NoError(t, err)
	require.Contains(t, string(data), `"op": "less-equal"`)
	require.Contains(t, string(data), `"rhs": 3`)
}
