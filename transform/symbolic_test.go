package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
)

func sampleRelationGraph() *pgm.RelationGraph {
	return &pgm.RelationGraph{
		Src: pgm.FunctionRef{Function: "f", Level: pp.MachineCode},
		Dst: pgm.FunctionRef{Function: "f", Level: pp.Bitcode},
		Nodes: []pgm.RelationNode{
			{Name: "loop", SrcBlock: "loop.mc", DstBlock: "loop.bc"},
		},
	}
}

func TestResolveChainOfRecurrenceRequiresConstantTripCount(t *testing.T) {
	trip := int64(10)
	bound, ok := ResolveChainOfRecurrence(ChainOfRecurrence{Base: 0, Step: 1, TripCount: &trip})
	require.True(t, ok)
	require.Equal(t, int64(10), bound)

	_, ok = ResolveChainOfRecurrence(ChainOfRecurrence{Base: 0, Step: 1, TripCount: nil})
	require.False(t, ok, "a symbolic (non-constant) trip count cannot be resolved")
}

func TestSymbolicBoundTransformationMapsConstantBoundAcross(t *testing.T) {
	rg := sampleRelationGraph()
	trip := int64(10)
	log := report.New()

	mappedFunc, mappedBlock, bound, ok := SymbolicBoundTransformation(
		rg, "f", "loop.mc", ChainOfRecurrence{Base: 0, Step: 1, TripCount: &trip}, Up, log)
	require.True(t, ok)
	require.Equal(t, "f", mappedFunc)
	require.Equal(t, "loop.bc", mappedBlock)
	require.Equal(t, int64(10), bound)
}

func TestSymbolicBoundTransformationDiscardsNonConstantTripCount(t *testing.T) {
	rg := sampleRelationGraph()
	log := report.New()

	_, _, _, ok := SymbolicBoundTransformation(rg, "f", "loop.mc", ChainOfRecurrence{Base: 0, Step: 1}, Up, log)
	require.False(t, ok)
	require.Len(t, log.Entries, 1)
	require.Equal(t, report.Warning, log.Entries[0].Severity)
}

func TestSymbolicBoundTransformationDiscardsMissingRelationNode(t *testing.T) {
	rg := sampleRelationGraph()
	trip := int64(3)
	log := report.New()

	_, _, _, ok := SymbolicBoundTransformation(rg, "f", "unknown.mc", ChainOfRecurrence{Base: 0, Step: 2, TripCount: &trip}, Up, log)
	require.False(t, ok)
	require.Len(t, log.Entries, 1)
}
