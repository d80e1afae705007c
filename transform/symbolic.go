package transform

import (
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/report"
)

// ChainOfRecurrence is a closed-form {base, step, count} loop bound
// expression: the value after n iterations is base + step*n. TripCount
// nil means the iteration count is itself symbolic (not known at
// transformation time).
type ChainOfRecurrence struct {
	Base      int64
	Step      int64
	TripCount *int64
}

// ResolveChainOfRecurrence resolves cor to a constant bound by nested
// substitution when its trip count is itself constant. A symbolic trip
// count cannot be resolved; per the preserved limitation, callers discard
// the bound rather than attempting further resolution.
func ResolveChainOfRecurrence(cor ChainOfRecurrence) (int64, bool) {
	if cor.TripCount == nil {
		return 0, false
	}
	return cor.Base + cor.Step*(*cor.TripCount), true
}

// SymbolicBoundTransformation maps a machine-code (or bitcode) loop-bound
// expressed as a ChainOfRecurrence across the relation graph to the other
// level, substituting block and function names via the graph's node
// correspondence and resolving the bound via ResolveChainOfRecurrence.
// Triangle (non-constant trip count) bounds are discarded: ok is false and
// a warning is logged rather than emitting a partially-resolved fact. The
// caller builds the actual pgm.FlowFact once it has the target IPET model
// to resolve the mapped block against.
func SymbolicBoundTransformation(rg *pgm.RelationGraph, scopeFunc, scopeBlock string, cor ChainOfRecurrence, dir Direction, log *report.Log) (mappedFunc, mappedBlock string, bound int64, ok bool) {
	bound, ok = ResolveChainOfRecurrence(cor)
	if !ok {
		log.Logf(report.Warning, scopeFunc+"/"+scopeBlock, "symbolic triangle loop bound discarded (non-constant trip count)")
		return "", "", 0, false
	}

	mappedFunc, mappedBlock, ok = mapBlockAcross(rg, scopeFunc, scopeBlock, dir)
	if !ok {
		log.Logf(report.Warning, scopeFunc+"/"+scopeBlock, "no relation-graph node for loop bound mapping")
		return "", "", 0, false
	}
	return mappedFunc, mappedBlock, bound, true
}

// mapBlockAcross looks up the relation-graph node naming (scopeFunc,
// scopeBlock) as the src (Up) or dst (Down) side, returning the
// corresponding function/block name on the other side.
func mapBlockAcross(rg *pgm.RelationGraph, scopeFunc, scopeBlock string, dir Direction) (string, string, bool) {
	for _, n := range rg.Nodes {
		if dir == Up {
			if rg.Src.Function == scopeFunc && n.SrcBlock == scopeBlock {
				return rg.Dst.Function, n.DstBlock, n.DstBlock != ""
			}
		} else {
			if rg.Dst.Function == scopeFunc && n.DstBlock == scopeBlock {
				return rg.Src.Function, n.SrcBlock, n.SrcBlock != ""
			}
		}
	}
	return "", "", false
}
