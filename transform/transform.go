// Package transform implements level transformation (machine code to
// bitcode, "up", or the reverse, "down") by building equality constraints
// out of a relation graph, then handing off to package elim to project
// the combined IPET onto the target level's CFG edges.
package transform

import (
	"fmt"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
)

// Direction is which way a transformation projects: Up goes machine code
// to bitcode, Down goes bitcode to machine code.
type Direction int

const (
	Up Direction = iota
	Down
)

// ErrMissingRelationGraph describes a function for which no relation graph
// links the two levels. The orchestrator does not return it: it logs its
// text as a warning for that function, counts it, and skips the function
// rather than failing the whole transformation.
var ErrMissingRelationGraph = fmt.Errorf("transform: missing relation graph")

// BuildRelationConstraints emits the relation-graph equality constraints
// linking srcModel (machine code or bitcode, per rg.Src.Level) and
// dstModel (the other level, per rg.Dst.Level): block-to-block frequency
// correspondence at every progress/entry/exit node, and successor-boundary
// correspondence between the two sides' branch structure.
func BuildRelationConstraints(store *ilp.Store, srcModel, dstModel *ipet.Model, rg *pgm.RelationGraph) error {
	for i, n := range rg.Nodes {
		if n.SrcBlock == "" || n.DstBlock == "" {
			continue
		}
		srcVar := pp.Block{Func: rg.Src.Function, Block: n.SrcBlock, Level: rg.Src.Level}.Name()
		dstVar := pp.Block{Func: rg.Dst.Function, Block: n.DstBlock, Level: rg.Dst.Level}.Name()
		if _, ok := store.Index(srcVar); !ok {
			continue
		}
		if _, ok := store.Index(dstVar); !ok {
			continue
		}
		if err := store.AddConstraint(map[string]int64{srcVar: 1, dstVar: -1}, ilp.Equal, 0,
			fmt.Sprintf("relation-block-%s-%d", rg.Src.Function, i), "structural", "relation"); err != nil {
			return err
		}

		if len(n.SrcSuccessors) == 0 || len(n.DstSuccessors) == 0 {
			continue
		}
		lhs := map[string]int64{}
		for _, s := range n.SrcSuccessors {
			lhs[pp.Edge{Func: rg.Src.Function, Source: n.SrcBlock, Target: s, Level: rg.Src.Level}.Name()]++
		}
		for _, s := range n.DstSuccessors {
			lhs[pp.Edge{Func: rg.Dst.Function, Source: n.DstBlock, Target: s, Level: rg.Dst.Level}.Name()]--
		}
		if err := store.AddConstraint(lhs, ilp.Equal, 0,
			fmt.Sprintf("relation-successors-%s-%d", rg.Src.Function, i), "structural", "relation"); err != nil {
			return err
		}
	}
	return nil
}

// targetEdgeVars returns every edge variable (CFG and call edges alike)
// in store that belongs to level, used to decide which variables survive projection.
func targetEdgeVars(store *ilp.Store, level pp.Level) map[int]bool {
	keep := make(map[int]bool)
	for v := 1; v <= store.NumVars(); v++ {
		if store.Level(v) != level {
			continue
		}
		name := store.Name(v)
		if containsEdgeMarker(name) {
			keep[v] = true
		}
	}
	return keep
}

func containsEdgeMarker(name string) bool {
	for i := 0; i+6 <= len(name); i++ {
		if name[i:i+6] == ":edge:" {
			return true
		}
	}
	return false
}

// EliminationTargets returns the variable indices that must be eliminated
// to project store's combined constraint system onto level's edges:
// every variable that is not an edge variable at level.
func EliminationTargets(store *ilp.Store, level pp.Level) []int {
	keep := targetEdgeVars(store, level)
	var out []int
	for v := 1; v <= store.NumVars(); v++ {
		if keep[v] {
			continue
		}
		out = append(out, v)
	}
	return out
}
