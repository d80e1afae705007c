package ipet

import "github.com/wcetcore/wcet/pp"

// Category classifies an IPETEdge by the kinds of its endpoints, per the
// data model: both endpoints blocks (or Exit) is a CFG edge; source an
// instruction and target a function is a call edge; endpoints in a
// relation graph are a relation-graph edge; endpoints in the state
// transition graph are a gcfg edge.
type Category int

const (
	CFGEdge Category = iota
	CallEdge
	RelationGraphEdge
	GCFGEdge
)

// Edge is one IPET edge: a typed directed edge whose qualified name
// (matching pp.Edge.Name()) is its ConstraintStore variable name.
type Edge struct {
	PP       pp.Edge
	Category Category
}

// Name returns the ConstraintStore variable name for this edge.
func (e Edge) Name() string { return e.PP.Name() }

// CostFunc computes the architecture-dependent cost of one edge. The
// core treats this as an opaque external collaborator: it never inspects
// cycle tables itself, only calls through this function.
type CostFunc func(e Edge) int64
