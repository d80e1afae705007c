package ilp

import "errors"

// ErrUnknownVariable is returned when a constraint, cost term, or SOS1
// group references a variable name that was never added to the store.
var ErrUnknownVariable = errors.New("ilp: unknown variable")

// ErrDuplicateVariable is returned by AddVariable when the name already
// exists.
var ErrDuplicateVariable = errors.New("ilp: duplicate variable")

// ErrInconsistentConstraint is returned by AddConstraint when
// normalization proves the constraint can never hold (e.g. 0 <= -1).
var ErrInconsistentConstraint = errors.New("ilp: inconsistent constraint")

// SolveErrorKind distinguishes why SolveMax could not produce a bound.
type SolveErrorKind int

const (
	Unbounded SolveErrorKind = iota
	Infeasible
)

func (k SolveErrorKind) String() string {
	if k == Unbounded {
		return "unbounded"
	}
	return "infeasible"
}

// SolveError reports a failed solve along with whatever partial
// frequencies the solver could still report, for diagnosis. Partial is
// keyed by variable name.
type SolveError struct {
	Kind    SolveErrorKind
	Partial map[string]int64
	Detail  string
}

func (e *SolveError) Error() string {
	if e.Detail != "" {
		return "ilp: solve " + e.Kind.String() + ": " + e.Detail
	}
	return "ilp: solve " + e.Kind.String()
}

// SolverFailure is what a Solver implementation reports on failure; its
// Partial frequencies are keyed by the store's internal variable index
// rather than by name, since the solver only sees a Problem snapshot.
type SolverFailure struct {
	Kind    SolveErrorKind
	Partial map[int]int64
	Detail  string
}
