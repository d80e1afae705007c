// Package elim implements VariableElimination: projecting a constraint
// system onto a chosen subset of variables by substitution (equalities)
// and Fourier-Motzkin combination (inequalities). The worklist order
// prefers the variable whose elimination loses the least information, as
// described in the component design; the secondary tiebreak protects
// explicit infeasibility annotations (x = 0) from being eliminated first.
package elim

import (
	"errors"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/wcetcore/wcet/ilp"
)

// ErrProtectedZeroEquality is returned when the elimination order would
// have to consume a x = 0 equality that originated from an explicit
// infeasibility annotation. This indicates the caller asked to eliminate
// an over-broad set of variables; the correct fix is to narrow the
// elimination request, not to silently proceed.
var ErrProtectedZeroEquality = errors.New("elim: refusing to eliminate a protected infeasibility annotation (x = 0)")

// ErrCostedVariable is returned when the caller asks to eliminate a
// variable that carries non-zero cost; the objective would become
// meaningless after projection.
var ErrCostedVariable = errors.New("elim: cannot eliminate a variable with non-zero cost")

// Options configures the elimination ordering.
type Options struct {
	// TieBreakBySecondary enables the secondary tiebreak (fewest
	// unaffected-variable references) when multiple equality-bearing
	// variables tie on the primary score. Disabling it is a documented,
	// configurable behavior per the component design's open question.
	TieBreakBySecondary bool

	// ProtectZeroEqualities, when true, refuses to ever pick a variable
	// whose only equality constraint is the protected x = 0 shape,
	// raising ErrProtectedZeroEquality instead. It is false in the zero
	// value; DefaultOptions sets it to true.
	ProtectZeroEqualities bool
}

// DefaultOptions returns the conservative default: secondary tiebreak and
// zero-equality protection both enabled.
func DefaultOptions() Options {
	return Options{TieBreakBySecondary: true, ProtectZeroEqualities: true}
}

// remainingSet is the set of variable indices still to be eliminated,
// backed by a bitset since membership tests against it dominate the
// elimination loop (every live constraint's variables are tested against
// it on every pickNext call).
type remainingSet struct {
	bs    *bitset.BitSet
	count int
}

func newRemainingSet(maxVar int, vars []int) *remainingSet {
	r := &remainingSet{bs: bitset.New(uint(maxVar + 1))}
	for _, v := range vars {
		if !r.bs.Test(uint(v)) {
			r.bs.Set(uint(v))
			r.count++
		}
	}
	return r
}

func (r *remainingSet) has(v int) bool { return r.bs.Test(uint(v)) }
func (r *remainingSet) empty() bool    { return r.count == 0 }
func (r *remainingSet) remove(v int) {
	if r.bs.Test(uint(v)) {
		r.bs.Clear(uint(v))
		r.count--
	}
}

func (r *remainingSet) vars() []int {
	out := make([]int, 0, r.count)
	for v, ok := r.bs.NextSet(0); ok; v, ok = r.bs.NextSet(v + 1) {
		out = append(out, int(v))
	}
	return out
}

// Eliminate projects store's constraint system onto every variable not in
// eliminate, in place. None of the variables in eliminate may carry
// non-zero cost. The residual system is installed in the store via
// ReplaceConstraints; only an error is returned.
func Eliminate(store *ilp.Store, eliminate []int, opts Options) error {
	cost := store.Cost()
	for _, v := range eliminate {
		if cost[v] != 0 {
			return ErrCostedVariable
		}
	}
	remaining := newRemainingSet(store.NumVars(), eliminate)
	if remaining.empty() {
		return nil
	}

	live := append([]*ilp.Constraint{}, store.Constraints()...)

	for !remaining.empty() {
		v, isEquality, eqIdx, err := pickNext(live, remaining, opts)
		if err != nil {
			return err
		}

		if isEquality {
			live = substitute(live, eqIdx, v)
		} else {
			live = fmEliminate(live, v)
		}
		remaining.remove(v)
		store.MarkEliminated(v)
	}

	store.ReplaceConstraints(live)
	return nil
}

// pickNext selects the next variable to eliminate and, if an equality is
// available, the index of the equality constraint in live to substitute
// with.
func pickNext(live []*ilp.Constraint, remaining *remainingSet, opts Options) (v int, isEquality bool, eqIdx int, err error) {
	var bestEq *candidate
	protected := make(map[int]bool)
	for i, c := range live {
		if c.Op != ilp.Equal {
			continue
		}
		for _, cv := range c.Vars() {
			if !remaining.has(cv) {
				continue
			}
			if opts.ProtectZeroEqualities && c.IsZeroEquality() && wouldLoseInfeasibilityInfo(live, cv) {
				protected[cv] = true
				continue
			}
			touchedOthers, touchedOutside := scoreEquality(c, cv, remaining)
			cand := candidate{v: cv, eqIdx: i, touchedOthers: touchedOthers, touchedOutside: touchedOutside}
			if bestEq == nil || better(cand, *bestEq, opts) {
				c2 := cand
				bestEq = &c2
			}
		}
	}
	if bestEq != nil {
		return bestEq.v, true, bestEq.eqIdx, nil
	}

	// No equality available: fall back to FM on any remaining variable.
	// Pick the one with fewest inequality occurrences to keep the
	// intermediate system small. A variable whose only equality is the
	// protected x=0 annotation is not eligible for FM either: FM would
	// fold that equality's information into cross-product inequalities
	// just as irreversibly as substitution would.
	best := -1
	bestCount := -1
	for _, v := range remaining.vars() {
		if protected[v] {
			continue
		}
		count := 0
		for _, c := range live {
			if c.Op == ilp.LessEqual && c.GetCoeff(v) != 0 {
				count++
			}
		}
		if best == -1 || count < bestCount {
			best, bestCount = v, count
		}
	}
	if best == -1 {
		eligible := remaining.vars()
		if len(protected) > 0 {
			var onlyProtected []int
			for _, v := range eligible {
				if protected[v] {
					onlyProtected = append(onlyProtected, v)
				}
			}
			if len(onlyProtected) == len(eligible) && len(eligible) > 0 {
				return 0, false, 0, ErrProtectedZeroEquality
			}
		}
		// Not reached with a non-empty remaining set: every variable is
		// either a candidate above or protected, and all-protected returned
		// an error. Pick the smallest index defensively.
		sort.Ints(eligible)
		best = eligible[0]
	}
	return best, false, 0, nil
}

func scoreEquality(c *ilp.Constraint, v int, remaining *remainingSet) (touchedOthers, touchedOutside int) {
	for _, cv := range c.Vars() {
		if cv == v {
			continue
		}
		if remaining.has(cv) {
			touchedOthers++
		} else {
			touchedOutside++
		}
	}
	return
}

func better(a, b candidate, opts Options) bool {
	if a.touchedOthers != b.touchedOthers {
		return a.touchedOthers < b.touchedOthers
	}
	if opts.TieBreakBySecondary && a.touchedOutside != b.touchedOutside {
		return a.touchedOutside < b.touchedOutside
	}
	return a.v < b.v
}

// candidate scores a variable that could be eliminated via substitution:
// touchedOthers is the primary score (num_elim_vars_touched), touchedOutside
// the secondary tiebreak (num_unaffected_vars_touched).
type candidate struct {
	v              int
	eqIdx          int
	touchedOthers  int
	touchedOutside int
}

// wouldLoseInfeasibilityInfo reports whether v's only equality reference
// in live is this protected x=0 shape (i.e. there is no other, richer
// equality available to eliminate v through instead). If another equality
// can eliminate v, the protected one is simply skipped for v rather than
// blocking progress.
func wouldLoseInfeasibilityInfo(live []*ilp.Constraint, v int) bool {
	for _, c := range live {
		if c.Op == ilp.Equal && !c.IsZeroEquality() && c.GetCoeff(v) != 0 {
			return false
		}
	}
	return true
}

// substitute eliminates the variable at live[eqIdx]'s lone pick point v
// using that equality, per step 3 of the component design: scale by the
// other constraint's coefficient and the equation's coefficient, then
// subtract; flip the equation's sign first if its coefficient on v is
// negative, so inequality direction is preserved.
func substitute(live []*ilp.Constraint, eqIdx int, v int) []*ilp.Constraint {
	eq := live[eqIdx]
	alpha := eq.GetCoeff(v)
	eqCoeffs := eq.Coeffs
	beta := eq.RHS
	if alpha < 0 {
		alpha = -alpha
		eqCoeffs = negate(eqCoeffs)
		beta = -beta
	}

	out := make([]*ilp.Constraint, 0, len(live))
	for i, c := range live {
		if i == eqIdx {
			continue
		}
		gamma := c.GetCoeff(v)
		if gamma == 0 {
			out = append(out, c)
			continue
		}
		// new coeffs = alpha*C - gamma*A (over vars != v), new rhs = alpha*delta - gamma*beta
		newCoeffs := make(map[int]int64)
		for cv, coeff := range c.Coeffs {
			if cv == v {
				continue
			}
			newCoeffs[cv] += alpha * coeff
		}
		for av, coeff := range eqCoeffs {
			if av == v {
				continue
			}
			newCoeffs[av] -= gamma * coeff
		}
		newRHS := alpha*c.RHS - gamma*beta
		nc, status := ilp.New(newCoeffs, c.Op, newRHS)
		if status == ilp.Inconsistent {
			nc.Name = c.Name + "+subst(" + eq.Name + ")"
			out = append(out, nc)
			continue
		}
		if status == ilp.Tautology {
			continue
		}
		nc.Name = c.Name
		for t := range c.Tags {
			nc.Tags[t] = true
		}
		out = append(out, nc)
	}
	return out
}

func negate(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		out[k] = -v
	}
	return out
}

// fmEliminate performs Fourier-Motzkin elimination of v: partitions the
// inequalities mentioning v into lower bounds L (coefficient < 0) and
// upper bounds U (coefficient > 0), and emits the cross-product of
// transitive bounds, per step 4 of the component design. Constraints not
// mentioning v pass through unchanged.
func fmEliminate(live []*ilp.Constraint, v int) []*ilp.Constraint {
	var lower, upper, rest []*ilp.Constraint
	for _, c := range live {
		coeff := c.GetCoeff(v)
		switch {
		case coeff == 0:
			rest = append(rest, c)
		case coeff < 0:
			lower = append(lower, c)
		default:
			upper = append(upper, c)
		}
	}

	seen := make(map[string]bool)
	for _, l := range lower {
		lambda := l.GetCoeff(v)
		for _, u := range upper {
			mu := u.GetCoeff(v)
			// emit: mu*L_r - lambda*U_r <= mu*l_rhs - lambda*u_rhs
			newCoeffs := make(map[int]int64)
			for lv, coeff := range l.Coeffs {
				if lv == v {
					continue
				}
				newCoeffs[lv] += mu * coeff
			}
			for uv, coeff := range u.Coeffs {
				if uv == v {
					continue
				}
				newCoeffs[uv] -= lambda * coeff
			}
			newRHS := mu*l.RHS - lambda*u.RHS
			nc, status := ilp.New(newCoeffs, ilp.LessEqual, newRHS)
			if status == ilp.Tautology {
				continue
			}
			if status == ilp.Inconsistent {
				nc.Name = "fm(" + l.Name + "," + u.Name + ")"
				key := nc.Key()
				if !seen[key] {
					seen[key] = true
					rest = append(rest, nc)
				}
				continue
			}
			nc.Name = "fm(" + l.Name + "," + u.Name + ")"
			for t := range l.Tags {
				nc.Tags[t] = true
			}
			for t := range u.Tags {
				nc.Tags[t] = true
			}
			key := nc.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			rest = append(rest, nc)
		}
	}
	return rest
}
