// Package ilp implements the symbolic constraint store: normalized linear
// constraints over 1-based integer-indexed variables, deduplicated by a
// canonical key, plus the ILP-solver handoff (SolveMax) and its diagnosis
// fallback. It has no notion of program points or flow facts; those are
// layered on top by package ipet and package flowfact.
package ilp

import (
	"fmt"
	"sort"
	"strings"
)

// Op is the relational operator of a NormalizedConstraint.
type Op int

const (
	LessEqual Op = iota
	Equal
)

func (o Op) String() string {
	if o == Equal {
		return "="
	}
	return "<="
}

// Status reports the outcome of constructing or normalizing a constraint.
type Status int

const (
	OK Status = iota
	Tautology
	Inconsistent
)

// Constraint is a canonical linear relation: sum(coeff[v] * v) `op` rhs,
// with non-zero coefficients and gcd(coeffs, rhs) = 1. Constraints are
// immutable once normalized; SetCoeff/AddCoeff invalidate the cached key
// and require a follow-up Normalize call.
type Constraint struct {
	Coeffs map[int]int64
	Op     Op
	RHS    int64

	// Name and Tags are metadata carried alongside the canonical relation
	// for diagnostics and flow-fact re-extraction; they do not
	// participate in Key or equality.
	Name string
	Tags map[string]bool

	keyCached string
	keyValid  bool
}

// New constructs a constraint from a sparse coefficient map, normalizes
// it, and reports whether it is an ordinary constraint, a tautology (to be
// silently dropped), or inconsistent (fatal).
func New(coeffs map[int]int64, op Op, rhs int64) (*Constraint, Status) {
	c := &Constraint{Coeffs: copyCoeffs(coeffs), Op: op, RHS: rhs, Tags: map[string]bool{}}
	return c, c.Normalize()
}

func copyCoeffs(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, len(in))
	for k, v := range in {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// GetCoeff returns the coefficient of variable v, or 0 if absent.
func (c *Constraint) GetCoeff(v int) int64 {
	return c.Coeffs[v]
}

// SetCoeff sets (or clears, if 0) the coefficient of v and invalidates the
// cached key. Callers must re-run Normalize before relying on Key,
// Tautology, or Inconsistency checks.
func (c *Constraint) SetCoeff(v int, coeff int64) {
	if coeff == 0 {
		delete(c.Coeffs, v)
	} else {
		c.Coeffs[v] = coeff
	}
	c.keyValid = false
}

// AddCoeff adds delta to the coefficient of v (creating it if absent) and
// invalidates the cached key.
func (c *Constraint) AddCoeff(v int, delta int64) {
	c.SetCoeff(v, c.Coeffs[v]+delta)
}

// Vars returns the set of variable indices with non-zero coefficients, in
// ascending order.
func (c *Constraint) Vars() []int {
	vars := make([]int, 0, len(c.Coeffs))
	for v := range c.Coeffs {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return vars
}

// IsPureBound reports whether this is a single-variable inequality with
// coefficient +1 or -1 and rhs 0 — i.e. -x <= 0 (non-negativity) or
// x <= 0, not a structural or flow-fact constraint.
func (c *Constraint) IsPureBound() bool {
	if c.Op != LessEqual || c.RHS != 0 || len(c.Coeffs) != 1 {
		return false
	}
	for _, coeff := range c.Coeffs {
		return coeff == 1 || coeff == -1
	}
	return false
}

// IsZeroEquality reports whether this is the single-variable equality
// `x = 0` — the shape explicit infeasibility annotations take, which the
// elimination ordering is obliged to protect (see VariableElimination).
func (c *Constraint) IsZeroEquality() bool {
	if c.Op != Equal || c.RHS != 0 || len(c.Coeffs) != 1 {
		return false
	}
	return true
}

// Normalize removes zero terms, reduces by gcd(coeffs, rhs), and reports
// whether the result is an ordinary constraint, a tautology, or
// inconsistent. Normalize is idempotent: normalizing an already-normalized
// constraint is a no-op that returns the same Status.
func (c *Constraint) Normalize() Status {
	for v, coeff := range c.Coeffs {
		if coeff == 0 {
			delete(c.Coeffs, v)
		}
	}

	if len(c.Coeffs) == 0 {
		c.keyValid = false
		if c.Op == Equal {
			if c.RHS == 0 {
				return Tautology
			}
			return Inconsistent
		}
		// LessEqual: 0 <= rhs is tautology iff rhs >= 0
		if c.RHS >= 0 {
			return Tautology
		}
		return Inconsistent
	}

	g := int64(0)
	for _, coeff := range c.Coeffs {
		g = gcd64(g, abs64(coeff))
	}
	g = gcd64(g, abs64(c.RHS))
	if g > 1 {
		for v := range c.Coeffs {
			c.Coeffs[v] /= g
		}
		c.RHS /= g
	}

	c.keyValid = false
	return OK
}

// Key returns the canonical deduplication key: the sorted coefficient
// list, the operator, and the rhs. Two constraints with identical keys
// are the same constraint.
func (c *Constraint) Key() string {
	if c.keyValid {
		return c.keyCached
	}
	vars := c.Vars()
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "%d:%d,", v, c.Coeffs[v])
	}
	fmt.Fprintf(&b, "|%s|%d", c.Op, c.RHS)
	c.keyCached = b.String()
	c.keyValid = true
	return c.keyCached
}

// Clone returns a deep copy with the same metadata but a fresh, unshared
// coefficient map.
func (c *Constraint) Clone() *Constraint {
	tags := make(map[string]bool, len(c.Tags))
	for k, v := range c.Tags {
		tags[k] = v
	}
	return &Constraint{
		Coeffs: copyCoeffs(c.Coeffs),
		Op:     c.Op,
		RHS:    c.RHS,
		Name:   c.Name,
		Tags:   tags,
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}
