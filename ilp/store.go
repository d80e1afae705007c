package ilp

import (
	"fmt"

	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
)

// SOS1Group records that at most Cardinality of Vars may be non-zero in
// any solution (a Special-Ordered-Set-of-type-1 grouping).
type SOS1Group struct {
	Name        string
	Vars        []int
	Cardinality int
}

// Store owns the canonical 1-based variable index map, the level tag per
// variable, a cost vector, the set of active (deduplicated) constraints,
// SOS1 groups, and an eliminated marker per variable. All state is built
// for one analysis run and discarded afterward.
type Store struct {
	opts options.Options

	names []string // 1-based: names[i-1] is the name of variable i
	index map[string]int
	level []pp.Level
	upper []*int64
	elim  []bool

	constraints map[string]*Constraint
	order       []string // insertion order of constraint keys

	cost map[int]int64

	sos1 map[string]*SOS1Group
}

// New returns an empty Store configured with opts.
func New(opts options.Options) *Store {
	return &Store{
		opts:        opts,
		names:       []string{""}, // index 0 is unused/invalid
		index:       make(map[string]int),
		level:       []pp.Level{0},
		upper:       []*int64{nil},
		elim:        []bool{false},
		constraints: make(map[string]*Constraint),
		cost:        make(map[int]int64),
		sos1:        make(map[string]*SOS1Group),
	}
}

// NumVars returns the number of variables added so far.
func (s *Store) NumVars() int { return len(s.names) - 1 }

// Index returns the 1-based index of name, or 0 with ok=false if it does
// not exist.
func (s *Store) Index(name string) (int, bool) {
	idx, ok := s.index[name]
	return idx, ok
}

// Name returns the name of variable index v. Panics if v is out of range,
// matching the invariant that variables are only ever referenced after
// creation.
func (s *Store) Name(v int) string { return s.names[v] }

// Level returns the level tag variable v was created with.
func (s *Store) Level(v int) pp.Level { return s.level[v] }

// AddVariable creates a new variable, fails on a duplicate name, and
// automatically emits its non-negativity bound (and upper bound, if
// given).
func (s *Store) AddVariable(name string, level pp.Level, upperBound *int64) (int, error) {
	if _, exists := s.index[name]; exists {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
	}
	idx := len(s.names)
	s.names = append(s.names, name)
	s.index[name] = idx
	s.level = append(s.level, level)
	s.elim = append(s.elim, false)

	var ub *int64
	if upperBound != nil {
		v := *upperBound
		ub = &v
	}
	s.upper = append(s.upper, ub)

	// -v <= 0
	s.addRawConstraint(map[int]int64{idx: -1}, LessEqual, 0, "", nil)
	if upperBound != nil {
		// v <= upperBound
		s.addRawConstraint(map[int]int64{idx: 1}, LessEqual, *upperBound, "", nil)
	}
	return idx, nil
}

// AddConstraint resolves names to indices, normalizes the relation, and
// stores it. Tautologies are silently dropped (returns nil, ok). A
// constraint that normalizes to inconsistent returns
// ErrInconsistentConstraint wrapped with name for diagnosis.
func (s *Store) AddConstraint(lhs map[string]int64, op Op, rhs int64, name string, tags ...string) error {
	coeffs := make(map[int]int64, len(lhs))
	for varName, coeff := range lhs {
		idx, ok := s.index[varName]
		if !ok {
			return fmt.Errorf("%w: %s (in constraint %s)", ErrUnknownVariable, varName, name)
		}
		coeffs[idx] += coeff
	}
	return s.addRawConstraint(coeffs, op, rhs, name, tags)
}

func (s *Store) addRawConstraint(coeffs map[int]int64, op Op, rhs int64, name string, tags []string) error {
	c, status := New(coeffs, op, rhs)
	switch status {
	case Tautology:
		return nil
	case Inconsistent:
		if name == "" {
			name = "<anonymous>"
		}
		return fmt.Errorf("%w: %s", ErrInconsistentConstraint, name)
	}
	c.Name = name
	for _, t := range tags {
		c.Tags[t] = true
	}

	key := c.Key()
	if existing, ok := s.constraints[key]; ok {
		for t := range c.Tags {
			existing.Tags[t] = true
		}
		return nil
	}
	s.constraints[key] = c
	s.order = append(s.order, key)
	return nil
}

// Constraints returns the active constraints in insertion order.
func (s *Store) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(s.order))
	for _, key := range s.order {
		if c, ok := s.constraints[key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ReplaceConstraints discards the current constraint set and installs a
// new one, used by VariableElimination after projecting variables out.
func (s *Store) ReplaceConstraints(cs []*Constraint) {
	s.constraints = make(map[string]*Constraint, len(cs))
	s.order = s.order[:0]
	for _, c := range cs {
		c.Normalize()
		key := c.Key()
		if _, exists := s.constraints[key]; exists {
			continue
		}
		s.constraints[key] = c
		s.order = append(s.order, key)
	}
}

// MarkEliminated records that variable v has been projected out and must
// no longer appear in any live constraint.
func (s *Store) MarkEliminated(v int) { s.elim[v] = true }

// IsEliminated reports whether v has been projected out.
func (s *Store) IsEliminated(v int) bool { return s.elim[v] }

// AddSOS1 records an SOS1 grouping over vars under name, replacing any
// group already recorded under that name, so that at most cardinality of
// them may be non-zero.
func (s *Store) AddSOS1(name string, varNames []string, cardinality int) (*SOS1Group, error) {
	if cardinality <= 0 {
		cardinality = 1
	}
	vars := make([]int, 0, len(varNames))
	for _, vn := range varNames {
		idx, ok := s.index[vn]
		if !ok {
			return nil, fmt.Errorf("%w: %s (in sos1 %s)", ErrUnknownVariable, vn, name)
		}
		vars = append(vars, idx)
	}
	group := &SOS1Group{Name: name, Vars: vars, Cardinality: cardinality}
	s.sos1[name] = group
	return group, nil
}

// SOS1Groups returns all recorded SOS1 groupings.
func (s *Store) SOS1Groups() []*SOS1Group {
	out := make([]*SOS1Group, 0, len(s.sos1))
	for _, g := range s.sos1 {
		out = append(out, g)
	}
	return out
}

// AddCost accumulates c into the linear objective's coefficient for
// varName.
func (s *Store) AddCost(varName string, c int64) error {
	idx, ok := s.index[varName]
	if !ok {
		return fmt.Errorf("%w: %s (cost)", ErrUnknownVariable, varName)
	}
	s.cost[idx] += c
	return nil
}

// Cost returns the objective coefficient map, keyed by variable index.
func (s *Store) Cost() map[int]int64 {
	out := make(map[int]int64, len(s.cost))
	for k, v := range s.cost {
		out[k] = v
	}
	return out
}

// Problem is the frozen view of the store handed to an external solver.
type Problem struct {
	NumVars     int
	Names       []string // Names[v-1] is variable v's name
	Levels      []pp.Level
	Upper       map[int]int64
	Constraints []*Constraint
	Cost        map[int]int64
	SOS1        []*SOS1Group
}

// Problem freezes the current store state for handoff to a Solver.
func (s *Store) Problem() *Problem {
	names := make([]string, s.NumVars())
	levels := make([]pp.Level, s.NumVars())
	for v := 1; v <= s.NumVars(); v++ {
		names[v-1] = s.names[v]
		levels[v-1] = s.level[v]
	}
	upper := make(map[int]int64)
	for v := 1; v <= s.NumVars(); v++ {
		if s.upper[v] != nil {
			upper[v] = *s.upper[v]
		}
	}
	return &Problem{
		NumVars:     s.NumVars(),
		Names:       names,
		Levels:      levels,
		Upper:       upper,
		Constraints: s.Constraints(),
		Cost:        s.Cost(),
		SOS1:        s.SOS1Groups(),
	}
}

// Solver is the external collaborator that turns a frozen Problem into an
// objective value and a frequency assignment. The core never implements
// this itself; it only consumes the result.
type Solver interface {
	SolveMax(p *Problem) (objective float64, freq map[int]int64, err *SolverFailure)
}

// SolveMax defers to solver, translating the frequency assignment back
// into variable names. On failure, the returned error is a *SolveError
// whose Partial frequencies are also name-keyed.
func (s *Store) SolveMax(solver Solver) (objective float64, freq map[string]int64, err error) {
	obj, rawFreq, solveErr := solver.SolveMax(s.Problem())
	if solveErr != nil {
		return 0, nil, &SolveError{
			Kind:    solveErr.Kind,
			Partial: s.namedFreq(solveErr.Partial),
			Detail:  solveErr.Detail,
		}
	}
	return obj, s.namedFreq(rawFreq), nil
}

func (s *Store) namedFreq(raw map[int]int64) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for v, f := range raw {
		if v >= 1 && v < len(s.names) {
			out[s.names[v]] = f
		}
	}
	return out
}

const bigM = int64(1_000_000_000)
const slackPenalty = int64(1_000_000)

// DiagnoseUnbounded adds large BIGM upper bounds to every variable that
// currently has none, so an unbounded solve can be retried and the
// culprit variables (those that saturate at BIGM) identified.
func (s *Store) DiagnoseUnbounded(solver Solver) (*report.Log, error) {
	log := report.New()
	bounded := 0
	for v := 1; v <= s.NumVars(); v++ {
		if s.upper[v] == nil {
			bound := bigM
			s.upper[v] = &bound
			s.addRawConstraint(map[int]int64{v: 1}, LessEqual, bigM, "diag-bigm-"+s.names[v], []string{"diagnosis"})
			bounded++
		}
	}
	log.Log(report.Info, fmt.Sprintf("diagnosis: added BIGM bound to %d previously-unbounded variables", bounded))

	_, rawFreq, solveErr := solver.SolveMax(s.Problem())
	if solveErr != nil {
		log.Log(report.Error, "diagnosis: still "+solveErr.Kind.String()+" after BIGM bounding")
		return log, &SolveError{Kind: solveErr.Kind, Detail: solveErr.Detail}
	}
	for v, f := range rawFreq {
		if f >= bigM {
			log.Logf(report.Warning, s.names[v], "saturates at the diagnostic BIGM bound; likely unbounded")
		}
	}
	return log, nil
}

// DiagnoseInfeasible relaxes every less-equal constraint tagged
// "flowfact" (equalities are left as they are) with a fresh non-negative slack variable carrying a large negative cost, then
// resolves. Slack variables that end up non-zero identify the relaxed
// constraints responsible for the original infeasibility.
func (s *Store) DiagnoseInfeasible(solver Solver) (*report.Log, error) {
	log := report.New()
	relaxed := 0
	newConstraints := make([]*Constraint, 0, len(s.order))
	for _, key := range s.order {
		c, ok := s.constraints[key]
		if !ok {
			continue
		}
		if !c.Tags["flowfact"] || c.Op != LessEqual {
			newConstraints = append(newConstraints, c)
			continue
		}
		slackName := "slack$" + c.Name
		if _, exists := s.index[slackName]; !exists {
			if _, err := s.AddVariable(slackName, s.level[0], nil); err != nil {
				newConstraints = append(newConstraints, c)
				continue
			}
			s.AddCost(slackName, -slackPenalty)
		}
		slackIdx := s.index[slackName]
		relaxed++
		c2 := c.Clone()
		c2.SetCoeff(slackIdx, -1)
		c2.Normalize()
		c2.Name = c.Name
		c2.Tags = c.Tags
		newConstraints = append(newConstraints, c2)
	}
	s.ReplaceConstraints(newConstraints)
	log.Log(report.Info, fmt.Sprintf("diagnosis: relaxed %d flow-fact constraints with slack variables", relaxed))

	_, rawFreq, solveErr := solver.SolveMax(s.Problem())
	if solveErr != nil {
		log.Log(report.Error, "diagnosis: still "+solveErr.Kind.String()+" after slack relaxation")
		return log, &SolveError{Kind: solveErr.Kind, Detail: solveErr.Detail}
	}
	for v, f := range rawFreq {
		name := s.names[v]
		if len(name) > 6 && name[:6] == "slack$" && f > 0 {
			log.Logf(report.Warning, name[6:], fmt.Sprintf("required slack of %d to become feasible", f))
		}
	}
	return log, nil
}
