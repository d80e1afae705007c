package flowfact

import (
	"strings"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
)

// extractedPoint is a reconstructed ProgramPoint used only to round-trip
// a ConstraintStore variable name into a flow-fact term; it carries no
// information beyond what Name() already encodes.
type extractedPoint struct {
	kind pp.Kind
	name string
}

func (e extractedPoint) Kind() pp.Kind { return e.kind }
func (e extractedPoint) Name() string  { return e.name }

// isPureStructural reports whether c carries no tag beyond "structural"
// (or no tags at all, the case for the non-negativity/upper bounds
// AddVariable emits), and so is not extraction-worthy.
func isPureStructural(c *ilp.Constraint) bool {
	for t := range c.Tags {
		if t != "structural" {
			return false
		}
	}
	return true
}

// isPurePositivity reports whether c is `sum(a_i x_i) <= 0` with every
// coefficient <= 0 — trivially true given every variable's
// non-negativity bound, so not worth re-extracting.
func isPurePositivity(c *ilp.Constraint) bool {
	if c.Op != ilp.LessEqual || c.RHS != 0 {
		return false
	}
	for _, coeff := range c.Coeffs {
		if coeff > 0 {
			return false
		}
	}
	return true
}

func isEdgeVar(name string) bool {
	return strings.Contains(name, ":edge:")
}

// edgeSourceKey returns the "level:edge:func/source" prefix shared by
// every outgoing edge of one block, used to group edges for folding.
func edgeSourceKey(name string) (string, bool) {
	idx := strings.Index(name, "->")
	if idx < 0 {
		return "", false
	}
	return name[:idx], true
}

// foldEdgesByBlock replaces, for every block all of whose outgoing edges
// appear in coeffs with the same coefficient, that group of edge terms
// with a single term of the minimum coefficient over the block's
// frequency variable — a lossless fold since flow-out conservation makes
// the edge sum equal the block frequency.
func foldEdgesByBlock(model *ipet.Model, coeffs map[string]int64) map[string]int64 {
	groups := make(map[string][]string)
	for name := range coeffs {
		if !isEdgeVar(name) {
			continue
		}
		key, ok := edgeSourceKey(name)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], name)
	}

	out := make(map[string]int64, len(coeffs))
	for name, c := range coeffs {
		out[name] = c
	}

	for key, edges := range groups {
		funcBlock := strings.TrimPrefix(key, pp.MachineCode.String()+":edge:")
		funcBlock = strings.TrimPrefix(funcBlock, pp.Bitcode.String()+":edge:")
		funcBlock = strings.TrimPrefix(funcBlock, pp.GCFG.String()+":edge:")
		parts := strings.SplitN(funcBlock, "/", 2)
		if len(parts) != 2 {
			continue
		}
		funcName, blockName := parts[0], parts[1]
		wantEdges := model.OutgoingEdgeVars(funcName, blockName)
		if len(wantEdges) == 0 || len(wantEdges) != len(edges) {
			continue
		}
		allPresent := true
		minCoeff := int64(0)
		for i, e := range wantEdges {
			c, ok := coeffs[e]
			if !ok {
				allPresent = false
				break
			}
			if i == 0 || c < minCoeff {
				minCoeff = c
			}
		}
		if !allPresent {
			continue
		}
		uniform := true
		for _, e := range wantEdges {
			if coeffs[e] != minCoeff {
				uniform = false
				break
			}
		}
		if !uniform {
			continue
		}
		for _, e := range wantEdges {
			delete(out, e)
		}
		out[model.BlockFreqVar(funcName, blockName)] += minCoeff
	}
	return out
}

// Extract re-derives FlowFacts from store's residual constraint system
// after elimination, per the component design's Extraction step: skip
// structural/positivity-only constraints, fold uniform edge groups into
// their block frequency, subtract the entry-block term of the function
// no call edge targets (its entry freq is pinned to 1), and emit the
// remainder as a new FlowFact.
func Extract(store *ilp.Store, model *ipet.Model, level pp.Level, origin string) []pgm.FlowFact {
	called := make(map[string]bool)
	for _, e := range model.Edges() {
		if e.Category == ipet.CallEdge {
			called[e.PP.Target] = true
		}
	}
	entryVars := make(map[string]bool)
	for _, fn := range model.ReachableFunctions() {
		if called[fn] {
			continue // entry frequency is tied to incoming call edges, not pinned
		}
		if v, ok := model.EntryBlockVar(fn); ok {
			entryVars[v] = true
		}
	}

	var facts []pgm.FlowFact
	for _, c := range store.Constraints() {
		if isPureStructural(c) || isPurePositivity(c) {
			continue
		}

		coeffs := make(map[string]int64, len(c.Coeffs))
		for v, coeff := range c.Coeffs {
			coeffs[store.Name(v)] = coeff
		}
		coeffs = foldEdgesByBlock(model, coeffs)

		rhs := c.RHS
		for name, coeff := range coeffs {
			if entryVars[name] {
				rhs -= coeff
				delete(coeffs, name)
			}
		}

		if len(coeffs) == 0 {
			continue
		}

		terms := make([]pgm.Term, 0, len(coeffs))
		for name, coeff := range coeffs {
			terms = append(terms, pgm.Term{Factor: coeff, Point: extractedPoint{kind: kindOf(name), name: name}})
		}

		op := pgm.FFLessEqual
		if c.Op == ilp.Equal {
			op = pgm.FFEqual
		}
		facts = append(facts, pgm.FlowFact{
			Scope:  pp.ContextRef{Point: extractedPoint{kind: pp.KindGlobal, name: "gpp:" + c.Name}},
			LHS:    terms,
			Op:     op,
			RHS:    rhs,
			Level:  level,
			Origin: origin,
		})
	}
	return facts
}

func kindOf(name string) pp.Kind {
	switch {
	case strings.Contains(name, ":edge:"):
		return pp.KindEdge
	case strings.Contains(name, ":blk:"):
		return pp.KindBlock
	case strings.Contains(name, ":insn:"):
		return pp.KindInstruction
	case strings.Contains(name, ":fn:"):
		return pp.KindFunction
	case strings.HasPrefix(name, "const:"):
		return pp.KindConstant
	case strings.HasPrefix(name, "freqvar:"):
		return pp.KindFrequencyVariable
	case strings.HasPrefix(name, "gpp:"):
		return pp.KindGlobal
	default:
		return pp.KindFrequencyVariable
	}
}
