// Package options carries the explicit configuration passed through the
// builder constructors. There is no process-wide state; every component
// that needs a configuration knob takes an Options value.
package options

// Options configures one orchestrator run. Default returns the
// conservative starting point; the zero value differs from it in leaving
// TieBreakBySecondary off and OriginTag empty.
type Options struct {
	// Stats is carried in the record and loaded from options files; no
	// component reads it, and skip statistics are counted regardless.
	Stats bool `json:"stats" yaml:"stats"`

	// Debug is carried in the record and loaded from options files; no
	// component reads it.
	Debug bool `json:"debug" yaml:"debug"`

	// EliminateCFGEdges, when true, lets simplify additionally project
	// away CFG-edge variables (not just instruction variables and empty
	// blocks), yielding a smaller but less edge-resolved residual system.
	EliminateCFGEdges bool `json:"eliminate_cfg_edges" yaml:"eliminate_cfg_edges"`

	// TieBreakBySecondary controls whether the elimination ordering uses
	// the secondary tiebreak (fewest unaffected-variable references) when
	// multiple equality-bearing variables have the same primary score.
	// Disabling it risks eliminating explicit infeasibility annotations
	// (x = 0) before other equalities; see VariableElimination step 5.
	TieBreakBySecondary bool `json:"tie_break_by_secondary" yaml:"tie_break_by_secondary"`

	// IgnoreMissingVariables turns UnknownVariable references during
	// flow-fact import into a warning + skip instead of a fatal error.
	IgnoreMissingVariables bool `json:"ignore_missing_variables" yaml:"ignore_missing_variables"`

	// OriginTag is stamped onto every flow fact the orchestrator emits.
	OriginTag string `json:"origin_tag" yaml:"origin_tag"`
}

// Default returns the conservative default Options: secondary tiebreak on
// (protects infeasibility annotations), everything else off.
func Default() Options {
	return Options{
		TieBreakBySecondary: true,
		OriginTag:           "wcetcore",
	}
}
