package flowfact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
)

func minimalModel(t *testing.T) (*ilp.Store, *ipet.Model) {
	t.Helper()
	program := &pgm.Program{
		Functions: []pgm.Function{{
			Name:  "f",
			Level: pp.Bitcode,
			Blocks: []pgm.Block{
				{Name: "entry", MayReturn: true},
			},
		}},
	}
	store := ilp.New(options.Default())
	model, err := ipet.Build(store, program, pp.Bitcode, "f", nil, nil, report.New())
	require.NoError(t, err)
	return store, model
}

func findFlowFactConstraint(store *ilp.Store) *ilp.Constraint {
	for _, c := range store.Constraints() {
		if c.Tags["flowfact"] {
			return c
		}
	}
	return nil
}

// TestTranslateMaxInterarrival checks the maximal-interarrival-time formula
// from the component design: span - k*sum(lhs) <= 0, i.e. span is bounded
// above by k times the arrival count.
func TestTranslateMaxInterarrival(t *testing.T) {
	store, model := minimalModel(t)

	fact := pgm.FlowFact{
		Scope: pp.ContextRef{Point: pp.FrequencyVariable{VarName: "span"}},
		LHS:   []pgm.Term{{Factor: 1, Point: pp.FrequencyVariable{VarName: "arrivals"}}},
		Op:    pgm.FFMaxInterarrival,
		RHS:   10,
		Level: pp.Bitcode,
	}

	log := report.New()
	require.NoError(t, Translate(store, model, fact, log))

	c := findFlowFactConstraint(store)
	require.NotNil(t, c)
	require.Equal(t, ilp.LessEqual, c.Op)
	require.Equal(t, int64(0), c.RHS)

	spanIdx, ok := store.Index("freqvar:span")
	require.True(t, ok)
	arrivalsIdx, ok := store.Index("freqvar:arrivals")
	require.True(t, ok)
	require.Equal(t, int64(1), c.GetCoeff(spanIdx))
	require.Equal(t, int64(-10), c.GetCoeff(arrivalsIdx))
}

// TestTranslateMinInterarrival checks the minimal-interarrival-time
// formula: k*sum(lhs) - span <= k.
func TestTranslateMinInterarrival(t *testing.T) {
	store, model := minimalModel(t)

	fact := pgm.FlowFact{
		Scope: pp.ContextRef{Point: pp.FrequencyVariable{VarName: "span"}},
		LHS:   []pgm.Term{{Factor: 1, Point: pp.FrequencyVariable{VarName: "arrivals"}}},
		Op:    pgm.FFMinInterarrival,
		RHS:   10,
		Level: pp.Bitcode,
	}

	log := report.New()
	require.NoError(t, Translate(store, model, fact, log))

	c := findFlowFactConstraint(store)
	require.NotNil(t, c)
	require.Equal(t, ilp.LessEqual, c.Op)
	require.Equal(t, int64(10), c.RHS)

	spanIdx, ok := store.Index("freqvar:span")
	require.True(t, ok)
	arrivalsIdx, ok := store.Index("freqvar:arrivals")
	require.True(t, ok)
	require.Equal(t, int64(-1), c.GetCoeff(spanIdx))
	require.Equal(t, int64(10), c.GetCoeff(arrivalsIdx))
}
