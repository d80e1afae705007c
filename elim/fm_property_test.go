package elim

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/wcetcore/wcet/ilp"
)

// TestFMEliminationSoundness is Testable Property 4: for any lower/upper
// bound pair on v, every integer solution of the originals (with v left
// free, but constrained by both) satisfies the constraint fmEliminate
// emits in v's place.
func TestFMEliminationSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	const y = 2 // variable index for the one surviving variable
	const v = 1 // variable index to eliminate

	properties.Property("fmEliminate's output holds for every (v, y) satisfying both bounds", prop.ForAll(
		func(coeffLY, coeffUY, rhsL, rhsU, yVal int64) bool {
			lower, status := ilp.New(map[int]int64{y: coeffLY, v: -1}, ilp.LessEqual, rhsL)
			if status != ilp.OK {
				return true
			}
			upper, status := ilp.New(map[int]int64{v: 1, y: coeffUY}, ilp.LessEqual, rhsU)
			if status != ilp.OK {
				return true
			}

			lowerBoundOnV := coeffLY*yVal - rhsL
			upperBoundOnV := rhsU - coeffUY*yVal
			if lowerBoundOnV > upperBoundOnV {
				return true // no feasible v for this y; vacuously fine
			}

			result := fmEliminate([]*ilp.Constraint{lower, upper}, v)
			for _, c := range result {
				lhs := c.GetCoeff(y) * yVal
				if lhs > c.RHS {
					return false
				}
				if c.GetCoeff(v) != 0 {
					return false // v must not appear in the projected system
				}
			}

			return true
		},
		gen.Int64Range(-20, 20),
		gen.Int64Range(-20, 20),
		gen.Int64Range(-50, 50),
		gen.Int64Range(-50, 50),
		gen.Int64Range(-50, 50),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
