package ilp

import "github.com/fxamacker/cbor/v2"

// MarshalCBOR serializes the frozen Problem view (variables, levels,
// bounds, constraints, cost, SOS1 groups) to CBOR, for --dump-ilp style
// introspection. CBOR is used rather than JSON because Constraint.Coeffs
// and Cost are int-keyed maps, which encoding/json cannot marshal
// directly.
func (s *Store) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(s.Problem())
}

// UnmarshalProblemCBOR decodes a Problem previously written by
// MarshalCBOR, for offline inspection tools that don't need a live Store.
func UnmarshalProblemCBOR(data []byte) (*Problem, error) {
	var p Problem
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
