package ipet

import "errors"

// ErrUnresolvedIndirectCall is returned when a callsite has neither a
// static nor a refined target set — fatal per the component design.
var ErrUnresolvedIndirectCall = errors.New("ipet: unresolved indirect call")
