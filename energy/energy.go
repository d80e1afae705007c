// Package energy turns a device list into the per-cycle energy cost and
// switching cost tables the sstg package needs for the WCEC variant of
// StateTransitionIPET. It holds no ILP state of its own.
package energy

import (
	"sort"
	"strings"

	"github.com/wcetcore/wcet/pgm"
)

// DeviceSet is a canonically-ordered set of device names, used both as a
// value and (via Key) as a map key.
type DeviceSet []string

// Key returns the canonical, order-independent key for ds.
func (ds DeviceSet) Key() string {
	if len(ds) == 0 {
		return ""
	}
	sorted := append([]string(nil), ds...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Model resolves device names to their energy parameters and guarantees a
// Baseline pseudo-device is present exactly once, regardless of how many
// times it is requested.
type Model struct {
	byName map[string]pgm.Device
	order  []string
}

// New builds a Model from devices, inserting pgm.BaselineDevice if it is
// not already present. Calling New more than once on overlapping device
// lists, or a caller re-inserting Baseline, never produces a duplicate:
// insertion is keyed by name.
func New(devices []pgm.Device) *Model {
	m := &Model{byName: make(map[string]pgm.Device, len(devices)+1)}
	for _, d := range devices {
		m.insert(d)
	}
	m.EnsureBaseline()
	return m
}

func (m *Model) insert(d pgm.Device) {
	if _, exists := m.byName[d.Name]; exists {
		return
	}
	m.byName[d.Name] = d
	m.order = append(m.order, d.Name)
}

// EnsureBaseline inserts the Baseline pseudo-device (a fixed non-zero
// stay-on floor, zero switching cost) if absent. Idempotent by name.
func (m *Model) EnsureBaseline() {
	if _, exists := m.byName[pgm.BaselineDevice]; exists {
		return
	}
	m.insert(pgm.Device{
		Name:          pgm.BaselineDevice,
		EnergyStayOn:  1,
		EnergyStayOff: 1,
		EnergyTurnOn:  0,
		EnergyTurnOff: 0,
	})
}

// Devices returns the known devices in insertion order.
func (m *Model) Devices() []pgm.Device {
	out := make([]pgm.Device, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// CostPerCycle sums, over every known device, EnergyStayOn if the device
// is in active, else EnergyStayOff. Baseline is always counted as active,
// giving every device set a non-zero floor.
func (m *Model) CostPerCycle(active DeviceSet) int64 {
	on := make(map[string]bool, len(active)+1)
	for _, d := range active {
		on[d] = true
	}
	on[pgm.BaselineDevice] = true

	var total int64
	for _, name := range m.order {
		d := m.byName[name]
		if on[name] {
			total += d.EnergyStayOn
		} else {
			total += d.EnergyStayOff
		}
	}
	return total
}

// SwitchCost is the one-time cost of moving from device set from to device
// set to: EnergyTurnOff for every device left behind, EnergyTurnOn for
// every device newly powered.
func (m *Model) SwitchCost(from, to DeviceSet) int64 {
	fromSet := make(map[string]bool, len(from))
	for _, d := range from {
		fromSet[d] = true
	}
	toSet := make(map[string]bool, len(to))
	for _, d := range to {
		toSet[d] = true
	}

	var total int64
	for name := range fromSet {
		if !toSet[name] {
			total += m.byName[name].EnergyTurnOff
		}
	}
	for name := range toSet {
		if !fromSet[name] {
			total += m.byName[name].EnergyTurnOn
		}
	}
	return total
}
