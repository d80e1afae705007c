package energy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wcetcore/wcet/pgm"
)

func sampleDevices() []pgm.Device {
	return []pgm.Device{
		{Name: "radio", EnergyStayOn: 10, EnergyStayOff: 1, EnergyTurnOn: 5, EnergyTurnOff: 2},
		{Name: "sensor", EnergyStayOn: 4, EnergyStayOff: 0, EnergyTurnOn: 1, EnergyTurnOff: 1},
	}
}

func TestNewInsertsBaselineExactlyOnce(t *testing.T) {
	m := New(sampleDevices())
	require.Len(t, m.Devices(), 3)

	m.EnsureBaseline()
	m.EnsureBaseline()
	require.Len(t, m.Devices(), 3, "repeated EnsureBaseline calls must not duplicate the pseudo-device")
}

func TestCostPerCycleCountsBaselineAndActiveDevices(t *testing.T) {
	m := New(sampleDevices())

	// radio active, sensor off, plus the baseline floor (1 stay-on).
	cost := m.CostPerCycle(DeviceSet{"radio"})
	require.Equal(t, int64(10+0+1), cost) // radio on(10) + sensor off(0) + baseline on(1)
}

func TestSwitchCostChargesOnlyDeltaDevices(t *testing.T) {
	m := New(sampleDevices())

	// radio -> sensor: turn radio off (2), turn sensor on (1).
	cost := m.SwitchCost(DeviceSet{"radio"}, DeviceSet{"sensor"})
	require.Equal(t, int64(2+1), cost)

	// no change: zero switching cost.
	require.Equal(t, int64(0), m.SwitchCost(DeviceSet{"radio"}, DeviceSet{"radio"}))
}

func TestDeviceSetKeyIsOrderIndependent(t *testing.T) {
	require.Equal(t, DeviceSet{"a", "b"}.Key(), DeviceSet{"b", "a"}.Key())
	require.Equal(t, "", DeviceSet(nil).Key())
}
