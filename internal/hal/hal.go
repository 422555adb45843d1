// Package hal provides the hardware abstraction layer for the pen
// controller: concrete implementations of logic.Clock, logic.Heater, and
// logic.ADC. The real implementations drive actual hardware on Linux; the
// fake implementations return scripted samples for tests.
//
// hal deliberately does not import internal/logic for anything but
// documentation (var _ assertions below) — the Engine is parameterized
// over interfaces it owns, and hal's types satisfy them structurally.
package hal

import "github.com/sweeney/solderpen/internal/logic"

var (
	_ logic.Clock  = (*RealClock)(nil)
	_ logic.Clock  = (*FakeClock)(nil)
	_ logic.Heater = (*RealHeater)(nil)
	_ logic.Heater = (*FakeHeater)(nil)
	_ logic.ADC    = (*RealADC)(nil)
	_ logic.ADC    = (*FakeADC)(nil)
)

// DefaultCoreFreqHz is the tick rate of the target's monotonic tick source.
const DefaultCoreFreqHz = 8_000_000

// Default IIO sysfs device path for the ADC, matching a typical Linux IIO
// layout, and default GPIO line for the heater gate.
const (
	DefaultIIODevice   = "/sys/bus/iio/devices/iio:device0"
	DefaultHeaterGPIO  = 17
)
