// Package logic contains pure business logic for the pen's heating cycle.
// This package has NO external dependencies (no GPIO, no MQTT, no OS, no
// wall-clock reads). Time enters only as tick counts passed by the caller;
// hardware enters only through the Clock, Heater, and ADC interfaces below.
package logic

// State is a phase of the heating period state machine.
type State string

const (
	StateStop      State = "STOP"
	StateStart     State = "START"
	StateHeating   State = "HEATING"
	StateStabilize State = "STABILIZE"
	StateIdle      State = "IDLE"
)

// HeatingElementStatus classifies the health of the heating element from
// its measured resistance.
type HeatingElementStatus string

const (
	ElementUnknown       HeatingElementStatus = "UNKNOWN"
	ElementOK            HeatingElementStatus = "OK"
	ElementShorted       HeatingElementStatus = "SHORTED"
	ElementLowResistance HeatingElementStatus = "LOW_RESISTANCE"
	ElementHighResistance HeatingElementStatus = "HIGH_RESISTANCE"
	ElementBroken        HeatingElementStatus = "BROKEN"
)

// PenSensorStatus classifies the health of the pen's thermocouple sensor.
// SHORTED is reserved: no detection algorithm exists for it yet (spec.md
// §9 note 3), so it is never produced.
type PenSensorStatus string

const (
	SensorUnknown PenSensorStatus = "UNKNOWN"
	SensorOK      PenSensorStatus = "OK"
	SensorBroken  PenSensorStatus = "BROKEN"
	SensorShorted PenSensorStatus = "SHORTED"
)

// Compile-time constants (spec.md §3, §4).
const (
	MinTempMC = 20_000
	MaxTempMC = 400_000

	PeriodMS    = 150
	PeriodMinMS = 50
	StabilizeMS = 2
	IdleMinMS   = 8
	StandbyMS   = 30_000

	HeatingPowerMaxMW   = 40_000
	HeatingMinPowerMW   = 100
	PenMaxCurrentMA     = 6_000

	PenResistanceShortedMO = 500
	PenResistanceMinMO     = 1_500
	PenResistanceMaxMO     = 2_500
	PenResistanceBrokenMO  = 100_000

	// ResistanceSentinelMO is reported when the heat-phase current is too
	// small to trust (<=10 mA); it always classifies as BROKEN.
	ResistanceSentinelMO = 1_000_000_000
)

// DefaultPresetsMC are the built-in setpoints installed at boot.
var DefaultPresetsMC = []int{300_000, 250_000}

// Reading is a snapshot of everything the UI/reporting layer may want to
// read from the engine after a period completes. All getters in spec.md
// §3/§4 are exposed through this struct plus the derived-getter methods on
// Engine.
type Reading struct {
	State State

	RequestedPowerMW int64
	PowerUWPT        int64
	RequestedPowerUWPT int64
	EnergyUWT        int64

	CPUVoltageMVHeat    int64
	CPUVoltageMVIdle    int64
	SupplyVoltageMVHeat int64
	SupplyVoltageMVIdle int64
	PenCurrentMAHeat    int64
	PenCurrentMAIdle    int64
	CPUTemperatureMC    int64
	PenTemperatureMC    int64
	PenResistanceMO     int64
	SupplyVoltageMVDrop int64

	HeatingElementStatus HeatingElementStatus
	PenSensorStatus      PenSensorStatus

	SteadyTicks int64
}
