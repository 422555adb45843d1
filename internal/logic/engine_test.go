package logic_test

import (
	"testing"

	"github.com/sweeney/solderpen/internal/hal"
	"github.com/sweeney/solderpen/internal/logic"
)

const testFreqHz = 8_000_000

type rig struct {
	clock  *hal.FakeClock
	heater *hal.FakeHeater
	adc    *hal.FakeADC
	preset *logic.Preset
	pid    *logic.PID
	engine *logic.Engine
}

func newRig() *rig {
	clock := hal.NewFakeClock(testFreqHz)
	heater := hal.NewFakeHeater()
	adc := hal.NewFakeADC(nil, nil)
	preset := logic.NewPreset()
	pid := logic.NewPID()
	caps := logic.Capabilities{Clock: clock, Heater: heater, ADC: adc}
	engine := logic.NewEngine(caps, preset, pid)
	return &rig{clock: clock, heater: heater, adc: adc, preset: preset, pid: pid, engine: engine}
}

// runPeriod drives one full period with the given per-call tick quantum,
// stopping as soon as Process reports the period is over (STOP reached).
// It guards against an engine bug looping forever.
func runPeriod(t *testing.T, e *logic.Engine, quantum int64) {
	t.Helper()
	e.Start()
	for i := 0; i < 10_000; i++ {
		if !e.Process(quantum) {
			return
		}
	}
	t.Fatal("period did not reach STOP within iteration budget")
}

// runCoarsePeriod drives one period to completion in at most five calls
// (START, HEATING, STABILIZE, IDLE, STOP) by using a quantum equal to a
// full period's ticks, which forces every
// sub-phase to exit via its time-left/ticks-elapsed condition rather than
// its data-driven condition. Useful for bulk-period tests (e.g. standby
// timing) where the exit reason within a period doesn't matter.
func runCoarsePeriod(t *testing.T, e *logic.Engine, periodTicks int64) {
	t.Helper()
	e.Start()
	for i := 0; i < 6; i++ {
		if !e.Process(periodTicks) {
			return
		}
	}
	t.Fatal("coarse period did not reach STOP within 6 calls")
}

// primeSensorOK runs one period whose only purpose is to get the engine's
// pen-sensor status to OK and its idle-phase temperature accumulators
// populated, mirroring how a freshly booted engine behaves: sensor status
// starts UNKNOWN, so the very first Start() always forces power to 0 and
// skips straight to IDLE (spec.md §4.3 start() contract).
func primeSensorOK(t *testing.T, r *rig, cpuTempMC, penTempMC int64) {
	t.Helper()
	r.adc.SensorOK = true
	r.adc.IdleSamples = []hal.Sample{{SupplyMV: 5000, CPUMV: 3300, PenMA: 0, CPUTempMC: cpuTempMC, PenTempMC: penTempMC}}
	runPeriod(t, r.engine, 300_000)

	if r.engine.GetPenSensorStatus() != logic.SensorOK {
		t.Fatalf("priming period: expected sensor OK, got %s", r.engine.GetPenSensorStatus())
	}
}

func TestS1ColdStartStableLoad(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default

	primeSensorOK(t, r, 5_000, 20_000) // real tip temperature 25,000 m°C

	// Recalibrated from spec.md's illustrative 5,000 mV / 2,500 mA: those
	// numbers deliver only 12.5 W against a 40 W request and can never
	// reach the energy budget within one period. 12,000 mV / 6,000 mA
	// keeps the same 2,000 mOhm resistance (OK) right at the PenMaxCurrentMA
	// ceiling without tripping it, and delivers 72 W, comfortably enough to
	// cross the energy budget with time to spare, realizing the literal
	// behavior S1 describes.
	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 12_000, CPUMV: 3300, PenMA: 6_000}}

	r.engine.Start()
	if r.engine.Snapshot().RequestedPowerMW != logic.HeatingPowerMaxMW {
		t.Fatalf("expected requested power clamped at %d, got %d", logic.HeatingPowerMaxMW, r.engine.Snapshot().RequestedPowerMW)
	}

	for i := 0; i < 10_000; i++ {
		if !r.engine.Process(10_000) {
			break
		}
		if i == 9_999 {
			t.Fatal("period never reached STOP")
		}
	}

	snap := r.engine.Snapshot()
	if snap.PenResistanceMO < 1_900 || snap.PenResistanceMO > 2_100 {
		t.Errorf("expected resistance ~2000 mOhm, got %d", snap.PenResistanceMO)
	}
	if snap.HeatingElementStatus != logic.ElementOK {
		t.Errorf("expected element OK, got %s", snap.HeatingElementStatus)
	}
	if snap.PowerUWPT <= snap.RequestedPowerUWPT {
		t.Error("expected HEATING to have exited via the energy budget (power_uwpt > requested_power_uwpt)")
	}
	if r.heater.OnCalls == 0 || r.heater.OffCalls == 0 {
		t.Error("expected heater to be toggled on then off")
	}
	if r.preset.IsStandby() {
		t.Error("a healthy first heating period should not force standby")
	}
}

func TestS2ShortedTipOvercurrent(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)

	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 5_000, CPUMV: 3300, PenMA: 7_000}}

	runPeriod(t, r.engine, 10_000)

	snap := r.engine.Snapshot()
	if snap.HeatingElementStatus != logic.ElementLowResistance {
		t.Errorf("expected LOW_RESISTANCE (~714 mOhm), got %s (%d mOhm)", snap.HeatingElementStatus, snap.PenResistanceMO)
	}
	if r.preset.IsStandby() {
		t.Error("LOW_RESISTANCE is not SHORTED/BROKEN; STOP must not force standby")
	}
}

func TestS3BrokenHeater(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)

	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 5_000, CPUMV: 3300, PenMA: 5}}

	runPeriod(t, r.engine, 10_000)

	snap := r.engine.Snapshot()
	if snap.PenResistanceMO != logic.ResistanceSentinelMO {
		t.Errorf("expected resistance sentinel, got %d", snap.PenResistanceMO)
	}
	if snap.HeatingElementStatus != logic.ElementBroken {
		t.Errorf("expected BROKEN, got %s", snap.HeatingElementStatus)
	}
	if !r.preset.IsStandby() {
		t.Error("BROKEN element must force standby")
	}
}

func TestS4BrokenSensor(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)
	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 10_000, CPUMV: 3300, PenMA: 5_000}}
	runPeriod(t, r.engine, 10_000)

	// Now the sensor goes bad for the next period's IDLE completion.
	r.adc.SensorOK = false
	runPeriod(t, r.engine, 10_000)

	if r.engine.GetPenSensorStatus() != logic.SensorBroken {
		t.Fatalf("expected sensor BROKEN, got %s", r.engine.GetPenSensorStatus())
	}
	if r.engine.GetHeatingElementStatus() != logic.ElementUnknown {
		t.Errorf("a broken sensor makes element resistance meaningless; expected UNKNOWN, got %s", r.engine.GetHeatingElementStatus())
	}
	if !r.preset.IsStandby() {
		t.Error("non-OK sensor must force standby")
	}

	// Next start(): sensor not OK forces power to 0, which must skip
	// straight to IDLE without ever turning the heater on.
	onBefore := r.heater.OnCalls
	r.preset.Select(0) // clear standby so GetTemperature is nonzero, isolating that power==0 comes from the sensor fault, not standby
	r.engine.Start()
	if r.engine.Snapshot().RequestedPowerMW != 0 {
		t.Fatalf("expected requested power 0 after sensor fault, got %d", r.engine.Snapshot().RequestedPowerMW)
	}
	r.engine.Process(1_000)
	if r.engine.State() != logic.StateIdle {
		t.Fatalf("expected state IDLE (heating skipped), got %s", r.engine.State())
	}
	if r.heater.OnCalls != onBefore {
		t.Error("heater must not be turned on when sensor fault forces 0 power")
	}
}

func TestS5AutoStandbyOnSteadyLoad(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)

	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 5_000, CPUMV: 3300, PenMA: 1_000}}

	var periodTicks int64 = logic.PeriodMS * testFreqHz / 1000
	periodsFor30s := (logic.StandbyMS / logic.PeriodMS) + 5

	for i := 0; i < periodsFor30s; i++ {
		runCoarsePeriod(t, r.engine, periodTicks)
		if r.preset.IsStandby() {
			break
		}
	}

	if !r.preset.IsStandby() {
		t.Error("expected auto-standby after sustained steady load for 30s")
	}
}

func TestS6PresetEditClamp(t *testing.T) {
	p := logic.NewPreset()
	p.EditSelect(0)
	p.EditAdd(200_000)
	if p.Temperatures[0] != logic.MaxTempMC {
		t.Fatalf("expected clamp to %d, got %d", logic.MaxTempMC, p.Temperatures[0])
	}
	p.EditAdd(-500_000)
	if p.Temperatures[0] != logic.MinTempMC {
		t.Fatalf("expected clamp to %d, got %d", logic.MinTempMC, p.Temperatures[0])
	}
}

func TestHeaterOnOnlyDuringHeating(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)
	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 10_000, CPUMV: 3300, PenMA: 5_000}}

	r.engine.Start()
	for r.engine.Process(10_000) {
		switch r.engine.State() {
		case logic.StateHeating:
			if !r.heater.IsOn {
				t.Error("heater should be ON while in HEATING")
			}
		case logic.StateStabilize, logic.StateIdle:
			if r.heater.IsOn {
				t.Errorf("heater should be OFF in %s", r.engine.State())
			}
		}
	}
}

func TestEnergyMonotonicNonDecreasing(t *testing.T) {
	r := newRig()
	r.preset.Select(0) // 300,000 m°C default
	primeSensorOK(t, r, 5_000, 20_000)
	r.adc.HeatSamples = []hal.Sample{{SupplyMV: 10_000, CPUMV: 3300, PenMA: 5_000}}

	var last int64
	for i := 0; i < 5; i++ {
		runPeriod(t, r.engine, 10_000)
		got := r.engine.Snapshot().EnergyUWT
		if got < last {
			t.Fatalf("period %d: energy decreased from %d to %d", i, last, got)
		}
		last = got
	}
}
