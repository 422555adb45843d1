package logic

// Engine is the heating cycle state machine: it paces heat/idle phases,
// accumulates measurements, computes derived quantities (resistance,
// energy, voltage drop, true tip temperature), classifies element and
// sensor health, and produces the next period's requested power.
//
// Ordering between Start and subsequent Process calls must be strictly
// sequential on the same instance (spec.md §5) — there is no internal
// locking, matching the single-threaded cooperative model the core is
// designed for.
type Engine struct {
	caps   Capabilities
	preset *Preset
	pid    *PID

	state          State
	uptimeTicks    int64
	periodTicks    int64
	remainingTicks int64
	steadyTicks    int64

	measureTicks      int64
	measurementsCount int64

	requestedPowerMW   int64
	requestedPowerUWPT int64
	powerUWPT          int64
	energyUWT          int64

	supplyVoltageMVHeatSum int64
	cpuVoltageMVHeatSum    int64
	penCurrentMAHeatSum    int64

	supplyVoltageMVHeat int64
	cpuVoltageMVHeat    int64
	penCurrentMAHeat    int64

	supplyVoltageMVIdleSum int64
	cpuVoltageMVIdleSum    int64
	penCurrentMAIdleSum    int64
	cpuTemperatureMCSum    int64
	penTemperatureMCSum    int64

	supplyVoltageMVIdle int64
	cpuVoltageMVIdle    int64
	penCurrentMAIdle    int64
	cpuTemperatureMC    int64
	penTemperatureMC    int64

	penResistanceMO     int64
	supplyVoltageMVDrop int64

	heatingElementStatus HeatingElementStatus
	penSensorStatus      PenSensorStatus

	avgReqPower      int64
	avgReqPowerShort int64
}

// NewEngine constructs an Engine over the given capabilities, preset store,
// and PID controller. NewEngine calls Init, so the engine starts in STOP;
// callers must call Start before the first Process call.
func NewEngine(caps Capabilities, preset *Preset, pid *PID) *Engine {
	e := &Engine{
		caps:   caps,
		preset: preset,
		pid:    pid,
	}
	e.Init()
	return e
}

// Init (re)establishes the engine's boot-time state.
func (e *Engine) Init() {
	e.state = StateStop
	e.heatingElementStatus = ElementUnknown
	e.penSensorStatus = SensorUnknown
	e.pid.Reset()
}

// GetPreset returns the preset store the engine consults each period.
func (e *Engine) GetPreset() *Preset {
	return e.preset
}

// Start commits a new period's target power and arms the state machine.
// It must be called before the first Process call of every period.
func (e *Engine) Start() {
	sensorOK := e.penSensorStatus == SensorOK

	var power int64
	if !sensorOK {
		e.pid.Reset()
		power = 0
	} else {
		power = e.pid.Process(e.RealPenTemperatureMC(), int64(e.preset.GetTemperature()))
	}

	freq := e.caps.Clock.Frequency()
	e.periodTicks = ticksFor(PeriodMS, freq)
	e.remainingTicks += e.periodTicks

	e.requestedPowerMW = power
	e.requestedPowerUWPT = power * e.periodTicks * 1000
	e.state = StateStart
}

// Process advances the state machine by deltaTicks. It returns true unless
// the engine has reached STOP, in which case the caller must call Start
// again before the next Process call.
func (e *Engine) Process(deltaTicks int64) bool {
	e.uptimeTicks += deltaTicks
	e.remainingTicks -= deltaTicks
	e.steadyTicks += deltaTicks

	switch e.state {
	case StateStop:
		e.stateStop()
		return false
	case StateStart:
		e.stateStart()
	case StateHeating:
		e.stateHeating(deltaTicks)
	case StateStabilize:
		e.stateStabilize(deltaTicks)
	case StateIdle:
		e.stateIdle()
	}
	return true
}

func (e *Engine) stateStart() {
	e.measureTicks = 0
	e.measurementsCount = 0
	e.supplyVoltageMVHeatSum = 0
	e.cpuVoltageMVHeatSum = 0
	e.penCurrentMAHeatSum = 0
	e.powerUWPT = 0

	pReq := e.requestedPowerMW
	e.avgReqPowerShort = (2*e.avgReqPowerShort + pReq) / 3
	e.avgReqPower = (9*e.avgReqPower + pReq) / 10

	diff := e.avgReqPowerShort - e.avgReqPower
	if diff > 150 || diff < -200 {
		e.steadyTicks = 0
	}

	if e.requestedPowerMW < HeatingMinPowerMW {
		e.resetIdleAccumulators()
		e.caps.ADC.MeasureIdleStart()
		e.requestedPowerMW = 0
		e.requestedPowerUWPT = 0
		e.steadyTicks = 0
		e.state = StateIdle
		return
	}

	e.caps.Heater.On()
	e.caps.ADC.MeasureHeatStart()
	e.heatingElementStatus = ElementUnknown
	e.penSensorStatus = SensorUnknown
	e.state = StateHeating
}

func (e *Engine) stateHeating(deltaTicks int64) {
	e.measureTicks += deltaTicks
	if !e.caps.ADC.IsDone() {
		return
	}

	e.measurementsCount++
	supplyMV := e.caps.ADC.SupplyVoltageMV()
	penMA := e.caps.ADC.PenCurrentMA()
	cpuMV := e.caps.ADC.CPUVoltageMV()

	e.supplyVoltageMVHeatSum += supplyMV
	e.penCurrentMAHeatSum += penMA
	e.cpuVoltageMVHeatSum += cpuMV

	e.powerUWPT += supplyMV * penMA * e.measureTicks
	e.measureTicks = 0

	freq := e.caps.Clock.Frequency()
	meanCurrent := e.penCurrentMAHeatSum / e.measurementsCount
	stop := meanCurrent > PenMaxCurrentMA ||
		e.powerUWPT > e.requestedPowerUWPT ||
		e.remainingTicks < ticksFor(StabilizeMS+IdleMinMS, freq)

	if !stop {
		e.caps.ADC.MeasureHeatStart()
		return
	}

	e.caps.Heater.Off()
	e.energyUWT += e.powerUWPT

	e.supplyVoltageMVHeat = e.supplyVoltageMVHeatSum / e.measurementsCount
	e.cpuVoltageMVHeat = e.cpuVoltageMVHeatSum / e.measurementsCount

	heatCurrent := e.penCurrentMAHeatSum/e.measurementsCount - e.penCurrentMAIdle
	if heatCurrent < 0 {
		heatCurrent = -heatCurrent
	}
	e.penCurrentMAHeat = heatCurrent

	if e.penCurrentMAHeat > 10 {
		e.penResistanceMO = e.supplyVoltageMVHeat * 1000 / e.penCurrentMAHeat
	} else {
		e.penResistanceMO = ResistanceSentinelMO
	}
	e.supplyVoltageMVDrop = e.supplyVoltageMVHeat - e.supplyVoltageMVIdle
	e.heatingElementStatus = classifyElement(e.penResistanceMO)

	e.measureTicks = 0
	e.state = StateStabilize
}

func (e *Engine) stateStabilize(deltaTicks int64) {
	e.measureTicks += deltaTicks
	if e.measureTicks < ticksFor(StabilizeMS, e.caps.Clock.Frequency()) {
		return
	}

	e.resetIdleAccumulators()
	e.measureTicks = 0
	e.caps.ADC.MeasureIdleStart()
	e.state = StateIdle
}

func (e *Engine) stateIdle() {
	if !e.caps.ADC.IsDone() {
		return
	}

	e.supplyVoltageMVIdleSum += e.caps.ADC.SupplyVoltageMV()
	e.cpuVoltageMVIdleSum += e.caps.ADC.CPUVoltageMV()
	e.penCurrentMAIdleSum += e.caps.ADC.PenCurrentMA()
	e.cpuTemperatureMCSum += e.caps.ADC.CPUTemperatureMC()
	e.penTemperatureMCSum += e.caps.ADC.PenTemperatureMC()
	e.measurementsCount++

	if e.remainingTicks > 0 {
		e.caps.ADC.MeasureIdleStart()
		return
	}

	e.supplyVoltageMVIdle = e.supplyVoltageMVIdleSum / e.measurementsCount
	e.cpuVoltageMVIdle = e.cpuVoltageMVIdleSum / e.measurementsCount
	e.penCurrentMAIdle = e.penCurrentMAIdleSum / e.measurementsCount
	e.cpuTemperatureMC = e.cpuTemperatureMCSum / e.measurementsCount
	e.penTemperatureMC = e.penTemperatureMCSum / e.measurementsCount

	if e.caps.ADC.IsPenSensorOK() {
		e.penSensorStatus = SensorOK
	} else {
		e.penSensorStatus = SensorBroken
		e.heatingElementStatus = ElementUnknown
	}
	e.state = StateStop
}

func (e *Engine) stateStop() {
	sensorNotOK := e.penSensorStatus != SensorOK
	standbyTicks := ticksFor(StandbyMS, e.caps.Clock.Frequency())

	if sensorNotOK ||
		e.heatingElementStatus == ElementShorted ||
		e.heatingElementStatus == ElementBroken ||
		e.steadyTicks > standbyTicks {
		e.preset.SetStandby()
	}
}

// resetIdleAccumulators zeros the idle-phase sums and the shared
// measurements counter ahead of a fresh idle sub-phase, whether reached via
// STABILIZE or directly from START on a below-noise-floor request.
func (e *Engine) resetIdleAccumulators() {
	e.supplyVoltageMVIdleSum = 0
	e.cpuVoltageMVIdleSum = 0
	e.penCurrentMAIdleSum = 0
	e.cpuTemperatureMCSum = 0
	e.penTemperatureMCSum = 0
	e.measurementsCount = 0
}

func classifyElement(resistanceMO int64) HeatingElementStatus {
	switch {
	case resistanceMO < PenResistanceShortedMO:
		return ElementShorted
	case resistanceMO < PenResistanceMinMO:
		return ElementLowResistance
	case resistanceMO > PenResistanceBrokenMO:
		return ElementBroken
	case resistanceMO > PenResistanceMaxMO:
		return ElementHighResistance
	default:
		return ElementOK
	}
}

func ticksFor(ms, freqHz int64) int64 {
	return ms * freqHz / 1000
}

// State returns the current phase of the state machine.
func (e *Engine) State() State {
	return e.state
}

// GetHeatingElementStatus returns the last-classified element health.
func (e *Engine) GetHeatingElementStatus() HeatingElementStatus {
	return e.heatingElementStatus
}

// GetPenSensorStatus returns the last-classified sensor health.
func (e *Engine) GetPenSensorStatus() PenSensorStatus {
	return e.penSensorStatus
}

// RealPenTemperatureMC applies cold-junction compensation: the die
// temperature plus the thermocouple's EMF-derived delta.
func (e *Engine) RealPenTemperatureMC() int64 {
	return e.cpuTemperatureMC + e.penTemperatureMC
}

// PowerMW converts the delivered energy for the last completed period back
// to an average power in milliwatts.
func (e *Engine) PowerMW() int64 {
	if e.periodTicks == 0 {
		return 0
	}
	return e.powerUWPT / e.periodTicks / 1000
}

// EnergyMWh converts the lifetime energy integral to milliwatt-hours.
func (e *Engine) EnergyMWh() int64 {
	freq := e.caps.Clock.Frequency()
	if freq == 0 {
		return 0
	}
	return e.energyUWT / freq / 1000 / 3600
}

// SteadyMS converts the steady-state tick counter to milliseconds.
func (e *Engine) SteadyMS() int64 {
	freq := e.caps.Clock.Frequency()
	if freq == 0 {
		return 0
	}
	return e.steadyTicks / (freq / 1000)
}

// Snapshot returns a point-in-time copy of the engine's telemetry fields.
func (e *Engine) Snapshot() Reading {
	return Reading{
		State:                e.state,
		RequestedPowerMW:     e.requestedPowerMW,
		PowerUWPT:            e.powerUWPT,
		RequestedPowerUWPT:   e.requestedPowerUWPT,
		EnergyUWT:            e.energyUWT,
		CPUVoltageMVHeat:     e.cpuVoltageMVHeat,
		CPUVoltageMVIdle:     e.cpuVoltageMVIdle,
		SupplyVoltageMVHeat:  e.supplyVoltageMVHeat,
		SupplyVoltageMVIdle:  e.supplyVoltageMVIdle,
		PenCurrentMAHeat:     e.penCurrentMAHeat,
		PenCurrentMAIdle:     e.penCurrentMAIdle,
		CPUTemperatureMC:     e.cpuTemperatureMC,
		PenTemperatureMC:     e.penTemperatureMC,
		PenResistanceMO:      e.penResistanceMO,
		SupplyVoltageMVDrop:  e.supplyVoltageMVDrop,
		HeatingElementStatus: e.heatingElementStatus,
		PenSensorStatus:      e.penSensorStatus,
		SteadyTicks:          e.steadyTicks,
	}
}
