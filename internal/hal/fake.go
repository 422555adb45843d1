package hal

// Sample is a single scripted ADC reading (already in logical, post-scale
// milli-units).
type Sample struct {
	SupplyMV  int64
	CPUMV     int64
	PenMA     int64
	CPUTempMC int64
	PenTempMC int64
}

// FakeADC is a test double that returns scripted samples for heat-phase
// and idle-phase measurements independently. Each call to IsDone after a
// *Start consumes PollsUntilDone "not ready yet" responses before the
// sample becomes readable, so tests can exercise measure_ticks
// accumulation realistically.
type FakeADC struct {
	HeatSamples    []Sample
	IdleSamples    []Sample
	PollsUntilDone int
	SensorOK       bool

	heatIndex int
	idleIndex int
	current   Sample

	pollsRemaining int

	HeatStarts int
	IdleStarts int
}

// NewFakeADC creates a FakeADC with the given heat/idle samples. Samples
// are consumed in order and the last sample repeats once exhausted.
func NewFakeADC(heat, idle []Sample) *FakeADC {
	return &FakeADC{HeatSamples: heat, IdleSamples: idle, SensorOK: true}
}

func (a *FakeADC) MeasureHeatStart() {
	a.HeatStarts++
	if len(a.HeatSamples) > 0 {
		a.current = a.HeatSamples[a.heatIndex]
		if a.heatIndex < len(a.HeatSamples)-1 {
			a.heatIndex++
		}
	}
	a.pollsRemaining = a.PollsUntilDone
}

func (a *FakeADC) MeasureIdleStart() {
	a.IdleStarts++
	if len(a.IdleSamples) > 0 {
		a.current = a.IdleSamples[a.idleIndex]
		if a.idleIndex < len(a.IdleSamples)-1 {
			a.idleIndex++
		}
	}
	a.pollsRemaining = a.PollsUntilDone
}

// IsDone reports whether the most recent *Start's sample is ready.
func (a *FakeADC) IsDone() bool {
	if a.pollsRemaining > 0 {
		a.pollsRemaining--
		return false
	}
	return true
}

func (a *FakeADC) SupplyVoltageMV() int64  { return a.current.SupplyMV }
func (a *FakeADC) CPUVoltageMV() int64     { return a.current.CPUMV }
func (a *FakeADC) PenCurrentMA() int64     { return a.current.PenMA }
func (a *FakeADC) CPUTemperatureMC() int64 { return a.current.CPUTempMC }
func (a *FakeADC) PenTemperatureMC() int64 { return a.current.PenTempMC }
func (a *FakeADC) IsPenSensorOK() bool     { return a.SensorOK }

// Reset rewinds sample indices and counters to the beginning.
func (a *FakeADC) Reset() {
	a.heatIndex = 0
	a.idleIndex = 0
	a.current = Sample{}
	a.pollsRemaining = 0
	a.HeatStarts = 0
	a.IdleStarts = 0
}

// FakeHeater records On/Off calls for test assertions.
type FakeHeater struct {
	IsOn     bool
	OnCalls  int
	OffCalls int
}

func NewFakeHeater() *FakeHeater {
	return &FakeHeater{}
}

func (h *FakeHeater) On() {
	h.IsOn = true
	h.OnCalls++
}

func (h *FakeHeater) Off() {
	h.IsOn = false
	h.OffCalls++
}

// FakeClock reports a fixed, scriptable tick frequency.
type FakeClock struct {
	FreqHz int64
}

func NewFakeClock(freqHz int64) *FakeClock {
	return &FakeClock{FreqHz: freqHz}
}

func (c *FakeClock) Frequency() int64 {
	return c.FreqHz
}
