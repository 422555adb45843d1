// Package status provides a thread-safe status tracker for the solderpen
// daemon. It is designed to be read by HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/solderpen/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSBroker    string // websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state. It is a value type —
// safe to use after the lock is released.
type Snapshot struct {
	State                logic.State
	HeatingElementStatus logic.HeatingElementStatus
	PenSensorStatus      logic.PenSensorStatus

	PresetTemperaturesMC []int
	SelectedPreset       int
	Standby              bool

	TipTemperatureMC int64
	PowerMW          int64
	EnergyMWh        int64

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the engine and preset state. Called from the main loop after
// every completed period.
func (t *Tracker) Update(reading logic.Reading, preset *logic.Preset, powerMW, energyMWh int64) {
	t.mu.Lock()
	t.snap.State = reading.State
	t.snap.HeatingElementStatus = reading.HeatingElementStatus
	t.snap.PenSensorStatus = reading.PenSensorStatus
	t.snap.TipTemperatureMC = reading.CPUTemperatureMC + reading.PenTemperatureMC
	t.snap.PowerMW = powerMW
	t.snap.EnergyMWh = energyMWh

	temps := make([]int, len(preset.Temperatures))
	copy(temps, preset.Temperatures)
	t.snap.PresetTemperaturesMC = temps
	t.snap.SelectedPreset = preset.Selected
	t.snap.Standby = preset.Standby
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state. Now is set to
// the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
