package hal

import "time"

// RealClock exposes a fixed tick rate and a monotonic tick counter derived
// from the Go runtime's monotonic clock. The Engine only consults
// Frequency; the daemon main loop computes delta_ticks between successive
// Process calls from elapsed wall-clock time and Frequency, not from Ticks.
type RealClock struct {
	freqHz int64
	start  time.Time
}

// NewRealClock returns a RealClock ticking at freqHz ticks/sec.
func NewRealClock(freqHz int64) *RealClock {
	return &RealClock{freqHz: freqHz, start: time.Now()}
}

// Frequency returns ticks per second.
func (c *RealClock) Frequency() int64 {
	return c.freqHz
}

// Ticks returns the number of ticks elapsed since the clock was created.
func (c *RealClock) Ticks() int64 {
	d := time.Since(c.start)
	secs := int64(d / time.Second)
	rem := int64(d % time.Second)
	return secs*c.freqHz + rem*c.freqHz/int64(time.Second)
}
