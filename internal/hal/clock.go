// internal/hal/clock.go
package hal

import "time"

// SystemClock counts milliseconds since it was created, truncated to 32 bits.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock is advanced explicitly. Used by tests.
type ManualClock struct {
	Now uint32
}

func (c *ManualClock) Millis() uint32 { return c.Now }

// Advance moves the clock forward by ms, wrapping like the hardware counter.
func (c *ManualClock) Advance(ms uint32) {
	c.Now += ms
}
