// internal/sensor/sensor.go
package sensor

import (
	"errors"

	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/hal"
)

// Channel indexes the four light sensors of the quad cell.
type Channel uint8

const (
	TopLeft Channel = iota
	TopRight
	BottomLeft
	BottomRight

	NumChannels = 4
)

// SamplesPerChannel is fixed: the filter is a median of three.
const SamplesPerChannel = 3

// Analog is the raw ADC source.
type Analog interface {
	ReadChannel(ch Channel) (uint16, error)
}

// Config holds the validity window and sun threshold.
type Config struct {
	Min uint16
	Max uint16

	// SunThreshold is the average raw level above which the sun counts as detected.
	SunThreshold uint16
}

// Reading is one filtered sample of all four channels.
type Reading struct {
	TopLeft     uint16
	TopRight    uint16
	BottomLeft  uint16
	BottomRight uint16
	Timestamp   uint32
	Valid       bool
}

// Position is the sun's offset from the tracker's boresight, in degrees.
type Position struct {
	AzimuthError   float64
	ElevationError float64
	SunDetected    bool
}

// Manager samples the quad cell and counts invalid readings.
type Manager struct {
	cfg    Config
	analog Analog
	clock  hal.Clock

	current Position
	faults  uint16
}

func New(cfg Config, analog Analog, clock hal.Clock) (*Manager, error) {
	if analog == nil {
		return nil, errors.New("sensor: analog source required")
	}
	if clock == nil {
		return nil, errors.New("sensor: clock required")
	}
	if cfg.Min >= cfg.Max {
		return nil, errors.New("sensor: min must be < max")
	}
	return &Manager{cfg: cfg, analog: analog, clock: clock}, nil
}

// ReadAll samples every channel. A reading stays valid with one bad channel;
// two or more make it invalid and count a fault.
func (m *Manager) ReadAll() Reading {
	r := Reading{Timestamp: m.clock.Millis()}

	bad := 0
	vals := [NumChannels]*uint16{&r.TopLeft, &r.TopRight, &r.BottomLeft, &r.BottomRight}
	for ch := Channel(0); ch < NumChannels; ch++ {
		v, ok := m.readFiltered(ch)
		*vals[ch] = v
		if !ok || v < m.cfg.Min || v > m.cfg.Max {
			bad++
		}
	}

	r.Valid = bad < 2
	if !r.Valid {
		m.faults = fault.Saturating(m.faults)
	}
	return r
}

// readFiltered returns the median of three samples.
// Any sample error marks the channel bad.
func (m *Manager) readFiltered(ch Channel) (uint16, bool) {
	var s [SamplesPerChannel]uint16
	for i := range s {
		v, err := m.analog.ReadChannel(ch)
		if err != nil {
			return 0, false
		}
		s[i] = v
	}
	return Median3(s[0], s[1], s[2]), true
}

// Position derives the sun offset from r and caches it.
func (m *Manager) Position(r Reading) Position {
	total := uint32(r.TopLeft) + uint32(r.TopRight) + uint32(r.BottomLeft) + uint32(r.BottomRight)
	avg := total / NumChannels

	var p Position
	p.SunDetected = avg > uint32(m.cfg.SunThreshold)
	if !p.SunDetected {
		return p
	}

	horizontal := (int32(r.TopRight) + int32(r.BottomRight)) - (int32(r.TopLeft) + int32(r.BottomLeft))
	vertical := (int32(r.TopLeft) + int32(r.TopRight)) - (int32(r.BottomLeft) + int32(r.BottomRight))

	p.AzimuthError = float64(horizontal) / 10
	p.ElevationError = float64(vertical) / 10

	m.current = p
	return p
}

// Current returns the last position computed with the sun detected.
func (m *Manager) Current() Position { return m.current }

// FaultCount implements fault.Counter.
func (m *Manager) FaultCount() uint16 { return m.faults }

func (m *Manager) ResetFaults() { m.faults = 0 }

// Median3 returns the middle of three values.
func Median3(a, b, c uint16) uint16 {
	if a > b {
		if b > c {
			return b
		}
		if a > c {
			return c
		}
		return a
	}
	if a > c {
		return a
	}
	if b > c {
		return c
	}
	return b
}
