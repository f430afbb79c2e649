// internal/tracking/tracking.go
package tracking

import (
	"errors"
	"math"

	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/sensor"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/tmr"
)

// Config holds the control law parameters.
type Config struct {
	Deadband       float64 // degrees
	Gain           float64
	SunLossTimeout uint32 // ms
	HomeAzimuth    uint16
	HomeElevation  uint16
	Limits         servo.Limits
}

// Controller turns sun offsets into servo commands with a proportional law.
type Controller struct {
	cfg   Config
	clock hal.Clock

	azimuth   float64
	elevation float64

	// lastSun is read every cycle and survives long dark periods,
	// so it is kept triple-redundant.
	lastSun *tmr.Cell[uint32]
}

func New(cfg Config, clock hal.Clock) (*Controller, error) {
	if clock == nil {
		return nil, errors.New("tracking: clock required")
	}
	if !cfg.Limits.Contains(cfg.HomeAzimuth, cfg.HomeElevation) {
		return nil, errors.New("tracking: home position outside limits")
	}
	if cfg.Gain <= 0 {
		return nil, errors.New("tracking: gain must be > 0")
	}

	c := &Controller{
		cfg:     cfg,
		clock:   clock,
		lastSun: tmr.NewCell(clock.Millis()),
	}
	c.goHome()
	return c, nil
}

func (c *Controller) goHome() {
	c.azimuth = float64(c.cfg.HomeAzimuth)
	c.elevation = float64(c.cfg.HomeElevation)
}

// UpdateSunTime records that the sun was seen at ts.
func (c *Controller) UpdateSunTime(ts uint32) {
	c.lastSun.Write(ts)
}

// SunLost reports whether the sun has been missing longer than the timeout.
func (c *Controller) SunLost() bool {
	return hal.Elapsed(c.clock.Millis(), c.lastSun.Vote()) > c.cfg.SunLossTimeout
}

// SunCell exposes the voted timestamp for scrubbing.
func (c *Controller) SunCell() *tmr.Cell[uint32] {
	return c.lastSun
}

// Calculate advances the target position and returns a sealed command.
// Without a sun fix the target returns home.
func (c *Controller) Calculate(p sensor.Position) servo.Command {
	if c.SunLost() || !p.SunDetected {
		c.goHome()
	} else {
		if math.Abs(p.AzimuthError) > c.cfg.Deadband {
			c.azimuth += p.AzimuthError * c.cfg.Gain
		}
		if math.Abs(p.ElevationError) > c.cfg.Deadband {
			c.elevation += p.ElevationError * c.cfg.Gain
		}

		l := c.cfg.Limits
		c.azimuth = clamp(c.azimuth, float64(l.AzimuthMin), float64(l.AzimuthMax))
		c.elevation = clamp(c.elevation, float64(l.ElevationMin), float64(l.ElevationMax))
	}

	return servo.NewCommand(uint16(c.azimuth), uint16(c.elevation))
}

// Target returns the current target angles.
func (c *Controller) Target() (azimuth, elevation float64) {
	return c.azimuth, c.elevation
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
