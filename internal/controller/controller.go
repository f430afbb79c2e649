// internal/controller/controller.go
package controller

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/command"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/safety"
	"github.com/tamzrod/heliotrack/internal/sensor"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/telemetry"
	"github.com/tamzrod/heliotrack/internal/tracking"
	"github.com/tamzrod/heliotrack/internal/writer"
)

// Config is the loop timing. All values are milliseconds.
type Config struct {
	Period    uint32
	Scrub     uint32
	Telemetry uint32
	Persist   uint32
	Recovery  uint32

	HomeAzimuth   uint16
	HomeElevation uint16
}

// Deps are the collaborators the loop drives. Kernel, Sensors, Tracker and
// Servos are required; the rest are optional.
type Deps struct {
	Clock    hal.Clock
	Watchdog hal.Watchdog
	Kernel   *safety.Kernel
	Sensors  *sensor.Manager
	Tracker  *tracking.Controller
	Servos   *servo.Driver

	Commands *command.Handler
	Input    <-chan []byte // operator bytes for Commands

	Reporter *telemetry.Reporter
	Metrics  *telemetry.Metrics
	Status   writer.StatusWriter

	Log zerolog.Logger
}

// Controller owns one control loop. It is not safe for concurrent use;
// Run is the only goroutine that calls Step.
type Controller struct {
	cfg Config
	d   Deps
	log zerolog.Logger

	sig safety.Signature

	lastScrub     uint32
	lastTelemetry uint32
	lastPersist   uint32
	lastRecovery  uint32
	lastSecond    uint32

	secondsDegraded uint32

	hold    servo.Command // manual position, held until AUTO
	holding bool

	reading sensor.Reading
	cmd     servo.Command
}

// New wires the collaborators together. The kernel must already be
// initialized: calibration offsets are taken from its record.
func New(d Deps, cfg Config) (*Controller, error) {
	switch {
	case d.Clock == nil:
		return nil, errors.New("controller: clock required")
	case d.Kernel == nil:
		return nil, errors.New("controller: kernel required")
	case d.Sensors == nil:
		return nil, errors.New("controller: sensor manager required")
	case d.Tracker == nil:
		return nil, errors.New("controller: tracking controller required")
	case d.Servos == nil:
		return nil, errors.New("controller: servo driver required")
	}
	if cfg.Period == 0 {
		return nil, errors.New("controller: period must be > 0")
	}
	if d.Watchdog == nil {
		d.Watchdog = hal.NopWatchdog{}
	}

	c := &Controller{
		cfg: cfg,
		d:   d,
		log: d.Log.With().Str("component", "controller").Logger(),
	}

	d.Kernel.Attach(d.Servos, d.Sensors)
	d.Kernel.Watch(safety.Guard("sun_detect_time", d.Tracker.SunCell()))

	rec := d.Kernel.Config()
	d.Servos.SetOffsets(rec.AzimuthOffset, rec.ElevationOffset)

	now := d.Clock.Millis()
	c.lastScrub = now
	c.lastTelemetry = now
	c.lastPersist = now
	c.lastRecovery = now
	c.lastSecond = now

	if d.Metrics != nil {
		d.Metrics.SetBootCount(rec.BootCount)
		d.Metrics.SetMode(uint8(d.Kernel.Mode()))
	}

	return c, nil
}

// SecondsDegraded returns the seconds spent outside Normal since the last
// return to Normal.
func (c *Controller) SecondsDegraded() uint32 { return c.secondsDegraded }

// LastReading returns the reading of the latest iteration.
func (c *Controller) LastReading() sensor.Reading { return c.reading }

// LastCommand returns the command produced by the latest iteration.
func (c *Controller) LastCommand() servo.Command { return c.cmd }
