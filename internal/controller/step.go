// internal/controller/step.go
package controller

import (
	"github.com/tamzrod/heliotrack/internal/command"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/safety"
	"github.com/tamzrod/heliotrack/internal/sensor"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/status"
	"github.com/tamzrod/heliotrack/internal/telemetry"
)

// Result describes one iteration.
type Result struct {
	Mode     safety.Mode
	Command  servo.Command
	Actuated bool
	FlowOK   bool
	Scrubbed bool
	Overrun  bool
	Elapsed  uint32 // ms
}

// Step runs exactly one iteration of the control loop.
func (c *Controller) Step() Result {
	d := c.d
	start := d.Clock.Millis()

	d.Watchdog.Feed()
	c.drainInput()

	c.sig.Reset()
	c.sig.Mark(safety.PhaseInit)

	// ---- sense ----
	c.reading = d.Sensors.ReadAll()
	var pos sensor.Position
	if c.reading.Valid {
		pos = d.Sensors.Position(c.reading)
		if pos.SunDetected {
			d.Tracker.UpdateSunTime(d.Clock.Millis())
		}
	}
	c.sig.Mark(safety.PhaseSense)

	// ---- track ----
	cmd := d.Tracker.Calculate(pos)
	if override, ok := c.operatorCommand(); ok {
		cmd = override
	}
	c.cmd = cmd
	c.sig.Mark(safety.PhaseTrack)

	// ---- actuate ----
	var res Result
	if d.Kernel.Mode() != safety.ModeEmergency {
		res.Actuated = d.Servos.Execute(cmd)
	}
	c.sig.Mark(safety.PhaseActuate)

	// ---- integrity ----
	res.FlowOK = d.Kernel.VerifyFlow(c.sig)
	if !res.FlowOK && d.Metrics != nil {
		d.Metrics.FlowViolation()
	}

	now := d.Clock.Millis()
	if hal.Elapsed(now, c.lastScrub) >= c.cfg.Scrub {
		if !d.Kernel.ScrubMemory() {
			c.log.Warn().Msg("scrub found corrupted cells")
		}
		c.lastScrub = now
		res.Scrubbed = true
	}

	res.Mode = d.Kernel.EvaluateMode()
	res.Command = cmd

	c.tickSeconds(now, res.Mode)

	if d.Reporter != nil {
		on := d.Reporter.Heartbeat()
		if d.Metrics != nil {
			d.Metrics.SetHeartbeat(on)
		}
	}

	if hal.Elapsed(now, c.lastTelemetry) >= c.cfg.Telemetry {
		c.report(now, res.Mode, pos)
		c.lastTelemetry = now
	}

	if hal.Elapsed(now, c.lastPersist) >= c.cfg.Persist {
		// Offset edits take effect from the next actuation.
		rec := d.Kernel.Config()
		d.Servos.SetOffsets(rec.AzimuthOffset, rec.ElevationOffset)

		if err := d.Kernel.PersistConfig(); err != nil {
			c.log.Error().Err(err).Msg("config persist failed")
			if d.Metrics != nil {
				d.Metrics.PersistFailed()
			}
		} else {
			c.log.Info().Msg("config persisted")
		}
		c.lastPersist = now
	}

	res.Elapsed = hal.Elapsed(d.Clock.Millis(), start)
	if res.Elapsed > c.cfg.Period {
		res.Overrun = true
		c.log.Warn().Uint32("elapsed_ms", res.Elapsed).Uint32("period_ms", c.cfg.Period).Msg("control loop overrun")
		if d.Metrics != nil {
			d.Metrics.Overrun()
		}
	}

	now = d.Clock.Millis()
	if hal.Elapsed(now, c.lastRecovery) >= c.cfg.Recovery {
		c.recover()
		c.lastRecovery = now
	}

	return res
}

// drainInput hands every buffered operator byte to the command handler
// without blocking.
func (c *Controller) drainInput() {
	if c.d.Commands == nil || c.d.Input == nil {
		return
	}
	for {
		select {
		case p, ok := <-c.d.Input:
			if !ok {
				c.d.Input = nil
				return
			}
			c.d.Commands.Feed(p)
		default:
			return
		}
	}
}

// operatorCommand returns the command that overrides tracking, if any.
// Overrides still go through the servo driver checks.
func (c *Controller) operatorCommand() (servo.Command, bool) {
	h := c.d.Commands
	if h == nil {
		return servo.Command{}, false
	}

	if cmd, ok := h.TakePending(); ok {
		c.hold = cmd
		c.holding = true
	}

	switch h.Mode() {
	case command.ControlDemo:
		c.holding = false
		return h.DemoCommand()
	case command.ControlManual:
		return c.hold, c.holding
	default:
		c.holding = false
		return servo.Command{}, false
	}
}

// tickSeconds counts whole seconds spent outside Normal.
func (c *Controller) tickSeconds(now uint32, mode safety.Mode) {
	if mode == safety.ModeNormal {
		c.secondsDegraded = 0
		c.lastSecond = now
		return
	}
	for hal.Elapsed(now, c.lastSecond) >= 1000 {
		c.secondsDegraded++
		c.lastSecond += 1000
	}
}

// recover clears collaborator counters and the session ledger, but only
// while the system is healthy.
func (c *Controller) recover() {
	if c.d.Kernel.Mode() != safety.ModeNormal {
		return
	}
	c.d.Sensors.ResetFaults()
	c.d.Servos.ResetFaults()
	c.d.Kernel.ClearFaults()
	c.log.Info().Msg("error counters cleared, recovery confirmed")
}

func (c *Controller) report(now uint32, mode safety.Mode, pos sensor.Position) {
	d := c.d
	k := d.Kernel

	if d.Reporter != nil {
		servos := d.Servos.Last()
		err := d.Reporter.Emit(telemetry.Frame{
			Uptime: now / 1000,
			Mode:   mode.String(),
			Sensors: telemetry.Sensors{
				TopLeft:     c.reading.TopLeft,
				TopRight:    c.reading.TopRight,
				BottomLeft:  c.reading.BottomLeft,
				BottomRight: c.reading.BottomRight,
				Valid:       c.reading.Valid,
			},
			Sun: telemetry.Sun{
				Detected:       pos.SunDetected,
				AzimuthError:   pos.AzimuthError,
				ElevationError: pos.ElevationError,
			},
			Servos: telemetry.Servos{Azimuth: servos.Azimuth, Elevation: servos.Elevation},
			Errors: telemetry.Errors{
				Total:  k.TotalFaults(),
				Sensor: d.Sensors.FaultCount(),
				Servo:  d.Servos.FaultCount(),
			},
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("telemetry emit failed")
		}
	}

	rec := k.Config()
	if d.Metrics != nil {
		d.Metrics.SetMode(uint8(mode))
		d.Metrics.SetFaults(k.FaultCounts(), rec.FaultCounts)
		d.Metrics.SetBootCount(rec.BootCount)
	}

	if d.Status != nil {
		err := d.Status.WriteStatus(status.Snapshot{
			Mode:            uint16(mode),
			LastFault:       uint16(k.LastFault()),
			SecondsDegraded: status.Clamp16(c.secondsDegraded),
			TotalFaults:     status.Clamp16(k.TotalFaults()),
			BootCount:       rec.BootCount,
		})
		if err != nil {
			c.log.Warn().Err(err).Msg("status write failed")
		}
	}
}
