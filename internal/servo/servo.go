// internal/servo/servo.go
package servo

import (
	"encoding/binary"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/crc"
	"github.com/tamzrod/heliotrack/internal/fault"
)

// Limits are the mechanical angle limits of the two axes, in degrees.
type Limits struct {
	AzimuthMin   uint16
	AzimuthMax   uint16
	ElevationMin uint16
	ElevationMax uint16
}

// DefaultLimits match the stock pan/tilt bracket.
var DefaultLimits = Limits{
	AzimuthMin:   0,
	AzimuthMax:   180,
	ElevationMin: 30,
	ElevationMax: 150,
}

// Contains reports whether both angles are inside the limits.
func (l Limits) Contains(az, el uint16) bool {
	return az >= l.AzimuthMin && az <= l.AzimuthMax &&
		el >= l.ElevationMin && el <= l.ElevationMax
}

// Command is a target position guarded by a CRC over its payload.
type Command struct {
	Azimuth   uint16
	Elevation uint16
	CRC       uint16
}

// NewCommand returns a sealed command.
func NewCommand(az, el uint16) Command {
	c := Command{Azimuth: az, Elevation: el}
	c.Seal()
	return c
}

func (c Command) payload() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:], c.Azimuth)
	binary.LittleEndian.PutUint16(b[2:], c.Elevation)
	return b[:]
}

// Seal stamps the CRC.
func (c *Command) Seal() {
	c.CRC = crc.Checksum(c.payload())
}

// Verify reports whether the CRC matches the payload.
func (c Command) Verify() bool {
	return crc.Checksum(c.payload()) == c.CRC
}

// Actuator drives the two physical axes.
type Actuator interface {
	SetAngles(azimuth, elevation uint16) error
}

// Driver validates commands before they reach the actuator.
type Driver struct {
	limits Limits
	act    Actuator
	log    zerolog.Logger

	azOffset int16
	elOffset int16

	last   Command
	faults uint16
}

func New(limits Limits, act Actuator, log zerolog.Logger) (*Driver, error) {
	if act == nil {
		return nil, errors.New("servo: actuator required")
	}
	if limits.AzimuthMin > limits.AzimuthMax || limits.ElevationMin > limits.ElevationMax {
		return nil, errors.New("servo: inverted limits")
	}
	return &Driver{
		limits: limits,
		act:    act,
		log:    log.With().Str("component", "servo").Logger(),
	}, nil
}

// SetOffsets sets the calibration trim added to every commanded angle.
func (d *Driver) SetOffsets(az, el int16) {
	d.azOffset = az
	d.elOffset = el
}

// Home drives both axes to the given position without command checks.
func (d *Driver) Home(az, el uint16) error {
	return d.act.SetAngles(az, el)
}

// Execute validates cmd and drives the actuator.
// A CRC mismatch, an out-of-range angle or an actuator error counts a fault
// and returns false. Nothing else changes.
func (d *Driver) Execute(cmd Command) bool {
	if !cmd.Verify() {
		d.log.Warn().Msg("crc mismatch")
		d.faults = fault.Saturating(d.faults)
		return false
	}
	if !d.limits.Contains(cmd.Azimuth, cmd.Elevation) {
		d.log.Warn().
			Uint16("azimuth", cmd.Azimuth).
			Uint16("elevation", cmd.Elevation).
			Msg("command out of range")
		d.faults = fault.Saturating(d.faults)
		return false
	}

	az := trim(cmd.Azimuth, d.azOffset, d.limits.AzimuthMin, d.limits.AzimuthMax)
	el := trim(cmd.Elevation, d.elOffset, d.limits.ElevationMin, d.limits.ElevationMax)

	if err := d.act.SetAngles(az, el); err != nil {
		d.log.Error().Err(err).Msg("actuator write failed")
		d.faults = fault.Saturating(d.faults)
		return false
	}

	d.last = cmd
	return true
}

// Last returns the last command executed successfully.
func (d *Driver) Last() Command { return d.last }

// FaultCount implements fault.Counter.
func (d *Driver) FaultCount() uint16 { return d.faults }

func (d *Driver) ResetFaults() { d.faults = 0 }

func trim(v uint16, off int16, lo, hi uint16) uint16 {
	x := int32(v) + int32(off)
	if x < int32(lo) {
		return lo
	}
	if x > int32(hi) {
		return hi
	}
	return uint16(x)
}
