// internal/command/handler.go
package command

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/servo"
)

// Line and argument limits of the operator console.
const (
	BufferSize       = 64
	MaxArgLength     = 20
	DefaultDemoRunMs = 45000
)

// ControlMode selects who produces the servo target.
type ControlMode uint8

const (
	ControlAuto ControlMode = iota
	ControlManual
	ControlDemo
)

func (m ControlMode) String() string {
	switch m {
	case ControlAuto:
		return "AUTO"
	case ControlManual:
		return "MANUAL"
	case ControlDemo:
		return "DEMO"
	}
	return "UNKNOWN"
}

type Config struct {
	Limits        servo.Limits
	HomeAzimuth   uint16
	HomeElevation uint16
	DemoDuration  uint32 // ms
}

// Handler parses operator commands arriving byte by byte.
// It never blocks: the loop hands it whatever bytes are available.
type Handler struct {
	cfg   Config
	clock hal.Clock
	out   io.Writer

	buf []byte

	mode       ControlMode
	pending    servo.Command
	hasPending bool
	demoStart  uint32
}

func New(cfg Config, clock hal.Clock, out io.Writer) (*Handler, error) {
	if clock == nil {
		return nil, errors.New("command: clock required")
	}
	if out == nil {
		out = io.Discard
	}
	if cfg.DemoDuration == 0 {
		cfg.DemoDuration = DefaultDemoRunMs
	}
	return &Handler{
		cfg:   cfg,
		clock: clock,
		out:   out,
		buf:   make([]byte, 0, BufferSize),
	}, nil
}

// Feed consumes input bytes. A CR or LF terminates a command.
// A line longer than the buffer is dropped.
func (h *Handler) Feed(p []byte) {
	for _, c := range p {
		switch {
		case c == '\n' || c == '\r':
			if len(h.buf) > 0 {
				h.parse(string(h.buf))
				h.buf = h.buf[:0]
			}
		case len(h.buf) < BufferSize-1:
			h.buf = append(h.buf, c)
		default:
			fmt.Fprintln(h.out, "[CMD] Error: Command too long")
			h.buf = h.buf[:0]
		}
	}
}

func (h *Handler) parse(line string) {
	cmd := strings.TrimLeft(line, " ")

	switch {
	case strings.HasPrefix(cmd, "MANUAL"):
		h.manual(cmd[len("MANUAL"):])

	case strings.HasPrefix(cmd, "AUTO"):
		h.mode = ControlAuto
		h.hasPending = false
		fmt.Fprintln(h.out, "[CMD] Automatic tracking mode")

	case strings.HasPrefix(cmd, "HOME"):
		h.setPending(h.cfg.HomeAzimuth, h.cfg.HomeElevation)
		fmt.Fprintln(h.out, "[CMD] Moving to home position")

	case strings.HasPrefix(cmd, "HELP") || strings.HasPrefix(cmd, "?"):
		h.help()

	case strings.HasPrefix(cmd, "DEMO"):
		h.mode = ControlDemo
		h.demoStart = h.clock.Millis()
		h.hasPending = false
		fmt.Fprintln(h.out, "[CMD] Ephemeris demo mode - simulating sun arc")

	case cmd != "":
		fmt.Fprintf(h.out, "[CMD] Unknown command: %s\n", cmd)
		fmt.Fprintln(h.out, "Type HELP for command list")
	}
}

func (h *Handler) manual(args string) {
	if len(args) > MaxArgLength {
		fmt.Fprintln(h.out, "[CMD] Error: Arguments too long")
		return
	}

	var az, el int
	if n, _ := fmt.Sscanf(args, "%d %d", &az, &el); n != 2 {
		fmt.Fprintln(h.out, "[CMD] Usage: MANUAL <azimuth> <elevation>")
		return
	}

	l := h.cfg.Limits
	if az < int(l.AzimuthMin) || az > int(l.AzimuthMax) ||
		el < int(l.ElevationMin) || el > int(l.ElevationMax) {
		fmt.Fprintln(h.out, "[CMD] Error: Position out of range")
		fmt.Fprintf(h.out, "  Valid: Az[%d-%d] El[%d-%d]\n",
			l.AzimuthMin, l.AzimuthMax, l.ElevationMin, l.ElevationMax)
		return
	}

	h.setPending(uint16(az), uint16(el))
	fmt.Fprintf(h.out, "[CMD] Manual mode - Az: %d El: %d\n", az, el)
}

func (h *Handler) setPending(az, el uint16) {
	h.mode = ControlManual
	h.pending = servo.NewCommand(az, el)
	h.hasPending = true
}

func (h *Handler) help() {
	l := h.cfg.Limits
	fmt.Fprint(h.out, `
=== Command Reference ===
MANUAL <az> <el> - Move to position (e.g. MANUAL 90 60)
AUTO             - Return to sun tracking mode
HOME             - Move to default position
DEMO             - Simulate a sunrise-to-sunset arc
HELP or ?        - Show this help
`)
	fmt.Fprintf(h.out, "\nValid ranges: Az[%d-%d] El[%d-%d]\n",
		l.AzimuthMin, l.AzimuthMax, l.ElevationMin, l.ElevationMax)
}

// Mode returns the active control mode.
func (h *Handler) Mode() ControlMode { return h.mode }

// TakePending returns the pending manual command once.
func (h *Handler) TakePending() (servo.Command, bool) {
	if !h.hasPending {
		return servo.Command{}, false
	}
	h.hasPending = false
	return h.pending, true
}

// DemoCommand returns the simulated sun position for the current time.
// The arc runs east to west across the azimuth range while elevation
// follows a half sine. When the arc is over the handler returns to Auto.
func (h *Handler) DemoCommand() (servo.Command, bool) {
	if h.mode != ControlDemo {
		return servo.Command{}, false
	}

	elapsed := hal.Elapsed(h.clock.Millis(), h.demoStart)
	if elapsed >= h.cfg.DemoDuration {
		h.mode = ControlAuto
		fmt.Fprintln(h.out, "[CMD] Demo complete - automatic tracking mode")
		return servo.Command{}, false
	}

	f := float64(elapsed) / float64(h.cfg.DemoDuration)
	l := h.cfg.Limits

	az := float64(l.AzimuthMin) + f*float64(l.AzimuthMax-l.AzimuthMin)
	el := float64(l.ElevationMin) + math.Sin(math.Pi*f)*float64(l.ElevationMax-l.ElevationMin)

	return servo.NewCommand(uint16(az), uint16(el)), true
}
