// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/heliotrack/internal/status"
)

// StatusWriter is the delivery-only contract for controller status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// DeviceStatusWriter writes one status block through a single endpoint.
// The first successful call writes the whole block, device name included.
// Later calls only touch slots whose value changed.
type DeviceStatusWriter struct {
	plan StatusPlan
	cli  Endpoint

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

var _ StatusWriter = (*DeviceStatusWriter)(nil)

// NewDeviceStatusWriter builds a status writer for plan.
func NewDeviceStatusWriter(plan StatusPlan, cli Endpoint) (*DeviceStatusWriter, error) {
	if cli == nil {
		return nil, errors.New("status writer: endpoint required")
	}
	if int(plan.BaseSlot)*status.SlotsPerDevice+status.SlotsPerDevice > 0x10000 {
		return nil, fmt.Errorf("status writer: base slot %d exceeds register space", plan.BaseSlot)
	}

	return &DeviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: encodeDeviceNameRegs(plan.DeviceName),
	}, nil
}

// WriteStatus delivers a controller status snapshot into status memory.
// On any write failure, the next call re-asserts the full block.
func (sw *DeviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: disabled")
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(baseAddr, sw.fullBlockRegs(s)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	write := func(slot uint16, name string, regs ...uint16) bool {
		if err := sw.cli.WriteRegisters(baseAddr+slot, regs); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", slot, name, err))
			return false
		}
		return true
	}

	// Slot 0: mode
	if sw.last.Mode != s.Mode && write(status.SlotMode, "mode", s.Mode) {
		sw.last.Mode = s.Mode
	}

	// Slot 1: last_fault
	if sw.last.LastFault != s.LastFault && write(status.SlotLastFault, "last_fault", s.LastFault) {
		sw.last.LastFault = s.LastFault
	}

	// Slot 2: seconds_degraded
	if sw.last.SecondsDegraded != s.SecondsDegraded &&
		write(status.SlotSecondsDegraded, "seconds_degraded", s.SecondsDegraded) {
		sw.last.SecondsDegraded = s.SecondsDegraded
	}

	// Slot 3: total_faults
	if sw.last.TotalFaults != s.TotalFaults && write(status.SlotTotalFaults, "total_faults", s.TotalFaults) {
		sw.last.TotalFaults = s.TotalFaults
	}

	// Slots 4-5: boot_count, written as one pair
	if sw.last.BootCount != s.BootCount &&
		write(status.SlotBootCountHi, "boot_count", uint16(s.BootCount>>16), uint16(s.BootCount)) {
		sw.last.BootCount = s.BootCount
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next call.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *DeviceStatusWriter) baseAddr() uint16 {
	// Each controller owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

func (sw *DeviceStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)

	// Device name always lives at the end of the block
	for i := 0; i < status.SlotDeviceNameSlots && i < len(sw.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = sw.nameRegs[i]
	}

	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 uint16 registers.
// Each register stores two ASCII bytes in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < status.DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
