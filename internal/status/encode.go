// internal/status/encode.go
package status

// Encode converts a Snapshot into a full status block.
// Layout is protocol-locked. Device name slots are left zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotMode] = s.Mode
	regs[SlotLastFault] = s.LastFault
	regs[SlotSecondsDegraded] = s.SecondsDegraded
	regs[SlotTotalFaults] = s.TotalFaults
	regs[SlotBootCountHi] = uint16(s.BootCount >> 16)
	regs[SlotBootCountLo] = uint16(s.BootCount)

	return regs
}
