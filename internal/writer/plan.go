// internal/writer/plan.go
package writer

// StatusPlan locates the controller status block on the status endpoint.
type StatusPlan struct {
	// BaseSlot selects the block; the register address is
	// BaseSlot * status.SlotsPerDevice.
	BaseSlot uint16

	// DeviceName is written on every full re-assert.
	DeviceName string
}

// Endpoint is the exact contract the status writer uses (FC 16).
type Endpoint interface {
	WriteRegisters(addr uint16, regs []uint16) error
}
