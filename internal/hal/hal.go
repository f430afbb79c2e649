// internal/hal/hal.go
package hal

// Capability interfaces the controller is built against.
// Real hardware, Modbus field devices and test fakes all sit behind these.

// Clock is a free-running millisecond counter that wraps at 2^32.
// Never compare two readings directly; use Elapsed.
type Clock interface {
	Millis() uint32
}

// ByteStore is byte-addressed persistent storage (EEPROM or an emulation).
// Writes block until the byte is committed.
type ByteStore interface {
	Load(addr uint16) (byte, error)
	Store(addr uint16, b byte) error
	Size() int
}

// Watchdog must be fed once per control-loop iteration.
type Watchdog interface {
	Feed()
}

// Elapsed returns the milliseconds from since to now, wrap-safe.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// NopWatchdog is used when no hardware watchdog is attached.
type NopWatchdog struct{}

func (NopWatchdog) Feed() {}
