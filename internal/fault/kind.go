// internal/fault/kind.go
package fault

// Kind identifies a fault class.
// The numeric values index the persisted counter array and MUST NOT be reordered.
type Kind uint8

const (
	None Kind = iota
	SensorFault
	ServoFault
	MemoryCorruption
	ControlFlow
	PrimaryConfigCorrupt
	ConfigLost
	WatchdogReset

	// NumKinds is the length of every per-kind counter array.
	NumKinds = int(WatchdogReset) + 1
)

var kindNames = [NumKinds]string{
	"none",
	"sensor_fault",
	"servo_fault",
	"memory_corruption",
	"control_flow",
	"primary_config_corrupt",
	"config_lost",
	"watchdog_reset",
}

// Valid reports whether k indexes a counter.
func (k Kind) Valid() bool {
	return int(k) < NumKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns every valid kind in index order.
func Kinds() []Kind {
	out := make([]Kind, NumKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Sink receives fault reports.
type Sink interface {
	LogFault(k Kind)
}

// Counter exposes a collaborator's own fault count, polled by mode evaluation.
type Counter interface {
	FaultCount() uint16
}

// Saturating adds one to n without wrapping.
func Saturating(n uint16) uint16 {
	if n == 0xFFFF {
		return n
	}
	return n + 1
}
