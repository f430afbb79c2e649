// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Mode            uint16
	LastFault       uint16
	SecondsDegraded uint16
	TotalFaults     uint16
	BootCount       uint32
}

// Clamp16 narrows a counter to one slot without wrapping.
func Clamp16(n uint32) uint16 {
	if n > MaxCounter {
		return MaxCounter
	}
	return uint16(n)
}
