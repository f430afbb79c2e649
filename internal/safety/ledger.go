// internal/safety/ledger.go
package safety

import "github.com/tamzrod/heliotrack/internal/fault"

// Ledger counts faults per kind for the current session.
// Counts only grow (saturating at 0xFFFF) until Reset.
type Ledger struct {
	counts [fault.NumKinds]uint16
	last   fault.Kind
}

// LogFault counts k. Out-of-range kinds are ignored.
func (l *Ledger) LogFault(k fault.Kind) {
	if !k.Valid() {
		return
	}
	l.counts[k] = fault.Saturating(l.counts[k])
	l.last = k
}

func (l *Ledger) Count(k fault.Kind) uint16 {
	if !k.Valid() {
		return 0
	}
	return l.counts[k]
}

func (l *Ledger) Total() uint32 {
	var total uint32
	for _, n := range l.counts {
		total += uint32(n)
	}
	return total
}

// Last returns the most recently logged kind, or fault.None.
func (l *Ledger) Last() fault.Kind {
	return l.last
}

func (l *Ledger) Counts() [fault.NumKinds]uint16 {
	return l.counts
}

func (l *Ledger) Reset() {
	l.counts = [fault.NumKinds]uint16{}
	l.last = fault.None
}
