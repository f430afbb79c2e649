// internal/safety/mode.go
package safety

import "fmt"

// Mode is the operating mode, ordered by severity.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeDegraded1
	ModeDegraded2
	ModeSafe
	ModeEmergency
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeDegraded1:
		return "DEGRADED_1"
	case ModeDegraded2:
		return "DEGRADED_2"
	case ModeSafe:
		return "SAFE"
	case ModeEmergency:
		return "EMERGENCY"
	}
	return fmt.Sprintf("MODE(%d)", uint8(m))
}

// AllowsActuation reports whether servos may be driven in m.
// Only Emergency suppresses actuation.
func (m Mode) AllowsActuation() bool {
	return m != ModeEmergency
}

// ParseMode parses the names produced by String.
func ParseMode(s string) (Mode, error) {
	for m := ModeNormal; m <= ModeEmergency; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeNormal, fmt.Errorf("safety: unknown mode %q", s)
}
