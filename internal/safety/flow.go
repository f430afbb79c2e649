// internal/safety/flow.go
package safety

// Control-flow signatures.
// One constant per loop phase; a complete iteration XORs all four.
// XOR is commutative, so this proves the set of phases ran, not their order.
const (
	PhaseInit    Signature = 0xA5A5
	PhaseSense   Signature = 0x3C3C
	PhaseTrack   Signature = 0x5A5A
	PhaseActuate Signature = 0xC3C3

	ExpectedSignature = PhaseInit ^ PhaseSense ^ PhaseTrack ^ PhaseActuate
)

// Signature accumulates phase constants for one iteration. Never persisted.
type Signature uint16

// Reset clears the accumulator at the top of an iteration.
func (s *Signature) Reset() {
	*s = 0
}

// Mark records that phase p ran.
func (s *Signature) Mark(p Signature) {
	*s ^= p
}

// Complete reports whether s equals the expected signature.
func (s Signature) Complete() bool {
	return s == ExpectedSignature
}
