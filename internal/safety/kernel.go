// internal/safety/kernel.go
package safety

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/nvstore"
	"github.com/tamzrod/heliotrack/internal/tmr"
)

// DefaultFaultThreshold is the count a threshold-gated fault must exceed.
const DefaultFaultThreshold = 10

// Guarded is a voted cell checked by ScrubMemory besides the mode cell.
type Guarded struct {
	Name     string
	Validate func() bool
	Repair   func()
}

// Guard wraps c for registration with Kernel.Watch.
func Guard[T comparable](name string, c *tmr.Cell[T]) Guarded {
	return Guarded{
		Name:     name,
		Validate: c.Validate,
		Repair:   func() { c.Repair() },
	}
}

// Kernel is the safety context: it owns the fault ledger, the voted mode
// cell and the configuration store. It is not safe for concurrent use;
// the control loop is its only caller.
type Kernel struct {
	store *nvstore.Store
	log   zerolog.Logger

	threshold uint16
	actuators fault.Counter
	sensors   fault.Counter

	ledger  Ledger
	mode    tmr.Cell[Mode]
	guarded []Guarded
}

type Option func(*Kernel)

// WithFaultThreshold sets the count that MemoryCorruption and ControlFlow must exceed.
func WithFaultThreshold(n uint16) Option {
	return func(k *Kernel) { k.threshold = n }
}

// WithActuatorFaults sets the polled actuator fault source.
func WithActuatorFaults(c fault.Counter) Option {
	return func(k *Kernel) { k.actuators = c }
}

// WithSensorFaults sets the polled sensor fault source.
func WithSensorFaults(c fault.Counter) Option {
	return func(k *Kernel) { k.sensors = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// NewKernel builds a kernel around store. Call Init before the first cycle.
func NewKernel(store *nvstore.Store, opts ...Option) (*Kernel, error) {
	if store == nil {
		return nil, errors.New("safety: config store required")
	}

	k := &Kernel{
		store:     store,
		log:       zerolog.Nop(),
		threshold: DefaultFaultThreshold,
	}
	for _, o := range opts {
		o(k)
	}
	k.log = k.log.With().Str("component", "safety").Logger()
	k.mode.Write(ModeNormal)

	return k, nil
}

// Init sets the mode to Normal, clears the ledger and runs safe boot.
// Boot faults land in the ledger.
func (k *Kernel) Init() nvstore.Boot {
	k.mode.Write(ModeNormal)
	k.ledger.Reset()
	return k.store.Init(&k.ledger)
}

// Attach sets the polled fault sources after construction.
// Collaborators are usually built after the kernel.
func (k *Kernel) Attach(actuators, sensors fault.Counter) {
	k.actuators = actuators
	k.sensors = sensors
}

// Watch registers an extra voted cell for ScrubMemory.
func (k *Kernel) Watch(g Guarded) {
	k.guarded = append(k.guarded, g)
}

// ---- configuration ----

func (k *Kernel) Config() nvstore.Record {
	return k.store.Get()
}

func (k *Kernel) MutableConfig() *nvstore.Record {
	return k.store.Mutable()
}

func (k *Kernel) PersistConfig() error {
	return k.store.Persist()
}

// ---- faults ----

// LogFault counts kind in the session ledger and the persisted history.
// Out-of-range kinds are a no-op.
func (k *Kernel) LogFault(kind fault.Kind) {
	if !kind.Valid() {
		return
	}
	k.ledger.LogFault(kind)
	k.store.RecordFault(kind)
}

func (k *Kernel) FaultCount(kind fault.Kind) uint16 {
	return k.ledger.Count(kind)
}

func (k *Kernel) TotalFaults() uint32 {
	return k.ledger.Total()
}

// FaultCounts returns the session ledger in kind order.
func (k *Kernel) FaultCounts() [fault.NumKinds]uint16 {
	return k.ledger.Counts()
}

// LastFault returns the most recently counted kind this session.
func (k *Kernel) LastFault() fault.Kind {
	return k.ledger.Last()
}

// ClearFaults resets the session ledger, but only while the mode is Normal.
// A system that keeps degrading never gets its evidence wiped.
func (k *Kernel) ClearFaults() bool {
	if k.Mode() != ModeNormal {
		return false
	}
	k.ledger.Reset()
	k.log.Info().Msg("fault counters cleared")
	return true
}

// ---- mode ----

// Mode returns the majority-voted mode.
func (k *Kernel) Mode() Mode {
	return k.mode.Vote()
}

// SetMode overrides the mode until the next evaluation.
func (k *Kernel) SetMode(m Mode) {
	k.mode.Write(m)
}

// EvaluateMode recomputes the mode from the ledger and the polled counters.
// First match wins. The result is always fully written, which also
// repairs any single corrupted replica.
func (k *Kernel) EvaluateMode() Mode {
	var actuatorFaults, sensorFaults uint16
	if k.actuators != nil {
		actuatorFaults = k.actuators.FaultCount()
	}
	if k.sensors != nil {
		sensorFaults = k.sensors.FaultCount()
	}

	next := ModeNormal
	switch {
	case k.ledger.Count(fault.ConfigLost) > 0 ||
		k.ledger.Count(fault.ControlFlow) > k.threshold:
		next = ModeEmergency
	case actuatorFaults >= 1:
		next = ModeDegraded2
	case sensorFaults >= 1:
		next = ModeDegraded1
	case k.ledger.Count(fault.MemoryCorruption) > k.threshold:
		next = ModeSafe
	}

	if prev := k.mode.Vote(); prev != next {
		k.log.Info().Stringer("from", prev).Stringer("to", next).Msg("mode change")
	}
	k.mode.Write(next)
	return next
}

// VerifyFlow checks one iteration's signature. A mismatch counts a
// ControlFlow fault and forces Safe.
func (k *Kernel) VerifyFlow(sig Signature) bool {
	if sig.Complete() {
		return true
	}

	k.log.Error().
		Uint16("signature", uint16(sig)).
		Uint16("expected", uint16(ExpectedSignature)).
		Msg("control flow corruption")
	k.LogFault(fault.ControlFlow)
	k.mode.Write(ModeSafe)
	return false
}

// ScrubMemory revalidates the mode cell and every watched cell.
// It is the only place replica disagreement is counted as a fault.
// Returns false if any cell had lost its majority.
func (k *Kernel) ScrubMemory() bool {
	ok := true

	if !k.mode.Validate() {
		k.log.Error().Str("cell", "system_mode").Msg("tmr corruption")
		k.LogFault(fault.MemoryCorruption)
		k.mode.Write(ModeSafe)
		ok = false
	}

	for _, g := range k.guarded {
		if !g.Validate() {
			k.log.Error().Str("cell", g.Name).Msg("tmr corruption")
			k.LogFault(fault.MemoryCorruption)
			ok = false
		}
		g.Repair()
	}

	return ok
}

// ---- fault injection ----

// ModeCell exposes the mode cell so tests can upset replicas.
func (k *Kernel) ModeCell() *tmr.Cell[Mode] {
	return &k.mode
}
