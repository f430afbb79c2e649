// internal/safety/kernel_test.go
package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/nvstore"
	"github.com/tamzrod/heliotrack/internal/tmr"
)

// ---- fakes ----

type fakeCounter struct{ n uint16 }

func (f *fakeCounter) FaultCount() uint16 { return f.n }

// ---- helpers ----

// newBootedKernel boots against a store holding a valid primary, so the
// ledger starts empty.
func newBootedKernel(t *testing.T, opts ...Option) (*Kernel, *hal.MemStore) {
	t.Helper()

	mem := hal.NewMemStore(0)
	rec := nvstore.Defaults()
	require.NoError(t, nvstore.Save(mem, nvstore.Location{Name: "primary"}, rec))

	store, err := nvstore.New(mem)
	require.NoError(t, err)

	k, err := NewKernel(store, opts...)
	require.NoError(t, err)

	boot := k.Init()
	require.Equal(t, nvstore.BootPrimary, boot.Source)
	return k, mem
}

// ---- mode evaluation ----

func TestEvaluateMode_NormalWhenClean(t *testing.T) {
	k, _ := newBootedKernel(t)
	assert.Equal(t, ModeNormal, k.EvaluateMode())
	assert.Equal(t, ModeNormal, k.Mode())
}

func TestEvaluateMode_ActuatorOutranksSensor(t *testing.T) {
	k, _ := newBootedKernel(t)
	act := &fakeCounter{n: 1}
	sen := &fakeCounter{n: 0}
	k.Attach(act, sen)

	assert.Equal(t, ModeDegraded2, k.EvaluateMode())

	sen.n = 5
	assert.Equal(t, ModeDegraded2, k.EvaluateMode())

	act.n = 0
	assert.Equal(t, ModeDegraded1, k.EvaluateMode())
}

func TestEvaluateMode_ConfigLostOutranksActuator(t *testing.T) {
	k, _ := newBootedKernel(t, WithActuatorFaults(&fakeCounter{n: 1}))
	k.LogFault(fault.ConfigLost)

	assert.Equal(t, ModeEmergency, k.EvaluateMode())
}

func TestEvaluateMode_ThresholdsAreExclusive(t *testing.T) {
	k, _ := newBootedKernel(t, WithFaultThreshold(3))

	for i := 0; i < 3; i++ {
		k.LogFault(fault.ControlFlow)
		k.LogFault(fault.MemoryCorruption)
	}
	assert.Equal(t, ModeNormal, k.EvaluateMode(), "equal to threshold is not over it")

	k.LogFault(fault.MemoryCorruption)
	assert.Equal(t, ModeSafe, k.EvaluateMode())

	k.LogFault(fault.ControlFlow)
	assert.Equal(t, ModeEmergency, k.EvaluateMode())
}

func TestEvaluateMode_SensorOutranksMemoryCorruption(t *testing.T) {
	k, _ := newBootedKernel(t, WithFaultThreshold(0), WithSensorFaults(&fakeCounter{n: 1}))
	k.LogFault(fault.MemoryCorruption)

	assert.Equal(t, ModeDegraded1, k.EvaluateMode())
}

func TestEvaluateMode_RepairsReplicas(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.ModeCell().SetReplica(2, ModeEmergency)

	k.EvaluateMode()
	for i := 0; i < tmr.Replicas; i++ {
		assert.Equal(t, ModeNormal, k.ModeCell().Replica(i))
	}
	assert.Zero(t, k.FaultCount(fault.MemoryCorruption), "evaluation repairs silently")
}

func TestEvaluateMode_Recovers(t *testing.T) {
	k, _ := newBootedKernel(t)
	sen := &fakeCounter{n: 2}
	k.Attach(nil, sen)

	assert.Equal(t, ModeDegraded1, k.EvaluateMode())
	sen.n = 0
	assert.Equal(t, ModeNormal, k.EvaluateMode())
}

// ---- control flow ----

func TestVerifyFlow_AnyOrder(t *testing.T) {
	phases := []Signature{PhaseInit, PhaseSense, PhaseTrack, PhaseActuate}

	rapid.Check(t, func(rt *rapid.T) {
		k, _ := newBootedKernel(t)
		order := rapid.Permutation(phases).Draw(rt, "order")

		var sig Signature
		sig.Reset()
		for _, p := range order {
			sig.Mark(p)
		}

		require.True(rt, k.VerifyFlow(sig))
		require.Zero(rt, k.FaultCount(fault.ControlFlow))
		require.Equal(rt, ModeNormal, k.Mode())
	})
}

func TestVerifyFlow_MissingPhase(t *testing.T) {
	phases := []Signature{PhaseInit, PhaseSense, PhaseTrack, PhaseActuate}

	for skip := range phases {
		k, _ := newBootedKernel(t)

		var sig Signature
		for i, p := range phases {
			if i != skip {
				sig.Mark(p)
			}
		}

		assert.False(t, k.VerifyFlow(sig))
		assert.Equal(t, uint16(1), k.FaultCount(fault.ControlFlow))
		assert.Equal(t, ModeSafe, k.Mode())
	}
}

func TestVerifyFlow_DuplicatedPhase(t *testing.T) {
	k, _ := newBootedKernel(t)

	var sig Signature
	for _, p := range []Signature{PhaseInit, PhaseSense, PhaseTrack, PhaseTrack, PhaseActuate} {
		sig.Mark(p)
	}
	assert.False(t, k.VerifyFlow(sig))
}

// ---- scrub ----

func TestScrubMemory_SingleUpsetNotCounted(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.ModeCell().SetReplica(0, ModeDegraded1)

	assert.True(t, k.ScrubMemory())
	assert.Zero(t, k.FaultCount(fault.MemoryCorruption))
	assert.Equal(t, ModeNormal, k.Mode())
}

func TestScrubMemory_LostMajorityForcesSafe(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.ModeCell().SetReplica(0, ModeDegraded1)
	k.ModeCell().SetReplica(1, ModeDegraded2)

	assert.False(t, k.ScrubMemory())
	assert.Equal(t, uint16(1), k.FaultCount(fault.MemoryCorruption))
	assert.Equal(t, ModeSafe, k.Mode())
	assert.True(t, k.ModeCell().Validate())
}

func TestScrubMemory_WatchedCells(t *testing.T) {
	k, _ := newBootedKernel(t)

	ts := tmr.NewCell(uint32(1000))
	k.Watch(Guard("sun_detect_time", ts))

	// single upset: repaired, not counted
	ts.SetReplica(1, 5)
	assert.True(t, k.ScrubMemory())
	assert.Equal(t, uint32(1000), ts.Replica(1))
	assert.Zero(t, k.FaultCount(fault.MemoryCorruption))

	// lost majority: counted, rewritten with the voted value
	ts.SetReplica(0, 1)
	ts.SetReplica(1, 2)
	ts.SetReplica(2, 3)
	assert.False(t, k.ScrubMemory())
	assert.Equal(t, uint16(1), k.FaultCount(fault.MemoryCorruption))
	assert.True(t, ts.Validate())
	assert.Equal(t, uint32(2), ts.Vote())
	assert.Equal(t, ModeNormal, k.Mode(), "watched cells do not force Safe")
}

// ---- ledger ----

func TestLogFault_OutOfRangeIgnored(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.LogFault(fault.Kind(fault.NumKinds))
	k.LogFault(fault.Kind(200))

	assert.Zero(t, k.TotalFaults())
	assert.Zero(t, k.FaultCount(fault.Kind(200)))
}

func TestLogFault_ReachesPersistedHistory(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.LogFault(fault.SensorFault)
	k.LogFault(fault.SensorFault)

	assert.Equal(t, uint16(2), k.FaultCount(fault.SensorFault))
	assert.Equal(t, uint16(2), k.Config().FaultCounts[fault.SensorFault])
	assert.Equal(t, uint32(2), k.TotalFaults())
	assert.Equal(t, fault.SensorFault, k.LastFault())
}

func TestLedger_Saturates(t *testing.T) {
	var l Ledger
	for i := 0; i < 0x10005; i++ {
		l.LogFault(fault.ServoFault)
	}
	assert.Equal(t, uint16(0xFFFF), l.Count(fault.ServoFault))
}

func TestClearFaults_GatedOnNormal(t *testing.T) {
	k, _ := newBootedKernel(t)
	k.LogFault(fault.SensorFault)

	k.SetMode(ModeDegraded1)
	assert.False(t, k.ClearFaults())
	assert.Equal(t, uint16(1), k.FaultCount(fault.SensorFault))

	k.SetMode(ModeNormal)
	assert.True(t, k.ClearFaults())
	assert.Zero(t, k.TotalFaults())
	// lifetime history is kept
	assert.Equal(t, uint16(1), k.Config().FaultCounts[fault.SensorFault])
}

// ---- scenarios ----

func TestScenario_EmptyStorageBootsIntoEmergency(t *testing.T) {
	store, err := nvstore.New(hal.NewMemStore(0))
	require.NoError(t, err)
	k, err := NewKernel(store)
	require.NoError(t, err)

	boot := k.Init()
	assert.Equal(t, nvstore.BootDefaults, boot.Source)
	assert.Equal(t, uint16(1), k.FaultCount(fault.ConfigLost))
	assert.Equal(t, ModeNormal, k.Mode(), "mode is Normal until evaluated")

	assert.Equal(t, ModeEmergency, k.EvaluateMode())
	assert.False(t, k.Mode().AllowsActuation())
	assert.False(t, k.ClearFaults())
}

func TestScenario_BootCount(t *testing.T) {
	mem := hal.NewMemStore(0)
	rec := nvstore.Defaults()
	rec.BootCount = 41
	rec.Seal()
	require.NoError(t, nvstore.Save(mem, nvstore.Location{Name: "primary"}, rec))

	store, err := nvstore.New(mem)
	require.NoError(t, err)
	k, err := NewKernel(store)
	require.NoError(t, err)
	k.Init()

	assert.Equal(t, uint32(42), k.Config().BootCount)
}

func TestScenario_PersistThenReboot(t *testing.T) {
	k, mem := newBootedKernel(t)
	k.MutableConfig().AzimuthOffset = 6
	k.LogFault(fault.ServoFault)
	require.NoError(t, k.PersistConfig())

	store, err := nvstore.New(mem)
	require.NoError(t, err)
	k2, err := NewKernel(store)
	require.NoError(t, err)
	k2.Init()

	cfg := k2.Config()
	assert.Equal(t, int16(6), cfg.AzimuthOffset)
	assert.Equal(t, uint16(1), cfg.FaultCounts[fault.ServoFault])
	assert.Equal(t, uint32(2), cfg.BootCount)
	// the session ledger starts empty on every boot
	assert.Zero(t, k2.TotalFaults())
}

func TestMode_ParseRoundTrip(t *testing.T) {
	for m := ModeNormal; m <= ModeEmergency; m++ {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("BROKEN")
	assert.Error(t, err)
}
