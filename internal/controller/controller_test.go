// internal/controller/controller_test.go
package controller

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/heliotrack/internal/command"
	"github.com/tamzrod/heliotrack/internal/fault"
	"github.com/tamzrod/heliotrack/internal/hal"
	"github.com/tamzrod/heliotrack/internal/nvstore"
	"github.com/tamzrod/heliotrack/internal/safety"
	"github.com/tamzrod/heliotrack/internal/sensor"
	"github.com/tamzrod/heliotrack/internal/servo"
	"github.com/tamzrod/heliotrack/internal/status"
	"github.com/tamzrod/heliotrack/internal/telemetry"
	"github.com/tamzrod/heliotrack/internal/tracking"
)

// ---- fakes ----

type fakeAnalog struct {
	values [sensor.NumChannels]uint16
	clock  *hal.ManualClock
	delay  uint32 // ms per sample
}

func (f *fakeAnalog) ReadChannel(ch sensor.Channel) (uint16, error) {
	if f.clock != nil {
		f.clock.Advance(f.delay)
	}
	return f.values[ch], nil
}

func (f *fakeAnalog) set(v uint16) {
	for i := range f.values {
		f.values[i] = v
	}
}

type fakeActuator struct {
	az, el uint16
	calls  int
	fail   bool
}

func (f *fakeActuator) SetAngles(az, el uint16) error {
	if f.fail {
		return errors.New("bus fault")
	}
	f.az, f.el = az, el
	f.calls++
	return nil
}

type fakeStatus struct {
	snaps []status.Snapshot
}

func (f *fakeStatus) WriteStatus(s status.Snapshot) error {
	f.snaps = append(f.snaps, s)
	return nil
}

type countingWatchdog struct{ n int }

func (w *countingWatchdog) Feed() { w.n++ }

// ---- rig ----

var testConfig = Config{
	Period:        100,
	Scrub:         500,
	Telemetry:     1000,
	Persist:       60000,
	Recovery:      30000,
	HomeAzimuth:   90,
	HomeElevation: 90,
}

type rig struct {
	clock    *hal.ManualClock
	mem      *hal.MemStore
	kernel   *safety.Kernel
	analog   *fakeAnalog
	act      *fakeActuator
	tracker  *tracking.Controller
	wd       *countingWatchdog
	input    chan []byte
	out      *bytes.Buffer
	frames   *bytes.Buffer
	status   *fakeStatus
	ctl      *Controller
	bootFrom nvstore.BootSource
}

// newRig boots the kernel. With seeded storage the boot is clean;
// with blank storage the config is lost.
func newRig(t *testing.T, seeded bool) *rig {
	t.Helper()

	r := &rig{
		clock:  &hal.ManualClock{Now: 1000},
		mem:    hal.NewMemStore(0),
		act:    &fakeActuator{},
		wd:     &countingWatchdog{},
		input:  make(chan []byte, 8),
		out:    &bytes.Buffer{},
		frames: &bytes.Buffer{},
		status: &fakeStatus{},
	}
	r.analog = &fakeAnalog{}
	r.analog.set(600)

	if seeded {
		primary := nvstore.Location{Name: "primary", Base: nvstore.DefaultPrimaryBase}
		require.NoError(t, nvstore.Save(r.mem, primary, nvstore.Defaults()))
	}

	store, err := nvstore.New(r.mem)
	require.NoError(t, err)
	r.kernel, err = safety.NewKernel(store)
	require.NoError(t, err)
	r.bootFrom = r.kernel.Init().Source

	sensors, err := sensor.New(sensor.Config{Min: 50, Max: 950, SunThreshold: 200}, r.analog, r.clock)
	require.NoError(t, err)

	r.tracker, err = tracking.New(tracking.Config{
		Deadband:       2,
		Gain:           0.8,
		SunLossTimeout: 5000,
		HomeAzimuth:    90,
		HomeElevation:  90,
		Limits:         servo.DefaultLimits,
	}, r.clock)
	require.NoError(t, err)

	servos, err := servo.New(servo.DefaultLimits, r.act, zerolog.Nop())
	require.NoError(t, err)

	cmds, err := command.New(command.Config{
		Limits:        servo.DefaultLimits,
		HomeAzimuth:   90,
		HomeElevation: 90,
	}, r.clock, r.out)
	require.NoError(t, err)

	rep, err := telemetry.NewReporter(r.frames)
	require.NoError(t, err)

	r.ctl, err = New(Deps{
		Clock:    r.clock,
		Watchdog: r.wd,
		Kernel:   r.kernel,
		Sensors:  sensors,
		Tracker:  r.tracker,
		Servos:   servos,
		Commands: cmds,
		Input:    r.input,
		Reporter: rep,
		Status:   r.status,
		Log:      zerolog.Nop(),
	}, testConfig)
	require.NoError(t, err)

	return r
}

func (r *rig) step(advance uint32) Result {
	r.clock.Advance(advance)
	return r.ctl.Step()
}

// ---- tests ----

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, testConfig)
	assert.Error(t, err)
}

func TestStep_CleanIteration(t *testing.T) {
	r := newRig(t, true)
	require.Equal(t, nvstore.BootPrimary, r.bootFrom)

	res := r.step(100)

	assert.True(t, res.FlowOK)
	assert.True(t, res.Actuated)
	assert.Equal(t, safety.ModeNormal, res.Mode)
	assert.False(t, res.Overrun)
	assert.Equal(t, 1, r.wd.n)
	assert.Equal(t, uint16(90), r.act.az)
	assert.Equal(t, uint16(90), r.act.el)
	assert.True(t, res.Command.Verify())
}

func TestStep_TracksTowardLight(t *testing.T) {
	r := newRig(t, true)
	r.analog.values[sensor.TopRight] = 800
	r.analog.values[sensor.BottomRight] = 800

	res := r.step(100)

	// azimuth error (1600-1200)/10 = 40, times gain 0.8
	assert.Equal(t, uint16(122), res.Command.Azimuth)
	assert.Equal(t, uint16(122), r.act.az)
}

func TestStep_ConfigLostSuppressesActuation(t *testing.T) {
	r := newRig(t, false)
	require.Equal(t, nvstore.BootDefaults, r.bootFrom)

	// mode is still Normal when the first iteration actuates
	first := r.step(100)
	assert.True(t, first.Actuated)
	assert.Equal(t, safety.ModeEmergency, first.Mode)

	calls := r.act.calls
	second := r.step(100)
	assert.False(t, second.Actuated)
	assert.Equal(t, calls, r.act.calls)
	assert.True(t, second.FlowOK, "suppressed actuation still completes the flow")
}

func TestStep_SensorFaultDegrades(t *testing.T) {
	r := newRig(t, true)
	r.analog.values[sensor.TopLeft] = 1000
	r.analog.values[sensor.TopRight] = 10

	res := r.step(100)

	assert.Equal(t, safety.ModeDegraded1, res.Mode)
	assert.False(t, r.ctl.LastReading().Valid)
	assert.Equal(t, uint16(90), res.Command.Azimuth, "no fix returns home")
}

func TestStep_ActuatorFaultDegrades(t *testing.T) {
	r := newRig(t, true)
	r.act.fail = true

	res := r.step(100)

	assert.False(t, res.Actuated)
	assert.Equal(t, safety.ModeDegraded2, res.Mode)
}

func TestStep_ScrubRepairsSunTimestamp(t *testing.T) {
	r := newRig(t, true)
	cell := r.tracker.SunCell()

	assert.False(t, r.step(100).Scrubbed)

	// dark sky: nothing rewrites the timestamp this iteration
	r.analog.set(100)

	// three-way disagreement: majority lost
	cell.SetReplica(0, 1)
	cell.SetReplica(1, 2)
	cell.SetReplica(2, 3)

	res := r.step(400)
	assert.True(t, res.Scrubbed)
	assert.True(t, cell.Validate())
	assert.Equal(t, uint16(1), r.kernel.FaultCount(fault.MemoryCorruption))
}

func TestStep_OverrunReported(t *testing.T) {
	r := newRig(t, true)
	r.analog.clock = r.clock
	r.analog.delay = 10 // 12 samples per iteration

	res := r.step(100)

	assert.True(t, res.Overrun)
	assert.Equal(t, uint32(120), res.Elapsed)
}

func TestStep_ManualCommandHeldUntilAuto(t *testing.T) {
	r := newRig(t, true)

	r.input <- []byte("MANUAL 120 ")
	r.input <- []byte("60\n")
	res := r.step(100)
	assert.Equal(t, uint16(120), res.Command.Azimuth)
	assert.Equal(t, uint16(60), res.Command.Elevation)
	assert.Equal(t, uint16(120), r.act.az)

	res = r.step(100)
	assert.Equal(t, uint16(120), res.Command.Azimuth, "manual position is held")

	r.input <- []byte("AUTO\n")
	res = r.step(100)
	assert.Equal(t, uint16(90), res.Command.Azimuth)
	assert.Contains(t, r.out.String(), "Automatic tracking mode")
}

func TestStep_DemoOverridesTracking(t *testing.T) {
	r := newRig(t, true)

	r.input <- []byte("DEMO\n")
	r.step(100)

	res := r.step(22500) // half way: zenith
	assert.Equal(t, servo.DefaultLimits.ElevationMax, res.Command.Elevation)

	res = r.step(30000) // past the end: back to tracking
	assert.Equal(t, uint16(90), res.Command.Azimuth)
}

func TestStep_TelemetryAndStatus(t *testing.T) {
	r := newRig(t, true)

	r.step(100)
	assert.Zero(t, r.frames.Len())
	assert.Empty(t, r.status.snaps)

	r.step(900)
	assert.Contains(t, r.frames.String(), `"mode":"NORMAL"`)
	require.Len(t, r.status.snaps, 1)
	assert.Equal(t, uint16(safety.ModeNormal), r.status.snaps[0].Mode)
	assert.Equal(t, uint32(1), r.status.snaps[0].BootCount)
}

func TestStep_SecondsDegraded(t *testing.T) {
	r := newRig(t, true)
	r.act.fail = true

	r.step(0)
	for i := 0; i < 3; i++ {
		r.step(1000)
	}
	assert.Equal(t, uint32(3), r.ctl.SecondsDegraded())

	last := r.status.snaps[len(r.status.snaps)-1]
	assert.Equal(t, uint16(safety.ModeDegraded2), last.Mode)
	assert.Equal(t, uint16(3), last.SecondsDegraded)
}

func TestStep_PersistWritesBothImages(t *testing.T) {
	r := newRig(t, true)
	r.kernel.MutableConfig().ElevationOffset = -3

	r.step(60000)

	for _, base := range []uint16{nvstore.DefaultPrimaryBase, nvstore.DefaultBackupBase} {
		lr := nvstore.Load(r.mem, nvstore.Location{Name: "img", Base: base})
		require.True(t, lr.Valid)
		assert.Equal(t, int16(-3), lr.Record.ElevationOffset)
		assert.Equal(t, uint32(1), lr.Record.BootCount)
	}
}

func TestStep_OffsetEditsApplyAfterPersist(t *testing.T) {
	r := newRig(t, true)

	r.input <- []byte("MANUAL 100 100\n")
	r.step(100)
	require.Equal(t, uint16(100), r.act.az)

	r.kernel.MutableConfig().AzimuthOffset = 5
	r.step(100)
	assert.Equal(t, uint16(100), r.act.az, "not applied before persist")

	r.step(60000)
	r.step(100)
	assert.Equal(t, uint16(105), r.act.az)
	assert.Equal(t, uint16(100), r.act.el)
}

func TestStep_RecoveryClearsLedgerWhenNormal(t *testing.T) {
	r := newRig(t, true)
	r.kernel.LogFault(fault.MemoryCorruption)

	r.step(100)
	require.Equal(t, uint32(1), r.kernel.TotalFaults())

	r.step(30000)
	assert.Zero(t, r.kernel.TotalFaults())
	assert.Equal(t, uint16(1), r.kernel.Config().FaultCounts[fault.MemoryCorruption],
		"lifetime history survives recovery")
}

func TestStep_RecoveryGatedOutsideNormal(t *testing.T) {
	r := newRig(t, true)
	r.act.fail = true

	r.step(100)
	r.step(30000)

	assert.Equal(t, safety.ModeDegraded2, r.kernel.Mode())
	assert.Equal(t, uint16(2), r.ctl.d.Servos.FaultCount())
}

func TestRun_HomesAndStopsOnCancel(t *testing.T) {
	defer leaktest.Check(t)()

	r := newRig(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	r.ctl.Run(ctx)

	assert.GreaterOrEqual(t, r.act.calls, 1, "home command")
	assert.GreaterOrEqual(t, r.wd.n, 1)
}
