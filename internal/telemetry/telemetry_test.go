// internal/telemetry/telemetry_test.go
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/heliotrack/internal/fault"
)

func TestReporter_EmitsNDJSONWithSequence(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewReporter(&buf)
	require.NoError(t, err)

	f := Frame{
		Uptime:  12,
		Mode:    "DEGRADED_1",
		Sensors: Sensors{TopLeft: 400, TopRight: 500, BottomLeft: 300, BottomRight: 600, Valid: true},
		Sun:     Sun{Detected: true, AzimuthError: 40, ElevationError: 0},
		Servos:  Servos{Azimuth: 92, Elevation: 88},
		Errors:  Errors{Total: 3, Sensor: 1},
	}
	require.NoError(t, r.Emit(f))
	require.NoError(t, r.Emit(f))

	sc := bufio.NewScanner(&buf)
	var seqs []uint32
	for sc.Scan() {
		var got map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, "DEGRADED_1", got["mode"])
		assert.Contains(t, got, "sensors")
		assert.Equal(t, float64(400), got["sensors"].(map[string]any)["tl"])
		assert.Equal(t, float64(92), got["servos"].(map[string]any)["az"])
		seqs = append(seqs, uint32(got["seq"].(float64)))
	}
	assert.Equal(t, []uint32{0, 1}, seqs)
	assert.Equal(t, uint32(2), r.Seq())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("port closed") }

func TestReporter_WriteErrorStillAdvances(t *testing.T) {
	r, err := NewReporter(failingWriter{})
	require.NoError(t, err)

	assert.Error(t, r.Emit(Frame{}))
	assert.Equal(t, uint32(1), r.Seq())
}

func TestReporter_Heartbeat(t *testing.T) {
	r, err := NewReporter(&bytes.Buffer{})
	require.NoError(t, err)

	assert.True(t, r.Heartbeat())
	assert.False(t, r.Heartbeat())

	_, err = NewReporter(nil)
	assert.Error(t, err)
}

func TestMetrics_Series(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetMode(3)
	m.SetBootCount(17)
	m.SetHeartbeat(true)
	m.Overrun()
	m.Overrun()
	m.PersistFailed()
	m.FlowViolation()

	var session, lifetime [fault.NumKinds]uint16
	session[fault.MemoryCorruption] = 4
	lifetime[fault.MemoryCorruption] = 40
	m.SetFaults(session, lifetime)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.mode))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.bootCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeat))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.overruns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flowViolations))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessionFaults.WithLabelValues("memory_corruption")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.lifetimeFaults.WithLabelValues("memory_corruption")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionFaults.WithLabelValues("config_lost")))

	// one series per kind and array
	n, err := testutil.GatherAndCount(reg, "heliotrack_faults_session", "heliotrack_faults_lifetime")
	require.NoError(t, err)
	assert.Equal(t, 2*fault.NumKinds, n)
}

func TestMetrics_HeartbeatHelp(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetHeartbeat(true)

	want := `
# HELP heliotrack_heartbeat Heartbeat state, toggles every loop iteration
# TYPE heliotrack_heartbeat gauge
heliotrack_heartbeat 1
`
	require.NoError(t, testutil.CollectAndCompare(m.heartbeat, strings.NewReader(want)))
}
