// internal/telemetry/metrics.go
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tamzrod/heliotrack/internal/fault"
)

const namespace = "heliotrack"

// Metrics are the Prometheus series exported by the controller.
type Metrics struct {
	mode           prometheus.Gauge
	sessionFaults  *prometheus.GaugeVec
	lifetimeFaults *prometheus.GaugeVec
	bootCount      prometheus.Gauge
	heartbeat      prometheus.Gauge
	overruns       prometheus.Counter
	persistErrors  prometheus.Counter
	flowViolations prometheus.Counter
}

// NewMetrics registers every series on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		mode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Voted operating mode (0 normal .. 4 emergency)",
		}),
		sessionFaults: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "faults",
			Name:      "session",
			Help:      "Faults counted since boot or the last recovery clear",
		}, []string{"kind"}),
		lifetimeFaults: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "faults",
			Name:      "lifetime",
			Help:      "Persisted fault history",
		}, []string{"kind"}),
		bootCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_count",
			Help:      "Persisted boot counter",
		}),
		heartbeat: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heartbeat",
			Help:      "Heartbeat state, toggles every loop iteration",
		}),
		overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Control loop iterations that exceeded the period",
		}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persist_errors_total",
			Help:      "Failed configuration persists",
		}),
		flowViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "flow_violations_total",
			Help:      "Iterations whose control flow signature did not match",
		}),
	}
}

func (m *Metrics) SetMode(mode uint8) { m.mode.Set(float64(mode)) }

func (m *Metrics) SetBootCount(n uint32) { m.bootCount.Set(float64(n)) }

func (m *Metrics) SetHeartbeat(on bool) {
	if on {
		m.heartbeat.Set(1)
		return
	}
	m.heartbeat.Set(0)
}

// SetFaults publishes both counter arrays, labelled by kind name.
func (m *Metrics) SetFaults(session, lifetime [fault.NumKinds]uint16) {
	for _, k := range fault.Kinds() {
		m.sessionFaults.WithLabelValues(k.String()).Set(float64(session[k]))
		m.lifetimeFaults.WithLabelValues(k.String()).Set(float64(lifetime[k]))
	}
}

func (m *Metrics) Overrun() { m.overruns.Inc() }

func (m *Metrics) PersistFailed() { m.persistErrors.Inc() }

func (m *Metrics) FlowViolation() { m.flowViolations.Inc() }
