package agent

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Runner reports to, grounded on
// the teacher's metrics-recorder pattern in pkg/agent/llmagent/flow.go. A
// nil *Metrics (e.g. in tests that construct Runner by hand) is valid and
// simply does nothing, so metrics are never mandatory wiring.
type Metrics struct {
	agentID      string
	stepDuration *prometheus.HistogramVec
	stepsTotal   *prometheus.CounterVec
	terminal     *prometheus.CounterVec
}

var (
	registerOnce sync.Once

	stepDurationHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentflow",
		Subsystem: "agent",
		Name:      "step_duration_seconds",
		Help:      "Duration of one Agent Loop logical step (LLM call plus tool execution).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"agent_id", "outcome"})

	terminalStatusCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Subsystem: "agent",
		Name:      "runs_total",
		Help:      "Completed agent runs by terminal status.",
	}, []string{"agent_id", "status"})
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(stepDurationHist, terminalStatusCounter)
	})
}

func newMetrics(agentID string) *Metrics {
	registerMetrics()
	return &Metrics{agentID: agentID}
}

func (m *Metrics) observeStep(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	stepDurationHist.WithLabelValues(m.agentID, outcome).Observe(d.Seconds())
}

func (m *Metrics) observeTerminal(kind StatusKind) {
	if m == nil {
		return
	}
	terminalStatusCounter.WithLabelValues(m.agentID, string(kind)).Inc()
}
