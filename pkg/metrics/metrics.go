package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace = "hive"

	IngestSubsystem = "ingest"
	PolicySubsystem = "policy"
	LiveSubsystem   = "live"

	OutcomeAccepted = "accepted"
)

var (
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: IngestSubsystem,
			Name:      "submissions_total",
			Help:      "Reading submissions by outcome; outcome is accepted or the error kind",
		},
		[]string{"outcome"},
	)

	PolicyUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: PolicySubsystem,
			Name:      "updates_total",
			Help:      "Threshold policy update attempts by outcome",
		},
		[]string{"outcome"},
	)

	PolicyVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: PolicySubsystem,
			Name:      "version",
			Help:      "Version of the most recently committed threshold policy",
		},
	)

	LiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: LiveSubsystem,
			Name:      "connected_clients",
			Help:      "Number of dashboards subscribed to the live reading feed",
		},
	)
)

// Registry holds only this service's collectors so tests and /metrics see the same set.
var Registry = prometheus.NewRegistry()

var registerOnce sync.Once

func registerMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			IngestTotal,
			PolicyUpdatesTotal,
			PolicyVersion,
			LiveClients,
		)
	})
}

func outcome(kind string) string {
	if kind == "" {
		return OutcomeAccepted
	}
	return kind
}

// ObserveIngest records a submission; an empty kind means it was accepted.
func ObserveIngest(kind string) {
	registerMetrics()
	IngestTotal.WithLabelValues(outcome(kind)).Inc()
}

func ObservePolicyUpdate(kind string, version uint64) {
	registerMetrics()
	PolicyUpdatesTotal.WithLabelValues(outcome(kind)).Inc()
	if kind == "" {
		PolicyVersion.Set(float64(version))
	}
}

func LiveClientConnected() {
	registerMetrics()
	LiveClients.Inc()
}

func LiveClientDisconnected() {
	registerMetrics()
	LiveClients.Dec()
}

func Handler() http.Handler {
	registerMetrics()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
