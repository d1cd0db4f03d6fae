// Package metrics exposes Prometheus instrumentation for NuOrbit flows and remote calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gonuorbit/types"
)

var (
	flowEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuorbit_flow_events_total",
			Help: "Flow lifecycle events emitted, by event type",
		},
		[]string{"type"},
	)

	flowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuorbit_flows_total",
			Help: "Finished flow runs",
		},
		[]string{"mode", "status"}, // status: completed, error
	)

	remoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuorbit_remote_calls_total",
			Help: "Remote session API calls",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	remoteCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nuorbit_remote_call_duration_seconds",
			Help:    "Remote session API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	sessionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nuorbit_journal_sessions",
			Help: "Sessions held in the journal, by last known status",
		},
		[]string{"status"},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuorbit_api_requests_total",
			Help: "HTTP requests sent to the NuOrbit API, by response code",
		},
		[]string{"code", "method"},
	)

	checkoutResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nuorbit_checkout_results_total",
			Help: "Settled checkout handshakes, by outcome",
		},
		[]string{"status"},
	)
)

func RecordRemoteCall(operation string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	remoteCallsTotal.WithLabelValues(operation, status).Inc()
	remoteCallDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

func RecordCheckoutResult(status types.CheckoutStatus) {
	checkoutResultsTotal.WithLabelValues(string(status)).Inc()
}

func SetJournalSessions(status string, n int) {
	sessionsByStatus.WithLabelValues(status).Set(float64(n))
}

// InstrumentTransport counts every request sent through next.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(apiRequestsTotal, next)
}

// FlowSink counts flow events; one sink follows one run at a time.
type FlowSink struct {
	mode types.FlowMode
}

func (s *FlowSink) Emit(evt types.FlowEvent) {
	flowEventsTotal.WithLabelValues(string(evt.Type)).Inc()

	switch evt.Type {
	case types.EventFlowStarted:
		s.mode = evt.Mode
	case types.EventFlowCompleted:
		flowsTotal.WithLabelValues(string(s.modeOf(evt)), "completed").Inc()
	case types.EventFlowError:
		flowsTotal.WithLabelValues(string(s.modeOf(evt)), "error").Inc()
	}
}

func (s *FlowSink) modeOf(evt types.FlowEvent) types.FlowMode {
	if evt.Session != nil && evt.Session.FlowMode != "" {
		return evt.Session.FlowMode
	}
	return s.mode.OrDefault()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
