// Package metrics exposes Prometheus collectors for remote calls and
// workflow outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aromance",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total number of calls to the service of record.",
		},
		[]string{"op", "policy", "outcome"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aromance",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of calls to the service of record, including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"op"},
	)

	agentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aromance",
			Subsystem: "agent",
			Name:      "calls_total",
			Help:      "Total number of AI agent calls.",
		},
		[]string{"agent", "outcome"},
	)

	workflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aromance",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of workflow runs by outcome.",
		},
		[]string{"workflow", "outcome"},
	)

	ledgerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aromance",
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Total number of requests served by the development ledger.",
		},
		[]string{"method", "status"},
	)
)

func init() {
	Registry.MustRegister(
		gatewayCalls,
		gatewayDuration,
		agentCalls,
		workflowRuns,
		ledgerRequests,
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordGatewayCall records one logical gateway operation.
func RecordGatewayCall(op, policy, outcome string, duration time.Duration) {
	gatewayCalls.WithLabelValues(op, policy, outcome).Inc()
	gatewayDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordAgentCall records one AI agent call.
func RecordAgentCall(agent, outcome string) {
	agentCalls.WithLabelValues(agent, outcome).Inc()
}

// RecordWorkflow records a workflow run.
func RecordWorkflow(workflow, outcome string) {
	workflowRuns.WithLabelValues(workflow, outcome).Inc()
}

// InstrumentLedger wraps a ledger handler with request counting. The
// method label is the last path segment.
func InstrumentLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ledgerRequests.WithLabelValues(lastSegment(r.URL.Path), strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
