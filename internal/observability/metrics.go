package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylusctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stylusctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylusctl",
			Subsystem: "lifecycle",
			Name:      "deployments_total",
			Help:      "Program deployment attempts by outcome.",
		},
		[]string{"outcome"},
	)
	activations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylusctl",
			Subsystem: "lifecycle",
			Name:      "activations_total",
			Help:      "Program activation attempts by outcome.",
		},
		[]string{"outcome"},
	)
	initializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylusctl",
			Subsystem: "lifecycle",
			Name:      "initializations_total",
			Help:      "Contract initialization attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, deployments, activations, initializations)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, code).Inc()
	httpDuration.WithLabelValues(node, method, path, code).Observe(duration.Seconds())
}

func RecordDeployment(outcome string) {
	deployments.WithLabelValues(outcome).Inc()
}

func RecordActivation(outcome string) {
	activations.WithLabelValues(outcome).Inc()
}

func RecordInitialization(outcome string) {
	initializations.WithLabelValues(outcome).Inc()
}
