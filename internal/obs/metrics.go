// Package obs holds the prometheus instrumentation shared by the SDK.
//
// The compensation counters exist because the composite checkin create can
// leave orphaned address records behind when the compensating delete itself
// fails; counting those occurrences is the only signal an operator gets.
package obs

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	xrpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anchor_xrpc_requests_total",
			Help: "Total number of XRPC requests issued, by method NSID and status.",
		},
		[]string{"nsid", "status"},
	)

	compensationAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anchor_compensation_attempts_total",
		Help: "Compensating address deletes attempted after a failed checkin create.",
	})

	compensationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anchor_compensation_failures_total",
		Help: "Compensating address deletes that failed, leaving an orphaned record.",
	})
)

var registerOnce sync.Once

// Init registers the SDK metrics with the default prometheus registry.
// Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(xrpcRequestsTotal, compensationAttempts, compensationFailures)
	})
}

// Handler exposes the default prometheus registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one XRPC round trip.
func ObserveRequest(nsid, status string) {
	xrpcRequestsTotal.WithLabelValues(nsid, status).Inc()
}

// ObserveCompensation records a compensating delete attempt and whether it
// failed.
func ObserveCompensation(failed bool) {
	compensationAttempts.Inc()
	if failed {
		compensationFailures.Inc()
	}
}
