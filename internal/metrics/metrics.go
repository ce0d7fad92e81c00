// Package metrics owns the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskboard"

// Move outcomes recorded by ObserveMove.
const (
	ResultMoved    = "moved"
	ResultNoop     = "noop"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

type collectors struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	moves           *prometheus.CounterVec
	positionWrites  *prometheus.CounterVec
}

var singleton = sync.OnceValue(func() *collectors {
	return &collectors{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		moves: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Move operations by entity and outcome.",
		}, []string{"entity", "result"}),
		positionWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_writes_total",
			Help:      "Insert, move and remove operations that renumbered siblings.",
		}, []string{"entity", "operation"}),
	}
})

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c := singleton()
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMove counts one move of entity ("card" or "list") with its outcome.
func ObserveMove(entity, result string) {
	singleton().moves.WithLabelValues(entity, result).Inc()
}

func ObservePositionWrite(entity, operation string) {
	singleton().positionWrites.WithLabelValues(entity, operation).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
