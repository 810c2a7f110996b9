// metrics.go - Prometheus collectors for the identification pipeline

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "product_identify"

var (
	// CacheLookups counts cache reads by result: hit, miss, error.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Content cache lookups by result.",
	}, []string{"result"})

	// CacheWrites counts cache writes by result: ok, error.
	CacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_writes_total",
		Help:      "Content cache writes by result.",
	}, []string{"result"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Inference provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_call_duration_seconds",
		Help:      "Inference provider call latency.",
		Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 45, 60},
	}, []string{"provider"})

	// Identifications counts pipeline runs by mode (single, multi) and result
	// (cached, identified, invalid, failed, error).
	Identifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identifications_total",
		Help:      "Identification requests by mode and result.",
	}, []string{"mode", "result"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end identification latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"mode"})

	// CoalescedRequests counts requests that shared another request's in-flight run.
	CoalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coalesced_requests_total",
		Help:      "Requests served by an identical in-flight pipeline run.",
	})

	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_uploads_total",
		Help:      "Compressed image persistence attempts by result.",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
