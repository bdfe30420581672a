// Package metrics exposes Prometheus collectors for the transform pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicemorph"

var (
	TransformsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transforms_total",
		Help:      "Transform requests by effect and outcome.",
	}, []string{"effect", "status"})

	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transform_duration_seconds",
		Help:      "Wall time of successful ffmpeg transforms.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"effect"})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_bytes",
		Help:      "Size of accepted uploads.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
	})

	SweptFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_files_total",
		Help:      "Files removed by the cleanup sweep.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limit rule.",
	}, []string{"rule"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
