package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	registry     = prometheus.NewRegistry()

	chunksVisited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkwalk",
			Subsystem: "walk",
			Name:      "chunks_total",
			Help:      "Chunks handed to a handler.",
		},
		[]string{"format", "tag"},
	)
	payloadBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkwalk",
			Subsystem: "walk",
			Name:      "payload_bytes_total",
			Help:      "Declared payload bytes advanced past.",
		},
		[]string{"format"},
	)
	walks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chunkwalk",
			Subsystem: "walk",
			Name:      "runs_total",
			Help:      "Completed walks by outcome.",
		},
		[]string{"format", "outcome"},
	)
	walkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chunkwalk",
			Subsystem: "walk",
			Name:      "duration_seconds",
			Help:      "Walk duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		registry.MustRegister(chunksVisited, payloadBytes, walks, walkDuration)
	})
}

// Registry is the gatherer holding walk metrics.
func Registry() *prometheus.Registry {
	RegisterMetrics()
	return registry
}

func RecordChunk(format, tag string, length int64) {
	RegisterMetrics()
	chunksVisited.WithLabelValues(format, tag).Inc()
	if length > 0 {
		payloadBytes.WithLabelValues(format).Add(float64(length))
	}
}

// RecordWalk counts one finished walk. outcome is "ok" or a failure kind.
func RecordWalk(format, outcome string, duration time.Duration) {
	RegisterMetrics()
	walks.WithLabelValues(format, outcome).Inc()
	walkDuration.WithLabelValues(format, outcome).Observe(duration.Seconds())
}

// WriteMetrics writes the walk metrics in text exposition format, atomically,
// for a node-exporter textfile collector.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, Registry())
}
