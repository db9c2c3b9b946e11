// Package metrics provides Prometheus metrics for the recording pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recordnode",
		Subsystem: "encode",
		Name:      "frames_submitted_total",
		Help:      "Frames accepted by the encode worker",
	}, []string{"session_id"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recordnode",
		Subsystem: "encode",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped under encoder backpressure",
	}, []string{"session_id"})

	bufferedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recordnode",
		Subsystem: "encode",
		Name:      "buffered_bytes",
		Help:      "Bytes emitted into the reassembly buffer so far",
	}, []string{"session_id"})

	managerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recordnode",
		Subsystem: "recorder",
		Name:      "state",
		Help:      "Current stream manager state (1 for the active state)",
	}, []string{"state"})
)

// IncFramesSubmitted counts a frame accepted by the encode worker.
func IncFramesSubmitted(sessionID string) {
	framesSubmitted.WithLabelValues(sessionID).Inc()
}

// IncFramesDropped counts a frame dropped under backpressure.
func IncFramesDropped(sessionID string) {
	framesDropped.WithLabelValues(sessionID).Inc()
}

// SetBufferedBytes records the output size accumulated for a session.
func SetBufferedBytes(sessionID string, n float64) {
	bufferedBytes.WithLabelValues(sessionID).Set(n)
}

// DeleteSessionMetrics removes all metrics for a finished session.
func DeleteSessionMetrics(sessionID string) {
	framesSubmitted.DeleteLabelValues(sessionID)
	framesDropped.DeleteLabelValues(sessionID)
	bufferedBytes.DeleteLabelValues(sessionID)
}

// SetManagerState marks the given state active and clears the others.
func SetManagerState(state string) {
	managerState.Reset()
	managerState.WithLabelValues(state).Set(1)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
