// Package metrics exposes Prometheus counters for file checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashcheck_verdicts_total",
		Help: "Completed checks by verdict",
	}, []string{"verdict"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashcheck_errors_total",
		Help: "Checks that ended without a verdict, by error kind",
	}, []string{"kind"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crashcheck_scan_duration_seconds",
		Help:    "Wall time of a single check including open and close",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
	})

	packetsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashcheck_packets_scanned_total",
		Help: "Video packets examined by the detector",
	})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashcheck_probes_total",
		Help: "Decode probes by outcome",
	}, []string{"outcome"})

	checksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crashcheck_checks_in_flight",
		Help: "Checks currently holding a worker permit",
	})
)

// Probe outcomes.
const (
	ProbeTrusted = "trusted"
	ProbeAnomaly = "anomaly"
)

// RecordVerdict records a check that produced a verdict. probes is the
// number of decode probes; the last one confirmed the anomaly when unsafe.
func RecordVerdict(verdict string, frames, probes int, duration time.Duration) {
	verdictsTotal.WithLabelValues(verdict).Inc()
	packetsScannedTotal.Add(float64(frames))
	scanDuration.Observe(duration.Seconds())

	trusted := probes
	if verdict == "unsafe" && probes > 0 {
		probesTotal.WithLabelValues(ProbeAnomaly).Inc()
		trusted--
	}
	if trusted > 0 {
		probesTotal.WithLabelValues(ProbeTrusted).Add(float64(trusted))
	}
}

// RecordError records a check that failed with the given error kind.
func RecordError(kind string, duration time.Duration) {
	errorsTotal.WithLabelValues(kind).Inc()
	scanDuration.Observe(duration.Seconds())
}

// CheckStarted marks a check as in flight.
func CheckStarted() {
	checksInFlight.Inc()
}

// CheckFinished marks a check as no longer in flight.
func CheckFinished() {
	checksInFlight.Dec()
}
