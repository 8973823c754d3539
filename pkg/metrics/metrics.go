// Package metrics defines the Prometheus instruments shared by training,
// classification and the HTTP server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all instruments. A nil *Metrics is valid and records
// nothing, so library code can call it unconditionally.
type Metrics struct {
	Classifications   *prometheus.CounterVec
	ClassifyDuration  prometheus.Histogram
	ExtractDuration   prometheus.Histogram
	DecodeFailures    prometheus.Counter
	TrainingSamples   prometheus.Gauge
	TrainingSkipped   prometheus.Gauge
	TrainingInertia   prometheus.Gauge
	RequestsTotal     *prometheus.CounterVec
	RequestsThrottled prometheus.Counter
}

// New creates the instruments and registers them with reg. A nil reg uses
// a private registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Classifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accent_classifications_total",
				Help: "Classified waveforms by assigned cluster",
			},
			[]string{"cluster"},
		),
		ClassifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "accent_classify_duration_seconds",
			Help:    "Feature extraction and cluster assignment time per classification",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		ExtractDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "accent_extract_duration_seconds",
			Help:    "MFCC feature extraction time per waveform",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		DecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "accent_decode_failures_total",
			Help: "Inputs that no decode strategy could read",
		}),
		TrainingSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "accent_training_samples",
			Help: "Feature vectors used by the last training run",
		}),
		TrainingSkipped: f.NewGauge(prometheus.GaugeOpts{
			Name: "accent_training_skipped_files",
			Help: "Corpus files skipped by the last training run",
		}),
		TrainingInertia: f.NewGauge(prometheus.GaugeOpts{
			Name: "accent_training_inertia",
			Help: "Within-cluster sum of squares of the last training run",
		}),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accent_http_requests_total",
				Help: "HTTP requests by path and status code",
			},
			[]string{"path", "code"},
		),
		RequestsThrottled: f.NewCounter(prometheus.CounterOpts{
			Name: "accent_http_requests_throttled_total",
			Help: "HTTP requests rejected by the rate limiter",
		}),
	}
}

// ObserveClassification records one classification.
func (m *Metrics) ObserveClassification(cluster int, d time.Duration) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(strconv.Itoa(cluster)).Inc()
	m.ClassifyDuration.Observe(d.Seconds())
}

// ObserveExtract records one feature extraction.
func (m *Metrics) ObserveExtract(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractDuration.Observe(d.Seconds())
}

// DecodeFailed counts one undecodable input.
func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

// ObserveTraining records the outcome of a training run.
func (m *Metrics) ObserveTraining(samples, skipped int, inertia float64) {
	if m == nil {
		return
	}
	m.TrainingSamples.Set(float64(samples))
	m.TrainingSkipped.Set(float64(skipped))
	m.TrainingInertia.Set(inertia)
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(path string, code int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// Throttled counts one rate-limited request.
func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.RequestsThrottled.Inc()
}
