// Package metrics exposes Prometheus collectors for the scan pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scaneats"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	scans               *prometheus.CounterVec
	recognition         *prometheus.HistogramVec
	preprocessFallbacks prometheus.Counter
	extractedFields     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		recognition: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_seconds",
			Help:      "Time spent in the OCR engine.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"engine"}),
		preprocessFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preprocess_fallbacks_total",
			Help:      "Images sent to OCR unmodified because preprocessing failed.",
		}),
		extractedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_fields_total",
			Help:      "Nutrient values read from recognized text.",
		}, []string{"nutrient"}),
	}
	if reg != nil {
		reg.MustRegister(m.scans, m.recognition, m.preprocessFallbacks, m.extractedFields)
	}
	return m
}

// ScanFinished counts one pipeline run.
func (m *Metrics) ScanFinished(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

// RecognitionObserved records one engine call.
func (m *Metrics) RecognitionObserved(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.recognition.WithLabelValues(engine).Observe(d.Seconds())
}

// PreprocessFallback counts an image forwarded without preprocessing.
func (m *Metrics) PreprocessFallback() {
	if m == nil {
		return
	}
	m.preprocessFallbacks.Inc()
}

// FieldExtracted counts a nutrient read from text.
func (m *Metrics) FieldExtracted(nutrient string) {
	if m == nil {
		return
	}
	m.extractedFields.WithLabelValues(nutrient).Inc()
}
