package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ScanFinished("success")
	m.ScanFinished("success")
	m.ScanFinished("recognition_failed")
	m.PreprocessFallback()
	m.FieldExtracted("calories")
	m.RecognitionObserved("stub", 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("recognition_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.preprocessFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractedFields.WithLabelValues("calories")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "scaneats_recognition_seconds")
	assert.Contains(t, names, "scaneats_scans_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScanFinished("success")
		m.RecognitionObserved("stub", time.Second)
		m.PreprocessFallback()
		m.FieldExtracted("fat")
	})
}
