package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Run("ok")
	m.Run("ok")
	m.Run("failed")
	m.Segment(true)
	m.Segment(false)
	m.Artifact("summary", true)
	m.Stage("transcribe", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.segments.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifacts.WithLabelValues("summary", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stages))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Run("ok")
		m.Segment(true)
		m.Artifact("quotes", false)
		m.Stage("persist", time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Run("partial")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `scribely_runs_total{outcome="partial"} 1`)
}
