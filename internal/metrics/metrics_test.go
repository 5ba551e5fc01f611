package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChunk(t *testing.T) {
	m := New()
	m.RecordChunk(4096)
	m.RecordChunk(100)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChunksRead))
	assert.Equal(t, 4196.0, testutil.ToFloat64(m.BytesCaptured))
}

func TestRecordEncode(t *testing.T) {
	m := New()
	m.RecordEncode(true, 0.01)
	m.RecordEncode(false, 0.02)
	m.RecordEncode(true, 0.03)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EncodeJobs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncodeJobs.WithLabelValues("failure")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordChunk(1)
		m.RecordReadError()
		m.RecordSinkError()
		m.RecordSessionStarted()
		m.SetState(2)
		m.RecordEncode(true, 1)
	})
	assert.Nil(t, m.Registry())
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.RecordReadError()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ReadErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReadErrors))
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetState(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pcmcapture_recorder_state 2"))
}
