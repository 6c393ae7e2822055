package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	done := r.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.active))
	r.RunFinished("SEND_MESSAGE", "COMPLETED", 3*time.Second)
	done()
	r.RunFinished("SEND_MESSAGE", "FAILED", time.Second)
	r.SessionInvalidated()

	assert.Equal(t, 0.0, testutil.ToFloat64(r.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("SEND_MESSAGE", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("SEND_MESSAGE", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.invalidations))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RunStarted()()
	r.RunFinished("X", "FAILED", time.Second)
	r.SessionInvalidated()
}

func TestHandlerServesRegistry(t *testing.T) {
	r := NewRecorder()
	r.RunFinished("GET_MESSAGES", "COMPLETED", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `run_engine_runs_total{status="COMPLETED",type="GET_MESSAGES"} 1`)
	assert.Contains(t, string(body), "run_engine_run_duration_seconds_bucket")
}
