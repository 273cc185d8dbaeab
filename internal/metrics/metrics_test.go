package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of every sample as family{label=value}.
func gathered(t *testing.T, r *Recorder) map[string]float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "aqi_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.RowsIngested("backfill", 1200)
	r.ChunkSubmitted()
	r.ChunkSubmitted()
	r.ChunkFailed()
	r.CandidateScored("Ridge_Regression", 0.91, 4.2)
	r.ModelVersion(3)
	r.Rendered(nil)
	r.Rendered(errors.New("boom"))

	got := gathered(t, r)
	assert.Equal(t, 1200.0, got["aqi_ingested_rows_total{mode=backfill}"])
	assert.Equal(t, 2.0, got["aqi_ingest_chunks_total{status=submitted}"])
	assert.Equal(t, 1.0, got["aqi_ingest_chunks_total{status=failed}"])
	assert.Equal(t, 0.91, got["aqi_candidate_r2{candidate=Ridge_Regression}"])
	assert.Equal(t, 4.2, got["aqi_candidate_mae{candidate=Ridge_Regression}"])
	assert.Equal(t, 3.0, got["aqi_model_version"])
	assert.Equal(t, 1.0, got["aqi_forecast_renders_total{outcome=error}"])
	assert.Equal(t, 1.0, got["aqi_forecast_renders_total{outcome=ok}"])
}

func TestPush(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path, method = req.URL.Path, req.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.ChunkSubmitted()
	require.NoError(t, r.Push(context.Background(), srv.URL, "feature_pipeline"))
	assert.Equal(t, "/metrics/job/feature_pipeline", path)
	assert.Equal(t, http.MethodPut, method)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, New().Push(context.Background(), srv.URL, "training_pipeline"))
}
