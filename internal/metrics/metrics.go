// Package metrics defines the Prometheus collectors shared by the three binaries.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry and the workflow collectors.
type Recorder struct {
	registry *prometheus.Registry

	ingestedRows *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	candidateR2  *prometheus.GaugeVec
	candidateMAE *prometheus.GaugeVec
	modelVersion prometheus.Gauge
	renders      *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		ingestedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_ingested_rows_total",
			Help: "Feature rows submitted to the feature store.",
		}, []string{"mode"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_ingest_chunks_total",
			Help: "Insert chunks by outcome.",
		}, []string{"status"}),
		candidateR2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aqi_candidate_r2",
			Help: "Held-out R² of each candidate model in the last training run.",
		}, []string{"candidate"}),
		candidateMAE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aqi_candidate_mae",
			Help: "Held-out mean absolute error of each candidate model in the last training run.",
		}, []string{"candidate"}),
		modelVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_model_version",
			Help: "Registered model version produced or served by this process.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_forecast_renders_total",
			Help: "Forecast renders by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(r.ingestedRows, r.chunks, r.candidateR2, r.candidateMAE, r.modelVersion, r.renders)
	return r
}

// Registry returns the Prometheus registry for HTTP exposition.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RowsIngested(mode string, n int) {
	r.ingestedRows.WithLabelValues(mode).Add(float64(n))
}

func (r *Recorder) ChunkSubmitted() {
	r.chunks.WithLabelValues("submitted").Inc()
}

func (r *Recorder) ChunkFailed() {
	r.chunks.WithLabelValues("failed").Inc()
}

func (r *Recorder) CandidateScored(name string, r2, mae float64) {
	r.candidateR2.WithLabelValues(name).Set(r2)
	r.candidateMAE.WithLabelValues(name).Set(mae)
}

func (r *Recorder) ModelVersion(v int) {
	r.modelVersion.Set(float64(v))
}

func (r *Recorder) Rendered(err error) {
	if err != nil {
		r.renders.WithLabelValues("error").Inc()
		return
	}
	r.renders.WithLabelValues("ok").Inc()
}

// Push sends the registry to a Pushgateway. Batch binaries call it once
// before exiting.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
