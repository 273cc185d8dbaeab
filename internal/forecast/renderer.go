// Package forecast turns the latest registered model and the upcoming
// pollutant forecast into per-day AQI predictions.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	"github.com/i474232898/aqi-forecast/internal/features"
	"github.com/i474232898/aqi-forecast/internal/ml"
	"github.com/i474232898/aqi-forecast/internal/registry"
	"github.com/i474232898/aqi-forecast/internal/training"
)

// DateLabel is the display layout for forecast days, e.g. "Monday, 02 Jan".
const DateLabel = "Monday, 02 Jan"

var (
	ErrNoForecastData    = errors.New("no forecast data available")
	ErrInvalidPrediction = errors.New("model returned a non-finite prediction")
)

// Model is a loaded regressor and the registry version it came from.
type Model struct {
	Regressor ml.Regressor
	Version   int
}

// ModelLoader fetches the model to serve.
type ModelLoader interface {
	Load(ctx context.Context) (Model, error)
}

// RegistryLoader loads the highest registered version of a model name.
type RegistryLoader struct {
	Registry *registry.Registry
	Name     string
}

func (l RegistryLoader) Load(ctx context.Context) (Model, error) {
	mv, err := l.Registry.Latest(ctx, l.Name)
	if err != nil {
		return Model{}, err
	}
	dir, err := l.Registry.Download(ctx, mv.Name, mv.Version)
	if err != nil {
		return Model{}, err
	}
	defer os.RemoveAll(dir)

	reg, err := training.LoadArtifact(dir)
	if err != nil {
		return Model{}, fmt.Errorf("load %s v%d: %w", mv.Name, mv.Version, err)
	}
	log.Printf("INFO: loaded model %s version %d", mv.Name, mv.Version)
	return Model{Regressor: reg, Version: mv.Version}, nil
}

// DayForecast is one predicted day.
type DayForecast struct {
	Date     string   `json:"date"`
	Label    string   `json:"label"`
	AQI      float64  `json:"aqi"`
	Severity Severity `json:"severity"`
}

// Forecast is a rendered prediction with the daily inputs it was made from.
type Forecast struct {
	Location     string              `json:"location"`
	ModelVersion int                 `json:"modelVersion"`
	GeneratedAt  time.Time           `json:"generatedAt"`
	Days         []DayForecast       `json:"days"`
	Raw          []features.DailyRow `json:"raw"`
}

// RenderRecorder receives the outcome of each render.
type RenderRecorder interface {
	Rendered(err error)
	ModelVersion(v int)
}

// Renderer produces forecasts. The model is loaded once per process and
// reused; a failed load is retried on the next render.
type Renderer struct {
	fetcher  airquality.Fetcher
	loader   ModelLoader
	location airquality.Location
	recorder RenderRecorder
	now      func() time.Time

	mu    sync.Mutex
	model *Model
}

// Option customises a Renderer.
type Option func(*Renderer)

func WithRecorder(rec RenderRecorder) Option {
	return func(r *Renderer) { r.recorder = rec }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

func NewRenderer(fetcher airquality.Fetcher, loader ModelLoader, loc airquality.Location, opts ...Option) *Renderer {
	r := &Renderer{
		fetcher:  fetcher,
		loader:   loader,
		location: loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render predicts the AQI of the next days calendar days starting today.
func (r *Renderer) Render(ctx context.Context, days int) (Forecast, error) {
	fc, err := r.render(ctx, days)
	if r.recorder != nil {
		r.recorder.Rendered(err)
	}
	return fc, err
}

func (r *Renderer) render(ctx context.Context, days int) (Forecast, error) {
	if days < 1 {
		return Forecast{}, fmt.Errorf("forecast days must be positive, got %d", days)
	}

	model, err := r.loadModel(ctx)
	if err != nil {
		return Forecast{}, err
	}

	now := r.now()
	obs, err := r.fetcher.Fetch(ctx, airquality.ForwardWindow(r.location, now, days))
	if err != nil {
		return Forecast{}, err
	}

	daily := features.AggregateDaily(features.Derive(obs, r.location.Name))
	if len(daily) == 0 {
		return Forecast{}, ErrNoForecastData
	}
	if len(daily) > days {
		daily = daily[:days]
	}

	X := make([][]float64, len(daily))
	for i, d := range daily {
		X[i] = d.Vector()
	}
	pred, err := model.Regressor.Predict(X)
	if err != nil {
		return Forecast{}, fmt.Errorf("predict: %w", err)
	}
	for i, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Forecast{}, fmt.Errorf("%w: %s predicted %v", ErrInvalidPrediction, daily[i].DateStr, v)
		}
	}

	fc := Forecast{
		Location:     r.location.Name,
		ModelVersion: model.Version,
		GeneratedAt:  now,
		Raw:          daily,
		Days:         make([]DayForecast, len(daily)),
	}
	for i, d := range daily {
		fc.Days[i] = DayForecast{
			Date:     d.DateStr,
			Label:    d.Date.Format(DateLabel),
			AQI:      pred[i],
			Severity: Bucket(pred[i]),
		}
	}
	return fc, nil
}

func (r *Renderer) loadModel(ctx context.Context) (Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.model != nil {
		return *r.model, nil
	}
	m, err := r.loader.Load(ctx)
	if err != nil {
		return Model{}, err
	}
	r.model = &m
	if r.recorder != nil {
		r.recorder.ModelVersion(m.Version)
	}
	return m, nil
}
