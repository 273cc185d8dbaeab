package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	"github.com/i474232898/aqi-forecast/internal/ml"
	"github.com/i474232898/aqi-forecast/internal/registry"
	"github.com/i474232898/aqi-forecast/internal/training"
)

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		aqi  float64
		want Severity
	}{
		{-5, Good},
		{0, Good},
		{49.9, Good},
		{50, Moderate},
		{99.99, Moderate},
		{100, UnhealthySens},
		{149.9, UnhealthySens},
		{150, Unhealthy},
		{199.9, Unhealthy},
		{200, VeryUnhealthy},
		{480, VeryUnhealthy},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Bucket(c.aqi), "aqi %v", c.aqi)
	}
	assert.Equal(t, "orange", Bucket(120).Color)
}

// firstFeature predicts pm25 so the expected AQI of a day is its mean pm25.
type firstFeature struct{}

func (firstFeature) Kind() string                     { return "first" }
func (firstFeature) Fit([][]float64, []float64) error { return nil }
func (firstFeature) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = x[0]
	}
	return out, nil
}

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (l *countingLoader) Load(context.Context) (Model, error) {
	l.calls.Add(1)
	if l.err != nil {
		return Model{}, l.err
	}
	return Model{Regressor: firstFeature{}, Version: 7}, nil
}

// forecastServer serves hours hourly rows starting at start; pm2_5 is 40
// on the first day, 120 on the second and 250 after that.
func forecastServer(t *testing.T, start time.Time, hours int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotContains(t, r.URL.Query().Get("hourly"), "european_aqi")

		times := make([]string, hours)
		pm := make([]string, hours)
		other := make([]string, hours)
		for i := range times {
			times[i] = fmt.Sprintf("%q", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02T15:04"))
			switch i / 24 {
			case 0:
				pm[i] = "40"
			case 1:
				pm[i] = "120"
			default:
				pm[i] = "250"
			}
			other[i] = "1"
		}
		fmt.Fprintf(w, `{"hourly":{"time":[%s],"pm2_5":[%s],"pm10":[%s],"nitrogen_dioxide":[%s],"ozone":[%s]}}`,
			strings.Join(times, ","), strings.Join(pm, ","), strings.Join(other, ","), strings.Join(other, ","), strings.Join(other, ","))
	}))
}

var loc = airquality.Location{Name: "Rawalpindi", Lat: 33.6, Lon: 73.04, Timezone: "UTC"}

func TestRenderThreeDays(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := forecastServer(t, start, 96)
	defer srv.Close()

	loader := &countingLoader{}
	r := NewRenderer(
		airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)),
		loader, loc,
		WithClock(func() time.Time { return start.Add(9 * time.Hour) }),
	)

	fc, err := r.Render(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 7, fc.ModelVersion)
	require.Len(t, fc.Days, 3)
	require.Len(t, fc.Raw, 3)

	assert.Equal(t, "Monday, 04 Mar", fc.Days[0].Label)
	assert.Equal(t, "Tuesday, 05 Mar", fc.Days[1].Label)
	assert.Equal(t, "Wednesday, 06 Mar", fc.Days[2].Label)
	assert.InDelta(t, 40, fc.Days[0].AQI, 1e-9)
	assert.Equal(t, Good, fc.Days[0].Severity)
	assert.Equal(t, UnhealthySens, fc.Days[1].Severity)
	assert.Equal(t, VeryUnhealthy, fc.Days[2].Severity)
	assert.Equal(t, 24, fc.Raw[0].Hours)
	assert.InDelta(t, 11.5, fc.Raw[0].Hour, 1e-9)

	_, err = r.Render(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestRenderDoesNotCacheLoadFailure(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := forecastServer(t, start, 24)
	defer srv.Close()

	loader := &countingLoader{err: registry.ErrNotFound}
	r := NewRenderer(airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)), loader, loc)

	_, err := r.Render(context.Background(), 3)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	loader.err = nil
	fc, err := r.Render(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, fc.Days, 1)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestRenderNoData(t *testing.T) {
	srv := forecastServer(t, time.Now(), 0)
	defer srv.Close()

	r := NewRenderer(airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)), &countingLoader{}, loc)
	_, err := r.Render(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNoForecastData)

	_, err = r.Render(context.Background(), 0)
	assert.Error(t, err)
}

type outcomes struct {
	ok, failed int
	version    int
}

func (o *outcomes) Rendered(err error) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}
func (o *outcomes) ModelVersion(v int) { o.version = v }

func TestRegistryLoaderEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reg.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	reg, err := registry.New(db, filepath.Join(t.TempDir(), "models"))
	require.NoError(t, err)

	// Register two versions; the loader must pick the second.
	for _, alpha := range []float64{1, 2} {
		m := ml.NewRidge(alpha)
		require.NoError(t, m.Fit(
			[][]float64{{1, 0, 0, 0, 0, 0, 1}, {2, 0, 0, 0, 1, 0, 1}, {3, 1, 0, 0, 0, 1, 1}, {4, 0, 1, 1, 0, 0, 1}},
			[]float64{10, 20, 30, 40},
		))
		data, err := ml.Marshal(m)
		require.NoError(t, err)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, training.ArtifactFile), data, 0o644))
		_, err = reg.Create("aqi_model", map[string]float64{"r2": 0.5}, "").Save(ctx, dir)
		require.NoError(t, err)
	}

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := forecastServer(t, start, 72)
	defer srv.Close()

	rec := &outcomes{}
	r := NewRenderer(
		airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)),
		RegistryLoader{Registry: reg, Name: "aqi_model"},
		loc,
		WithRecorder(rec),
		WithClock(func() time.Time { return start }),
	)

	fc, err := r.Render(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, fc.ModelVersion)
	assert.Len(t, fc.Days, 3)
	assert.Equal(t, 2, rec.version)
	assert.Equal(t, 1, rec.ok)

	missing := NewRenderer(airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)),
		RegistryLoader{Registry: reg, Name: "unknown"}, loc, WithRecorder(rec))
	_, err = missing.Render(ctx, 3)
	assert.True(t, errors.Is(err, registry.ErrNotFound))
	assert.Equal(t, 1, rec.failed)
}

// constantServer serves hours hourly rows with the same readings every hour.
func constantServer(t *testing.T, start time.Time, hours int, pm25, pm10, no2, ozone string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		times := make([]string, hours)
		for i := range times {
			times[i] = fmt.Sprintf("%q", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02T15:04"))
		}
		col := func(v string) string { return strings.TrimSuffix(strings.Repeat(v+",", hours), ",") }
		fmt.Fprintf(w, `{"hourly":{"time":[%s],"pm2_5":[%s],"pm10":[%s],"nitrogen_dioxide":[%s],"ozone":[%s]}}`,
			strings.Join(times, ","), col(pm25), col(pm10), col(no2), col(ozone))
	}))
}

func TestRenderConstantReadingsAverageToThemselves(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := constantServer(t, start, 72, "10", "20", "5", "30")
	defer srv.Close()

	r := NewRenderer(
		airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)),
		&countingLoader{}, loc,
		WithClock(func() time.Time { return start }),
	)

	fc, err := r.Render(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, fc.Raw, 3)
	require.Len(t, fc.Days, 3)
	for i, row := range fc.Raw {
		assert.Equal(t, start.AddDate(0, 0, i).Format("2006-01-02"), row.DateStr)
		assert.Equal(t, 24, row.Hours)
		assert.InDelta(t, 10, row.PM25, 1e-9)
		assert.InDelta(t, 20, row.PM10, 1e-9)
		assert.InDelta(t, 5, row.NO2, 1e-9)
		assert.InDelta(t, 30, row.Ozone, 1e-9)
		assert.InDelta(t, 11.5, row.Hour, 1e-9)
		assert.InDelta(t, 10, fc.Days[i].AQI, 1e-9)
		assert.Equal(t, Good, fc.Days[i].Severity)
	}
}

type nanLoader struct{}

func (nanLoader) Load(context.Context) (Model, error) {
	return Model{Regressor: nanModel{}, Version: 1}, nil
}

type nanModel struct{}

func (nanModel) Kind() string                     { return "nan" }
func (nanModel) Fit([][]float64, []float64) error { return nil }
func (nanModel) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = math.NaN()
	}
	return out, nil
}

func TestRenderRejectsNaNPrediction(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	srv := constantServer(t, start, 24, "10", "20", "5", "30")
	defer srv.Close()

	rec := &outcomes{}
	r := NewRenderer(airquality.NewOpenMeteoClient(srv.Client(), airquality.WithBaseURL(srv.URL)), nanLoader{}, loc,
		WithRecorder(rec), WithClock(func() time.Time { return start }))

	_, err := r.Render(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidPrediction)
	assert.Equal(t, 1, rec.failed)
}
