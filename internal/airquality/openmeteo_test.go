package airquality

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawalpindi = Location{Name: "Rawalpindi", Country: "Pakistan", Lat: 33.6, Lon: 73.04, Timezone: "Asia/Karachi"}

func hourlyBody(hours int, withLabel bool) string {
	times := make([]string, hours)
	vals := make([]string, hours)
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = fmt.Sprintf("%q", start.Add(time.Duration(i)*time.Hour).Format(hourLayout))
		vals[i] = fmt.Sprintf("%d.5", i)
	}
	v := strings.Join(vals, ",")
	body := fmt.Sprintf(`{"hourly":{"time":[%s],"pm2_5":[%s],"pm10":[%s],"nitrogen_dioxide":[%s],"ozone":[%s]`,
		strings.Join(times, ","), v, v, v, v)
	if withLabel {
		body += fmt.Sprintf(`,"european_aqi":[%s]`, v)
	}
	return body + "}}"
}

func TestFetchHistoricalWindow(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		fmt.Fprint(w, hourlyBody(72, true))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL))
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	obs, err := c.Fetch(context.Background(), HistoricalWindow(rawalpindi, now, 3))
	require.NoError(t, err)
	require.Len(t, obs, 72)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"33.6"}, q["latitude"])
	assert.Equal(t, []string{"73.04"}, q["longitude"])
	assert.Equal(t, []string{"pm2_5,pm10,nitrogen_dioxide,ozone,european_aqi"}, q["hourly"])
	assert.Equal(t, []string{"2024-03-04"}, q["start_date"])
	assert.Equal(t, []string{"2024-03-07"}, q["end_date"])
	assert.Equal(t, []string{"Asia/Karachi"}, q["timezone"])
	assert.Empty(t, q["apikey"])

	karachi, _ := time.LoadLocation("Asia/Karachi")
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, karachi), obs[0].Timestamp)
	require.NotNil(t, obs[1].AQI)
	assert.Equal(t, 1.5, *obs[1].AQI)

	for i := 1; i < len(obs); i++ {
		assert.Equal(t, time.Hour, obs[i].Timestamp.Sub(obs[i-1].Timestamp))
	}
}

func TestFetchForwardWindowOmitsLabel(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		fmt.Fprint(w, hourlyBody(24, false))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL), WithAPIKey("secret"))
	obs, err := c.Fetch(context.Background(), ForwardWindow(rawalpindi, time.Now(), 3))
	require.NoError(t, err)
	require.Len(t, obs, 24)
	assert.Nil(t, obs[0].AQI)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"pm2_5,pm10,nitrogen_dioxide,ozone"}, q["hourly"])
	assert.Equal(t, []string{"secret"}, q["apikey"])
}

func TestFetchNullMeasurementsStayNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hourly":{"time":["2024-03-04T00:00"],"pm2_5":[null],"pm10":[1],"nitrogen_dioxide":[2],"ozone":[3]}}`)
	}))
	defer srv.Close()

	obs, err := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL)).
		Fetch(context.Background(), ForwardWindow(rawalpindi, time.Now(), 1))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Nil(t, obs[0].PM25)
	require.NotNil(t, obs[0].PM10)
}

func TestFetchRemoteDataErrors(t *testing.T) {
	cases := map[string]string{
		"missing hourly": `{"latitude":33.6}`,
		"misaligned":     `{"hourly":{"time":["2024-03-04T00:00","2024-03-04T01:00"],"pm2_5":[1],"pm10":[1,2],"nitrogen_dioxide":[1,2],"ozone":[1,2]}}`,
		"bad timestamp":  `{"hourly":{"time":["yesterday"],"pm2_5":[1],"pm10":[1],"nitrogen_dioxide":[1],"ozone":[1]}}`,
		"not json":       `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			_, err := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL)).
				Fetch(context.Background(), ForwardWindow(rawalpindi, time.Now(), 1))
			var rde *RemoteDataError
			assert.True(t, errors.As(err, &rde), "got %v", err)
		})
	}
}

func TestFetchServerErrorWithoutRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL)).
		Fetch(context.Background(), ForwardWindow(rawalpindi, time.Now(), 1))
	var rde *RemoteDataError
	require.True(t, errors.As(err, &rde))
	assert.ErrorIs(t, err, errServerError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRetriesWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, hourlyBody(2, false))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(srv.Client(), WithBaseURL(srv.URL), WithRetries(2))
	c.httpCfg.Backoff.InitialInterval = time.Millisecond
	obs, err := c.Fetch(context.Background(), ForwardWindow(rawalpindi, time.Now(), 1))
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchInvalidTimezone(t *testing.T) {
	loc := rawalpindi
	loc.Timezone = "Mars/Olympus"
	_, err := NewOpenMeteoClient(http.DefaultClient).Fetch(context.Background(), ForwardWindow(loc, time.Now(), 1))
	assert.Error(t, err)
}

func TestResolveKeepsConfiguredCoordinates(t *testing.T) {
	got, err := Resolve(rawalpindi, "")
	require.NoError(t, err)
	assert.Equal(t, rawalpindi, got)

	_, err = Resolve(Location{Name: "Lahore", Country: "Pakistan"}, "")
	assert.ErrorIs(t, err, errNoGeocoderKey)
}
