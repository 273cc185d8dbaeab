package airquality

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the public Open-Meteo air-quality endpoint.
const DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15:04"
)

var (
	measurementFields = []string{"pm2_5", "pm10", "nitrogen_dioxide", "ozone"}
	labelField        = "european_aqi"
)

// OpenMeteoClient implements Fetcher against the Open-Meteo air-quality API.
type OpenMeteoClient struct {
	name    string
	baseURL string
	apiKey  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// ClientOption customises an OpenMeteoClient.
type ClientOption func(*OpenMeteoClient)

// WithBaseURL points the client at another endpoint (tests, self-hosted mirrors).
func WithBaseURL(u string) ClientOption {
	return func(c *OpenMeteoClient) { c.baseURL = u }
}

// WithAPIKey sets the customer API key sent as the apikey parameter.
func WithAPIKey(key string) ClientOption {
	return func(c *OpenMeteoClient) { c.apiKey = key }
}

// WithRetries enables exponential backoff retries. The default is none.
func WithRetries(n int) ClientOption {
	return func(c *OpenMeteoClient) { c.httpCfg.Backoff.MaxRetries = n }
}

func NewOpenMeteoClient(client *http.Client, opts ...ClientOption) *OpenMeteoClient {
	c := &OpenMeteoClient{
		name:    "openmeteo-air-quality",
		baseURL: DefaultBaseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.circuit = newBreaker(c.name)
	return c
}

func (c *OpenMeteoClient) Name() string {
	return c.name
}

type hourlyPayload struct {
	Time     []string   `json:"time"`
	PM25     []*float64 `json:"pm2_5"`
	PM10     []*float64 `json:"pm10"`
	NO2      []*float64 `json:"nitrogen_dioxide"`
	Ozone    []*float64 `json:"ozone"`
	European []*float64 `json:"european_aqi"`
}

// Fetch returns one observation per hourly timestamp in the requested window.
func (c *OpenMeteoClient) Fetch(ctx context.Context, req Request) ([]Observation, error) {
	tz, err := loadTimezone(req.Location.Timezone)
	if err != nil {
		return nil, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		fields := append([]string(nil), measurementFields...)
		if req.WithLabel {
			fields = append(fields, labelField)
		}

		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Location.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(req.Location.Lon, 'f', -1, 64))
		values.Set("hourly", strings.Join(fields, ","))
		values.Set("start_date", req.Start.In(tz).Format(dateLayout))
		values.Set("end_date", req.End.In(tz).Format(dateLayout))
		values.Set("timezone", tz.String())
		if c.apiKey != "" {
			values.Set("apikey", c.apiKey)
		}

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, &RemoteDataError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly *hourlyPayload `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &RemoteDataError{Reason: "decode response", Err: err}
	}
	if payload.Hourly == nil {
		return nil, &RemoteDataError{Reason: "response has no hourly section"}
	}

	return parseHourly(payload.Hourly, tz, req.WithLabel)
}

func parseHourly(h *hourlyPayload, tz *time.Location, withLabel bool) ([]Observation, error) {
	n := len(h.Time)
	columns := map[string][]*float64{
		"pm2_5":            h.PM25,
		"pm10":             h.PM10,
		"nitrogen_dioxide": h.NO2,
		"ozone":            h.Ozone,
	}
	if withLabel {
		columns[labelField] = h.European
	}
	for name, col := range columns {
		if len(col) != n {
			return nil, &RemoteDataError{
				Reason: fmt.Sprintf("field %s has %d values for %d timestamps", name, len(col), n),
			}
		}
	}

	out := make([]Observation, 0, n)
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation(hourLayout, raw, tz)
		if err != nil {
			return nil, &RemoteDataError{Reason: "invalid timestamp " + strconv.Quote(raw), Err: err}
		}
		obs := Observation{
			Timestamp: ts,
			PM25:      h.PM25[i],
			PM10:      h.PM10[i],
			NO2:       h.NO2[i],
			Ozone:     h.Ozone[i],
		}
		if withLabel {
			obs.AQI = h.European[i]
		}
		out = append(out, obs)
	}
	return out, nil
}

func loadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return tz, nil
}
