package airquality

import (
	"context"
	"time"
)

// Location represents a logical place for which we track air quality.
type Location struct {
	Name     string  `json:"name"`
	Country  string  `json:"country,omitempty"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
	Timezone string  `json:"timezone"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.Name + ":" + l.Country
}

// Observation is one hourly reading returned by the API. Measurements are nil
// when the API reported null for that hour.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	PM25      *float64  `json:"pm25"`
	PM10      *float64  `json:"pm10"`
	NO2       *float64  `json:"no2"`
	Ozone     *float64  `json:"ozone"`

	// AQI is only requested for historical windows.
	AQI *float64 `json:"aqi,omitempty"`
}

// Request describes a date window to fetch for a location. Start and End are
// calendar dates, both inclusive.
type Request struct {
	Location  Location
	Start     time.Time
	End       time.Time
	WithLabel bool
}

// HistoricalWindow covers the last days up to now and asks for the AQI label.
func HistoricalWindow(loc Location, now time.Time, days int) Request {
	return Request{
		Location:  loc,
		Start:     now.AddDate(0, 0, -days),
		End:       now,
		WithLabel: true,
	}
}

// ForwardWindow covers today and the following days, without a label.
func ForwardWindow(loc Location, now time.Time, days int) Request {
	return Request{
		Location: loc,
		Start:    now,
		End:      now.AddDate(0, 0, days),
	}
}

// Fetcher abstracts an air-quality data source.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]Observation, error)
}
