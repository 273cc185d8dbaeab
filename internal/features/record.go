package features

import "time"

// Columns is the ordered model input. Training and serving both build their
// vectors from this list; changing it invalidates every registered model.
var Columns = []string{"pm25", "pm10", "no2", "ozone", "hour", "day_of_week", "month"}

// Label is the column the models predict.
const Label = "aqi"

// Record is an observation with calendar features and its identity key.
// (LocationName, EventKey) is unique.
type Record struct {
	Timestamp    time.Time `json:"timestamp" csv:"timestamp"`
	PM25         float64   `json:"pm25" csv:"pm25"`
	PM10         float64   `json:"pm10" csv:"pm10"`
	NO2          float64   `json:"no2" csv:"no2"`
	Ozone        float64   `json:"ozone" csv:"ozone"`
	AQI          float64   `json:"aqi" csv:"aqi"`
	Hour         int       `json:"hour" csv:"hour"`
	DayOfWeek    int       `json:"day_of_week" csv:"day_of_week"`
	Month        int       `json:"month" csv:"month"`
	DateStr      string    `json:"date_str" csv:"date_str"`
	EventKey     int64     `json:"event_key" csv:"event_key"`
	LocationName string    `json:"location_name" csv:"location_name"`
}

// Vector returns the feature values in Columns order.
func (r Record) Vector() []float64 {
	return []float64{
		r.PM25, r.PM10, r.NO2, r.Ozone,
		float64(r.Hour), float64(r.DayOfWeek), float64(r.Month),
	}
}

// DailyRow is the per-day mean of hourly records, the serving-time model input.
type DailyRow struct {
	Date      time.Time `json:"date" csv:"-"`
	DateStr   string    `json:"date_str" csv:"date"`
	PM25      float64   `json:"pm25" csv:"pm25"`
	PM10      float64   `json:"pm10" csv:"pm10"`
	NO2       float64   `json:"no2" csv:"no2"`
	Ozone     float64   `json:"ozone" csv:"ozone"`
	Hour      float64   `json:"hour" csv:"hour"`
	DayOfWeek float64   `json:"day_of_week" csv:"day_of_week"`
	Month     float64   `json:"month" csv:"month"`
	Hours     int       `json:"hours" csv:"hours"`
}

// Vector returns the feature values in Columns order.
func (d DailyRow) Vector() []float64 {
	return []float64{d.PM25, d.PM10, d.NO2, d.Ozone, d.Hour, d.DayOfWeek, d.Month}
}
