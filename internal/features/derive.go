package features

import (
	"time"

	"github.com/i474232898/aqi-forecast/internal/airquality"
)

const dateLayout = "2006-01-02"

// Derive builds feature records for serving. Observations missing any
// measurement are dropped; the label is ignored.
func Derive(obs []airquality.Observation, locationName string) []Record {
	return derive(obs, locationName, false)
}

// DeriveLabeled builds feature records for training and also drops
// observations without an AQI label.
func DeriveLabeled(obs []airquality.Observation, locationName string) []Record {
	return derive(obs, locationName, true)
}

func derive(obs []airquality.Observation, locationName string, requireLabel bool) []Record {
	out := make([]Record, 0, len(obs))
	for _, o := range obs {
		if o.PM25 == nil || o.PM10 == nil || o.NO2 == nil || o.Ozone == nil {
			continue
		}
		if requireLabel && o.AQI == nil {
			continue
		}

		r := Record{
			Timestamp:    o.Timestamp,
			PM25:         *o.PM25,
			PM10:         *o.PM10,
			NO2:          *o.NO2,
			Ozone:        *o.Ozone,
			Hour:         o.Timestamp.Hour(),
			DayOfWeek:    mondayFirst(o.Timestamp.Weekday()),
			Month:        int(o.Timestamp.Month()),
			DateStr:      o.Timestamp.Format(dateLayout),
			EventKey:     o.Timestamp.UnixMilli(),
			LocationName: locationName,
		}
		if o.AQI != nil {
			r.AQI = *o.AQI
		}
		out = append(out, r)
	}
	return out
}

// mondayFirst maps time.Weekday (Sunday=0) onto Monday=0 .. Sunday=6.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
