package features

import (
	"sort"
	"time"
)

// AggregateDaily groups hourly records by calendar date and averages every
// numeric field. Rows are returned in ascending date order.
func AggregateDaily(records []Record) []DailyRow {
	type bucket struct {
		date time.Time
		sum  DailyRow
		n    int
	}

	buckets := make(map[string]*bucket)
	for _, r := range records {
		b, ok := buckets[r.DateStr]
		if !ok {
			ts := r.Timestamp
			b = &bucket{date: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())}
			buckets[r.DateStr] = b
		}
		b.sum.PM25 += r.PM25
		b.sum.PM10 += r.PM10
		b.sum.NO2 += r.NO2
		b.sum.Ozone += r.Ozone
		b.sum.Hour += float64(r.Hour)
		b.sum.DayOfWeek += float64(r.DayOfWeek)
		b.sum.Month += float64(r.Month)
		b.n++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]DailyRow, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		n := float64(b.n)
		rows = append(rows, DailyRow{
			Date:      b.date,
			DateStr:   k,
			PM25:      b.sum.PM25 / n,
			PM10:      b.sum.PM10 / n,
			NO2:       b.sum.NO2 / n,
			Ozone:     b.sum.Ozone / n,
			Hour:      b.sum.Hour / n,
			DayOfWeek: b.sum.DayOfWeek / n,
			Month:     b.sum.Month / n,
			Hours:     b.n,
		})
	}
	return rows
}
