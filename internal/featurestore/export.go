package featurestore

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/i474232898/aqi-forecast/internal/features"
)

// trainingRow is the on-disk layout of materialised training data.
type trainingRow struct {
	LocationName string  `parquet:"name=location_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	EventKey     int64   `parquet:"name=event_key,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	PM25         float64 `parquet:"name=pm25,type=DOUBLE"`
	PM10         float64 `parquet:"name=pm10,type=DOUBLE"`
	NO2          float64 `parquet:"name=no2,type=DOUBLE"`
	Ozone        float64 `parquet:"name=ozone,type=DOUBLE"`
	Hour         int32   `parquet:"name=hour,type=INT32"`
	DayOfWeek    int32   `parquet:"name=day_of_week,type=INT32"`
	Month        int32   `parquet:"name=month,type=INT32"`
	AQI          float64 `parquet:"name=aqi,type=DOUBLE"`
}

// WriteParquet writes records as a single snappy-compressed parquet file.
func WriteParquet(w io.Writer, records []features.Record) (err error) {
	rowGroup := int64(len(records))
	if rowGroup == 0 {
		rowGroup = 1
	}
	pw, err := writer.NewParquetWriterFromWriter(w, new(trainingRow), rowGroup)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		row := trainingRow{
			LocationName: r.LocationName,
			EventKey:     r.EventKey,
			PM25:         r.PM25,
			PM10:         r.PM10,
			NO2:          r.NO2,
			Ozone:        r.Ozone,
			Hour:         int32(r.Hour),
			DayOfWeek:    int32(r.DayOfWeek),
			Month:        int32(r.Month),
			AQI:          r.AQI,
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}

	// The library panics on some malformed schemas during WriteStop.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}
