package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	"github.com/i474232898/aqi-forecast/internal/platform"
)

var ErrMissingAPIKey = errors.New("PLATFORM_API_KEY is not set")

type AppConfig struct {
	// APIKey authenticates against the platform database. Never logged.
	APIKey string `validate:"required"`

	Location       airquality.Location
	AQAPIURL       string `validate:"required,url"`
	AQAPIKey       string
	AQMaxRetries   int           `validate:"gte=0,lte=10"`
	HTTPTimeout    time.Duration `validate:"gt=0"`
	GeocoderAPIKey string

	Platform platform.Config

	FeatureGroupName    string `validate:"required"`
	FeatureGroupVersion int    `validate:"gte=1"`
	FeatureViewName     string `validate:"required"`
	FeatureViewVersion  int    `validate:"gte=1"`

	IngestChunkSize int `validate:"gte=1"`
	BackfillDays    int `validate:"gte=1"`
	UpdateDays      int `validate:"gte=1"`
	AwaitBackfill   bool
	// UpdateAt is the daily run time of the scheduled feature pipeline, HH:MM.
	UpdateAt string `validate:"required"`

	ModelName   string  `validate:"required"`
	RegistryDir string  `validate:"required"`
	TestSize    float64 `validate:"gt=0,lt=1"`
	SplitSeed   int64

	ForecastDays int `validate:"gte=1,lte=7"`

	Port           string
	PushgatewayURL string `validate:"omitempty,url"`
}

// Load reads configuration from .env and the environment with defaults and
// validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.APIKey = os.Getenv("PLATFORM_API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("HOPSWORKS_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	loc, err := loadLocation()
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	cfg.AQAPIURL = getenvDefault("AQ_API_URL", airquality.DefaultBaseURL)
	cfg.AQAPIKey = os.Getenv("AQ_API_KEY")
	cfg.AQMaxRetries = getenvInt("AQ_MAX_RETRIES", 0)
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Platform = platform.Config{
		Driver: getenvDefault("FEATURE_STORE_DRIVER", "sqlite"),
		DSN:    os.Getenv("FEATURE_STORE_DSN"),
	}

	cfg.FeatureGroupName = getenvDefault("FEATURE_GROUP_NAME", "aqi_data_rawalpindi")
	cfg.FeatureGroupVersion = getenvInt("FEATURE_GROUP_VERSION", 1)
	cfg.FeatureViewName = getenvDefault("FEATURE_VIEW_NAME", "aqi_view_rawalpindi")
	cfg.FeatureViewVersion = getenvInt("FEATURE_VIEW_VERSION", 1)

	cfg.IngestChunkSize = getenvInt("INGEST_CHUNK_SIZE", 500)
	cfg.BackfillDays = getenvInt("BACKFILL_DAYS", 365)
	cfg.UpdateDays = getenvInt("UPDATE_DAYS", 3)
	cfg.AwaitBackfill = getenvBool("AWAIT_BACKFILL", true)
	cfg.UpdateAt = getenvDefault("UPDATE_AT", "01:00")

	cfg.ModelName = getenvDefault("MODEL_NAME", "aqi_model_rawalpindi")
	cfg.RegistryDir = getenvDefault("REGISTRY_DIR", "model-registry")
	cfg.TestSize = getenvFloat("TEST_SIZE", 0.2)
	cfg.SplitSeed = int64(getenvInt("SPLIT_SEED", 0))

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 3)
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *AppConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.Parse("15:04", cfg.UpdateAt); err != nil {
		return fmt.Errorf("invalid UPDATE_AT %q: want HH:MM", cfg.UpdateAt)
	}
	if _, err := time.LoadLocation(cfg.Location.Timezone); err != nil {
		return fmt.Errorf("invalid AQ_TIMEZONE: %w", err)
	}
	return nil
}

// loadLocation reads the tracked location. Coordinates are optional when a
// geocoding key is configured; ResolveLocation fills them in.
func loadLocation() (airquality.Location, error) {
	loc := airquality.Location{
		Name:     getenvDefault("AQ_LOCATION_NAME", "Rawalpindi"),
		Country:  getenvDefault("AQ_COUNTRY", "Pakistan"),
		Timezone: getenvDefault("AQ_TIMEZONE", "Asia/Karachi"),
	}

	lat, lon := os.Getenv("AQ_LATITUDE"), os.Getenv("AQ_LONGITUDE")
	if lat == "" && lon == "" && os.Getenv("GEOCODER_API_KEY") != "" {
		return loc, nil
	}

	var err error
	if loc.Lat, err = strconv.ParseFloat(defaultIfEmpty(lat, "33.60"), 64); err != nil {
		return loc, fmt.Errorf("invalid AQ_LATITUDE: %w", err)
	}
	if loc.Lon, err = strconv.ParseFloat(defaultIfEmpty(lon, "73.04"), 64); err != nil {
		return loc, fmt.Errorf("invalid AQ_LONGITUDE: %w", err)
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
		return loc, fmt.Errorf("coordinates %v,%v out of range", loc.Lat, loc.Lon)
	}
	return loc, nil
}

// ResolveLocation returns the configured location with coordinates filled in.
func (c *AppConfig) ResolveLocation() (airquality.Location, error) {
	return airquality.Resolve(c.Location, c.GeocoderAPIKey)
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getenvDefault(key, def string) string {
	return defaultIfEmpty(os.Getenv(key), def)
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
