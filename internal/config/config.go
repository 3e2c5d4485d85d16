package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/weather"
	"github.com/i474232898/weather-prediction/internal/weather/providers"
)

// Default coordinates (Agadir).
const (
	DefaultLatitude  = 30.4202
	DefaultLongitude = -9.5982
)

type AppConfig struct {
	DBPath string `validate:"required"`

	// Location is the default location ingested and served.
	Location weather.Location

	// IngestInterval controls how often a live reading is fetched.
	IngestInterval  time.Duration `validate:"gte=1s,lte=60s"`
	UpstreamTimeout time.Duration `validate:"gt=0"`
	OpenMeteoURL    string        `validate:"required,url"`

	// ForecastDailyAt is the HH:MM wall-clock time of the daily forecast run.
	ForecastDailyAt string `validate:"required,datetime=15:04"`
	ModelPath       string `validate:"required"`
	Timezone        *time.Location

	Retention weather.RetentionPolicy

	StoreLockWait    time.Duration `validate:"gt=0"`
	StoreMaxAttempts int           `validate:"gte=1,lte=20"`

	SeedMockData bool
	Port         string `validate:"required,numeric"`
	LogLevel     string `validate:"oneof=DEBUG INFO WARN ERROR"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("config: no .env file loaded: %v", err)
	}
	return load(providers.NewGoogleGeocoder(os.Getenv("GEOCODER_API_KEY")))
}

func load(geocode providers.GeocodeFunc) (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.DBPath = getenvDefault("DB_PATH", "data/weather.db")
	cfg.OpenMeteoURL = getenvDefault("OPENMETEO_BASE_URL", providers.OpenMeteoBaseURL)
	cfg.ForecastDailyAt = getenvDefault("FORECAST_DAILY_AT", "00:00")
	cfg.ModelPath = getenvDefault("MODEL_PATH", "models/sequence.yaml")
	cfg.StoreMaxAttempts = getenvInt("STORE_MAX_ATTEMPTS", 5)
	cfg.SeedMockData = getenvBool("SEED_MOCK_DATA", false)
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToUpper(getenvDefault("LOG_LEVEL", "INFO"))

	var err error
	if cfg.IngestInterval, err = getenvDuration("INGEST_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getenvDuration("UPSTREAM_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreLockWait, err = getenvDuration("STORE_LOCK_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Retention.ReadingMaxAge, err = getenvDuration("READING_RETENTION", weather.DefaultRetention.ReadingMaxAge); err != nil {
		return nil, err
	}
	if cfg.Retention.PredictionMaxAge, err = getenvDuration("PREDICTION_RETENTION", weather.DefaultRetention.PredictionMaxAge); err != nil {
		return nil, err
	}

	tz := os.Getenv("APP_TIMEZONE")
	if tz == "" {
		cfg.Timezone = time.Local
	} else if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	if cfg.Location, err = loadPrimaryLocation(geocode); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadPrimaryLocation prefers explicit coordinates, then a geocoded city,
// then the built-in default.
func loadPrimaryLocation(geocode providers.GeocodeFunc) (weather.Location, error) {
	lat, lon := os.Getenv("DEFAULT_LATITUDE"), os.Getenv("DEFAULT_LONGITUDE")
	if lat != "" || lon != "" {
		la, err := strconv.ParseFloat(getenvDefault("DEFAULT_LATITUDE", fmt.Sprint(DefaultLatitude)), 64)
		if err != nil {
			return weather.Location{}, fmt.Errorf("invalid DEFAULT_LATITUDE %q: %w", lat, err)
		}
		lo, err := strconv.ParseFloat(getenvDefault("DEFAULT_LONGITUDE", fmt.Sprint(DefaultLongitude)), 64)
		if err != nil {
			return weather.Location{}, fmt.Errorf("invalid DEFAULT_LONGITUDE %q: %w", lon, err)
		}
		return validLocation(weather.NewLocation(la, lo))
	}

	if city := os.Getenv("LOCATION_CITY"); city != "" && geocode != nil {
		loc, err := geocode(city, os.Getenv("LOCATION_COUNTRY"))
		if err != nil {
			return weather.Location{}, fmt.Errorf("resolve LOCATION_CITY: %w", err)
		}
		logger.Infof("config: resolved %s to %s", city, loc.Key())
		return validLocation(loc)
	}

	return weather.NewLocation(DefaultLatitude, DefaultLongitude), nil
}

func validLocation(loc weather.Location) (weather.Location, error) {
	if err := validate.Struct(loc); err != nil {
		return weather.Location{}, fmt.Errorf("invalid default location: %w", err)
	}
	return loc, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
