package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	DatabaseURL string `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1,max=100"`

	// Ingestion pipeline.
	IngestEnabled      bool          `envconfig:"INGEST_ENABLED" default:"false"`
	KafkaBrokers       []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092" validate:"required,min=1,dive,required"`
	KafkaSourceTopic   string        `envconfig:"KAFKA_SOURCE_TOPIC" default:"elhub-energy-records" validate:"required"`
	KafkaGroupID       string        `envconfig:"KAFKA_GROUP_ID" default:"energy-weather-insights" validate:"required"`
	BatchSize          int           `envconfig:"BATCH_SIZE" default:"100" validate:"min=1,max=1000"`
	BatchFlushInterval time.Duration `envconfig:"BATCH_FLUSH_INTERVAL" default:"500ms" validate:"gt=0"`

	// Open-Meteo archive.
	OpenMeteoBaseURL    string        `envconfig:"OPENMETEO_BASE_URL" default:"https://archive-api.open-meteo.com" validate:"required,url"`
	OpenMeteoTimezone   string        `envconfig:"OPENMETEO_TIMEZONE" default:"Europe/Oslo" validate:"required"`
	OpenMeteoTimeout    time.Duration `envconfig:"OPENMETEO_TIMEOUT" default:"30s" validate:"gt=0"`
	OpenMeteoMaxRetries int           `envconfig:"OPENMETEO_MAX_RETRIES" default:"5" validate:"min=0,max=10"`
	OpenMeteoRateLimit  float64       `envconfig:"OPENMETEO_RATE_LIMIT" default:"5" validate:"gt=0"`
	WeatherCacheEnabled bool          `envconfig:"WEATHER_CACHE_ENABLED" default:"true"`
	WeatherCachePath    string        `envconfig:"WEATHER_CACHE_PATH" default:"weather_cache.sqlite"`
	FetchConcurrency    int           `envconfig:"FETCH_CONCURRENCY" default:"4" validate:"min=1,max=16"`

	// Local data files.
	GeoJSONPath    string `envconfig:"GEOJSON_PATH" default:"data/price_areas.geojson"`
	WeatherCSVPath string `envconfig:"WEATHER_CSV_PATH"`

	// Snow-drift defaults applied when a request omits them.
	SnowdriftT     float64 `envconfig:"SNOWDRIFT_T" default:"3000" validate:"gt=0"`
	SnowdriftF     float64 `envconfig:"SNOWDRIFT_F" default:"30000" validate:"gte=0"`
	SnowdriftTheta float64 `envconfig:"SNOWDRIFT_THETA" default:"0.5" validate:"gte=0,lte=1"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrParsing indicates an environment value could not be parsed into its field type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the populated configuration broke a validation rule.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)

// ConfigError is returned by Load when the environment cannot produce a usable Config.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads configuration from an optional .env file and the environment,
// applying defaults where unset, then validates it.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	if err := newValidator().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	if cfg.IngestEnabled && cfg.DatabaseURL == "" {
		return nil, &ConfigError{Type: ErrValidation, Message: "INGEST_ENABLED is true but DATABASE_URL is not set"}
	}
	if cfg.WeatherCacheEnabled && strings.TrimSpace(cfg.WeatherCachePath) == "" {
		return nil, &ConfigError{Type: ErrValidation, Message: "WEATHER_CACHE_ENABLED is true but WEATHER_CACHE_PATH is empty"}
	}

	return &cfg, nil
}

// newValidator reports failing fields by their environment variable names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}
