// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aqicast/aqicast/internal/database"
)

// Defaults for the forecast location and data windows.
const (
	DefaultLat = -15.7797
	DefaultLon = -47.9297
)

// Config holds process configuration shared by the API, worker and CLI.
type Config struct {
	Port        string
	Environment string

	OTelEnabled  bool
	OTLPEndpoint string

	// OTelSampleRatio is the fraction of root traces kept (default: 1).
	OTelSampleRatio float64

	// ModelRegistryPath is the backend manifest.
	ModelRegistryPath string

	// OpenMeteoBaseURL overrides the upstream air quality API. Setting it to
	// "off" disables the live provider so every request uses mock data.
	OpenMeteoBaseURL string
	UpstreamTimeout  time.Duration

	DefaultLat float64
	DefaultLon float64

	Database database.Config

	// OpsTokenKey signs bearer tokens for /ops/status. Empty disables the endpoint.
	OpsTokenKey string

	CORSAllowedOrigins []string

	// RequireTLS rejects plain HTTP requests that did not arrive via a TLS-terminating proxy.
	RequireTLS bool

	PubSubProjectID    string
	PubSubSubscription string
	RefreshInterval    time.Duration

	// RefreshTargets are the worker's "lat,lon" points.
	RefreshTargets []Point
}

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lon float64
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ModelRegistryPath:  getEnvOrDefault("MODEL_REGISTRY_PATH", "models/registry.yaml"),
		OpenMeteoBaseURL:   os.Getenv("OPENMETEO_BASE_URL"),
		Database:           database.ConfigFromEnv(),
		OpsTokenKey:        os.Getenv("OPS_TOKEN_KEY"),
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "aqicast-worker"),
	}

	if err := cfg.Database.Validate(); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = durationEnv("REFRESH_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OTelSampleRatio, err = floatEnv("OTEL_SAMPLE_RATIO", 1); err != nil {
		return Config{}, err
	}
	if cfg.OTelSampleRatio < 0 || cfg.OTelSampleRatio > 1 {
		return Config{}, fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if cfg.DefaultLat, err = floatEnv("DEFAULT_LAT", DefaultLat); err != nil {
		return Config{}, err
	}
	if cfg.DefaultLon, err = floatEnv("DEFAULT_LON", DefaultLon); err != nil {
		return Config{}, err
	}
	if cfg.DefaultLat < -90 || cfg.DefaultLat > 90 || cfg.DefaultLon < -180 || cfg.DefaultLon > 180 {
		return Config{}, fmt.Errorf("default location %v,%v out of range", cfg.DefaultLat, cfg.DefaultLon)
	}

	targets := os.Getenv("REFRESH_TARGETS")
	if targets == "" {
		cfg.RefreshTargets = []Point{{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon}}
	} else if cfg.RefreshTargets, err = ParsePoints(targets); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LiveProviderEnabled reports whether the Open-Meteo provider should be used.
func (c Config) LiveProviderEnabled() bool {
	return c.OpenMeteoBaseURL != "off"
}

// ParsePoints parses "lat,lon;lat,lon".
func ParsePoints(s string) ([]Point, error) {
	var points []Point
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		latStr, lonStr, ok := strings.Cut(item, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q: want lat,lon", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", item, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", item, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("point %q out of range", item)
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
