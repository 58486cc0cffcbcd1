// Package app wires the forecasting stack shared by the API server, the
// worker and the command-line tool.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/airquality/openmeteo"
	"github.com/aqicast/aqicast/internal/config"
	"github.com/aqicast/aqicast/internal/database"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
	"github.com/aqicast/aqicast/internal/provider/resilience"
	"github.com/aqicast/aqicast/internal/telemetry"
)

// Options adjusts what Build wires.
type Options struct {
	Logger zerolog.Logger

	// Offline skips the live provider so every fetch uses mock data.
	Offline bool

	// SkipDatabase keeps forecasts in memory even when a database is configured.
	SkipDatabase bool

	// MemoryCapacity bounds the in-memory forecast store (default: forecast.DefaultMemoryCapacity).
	MemoryCapacity int
}

// Stack is the wired forecasting pipeline.
type Stack struct {
	Forecasts *forecast.Service
	Gateway   *airquality.Service
	Registry  *prediction.Registry
	Providers *resilience.Registry

	// Pool is nil when forecasts are kept in memory.
	Pool *pgxpool.Pool
}

// Build loads the model registry, connects storage and assembles the forecast service.
func Build(ctx context.Context, cfg config.Config, opts Options) (*Stack, error) {
	log := opts.Logger
	providers := resilience.NewRegistry()

	meter := telemetry.Meter(telemetry.InstrumentationName)
	gatewayMetrics, err := telemetry.NewGatewayMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("gateway metrics: %w", err)
	}
	predictionMetrics, err := telemetry.NewPredictionMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("prediction metrics: %w", err)
	}

	gatewayCfg := airquality.ServiceConfig{
		Logger:  log,
		Timeout: cfg.UpstreamTimeout,
		Metrics: gatewayMetrics,
	}
	if !opts.Offline && cfg.LiveProviderEnabled() {
		gatewayCfg.Provider = openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:  cfg.OpenMeteoBaseURL,
			Timeout:  cfg.UpstreamTimeout,
			Registry: providers,
			Logger:   log,
		})
	} else {
		log.Warn().Msg("live provider disabled, serving mock data")
	}
	gateway := airquality.NewService(gatewayCfg)

	registry, err := prediction.LoadRegistry(cfg.ModelRegistryPath, prediction.LoadOptions{
		Logger:    log,
		Providers: providers,
	})
	if err != nil {
		return nil, fmt.Errorf("load model registry: %w", err)
	}
	log.Info().
		Strs("models", registry.Available()).
		Str("manifest", cfg.ModelRegistryPath).
		Msg("model registry loaded")

	adapter := prediction.NewAdapter(prediction.AdapterConfig{
		Registry: registry,
		Logger:   log,
		Metrics:  predictionMetrics,
	})

	stack := &Stack{
		Gateway:   gateway,
		Registry:  registry,
		Providers: providers,
	}

	var repo forecast.Repository
	if cfg.Database.Enabled && !opts.SkipDatabase {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		stack.Pool = pool
		repo = forecast.NewPostgresRepository(pool)
	} else {
		repo = forecast.NewInMemoryRepository(opts.MemoryCapacity)
	}

	stack.Forecasts = forecast.NewService(forecast.ServiceConfig{
		Gateway:    gateway,
		Adapter:    adapter,
		Repository: repo,
		Logger:     log,
	})

	return stack, nil
}

// Close releases the database pool, if any.
func (s *Stack) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// DefaultLocation returns the configured fallback forecast point.
func DefaultLocation(cfg config.Config) forecast.Location {
	return forecast.Location{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon}
}

// RefreshLocations converts the configured worker targets.
func RefreshLocations(cfg config.Config) []forecast.Location {
	out := make([]forecast.Location, 0, len(cfg.RefreshTargets))
	for _, p := range cfg.RefreshTargets {
		out = append(out, forecast.Location{Lat: p.Lat, Lon: p.Lon})
	}
	return out
}
