package airquality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/fallback"
)

// Provider defines the interface for hourly air quality data sources.
type Provider interface {
	// FetchHourly returns up to q.Hours of the most recent complete hours, oldest first.
	FetchHourly(ctx context.Context, q Query) (Series, error)

	// Name returns the provider name for logging.
	Name() string
}

// FetchRecorder receives gateway fetch outcomes. It is satisfied by telemetry.GatewayMetrics.
type FetchRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordFallback(provider, reason string)
}

// ServiceConfig holds configuration for the air quality gateway.
type ServiceConfig struct {
	// Provider is the live data source. When nil every request uses mock data.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Timeout bounds a single upstream fetch (default: 30 seconds).
	Timeout time.Duration

	// Metrics is optional.
	Metrics FetchRecorder

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Service fetches hourly series and substitutes mock data when the live source
// fails, times out, or returns nothing usable. It never retries.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	timeout  time.Duration
	metrics  FetchRecorder
	now      func() time.Time
}

// NewService creates a new air quality gateway.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		timeout:  timeout,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// ProviderName returns the live provider's name, or "mock".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return string(SourceMock)
	}
	return s.provider.Name()
}

// Fetch returns live data for q, or mock data if the live source is unusable.
// Only invalid coordinates and a non-positive hour count are errors.
func (s *Service) Fetch(ctx context.Context, q Query) (*Fetched, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Hours <= 0 {
		return nil, ErrDataUnavailable
	}

	series, degraded := s.fetchLive(ctx, q).
		Validate(usable).
		OrElse(func(err error) Series {
			s.logger.Warn().
				Err(err).
				Float64("lat", q.Lat).
				Float64("lon", q.Lon).
				Msg("using mock air quality data")
			if s.metrics != nil {
				s.metrics.RecordFallback(s.ProviderName(), fallbackReason(err))
			}
			return GenerateMock(s.now(), q.Hours, NewRand())
		})

	if len(series) == 0 {
		return nil, ErrDataUnavailable
	}

	source := SourceLive
	if degraded {
		source = SourceMock
	}

	return &Fetched{
		Series:    series,
		Source:    source,
		Degraded:  degraded,
		FetchedAt: s.now(),
	}, nil
}

func (s *Service) fetchLive(ctx context.Context, q Query) fallback.Result[Series] {
	if s.provider == nil {
		return fallback.Fail[Series](ErrProviderUnavailable)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug().
		Float64("lat", q.Lat).
		Float64("lon", q.Lon).
		Int("hours", q.Hours).
		Str("provider", s.provider.Name()).
		Msg("fetching hourly air quality")

	start := time.Now()
	series, err := s.provider.FetchHourly(fetchCtx, q)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), "fetch_hourly", time.Since(start), err)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("provider", s.provider.Name()).Msg("failed to fetch air quality")
		return fallback.Fail[Series](fmt.Errorf("%w: %w", ErrProviderUnavailable, err))
	}

	if len(series) < q.Hours {
		s.logger.Warn().
			Int("hours", len(series)).
			Int("requested", q.Hours).
			Msg("provider returned fewer hours than requested")
	}
	if len(series) > q.Hours {
		series = series[len(series)-q.Hours:]
	}
	return fallback.Ok(series)
}

// usable rejects empty and all-zero series.
func usable(s Series) error {
	if s.AllZeroAQI() {
		return ErrNoMeasurements
	}
	return nil
}

func fallbackReason(err error) string {
	if errors.Is(err, ErrNoMeasurements) {
		return "no_data"
	}
	return "provider_error"
}
