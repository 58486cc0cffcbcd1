package forecast

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/prediction"
)

// Service errors.
var (
	ErrInvalidHistory = errors.New("invalid history")
)

// Gateway fetches hourly history. It is satisfied by *airquality.Service.
type Gateway interface {
	Fetch(ctx context.Context, q airquality.Query) (*airquality.Fetched, error)
}

// ServiceConfig holds configuration for the forecast service.
type ServiceConfig struct {
	Gateway    Gateway
	Adapter    *prediction.Adapter
	Repository Repository
	Logger     zerolog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time

	// NewRand supplies the random source for history padding (tests).
	NewRand func() *rand.Rand
}

// Service runs the forecasting pipeline and records what it produced.
type Service struct {
	gateway Gateway
	adapter *prediction.Adapter
	repo    Repository
	logger  zerolog.Logger
	now     func() time.Time
	newRand func() *rand.Rand
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository(DefaultMemoryCapacity)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	newRand := cfg.NewRand
	if newRand == nil {
		newRand = airquality.NewRand
	}

	return &Service{
		gateway: cfg.Gateway,
		adapter: cfg.Adapter,
		repo:    repo,
		logger:  cfg.Logger,
		now:     now,
		newRand: newRand,
	}
}

// Models returns the backend registry listing.
func (s *Service) Models() []prediction.ModelInfo {
	return s.adapter.Registry().Models()
}

// AvailableModels returns the names of loaded backends.
func (s *Service) AvailableModels() []string {
	return s.adapter.Registry().Available()
}

// LiveData fetches hourly history without predicting.
func (s *Service) LiveData(ctx context.Context, q airquality.Query) (*airquality.Fetched, error) {
	return s.gateway.Fetch(ctx, q)
}

// PredictLive fetches history for q and forecasts it with the named model.
// The model is resolved before any upstream request is made.
func (s *Service) PredictLive(ctx context.Context, model string, q airquality.Query) (*Forecast, error) {
	if _, err := s.adapter.Registry().Lookup(model); err != nil {
		return nil, err
	}

	fetched, err := s.gateway.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	return s.predict(ctx, model, Location{Lat: q.Lat, Lon: q.Lon}, fetched.Series, fetched.Source)
}

// PredictFromCurrent forecasts from a single set of current readings by
// synthesizing a 48 hour history around them.
func (s *Service) PredictFromCurrent(ctx context.Context, model string, loc Location, current airquality.Pollutants) (*Forecast, error) {
	if _, err := s.adapter.Registry().Lookup(model); err != nil {
		return nil, err
	}

	history := airquality.SynthesizeFromCurrent(current, s.now())
	// Only the final row is a real reading.
	n := airquality.Normalized{Series: history, RealHours: 1}
	return s.run(ctx, model, loc, history[len(history)-1:], n, airquality.SourceClient)
}

// PredictHistory forecasts from a caller-supplied history, oldest first.
// Observations with a zero AQI have it derived from their pollutants.
func (s *Service) PredictHistory(ctx context.Context, model string, loc Location, history airquality.Series) (*Forecast, error) {
	if _, err := s.adapter.Registry().Lookup(model); err != nil {
		return nil, err
	}

	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: observations must be in chronological order", ErrInvalidHistory)
		}
	}

	filled := make(airquality.Series, len(history))
	for i, o := range history {
		if o.AQI == 0 {
			o.AQI = airquality.Calculate(o.Pollutants)
		}
		filled[i] = o
	}

	return s.predict(ctx, model, loc, filled, airquality.SourceClient)
}

// Get returns a stored forecast.
func (s *Service) Get(ctx context.Context, id string) (*Forecast, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent forecasts, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Forecast, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) predict(ctx context.Context, model string, loc Location, history airquality.Series, source airquality.Source) (*Forecast, error) {
	n := airquality.Normalize(history, s.now(), s.newRand())
	return s.run(ctx, model, loc, history, n, source)
}

func (s *Service) run(
	ctx context.Context,
	model string,
	loc Location,
	history airquality.Series,
	n airquality.Normalized,
	source airquality.Source,
) (*Forecast, error) {
	in, err := prediction.NewInput(n, source)
	if err != nil {
		return nil, err
	}

	result, err := s.adapter.Predict(ctx, model, in)
	if err != nil {
		return nil, err
	}

	current := history
	if len(current) == 0 {
		current = n.Series
	}

	f := &Forecast{
		ID:         "fc_" + uuid.New().String()[:22],
		Location:   loc,
		Result:     result,
		InputHours: len(history),
		RealHours:  n.RealHours,
		Source:     source,
		Current:    conditionsOf(current),
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.Save(ctx, f); err != nil {
		s.logger.Warn().Err(err).Str("forecast_id", f.ID).Msg("failed to store forecast")
	}

	s.logger.Info().
		Str("forecast_id", f.ID).
		Str("model", model).
		Str("source", string(source)).
		Int("real_hours", n.RealHours).
		Bool("fallback", result.Fallback).
		Msg("forecast produced")

	return f, nil
}
