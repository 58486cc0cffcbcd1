package prediction

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/fallback"
)

// PredictionRecorder receives prediction outcomes. It is satisfied by
// telemetry.PredictionMetrics.
type PredictionRecorder interface {
	RecordPrediction(model string, duration time.Duration, fallback bool)
}

// AdapterConfig holds configuration for the prediction adapter.
type AdapterConfig struct {
	// Registry holds the backends. Required.
	Registry *Registry

	// Logger for adapter operations.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics PredictionRecorder

	// NewRand supplies the random source for fallback estimates (tests).
	NewRand func() *rand.Rand
}

// Adapter runs a named backend and normalizes its output.
type Adapter struct {
	registry *Registry
	logger   zerolog.Logger
	metrics  PredictionRecorder
	newRand  func() *rand.Rand
}

// NewAdapter creates a new prediction adapter.
func NewAdapter(cfg AdapterConfig) *Adapter {
	newRand := cfg.NewRand
	if newRand == nil {
		newRand = airquality.NewRand
	}
	return &Adapter{
		registry: cfg.Registry,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		newRand:  newRand,
	}
}

// Registry returns the adapter's backend registry.
func (a *Adapter) Registry() *Registry {
	return a.registry
}

// Predict forecasts AQI at 8, 12 and 24 hours with the named backend.
//
// Unknown names return ErrModelNotFound and backends that failed to load
// return ErrModelUnavailable without being called. Any error from the backend
// itself, or output that cannot be normalized, yields a fallback estimate
// around the current AQI with ConfidenceFallback and Fallback set.
func (a *Adapter) Predict(ctx context.Context, name string, in Input) (Result, error) {
	backend, err := a.registry.Lookup(name)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	values, degraded := run(ctx, backend, in).
		OrElse(func(err error) [3]float64 {
			a.logger.Warn().
				Err(err).
				Str("model", name).
				Float64("current_aqi", in.CurrentAQI()).
				Msg("model prediction failed, using fallback estimate")
			return FallbackEstimate(in.CurrentAQI(), a.newRand())
		})

	if a.metrics != nil {
		a.metrics.RecordPrediction(name, time.Since(start), degraded)
	}

	confidence := in.confidence()
	if degraded {
		confidence = ConfidenceFallback
	}
	return NewResult(name, values, confidence, degraded), nil
}

func run(ctx context.Context, b Backend, in Input) (res fallback.Result[[3]float64]) {
	defer func() {
		if r := recover(); r != nil {
			res = fallback.Fail[[3]float64](errors.New("backend panicked"))
		}
	}()

	out, err := b.Predict(ctx, in)
	if err != nil {
		return fallback.Fail[[3]float64](err)
	}
	if out == nil {
		return fallback.Fail[[3]float64](ErrInvalidOutput)
	}
	return fallback.Try(out.horizons())
}
