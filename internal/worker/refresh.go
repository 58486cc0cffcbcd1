package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/forecast"
)

// Refresh errors.
var (
	ErrNoModels  = errors.New("no models available")
	ErrNoTargets = errors.New("no refresh targets configured")
)

// healthCheckTimeout bounds the single forecast run by HealthCheck.
const healthCheckTimeout = 10 * time.Second

// Forecaster runs live forecasts. It is satisfied by *forecast.Service.
type Forecaster interface {
	AvailableModels() []string
	PredictLive(ctx context.Context, model string, q airquality.Query) (*forecast.Forecast, error)
}

// RefreshJob precomputes forecasts for every target and model.
type RefreshJob struct {
	config     RefreshConfig
	logger     zerolog.Logger
	forecaster Forecaster

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulForecasts int64
	FailedForecasts     int64
	FallbackForecasts   int64
	MockSourced         int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config     RefreshConfig
	Logger     zerolog.Logger
	Forecaster Forecaster
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:     cfg.Config.withDefaults(),
		logger:     cfg.Logger,
		forecaster: cfg.Forecaster,
		metrics:    &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Total      int
	Successful int
	Failed     int

	// Fallbacks counts successful forecasts whose backend failed.
	Fallbacks int

	// MockSourced counts successful forecasts computed on mock data.
	MockSourced int

	Errors []RefreshError
}

// RefreshError describes one failed forecast.
type RefreshError struct {
	Target string
	Model  string
	Error  string
}

type task struct {
	target RefreshTarget
	model  string
}

// Run forecasts every target with models, or with every loaded model when
// models is empty. Individual failures are collected, never fatal.
func (j *RefreshJob) Run(ctx context.Context, models ...string) *RefreshResult {
	start := time.Now()
	result := &RefreshResult{StartTime: start}

	if len(models) == 0 {
		models = j.config.Models
	}
	if len(models) == 0 {
		models = j.forecaster.AvailableModels()
	}

	tasks := make([]task, 0, len(j.config.Targets)*len(models))
	for _, target := range j.config.Targets {
		for _, model := range models {
			tasks = append(tasks, task{target: target, model: model})
		}
	}
	result.Total = len(tasks)

	j.logger.Info().
		Int("targets", len(j.config.Targets)).
		Strs("models", models).
		Int("concurrency", j.config.Concurrency).
		Msg("starting forecast refresh")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)

	for _, t := range tasks {
		g.Go(func() error {
			f, err := j.refresh(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, RefreshError{
					Target: t.target.Name,
					Model:  t.model,
					Error:  err.Error(),
				})
				return nil
			}
			result.Successful++
			if f.Result.Fallback {
				result.Fallbacks++
			}
			if f.Source == airquality.SourceMock {
				result.MockSourced++
			}
			return nil
		})
	}
	_ = g.Wait()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("fallbacks", result.Fallbacks).
		Int("mock_sourced", result.MockSourced).
		Msg("forecast refresh completed")

	return result
}

func (j *RefreshJob) refresh(ctx context.Context, t task) (*forecast.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	f, err := j.forecaster.PredictLive(taskCtx, t.model, airquality.Query{
		Lat:   t.target.Location.Lat,
		Lon:   t.target.Location.Lon,
		Hours: j.config.Hours,
	})
	if err != nil {
		j.logger.Warn().
			Err(err).
			Str("target", t.target.Name).
			Str("model", t.model).
			Msg("forecast refresh failed")
		return nil, err
	}
	return f, nil
}

// HealthCheck runs one forecast for the first target with the first loaded model.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	if len(j.config.Targets) == 0 {
		return ErrNoTargets
	}
	models := j.forecaster.AvailableModels()
	if len(models) == 0 {
		return ErrNoModels
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	f, err := j.refresh(ctx, task{target: j.config.Targets[0], model: models[0]})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	j.logger.Debug().
		Str("model", models[0]).
		Str("source", string(f.Source)).
		Bool("fallback", f.Result.Fallback).
		Msg("health check passed")
	return nil
}

// RunEvery runs the job immediately and then every interval until ctx is done.
func (j *RefreshJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulForecasts += int64(result.Successful)
	j.metrics.FailedForecasts += int64(result.Failed)
	j.metrics.FallbackForecasts += int64(result.Fallbacks)
	j.metrics.MockSourced += int64(result.MockSourced)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulForecasts: j.metrics.SuccessfulForecasts,
		FailedForecasts:     j.metrics.FailedForecasts,
		FallbackForecasts:   j.metrics.FallbackForecasts,
		MockSourced:         j.metrics.MockSourced,
		LastRunAt:           j.metrics.LastRunAt,
		LastRunDuration:     j.metrics.LastRunDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":           m.TotalRuns,
		"successful_forecasts": m.SuccessfulForecasts,
		"failed_forecasts":     m.FailedForecasts,
		"fallback_forecasts":   m.FallbackForecasts,
		"mock_sourced":         m.MockSourced,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_duration":       m.TotalDuration.String(),
	}
}
