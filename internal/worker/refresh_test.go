package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
	"github.com/aqicast/aqicast/internal/worker"
)

// stubForecaster records calls and fails for models listed in failing.
type stubForecaster struct {
	models  []string
	failing map[string]bool
	source  airquality.Source
	delay   time.Duration

	mu      sync.Mutex
	queries []airquality.Query

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubForecaster) AvailableModels() []string { return s.models }

func (s *stubForecaster) PredictLive(ctx context.Context, model string, q airquality.Query) (*forecast.Forecast, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failing[model] {
		return nil, prediction.ErrModelUnavailable
	}

	source := s.source
	if source == "" {
		source = airquality.SourceLive
	}
	return &forecast.Forecast{
		Result: prediction.NewResult(model, [3]float64{60, 61, 63}, prediction.ConfidenceHigh, false),
		Source: source,
	}, nil
}

var testLocations = []forecast.Location{
	{Lat: -15.7797, Lon: -47.9297},
	{Lat: -23.5505, Lon: -46.6333},
}

func newJob(f worker.Forecaster, cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     cfg,
		Logger:     zerolog.Nop(),
		Forecaster: f,
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig(testLocations...)

	assert.Equal(t, 48, cfg.Hours)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "-15.7797,-47.9297", cfg.Targets[0].Name)
	assert.Equal(t, testLocations[1], cfg.Targets[1].Location)
}

func TestRefreshJob_Run_AllModels(t *testing.T) {
	f := &stubForecaster{models: []string{"linear_reg", "xgboost"}}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})

	result := job.Run(context.Background())

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
	require.Len(t, f.queries, 4)
	for _, q := range f.queries {
		assert.Equal(t, 48, q.Hours)
	}
}

func TestRefreshJob_Run_ExplicitModels(t *testing.T) {
	f := &stubForecaster{models: []string{"linear_reg", "xgboost"}}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations[0]), Hours: 72})

	result := job.Run(context.Background(), "xgboost")

	assert.Equal(t, 1, result.Total)
	require.Len(t, f.queries, 1)
	assert.Equal(t, 72, f.queries[0].Hours)
}

func TestRefreshJob_Run_CollectsErrors(t *testing.T) {
	f := &stubForecaster{
		models:  []string{"linear_reg", "random_forest"},
		failing: map[string]bool{"random_forest": true},
		source:  airquality.SourceMock,
	}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.MockSourced)
	require.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Equal(t, "random_forest", e.Model)
		assert.Contains(t, e.Error, "model not loaded")
	}

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(2), m.FailedForecasts)
	assert.Equal(t, int64(2), m.MockSourced)
	assert.Equal(t, int64(2), job.MetricsSnapshot()["successful_forecasts"])
}

func TestRefreshJob_Run_BoundedConcurrency(t *testing.T) {
	f := &stubForecaster{models: []string{"a", "b", "c", "d", "e"}, delay: 20 * time.Millisecond}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...), Concurrency: 2})

	result := job.Run(context.Background())

	assert.Equal(t, 10, result.Successful)
	assert.LessOrEqual(t, f.maxInFlight.Load(), int32(2))
}

func TestRefreshJob_Run_ContextCancelled(t *testing.T) {
	f := &stubForecaster{models: []string{"linear_reg"}}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, f.queries)
}

func TestRefreshJob_Run_PerForecastTimeout(t *testing.T) {
	f := &stubForecaster{models: []string{"slow"}, delay: time.Second}
	job := newJob(f, worker.RefreshConfig{
		Targets: worker.TargetsFor(testLocations[0]),
		Timeout: 10 * time.Millisecond,
	})

	result := job.Run(context.Background())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, context.DeadlineExceeded.Error())
}

func TestRefreshJob_HealthCheck(t *testing.T) {
	f := &stubForecaster{models: []string{"linear_reg", "xgboost"}}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})

	require.NoError(t, job.HealthCheck(context.Background()))
	require.Len(t, f.queries, 1)
	assert.Equal(t, testLocations[0].Lat, f.queries[0].Lat)

	empty := newJob(&stubForecaster{}, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})
	assert.ErrorIs(t, empty.HealthCheck(context.Background()), worker.ErrNoModels)

	noTargets := newJob(f, worker.RefreshConfig{})
	assert.ErrorIs(t, noTargets.HealthCheck(context.Background()), worker.ErrNoTargets)

	failing := newJob(&stubForecaster{models: []string{"x"}, failing: map[string]bool{"x": true}},
		worker.RefreshConfig{Targets: worker.TargetsFor(testLocations...)})
	assert.True(t, errors.Is(failing.HealthCheck(context.Background()), prediction.ErrModelUnavailable))
}

func TestRefreshJob_RunEvery_StopsOnCancel(t *testing.T) {
	f := &stubForecaster{models: []string{"linear_reg"}}
	job := newJob(f, worker.RefreshConfig{Targets: worker.TargetsFor(testLocations[0])})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.RunEvery(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.GetMetrics().TotalRuns == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not return after cancel")
	}
}
