package forecast_test

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
)

var testNow = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

// stubGateway returns a fixed fetch result and counts calls.
type stubGateway struct {
	fetched *airquality.Fetched
	err     error
	calls   int
	last    airquality.Query
}

func (g *stubGateway) Fetch(_ context.Context, q airquality.Query) (*airquality.Fetched, error) {
	g.calls++
	g.last = q
	return g.fetched, g.err
}

func liveFetch(hours int, source airquality.Source) *airquality.Fetched {
	return &airquality.Fetched{
		Series:    airquality.GenerateMock(testNow, hours, rand.New(rand.NewPCG(3, 4))),
		Source:    source,
		Degraded:  source == airquality.SourceMock,
		FetchedAt: testNow,
	}
}

// echoBackend returns the latest AQI as a scalar.
func echoBackend() prediction.Backend {
	return prediction.BackendFunc(func(_ context.Context, in prediction.Input) (prediction.Output, error) {
		return prediction.Scalar(in.CurrentAQI()), nil
	})
}

func newService(t *testing.T, gw forecast.Gateway, repo forecast.Repository) *forecast.Service {
	t.Helper()
	reg := prediction.NewRegistry(
		prediction.Registration{Name: "echo", Backend: echoBackend()},
		prediction.Registration{Name: "broken", Err: errors.New("artifact missing")},
	)
	return forecast.NewService(forecast.ServiceConfig{
		Gateway:    gw,
		Adapter:    prediction.NewAdapter(prediction.AdapterConfig{Registry: reg, Logger: zerolog.New(io.Discard)}),
		Repository: repo,
		Logger:     zerolog.New(io.Discard),
		Now:        func() time.Time { return testNow },
		NewRand:    func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) },
	})
}

func TestService_PredictLive(t *testing.T) {
	gw := &stubGateway{fetched: liveFetch(48, airquality.SourceLive)}
	repo := forecast.NewInMemoryRepository(10)
	svc := newService(t, gw, repo)

	q := airquality.Query{Lat: -15.7797, Lon: -47.9297, Hours: 48}
	f, err := svc.PredictLive(context.Background(), "echo", q)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(f.ID, "fc_"), f.ID)
	assert.Equal(t, q, gw.last)
	assert.Equal(t, forecast.Location{Lat: -15.7797, Lon: -47.9297}, f.Location)
	assert.Equal(t, "echo", f.Result.Model)
	assert.Equal(t, prediction.ConfidenceHigh, f.Result.Confidence)
	assert.Equal(t, 48, f.InputHours)
	assert.Equal(t, 48, f.RealHours)
	assert.Equal(t, airquality.SourceLive, f.Source)

	latest, _ := gw.fetched.Series.Latest()
	assert.Equal(t, latest.AQI, f.Current.AQI)
	assert.Equal(t, latest.Timestamp, f.Current.ObservedAt)
	assert.Equal(t, gw.fetched.Series.Trend(), f.Current.Trend)
	assert.InDelta(t, latest.AQI, f.Result.At(prediction.Horizon8h).AQI, 0.05)

	stored, err := svc.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Result, stored.Result)
}

func TestService_PredictLive_MockDataLowersConfidence(t *testing.T) {
	svc := newService(t, &stubGateway{fetched: liveFetch(48, airquality.SourceMock)}, nil)

	f, err := svc.PredictLive(context.Background(), "echo", airquality.Query{Hours: 48})
	require.NoError(t, err)

	assert.Equal(t, airquality.SourceMock, f.Source)
	assert.Equal(t, prediction.ConfidenceReduced, f.Result.Confidence)
}

func TestService_PredictLive_ShortHistoryIsPadded(t *testing.T) {
	svc := newService(t, &stubGateway{fetched: liveFetch(10, airquality.SourceLive)}, nil)

	f, err := svc.PredictLive(context.Background(), "echo", airquality.Query{Hours: 10})
	require.NoError(t, err)

	assert.Equal(t, 10, f.InputHours)
	assert.Equal(t, 10, f.RealHours)
	assert.Equal(t, prediction.ConfidenceReduced, f.Result.Confidence)
}

func TestService_PredictLive_ModelCheckedBeforeFetch(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  error
	}{
		{"unknown model", "prophet", prediction.ErrModelNotFound},
		{"unavailable model", "broken", prediction.ErrModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{fetched: liveFetch(48, airquality.SourceLive)}
			svc := newService(t, gw, nil)

			_, err := svc.PredictLive(context.Background(), tt.model, airquality.Query{Hours: 48})
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, gw.calls)
		})
	}
}

func TestService_PredictLive_GatewayError(t *testing.T) {
	svc := newService(t, &stubGateway{err: airquality.ErrInvalidCoordinates}, nil)

	_, err := svc.PredictLive(context.Background(), "echo", airquality.Query{Lat: 91, Hours: 48})
	assert.ErrorIs(t, err, airquality.ErrInvalidCoordinates)
}

func TestService_PredictFromCurrent(t *testing.T) {
	svc := newService(t, &stubGateway{}, nil)
	current := airquality.Pollutants{PM25: 35, PM10: 50, CO: 1200, NO2: 30, SO2: 8, O3: 60}

	f, err := svc.PredictFromCurrent(context.Background(), "echo", forecast.Location{}, current)
	require.NoError(t, err)

	assert.Equal(t, airquality.SourceClient, f.Source)
	assert.Equal(t, 1, f.RealHours)
	assert.Equal(t, prediction.ConfidenceReduced, f.Result.Confidence)

	// The synthesized final row is scaled by 0.8 + 11*0.05.
	assert.Equal(t, current.Scale(0.8+11*0.05), f.Current.Pollutants)
	assert.Equal(t, testNow.Add(-time.Hour), f.Current.ObservedAt)
}

func TestService_PredictHistory(t *testing.T) {
	svc := newService(t, &stubGateway{}, nil)

	history := make(airquality.Series, 30)
	for i := range history {
		history[i] = airquality.Observation{
			Pollutants: airquality.Pollutants{PM25: 12, PM10: 20},
			Timestamp:  testNow.Add(-time.Duration(30-i) * time.Hour),
		}
	}

	f, err := svc.PredictHistory(context.Background(), "echo", forecast.Location{Lat: 1, Lon: 2}, history)
	require.NoError(t, err)

	assert.Equal(t, 30, f.InputHours)
	assert.Equal(t, 30, f.RealHours)
	assert.Equal(t, prediction.ConfidenceHigh, f.Result.Confidence)
	assert.InDelta(t, airquality.Calculate(history[0].Pollutants), f.Current.AQI, 1e-9, "missing AQI is derived")
	assert.Zero(t, history[0].AQI, "caller history is not modified")
}

func TestService_PredictHistory_OutOfOrder(t *testing.T) {
	svc := newService(t, &stubGateway{}, nil)

	history := airquality.Series{
		{AQI: 40, Timestamp: testNow},
		{AQI: 45, Timestamp: testNow.Add(-time.Hour)},
	}
	_, err := svc.PredictHistory(context.Background(), "echo", forecast.Location{}, history)
	assert.ErrorIs(t, err, forecast.ErrInvalidHistory)
}

func TestService_PredictHistory_Empty(t *testing.T) {
	svc := newService(t, &stubGateway{}, nil)

	f, err := svc.PredictHistory(context.Background(), "echo", forecast.Location{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, f.RealHours)
	assert.Equal(t, airquality.BaselineAQI, f.Current.AQI)
	assert.Equal(t, prediction.ConfidenceReduced, f.Result.Confidence)
}

// failingRepository rejects every write.
type failingRepository struct {
	forecast.Repository
}

func (failingRepository) Save(context.Context, *forecast.Forecast) error {
	return errors.New("database down")
}

func TestService_StoreFailureDoesNotFailPrediction(t *testing.T) {
	repo := failingRepository{Repository: forecast.NewInMemoryRepository(1)}
	svc := newService(t, &stubGateway{fetched: liveFetch(48, airquality.SourceLive)}, repo)

	f, err := svc.PredictLive(context.Background(), "echo", airquality.Query{Hours: 48})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
}

func TestService_Models(t *testing.T) {
	svc := newService(t, &stubGateway{}, nil)

	assert.Equal(t, []string{"echo"}, svc.AvailableModels())
	assert.Len(t, svc.Models(), 2)
}

func TestService_LiveData(t *testing.T) {
	gw := &stubGateway{fetched: liveFetch(24, airquality.SourceLive)}
	svc := newService(t, gw, nil)

	got, err := svc.LiveData(context.Background(), airquality.Query{Hours: 24})
	require.NoError(t, err)
	assert.Same(t, gw.fetched, got)
}
