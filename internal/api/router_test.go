package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/api"
	"github.com/aqicast/aqicast/internal/api/middleware"
	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/auth"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
	"github.com/aqicast/aqicast/internal/provider/resilience"
)

const testSigningKey = "test-secret-key-for-testing-only"

// seriesProvider serves generated hourly data as if it were live.
type seriesProvider struct{}

func (seriesProvider) FetchHourly(_ context.Context, q airquality.Query) (airquality.Series, error) {
	return airquality.GenerateMock(time.Now(), q.Hours, rand.New(rand.NewPCG(7, 8))), nil
}

func (seriesProvider) Name() string { return "stub" }

type testStack struct {
	router http.Handler
	tokens *auth.JWTService
}

func newStack(t *testing.T, provider airquality.Provider, withTokens bool) *testStack {
	t.Helper()
	logger := zerolog.New(io.Discard)

	reg := prediction.NewRegistry(
		prediction.Registration{
			Name: "echo",
			Kind: prediction.KindLinearLags,
			Backend: prediction.BackendFunc(func(_ context.Context, in prediction.Input) (prediction.Output, error) {
				return prediction.Scalar(in.CurrentAQI()), nil
			}),
		},
		prediction.Registration{Name: "broken", Kind: prediction.KindRandomForest, Err: errors.New("artifact missing")},
	)

	svc := forecast.NewService(forecast.ServiceConfig{
		Gateway:    airquality.NewService(airquality.ServiceConfig{Provider: provider, Logger: logger}),
		Adapter:    prediction.NewAdapter(prediction.AdapterConfig{Registry: reg, Logger: logger}),
		Repository: forecast.NewInMemoryRepository(10),
		Logger:     logger,
	})

	s := &testStack{}
	if withTokens {
		s.tokens = auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey})
	}
	s.router = api.NewRouter(api.RouterConfig{
		Version:            "2.0.0",
		Logger:             logger,
		Forecasts:          svc,
		DefaultLocation:    forecast.Location{Lat: -15.7797, Lon: -47.9297},
		Tokens:             s.tokens,
		Providers:          resilience.NewRegistry(),
		CORSAllowedOrigins: []string{"*"},
	})
	return s
}

func (s *testStack) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Informational(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[models.Liveness](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[models.ServiceInfo](t, rec)
	assert.Equal(t, "2.0.0", info.Version)
	assert.Equal(t, []string{"echo"}, info.AvailableModels)

	rec = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[models.Health](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.ModelsLoaded)

	rec = s.do(t, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[models.ModelsResponse](t, rec)
	assert.Equal(t, 1, listing.ModelCount)
	assert.False(t, listing.ModelInfo["broken"].Loaded)
	assert.Equal(t, "artifact missing", listing.ModelInfo["broken"].Error)
}

func TestRouter_LiveData(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodGet, "/live_data?hours=6&latitude=52.37&longitude=4.89", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[models.LiveDataResponse](t, rec)
	assert.Equal(t, "mock", body.DataSource)
	assert.Equal(t, "mock", rec.Header().Get(middleware.DataSourceHeader))
	assert.Equal(t, 6, body.HoursFetched)
	assert.Len(t, body.Data, 6)
	assert.Equal(t, models.Location{Latitude: 52.37, Longitude: 4.89}, body.Location)
	assert.Less(t, body.Data[0].CarbonMonoxide, 50.0, "CO is reported in mg/m³")
}

func TestRouter_LiveData_InvalidQuery(t *testing.T) {
	s := newStack(t, nil, false)

	tests := []struct {
		query string
		field string
	}{
		{"hours=0", "hours"},
		{"hours=121", "hours"},
		{"hours=many", "hours"},
		{"latitude=91", "latitude"},
		{"longitude=east", "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/live_data?"+tt.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			p := decode[models.Problem](t, rec)
			require.Len(t, p.Errors, 1)
			assert.Equal(t, tt.field, p.Errors[0].Field)
		})
	}
}

func TestRouter_PredictLive(t *testing.T) {
	s := newStack(t, seriesProvider{}, false)

	rec := s.do(t, http.MethodGet, "/predict_live/echo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	preds := raw["predictions"].(map[string]any)
	for _, k := range []string{"aqi_8h", "aqi_12h", "aqi_24h", "8h", "12h", "24h", "confidence"} {
		assert.Contains(t, preds, k)
	}

	resp := decode[models.PredictionResponse](t, rec)
	assert.Equal(t, "echo", resp.ModelUsed)
	assert.Equal(t, "live", resp.DataSource)
	assert.Equal(t, 48, resp.InputHours)
	assert.Equal(t, prediction.ConfidenceHigh, resp.Predictions.Confidence)
	assert.Equal(t, models.Location{Latitude: -15.7797, Longitude: -47.9297}, resp.Location)
	require.NotNil(t, resp.CurrentConditions.AQI)
	assert.Equal(t, resp.Predictions.AQI8h, resp.Predictions.H8.AQI)

	// The forecast is retrievable afterwards.
	rec = s.do(t, http.MethodGet, "/forecasts/"+resp.ForecastID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.ForecastID, decode[models.PredictionResponse](t, rec).ForecastID)

	rec = s.do(t, http.MethodGet, "/forecasts?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.ForecastList](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 5, list.Meta.Limit)
}

func TestRouter_PredictLive_MockSourceReducesConfidence(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodGet, "/predict_live/echo?hours=24", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PredictionResponse](t, rec)
	assert.Equal(t, "mock", resp.DataSource)
	assert.Equal(t, prediction.ConfidenceReduced, resp.Predictions.Confidence)
}

func TestRouter_PredictErrors(t *testing.T) {
	s := newStack(t, nil, false)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown model", "/predict_live/prophet", http.StatusNotFound},
		{"model failed to load", "/predict_live/broken", http.StatusServiceUnavailable},
		{"too few hours", "/predict_live/echo?hours=12", http.StatusBadRequest},
		{"unknown forecast", "/forecasts/fc_missing", http.StatusNotFound},
		{"limit too large", "/forecasts?limit=1000", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_PredictFromCurrent(t *testing.T) {
	s := newStack(t, nil, false)
	body := map[string]float64{"pm25": 35, "pm10": 50, "co": 1.2, "o3": 80, "no2": 40, "so2": 10}

	rec := s.do(t, http.MethodPost, "/predict_from_current/echo", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.PredictionResponse](t, rec)
	assert.Equal(t, "client", resp.DataSource)
	assert.Equal(t, "client", rec.Header().Get(middleware.DataSourceHeader))
	require.NotNil(t, resp.InputData)
	require.NotNil(t, resp.InputData.CO)
	assert.Equal(t, 1.2, *resp.InputData.CO)
	assert.Equal(t, prediction.ConfidenceReduced, resp.Predictions.Confidence)

	delete(body, "so2")
	rec = s.do(t, http.MethodPost, "/predict_from_current/echo", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "so2", decode[models.Problem](t, rec).Errors[0].Field)

	rec = s.do(t, http.MethodPost, "/predict_from_current/prophet",
		map[string]float64{"pm25": 1, "pm10": 1, "co": 1, "o3": 1, "no2": 1, "so2": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PredictFromCurrent_RejectsNonJSON(t *testing.T) {
	s := newStack(t, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/predict_from_current/echo", bytes.NewBufferString("pm25=3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_PredictHistory(t *testing.T) {
	s := newStack(t, nil, false)
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	history := make([]models.Observation, 30)
	for i := range history {
		history[i] = models.Observation{
			Timestamp:      models.Timestamp(start.Add(time.Duration(i) * time.Hour)),
			PM25:           10 + float64(i%5),
			PM10:           20,
			CarbonMonoxide: 0.5,
		}
	}
	lat := 52.37
	rec := s.do(t, http.MethodPost, "/predict/echo", models.HistoryRequest{Latitude: &lat, History: history})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.PredictionResponse](t, rec)
	assert.Equal(t, 30, resp.InputHours)
	assert.Equal(t, prediction.ConfidenceHigh, resp.Predictions.Confidence)
	assert.Equal(t, 52.37, resp.Location.Latitude)
	assert.Equal(t, -47.9297, resp.Location.Longitude)

	history[3], history[4] = history[4], history[3]
	rec = s.do(t, http.MethodPost, "/predict/echo", models.HistoryRequest{History: history})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AQI(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodPost, "/aqi", map[string]any{"pm25": 10, "pm10": 20})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.AQIResponse](t, rec)
	assert.Equal(t, 41.7, resp.AQI)
	assert.Equal(t, "Good", resp.Category)
	assert.Equal(t, "default", resp.Profile)

	rec = s.do(t, http.MethodPost, "/aqi", map[string]any{"pm25": 10, "profile": "epa"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_OpsStatus(t *testing.T) {
	s := newStack(t, nil, true)

	rec := s.do(t, http.MethodGet, "/ops/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := s.tokens.Issue("oncall@aqicast", time.Hour, auth.ScopeOps)
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/ops/status", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusDegraded, status.Status, "one model failed to load")
	assert.Equal(t, "oncall@aqicast", status.Operator)
	assert.Len(t, status.Subsystems, 2)
}

func TestRouter_OpsStatus_NoSigningKey(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodGet, "/ops/status", nil, "Authorization", "Bearer whatever")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newStack(t, nil, false)

	rec := s.do(t, http.MethodOptions, "/predict_live/echo", nil,
		"Origin", "https://app.example",
		"Access-Control-Request-Method", http.MethodGet)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
