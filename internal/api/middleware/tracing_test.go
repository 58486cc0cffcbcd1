package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/aqicast/aqicast/internal/api/middleware"
)

// recordSpans installs a recording tracer provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return sr
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_StartsServerSpan(t *testing.T) {
	sr := recordSpans(t)

	handler := middleware.Tracing("aqicast-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/models", http.NoBody))

	span := onlySpan(t, sr)
	assert.Equal(t, "GET /models", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	service, ok := spanAttr(span, "service.name")
	require.True(t, ok)
	assert.Equal(t, "aqicast-api", service.AsString())

	_, ok = spanAttr(span, "url.query")
	assert.False(t, ok, "empty query should not be recorded")
}

func TestTracing_ContinuesCallerTrace(t *testing.T) {
	sr := recordSpans(t)

	handler := middleware.Tracing("aqicast-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, sr)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
}

func TestTracing_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantError bool
	}{
		{"ok", http.StatusOK, false},
		{"unknown model", http.StatusNotFound, false},
		{"bad input", http.StatusBadRequest, false},
		{"upstream failure", http.StatusBadGateway, true},
		{"internal", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)

			handler := middleware.Tracing("aqicast-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/aqi", http.NoBody))

			span := onlySpan(t, sr)
			code, ok := spanAttr(span, "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), code.AsInt64())

			if tt.wantError {
				assert.Equal(t, codes.Error, span.Status().Code)
				assert.Equal(t, http.StatusText(tt.status), span.Status().Description)
			} else {
				assert.Equal(t, codes.Unset, span.Status().Code)
			}
		})
	}
}

func TestTracing_RecordsRequestID(t *testing.T) {
	sr := recordSpans(t)

	handler := middleware.RequestID(
		middleware.Tracing("aqicast-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	id, ok := spanAttr(onlySpan(t, sr), "request.id")
	require.True(t, ok)
	assert.Contains(t, id.AsString(), "req_")
}

func TestTracing_RenamesToRouteAndTagsPrediction(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("aqicast-api"))
	r.Get("/predict_live/{modelName}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(middleware.DataSourceHeader, "mock")
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/predict_live/lstm?hours=48", http.NoBody))

	span := onlySpan(t, sr)
	assert.Equal(t, "GET /predict_live/{modelName}", span.Name())

	want := map[attribute.Key]string{
		"http.route":          "/predict_live/{modelName}",
		"aqicast.model":       "lstm",
		"aqicast.data_source": "mock",
		"url.query":           "hours=48",
	}
	for key, value := range want {
		got, ok := spanAttr(span, key)
		if assert.True(t, ok, "%s should be set", key) {
			assert.Equal(t, value, got.AsString(), key)
		}
	}
}
