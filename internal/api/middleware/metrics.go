package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aqicast/aqicast/internal/api/middleware"

// DataSourceHeader is set by data and prediction handlers to the origin of the
// series behind the response: live, mock or client.
const DataSourceHeader = "X-Data-Source"

// sourceMock matches airquality.SourceMock without importing the domain package.
const sourceMock = "mock"

// Metrics holds the HTTP server instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	mockServed       metric.Int64Counter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFromMeter(otel.Meter(meterName))
}

// NewMetricsFromMeter creates instruments on meter.
func NewMetricsFromMeter(meter metric.Meter) (*Metrics, error) {
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mockServed, err := meter.Int64Counter(
		"aqicast.responses.mock_data",
		metric.WithDescription("Successful responses built from generated instead of measured data"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		requestsInFlight: requestsInFlight,
		mockServed:       mockServed,
	}, nil
}

// Middleware records duration, count and in-flight requests per route, tagged
// with the data source when the handler reported one.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			method := attribute.String("http.method", r.Method)
			m.requestsInFlight.Add(r.Context(), 1, metric.WithAttributes(method))
			defer m.requestsInFlight.Add(r.Context(), -1, metric.WithAttributes(method))

			wrapped := recordStatus(w)
			next.ServeHTTP(wrapped, r)

			// Model names are path parameters; the route pattern keeps cardinality bounded.
			route := attribute.String("http.route", routePattern(r))
			attrs := []attribute.KeyValue{
				method,
				route,
				attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
			}
			if wrapped.statusCode >= 400 {
				attrs = append(attrs, attribute.Bool("error", true))
			}
			source := wrapped.Header().Get(DataSourceHeader)
			if source != "" {
				attrs = append(attrs, attribute.String("aqicast.data_source", source))
			}

			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			m.requestTotal.Add(r.Context(), 1, metric.WithAttributes(attrs...))
			if source == sourceMock && wrapped.statusCode < 400 {
				m.mockServed.Add(r.Context(), 1, metric.WithAttributes(route))
			}
		})
	}
}
