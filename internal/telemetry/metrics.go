package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter name for the pipeline's own instruments.
const InstrumentationName = "github.com/aqicast/aqicast/internal/telemetry"

// GatewayMetrics records upstream data fetches and mock fallbacks.
type GatewayMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	fallbackTotal   metric.Int64Counter
}

// NewGatewayMetrics creates metrics for the air quality gateway on meter.
func NewGatewayMetrics(meter metric.Meter) (*GatewayMetrics, error) {
	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackTotal, err := meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Requests served from generated data after a provider failure"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fallbackTotal:   fallbackTotal,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *GatewayMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// The request context may already be cancelled (timeouts are a recorded outcome).
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFallback records a switch to generated data.
func (m *GatewayMetrics) RecordFallback(provider, reason string) {
	m.fallbackTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("fallback.reason", reason),
	))
}

// PredictionMetrics records forecast model invocations.
type PredictionMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// NewPredictionMetrics creates metrics for the prediction adapter on meter.
func NewPredictionMetrics(meter metric.Meter) (*PredictionMetrics, error) {
	duration, err := meter.Float64Histogram(
		"prediction.duration",
		metric.WithDescription("Duration of model predictions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"prediction.total",
		metric.WithDescription("Total number of predictions"),
		metric.WithUnit("{prediction}"),
	)
	if err != nil {
		return nil, err
	}

	return &PredictionMetrics{duration: duration, total: total}, nil
}

// RecordPrediction records one prediction and whether its result was the fallback estimate.
func (m *PredictionMetrics) RecordPrediction(model string, duration time.Duration, fallback bool) {
	attrs := metric.WithAttributes(
		attribute.String("model.name", model),
		attribute.Bool("prediction.fallback", fallback),
	)
	ctx := context.Background()
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
}
