package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aqicast/aqicast/internal/api/middleware"

// Tracing starts a server span per request, continuing any W3C trace context
// sent by the caller.
//
// The span is named "METHOD /path" until routing completes and is then renamed
// to the chi route pattern, so model names and forecast ids stay out of span
// names. Both end up as attributes instead.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r, serviceName)...),
			)
			defer span.End()

			if id := GetRequestID(ctx); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}

			wrapped := recordStatus(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(wrapped, r)

			annotate(span, r, wrapped)
		})
	}
}

func requestAttributes(r *http.Request, serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme(r)),
		attribute.String("url.path", r.URL.Path),
		attribute.String("server.address", r.Host),
		attribute.String("client.address", r.RemoteAddr),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, attribute.String("url.query", r.URL.RawQuery))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}

// annotate records what the router and handler decided once the response is written.
func annotate(span trace.Span, r *http.Request, rec *statusRecorder) {
	if route := routePattern(r); route != "unmatched" {
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
	}
	if model := chi.URLParam(r, "modelName"); model != "" {
		span.SetAttributes(attribute.String("aqicast.model", model))
	}
	if src := rec.Header().Get(DataSourceHeader); src != "" {
		span.SetAttributes(attribute.String("aqicast.data_source", src))
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", rec.statusCode),
		attribute.Int64("http.response.body.size", rec.written),
	)
	if rec.statusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
	}
}

func scheme(r *http.Request) string {
	switch {
	case r.TLS != nil:
		return "https"
	case r.Header.Get("X-Forwarded-Proto") != "":
		return r.Header.Get("X-Forwarded-Proto")
	default:
		return "http"
	}
}
