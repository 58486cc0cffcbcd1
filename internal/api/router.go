// Package api provides the HTTP API for aqicast.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/api/handler"
	"github.com/aqicast/aqicast/internal/api/middleware"
	"github.com/aqicast/aqicast/internal/auth"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Forecasts *forecast.Service

	// DefaultLocation is used when a request omits its coordinates.
	DefaultLocation forecast.Location

	// Tokens validates operator bearer tokens. Nil disables /ops/status.
	Tokens *auth.JWTService

	// Providers and Store feed /ops/status. Both are optional.
	Providers *resilience.Registry
	Store     handler.Pinger

	CORSAllowedOrigins []string
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqicast-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))           // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))         // Panic recovery
	r.Use(chimiddleware.RealIP)                    // Real IP extraction
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins)) // Cross-origin access for the web client
	r.Use(middleware.SecurityHeaders)              // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))   // TLS enforcement
	r.Use(middleware.ContentTypeJSON)              // JSON content type
	r.Use(middleware.RequireJSON)                  // JSON request bodies

	serviceHandler := handler.NewServiceHandler(cfg.Version, cfg.Forecasts)
	forecastHandler := handler.NewForecastHandler(cfg.Forecasts, cfg.DefaultLocation, cfg.Logger)
	aqiHandler := handler.NewAQIHandler()
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.Forecasts, cfg.Providers, cfg.Store)

	predictionRateLimit := middleware.RateLimitByIP(middleware.PredictionRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)     // 100 req/min

	// Informational endpoints (public, unlimited for platform health checks)
	r.Get("/", serviceHandler.Root)
	r.Get("/health", serviceHandler.Health)
	r.Get("/healthz", serviceHandler.Healthz)

	// Upstream fetches and model calls - strict rate limiting
	r.Group(func(r chi.Router) {
		r.Use(predictionRateLimit)
		r.Get("/live_data", forecastHandler.LiveData)
		r.Get("/predict_live/{modelName}", forecastHandler.PredictLive)
		r.Post("/predict_from_current/{modelName}", forecastHandler.PredictFromCurrent)
		r.Post("/predict/{modelName}", forecastHandler.PredictHistory)
	})

	// Cheap reads and the calculator - standard rate limiting
	r.Group(func(r chi.Router) {
		r.Use(standardRateLimit)
		r.Get("/models", serviceHandler.Models)
		r.Post("/aqi", aqiHandler.Calculate)
		r.Route("/forecasts", func(r chi.Router) {
			r.Get("/", forecastHandler.ListForecasts)
			r.Get("/{forecastId}", forecastHandler.GetForecast)
		})
	})

	// Ops endpoints (operator token)
	var tokens middleware.TokenAuthorizer
	if cfg.Tokens != nil {
		tokens = cfg.Tokens
	}
	r.Route("/ops", func(r chi.Router) {
		r.Use(middleware.RequireOperator(tokens, auth.ScopeOps))
		r.Use(middleware.RateLimitByOperator(middleware.OpsRateLimit)) // 20 req/min per operator
		r.Get("/status", opsHandler.SystemStatus)
	})

	return r
}
