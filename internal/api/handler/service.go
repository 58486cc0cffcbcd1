// Package handler provides HTTP handlers for the aqicast API.
package handler

import (
	"net/http"
	"time"

	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/api/response"
	"github.com/aqicast/aqicast/internal/forecast"
)

// ServiceName is reported by the informational endpoints.
const ServiceName = "AQI Prediction API"

// ServiceHandler handles the informational endpoints.
type ServiceHandler struct {
	version   string
	forecasts *forecast.Service
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(version string, forecasts *forecast.Service) *ServiceHandler {
	return &ServiceHandler{
		version:   version,
		forecasts: forecasts,
	}
}

// Root handles GET / - service description.
func (h *ServiceHandler) Root(w http.ResponseWriter, r *http.Request) {
	info := models.ServiceInfo{
		Message: ServiceName,
		Version: h.version,
		Status:  "online",
		Endpoints: map[string]string{
			"live_data":            "/live_data",
			"predict":              "/predict_live/{model_name}",
			"predict_from_current": "/predict_from_current/{model_name}",
			"predict_history":      "/predict/{model_name}",
			"aqi":                  "/aqi",
			"forecasts":            "/forecasts",
			"models":               "/models",
			"health":               "/health",
		},
		AvailableModels: h.forecasts.AvailableModels(),
		Features: []string{
			"Real-time air quality data from Open-Meteo API",
			"AQI predictions for 8h, 12h, and 24h ahead",
			"Multiple ML model options",
			"Fallback mock data when external APIs fail",
		},
	}
	response.JSON(w, r, http.StatusOK, info)
}

// Health handles GET /health - liveness with model status.
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	available := h.forecasts.AvailableModels()
	health := models.Health{
		Status:          "healthy",
		Timestamp:       models.Timestamp(time.Now()),
		ModelsLoaded:    len(available),
		AvailableModels: available,
		Service:         ServiceName,
		Version:         h.version,
	}
	response.JSON(w, r, http.StatusOK, health)
}

// Healthz handles GET /healthz - bare liveness check.
func (h *ServiceHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Liveness{Status: "ok"})
}

// Models handles GET /models - registered backends and their load status.
func (h *ServiceHandler) Models(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewModelsResponse(h.forecasts.Models(), h.forecasts.AvailableModels()))
}
