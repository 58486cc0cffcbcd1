package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/aqicast/aqicast/internal/api/middleware"
	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/api/response"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/provider/resilience"
)

// storePingTimeout bounds the database check in SystemStatus.
const storePingTimeout = 2 * time.Second

// Pinger checks a dependency. It is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	forecasts *forecast.Service
	providers *resilience.Registry
	store     Pinger
}

// NewOpsHandler creates a new OpsHandler. providers and store may be nil.
func NewOpsHandler(version string, forecasts *forecast.Service, providers *resilience.Registry, store Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		forecasts: forecasts,
		providers: providers,
		store:     store,
	}
}

// SystemStatus handles GET /ops/status - model, store and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Version:    h.version,
		Operator:   middleware.GetOperator(r.Context()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	loaded := 0
	for _, m := range h.forecasts.Models() {
		sub := models.SubsystemStatus{Name: "model:" + m.Name, Status: models.HealthStatusOK}
		if m.Loaded {
			loaded++
		} else {
			detail := m.LoadError
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
		status.Subsystems = append(status.Subsystems, sub)
	}
	if loaded == 0 {
		status.Status = models.HealthStatusFail
	}

	if h.store != nil {
		sub := models.SubsystemStatus{Name: "forecast-store", Status: models.HealthStatusOK}
		ctx, cancel := context.WithTimeout(r.Context(), storePingTimeout)
		err := h.store.Ping(ctx)
		cancel()
		if err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = worse(status.Status, models.HealthStatusDegraded)
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.providers != nil {
		for _, up := range h.providers.All() {
			ps := providerStatus(up)
			if ps.Status != models.HealthStatusOK {
				// Upstream trouble only degrades: requests fall back to mock data.
				status.Status = worse(status.Status, models.HealthStatusDegraded)
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(up resilience.Health) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     up.Name,
		Kind:         string(up.Kind),
		Status:       models.HealthStatusOK,
		CircuitState: up.State.String(),
	}
	switch up.Status() {
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	case resilience.StatusUnhealthy:
		ps.Status = models.HealthStatusFail
	}
	if up.LastSuccessAt != nil {
		ts := models.Timestamp(*up.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if up.LastFailureAt != nil {
		ts := models.Timestamp(*up.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if up.LastError != "" {
		msg := up.LastError
		ps.Message = &msg
	}
	return ps
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
