package models

import "github.com/aqicast/aqicast/internal/prediction"

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Message         string            `json:"message"`
	Version         string            `json:"version"`
	Status          string            `json:"status"`
	Endpoints       map[string]string `json:"endpoints"`
	AvailableModels []string          `json:"available_models"`
	Features        []string          `json:"features"`
}

// Health is returned by GET /health.
type Health struct {
	Status          string    `json:"status"`
	Timestamp       Timestamp `json:"timestamp"`
	ModelsLoaded    int       `json:"models_loaded"`
	AvailableModels []string  `json:"available_models"`
	Service         string    `json:"service"`
	Version         string    `json:"version"`
}

// Liveness is returned by GET /healthz.
type Liveness struct {
	Status string `json:"status"`
}

// ModelInfo describes one registered backend.
type ModelInfo struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	BestFor     string `json:"best_for"`
	Loaded      bool   `json:"loaded"`
	Error       string `json:"error,omitempty"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	AvailableModels []string             `json:"available_models"`
	ModelCount      int                  `json:"model_count"`
	Status          string               `json:"status"`
	ModelInfo       map[string]ModelInfo `json:"model_info"`
}

// NewModelsResponse converts the registry listing.
func NewModelsResponse(infos []prediction.ModelInfo, available []string) ModelsResponse {
	resp := ModelsResponse{
		AvailableModels: available,
		ModelCount:      len(available),
		Status:          "loaded",
		ModelInfo:       make(map[string]ModelInfo, len(infos)),
	}
	if len(available) == 0 {
		resp.Status = "loading"
	}
	for _, m := range infos {
		resp.ModelInfo[m.Name] = ModelInfo{
			Kind:        string(m.Kind),
			Description: m.Description,
			BestFor:     m.BestFor,
			Loaded:      m.Loaded,
			Error:       m.LoadError,
		}
	}
	return resp
}

// SystemStatus is returned by GET /ops/status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Version    string            `json:"version"`
	Operator   string            `json:"operator"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SubsystemStatus represents the status of a subsystem such as a model backend.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Kind          string       `json:"kind"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
