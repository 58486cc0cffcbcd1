package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/provider/resilience"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteSequenceConfig configures a sequence model served over HTTP.
type RemoteSequenceConfig struct {
	// Name identifies the backend in the resilience registry.
	Name string

	// Endpoint is the model server base URL; requests go to Endpoint + "/predict".
	Endpoint string

	// Timeout for a single call (default: 5s).
	Timeout time.Duration

	// HTTPClient overrides the default resilient client.
	HTTPClient HTTPDoer

	// Registry receives the default client for health reporting. Optional.
	Registry *resilience.Registry

	// Logger receives circuit breaker state changes.
	Logger zerolog.Logger
}

type sequenceRequest struct {
	Sequence [][]float64 `json:"sequence"`
}

type sequenceResponse struct {
	Hourly []float64 `json:"hourly"`
}

// RemoteSequence posts the 48 x K matrix to a model server that returns an
// hourly forecast.
type RemoteSequence struct {
	url        string
	httpClient HTTPDoer
}

// NewRemoteSequence creates a remote sequence backend.
func NewRemoteSequence(cfg RemoteSequenceConfig) (*RemoteSequence, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("remote sequence backend requires an endpoint")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		rc := resilience.ModelServerConfig("model-"+cfg.Name, timeout)
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &RemoteSequence{
		url:        strings.TrimSuffix(cfg.Endpoint, "/") + "/predict",
		httpClient: httpClient,
	}, nil
}

// Predict implements Backend.
func (r *RemoteSequence) Predict(ctx context.Context, in Input) (Output, error) {
	if in.Matrix == nil {
		return nil, errors.New("missing feature matrix")
	}

	body, err := json.Marshal(sequenceRequest{Sequence: in.Matrix.Sequence()})
	if err != nil {
		return nil, fmt.Errorf("marshal sequence: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from model server", resp.StatusCode)
	}

	var out sequenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return Hourly(out.Hourly), nil
}
