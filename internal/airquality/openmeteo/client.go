// Package openmeteo provides a client for the Open-Meteo air quality API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Open-Meteo air quality API.
	DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1"

	// ProviderName identifies this provider.
	ProviderName = "open-meteo"

	// hourlyFields is the hourly variable list requested from the API.
	hourlyFields = "pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone"

	// lookbackDays is how far before today the request window starts.
	lookbackDays = 3

	// timeLayout is the API's hourly timestamp format (no zone; GMT requested).
	timeLayout = "2006-01-02T15:04"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a single-attempt resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for the API request (default: 30s).
	Timeout time.Duration

	// Registry receives the default client for health reporting. Optional.
	Registry *resilience.Registry

	// Logger receives circuit breaker state changes.
	Logger zerolog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an Open-Meteo air quality API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	now        func() time.Time
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		rc := resilience.DataSourceConfig(ProviderName, timeout)
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types. Each hourly variable is a parallel array aligned with
// Time; missing readings are null.

type airQualityResponse struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Hourly    hourlyBlock `json:"hourly"`
}

type hourlyBlock struct {
	Time           []string   `json:"time"`
	PM10           []*float64 `json:"pm10"`
	PM25           []*float64 `json:"pm2_5"`
	CarbonMonoxide []*float64 `json:"carbon_monoxide"`
	NO2            []*float64 `json:"nitrogen_dioxide"`
	SO2            []*float64 `json:"sulphur_dioxide"`
	Ozone          []*float64 `json:"ozone"`
}

// FetchHourly retrieves the most recent q.Hours complete hours, oldest first.
// Hours where any pollutant is null, and hours after now, are skipped.
func (c *Client) FetchHourly(ctx context.Context, q airquality.Query) (airquality.Series, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(q), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from air-quality endpoint", resp.StatusCode)
	}

	var result airQualityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode air-quality response: %w", err)
	}

	series := c.toSeries(&result.Hourly, q.Hours)
	if len(series) == 0 {
		return nil, airquality.ErrNoMeasurements
	}
	return series, nil
}

func (c *Client) requestURL(q airquality.Query) string {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("hourly", hourlyFields)
	params.Set("start_date", start.Format(time.DateOnly))
	params.Set("end_date", end.Format(time.DateOnly))
	params.Set("timezone", "GMT")

	return c.baseURL + "/air-quality?" + params.Encode()
}

// toSeries walks the hourly arrays from the newest entry backwards and keeps
// up to limit complete, non-future hours.
func (c *Client) toSeries(h *hourlyBlock, limit int) airquality.Series {
	now := c.now()
	n := len(h.Time)
	for _, col := range [][]*float64{h.PM10, h.PM25, h.CarbonMonoxide, h.NO2, h.SO2, h.Ozone} {
		n = min(n, len(col))
	}

	newestFirst := make(airquality.Series, 0, min(limit, n))
	for i := n - 1; i >= 0 && len(newestFirst) < limit; i-- {
		ts, err := time.ParseInLocation(timeLayout, h.Time[i], time.UTC)
		if err != nil || ts.After(now) {
			continue
		}
		if h.PM10[i] == nil || h.PM25[i] == nil || h.CarbonMonoxide[i] == nil ||
			h.NO2[i] == nil || h.SO2[i] == nil || h.Ozone[i] == nil {
			continue
		}

		p := airquality.Pollutants{
			PM25: *h.PM25[i],
			PM10: *h.PM10[i],
			CO:   *h.CarbonMonoxide[i],
			NO2:  *h.NO2[i],
			SO2:  *h.SO2[i],
			O3:   *h.Ozone[i],
		}
		newestFirst = append(newestFirst, airquality.NewObservation(p, ts))
	}

	series := make(airquality.Series, len(newestFirst))
	for i, o := range newestFirst {
		series[len(newestFirst)-1-i] = o
	}
	return series
}
