// Package worker precomputes live forecasts for configured points, on a
// schedule and on Pub/Sub request.
package worker

import (
	"fmt"
	"time"

	"github.com/aqicast/aqicast/internal/forecast"
)

// RefreshTarget is one point to forecast.
type RefreshTarget struct {
	// Name is used in logs, e.g. "-15.7797,-47.9297".
	Name     string
	Location forecast.Location
}

// RefreshConfig holds configuration for the forecast refresh job.
type RefreshConfig struct {
	// Targets are the points to refresh. Required.
	Targets []RefreshTarget

	// Models to run at every target. Empty means every loaded model.
	Models []string

	// Hours of live history to fetch per forecast.
	// Default: 48
	Hours int

	// Concurrency is the number of forecasts computed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each forecast.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default configuration for locations.
func DefaultRefreshConfig(locations ...forecast.Location) RefreshConfig {
	return RefreshConfig{
		Targets:     TargetsFor(locations...),
		Hours:       48,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// TargetsFor names each location by its coordinates.
func TargetsFor(locations ...forecast.Location) []RefreshTarget {
	targets := make([]RefreshTarget, len(locations))
	for i, loc := range locations {
		targets[i] = RefreshTarget{
			Name:     fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon),
			Location: loc,
		}
	}
	return targets
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Hours <= 0 {
		c.Hours = def.Hours
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
