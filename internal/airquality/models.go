// Package airquality provides hourly pollutant observations, the AQI calculator,
// history normalization and the data source gateway with its mock fallback.
package airquality

import (
	"errors"
	"time"
)

// Gateway and validation errors.
var (
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrNoMeasurements      = errors.New("no measurements available")
	ErrDataUnavailable     = errors.New("no air quality data available")
)

// Pollutant represents an air quality pollutant type.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
	PollutantCO   Pollutant = "CO"
	PollutantNO2  Pollutant = "NO2"
	PollutantSO2  Pollutant = "SO2"
	PollutantO3   Pollutant = "O3"
)

// Source identifies where a series came from.
type Source string

const (
	SourceLive   Source = "live"
	SourceMock   Source = "mock"
	SourceClient Source = "client"
)

// microgramsPerMilligram converts CO between the API unit and the internal unit.
const microgramsPerMilligram = 1000.0

// Pollutants holds one set of concentrations.
// Every field is in µg/m³, CO included.
type Pollutants struct {
	PM25 float64
	PM10 float64
	CO   float64
	NO2  float64
	SO2  float64
	O3   float64
}

// Scale returns a copy with every concentration multiplied by f.
func (p Pollutants) Scale(f float64) Pollutants {
	return Pollutants{
		PM25: p.PM25 * f,
		PM10: p.PM10 * f,
		CO:   p.CO * f,
		NO2:  p.NO2 * f,
		SO2:  p.SO2 * f,
		O3:   p.O3 * f,
	}
}

// Observation is one hour of pollutant readings and the AQI derived from them.
type Observation struct {
	Pollutants
	AQI       float64
	Timestamp time.Time
}

// NewObservation builds an observation and derives its AQI with the default profile.
func NewObservation(p Pollutants, ts time.Time) Observation {
	return Observation{
		Pollutants: p,
		AQI:        Calculate(p),
		Timestamp:  ts,
	}
}

// COMilligrams returns CO in mg/m³, the unit used on the HTTP API.
func (o Observation) COMilligrams() float64 {
	return o.CO / microgramsPerMilligram
}

// COFromMilligrams converts a CO reading in mg/m³ to the internal µg/m³ unit.
func COFromMilligrams(mg float64) float64 {
	return mg * microgramsPerMilligram
}

// Series is a chronological (oldest first) run of hourly observations.
type Series []Observation

// Latest returns the most recent observation.
func (s Series) Latest() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}

// AllZeroAQI reports whether every observation has an AQI of zero.
// An empty series is treated as all zero.
func (s Series) AllZeroAQI() bool {
	for _, o := range s {
		if o.AQI != 0 {
			return false
		}
	}
	return true
}

// Trend describes the short-term AQI direction of a series.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// Trend compares the latest AQI with the one two hours earlier.
func (s Series) Trend() Trend {
	if len(s) < 3 {
		return TrendStable
	}
	if s[len(s)-1].AQI > s[len(s)-3].AQI {
		return TrendIncreasing
	}
	return TrendDecreasing
}

// Query identifies a location and how many hours of history to fetch.
type Query struct {
	Lat   float64
	Lon   float64
	Hours int
}

// Validate checks the query bounds.
func (q Query) Validate() error {
	if q.Lat < -90 || q.Lat > 90 || q.Lon < -180 || q.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Fetched is a series together with its provenance.
type Fetched struct {
	Series Series
	Source Source

	// Degraded is set when the live source failed and mock data was substituted.
	Degraded bool

	// FetchedAt is when the series was produced.
	FetchedAt time.Time
}
