// Package prediction dispatches model input to forecasting backends and
// normalizes their output into 8, 12 and 24 hour AQI forecasts.
package prediction

import (
	"errors"
	"fmt"
	"math"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/features"
)

// Prediction errors.
var (
	ErrModelNotFound    = errors.New("model not found")
	ErrModelUnavailable = errors.New("model not loaded")
	ErrInvalidOutput    = errors.New("invalid backend output")
)

// Horizon is a forecast lead time in hours.
type Horizon int

const (
	Horizon8h  Horizon = 8
	Horizon12h Horizon = 12
	Horizon24h Horizon = 24
)

// Horizons lists the forecast lead times in order.
var Horizons = [3]Horizon{Horizon8h, Horizon12h, Horizon24h}

// String returns the horizon in API form, e.g. "8h".
func (h Horizon) String() string {
	return fmt.Sprintf("%dh", int(h))
}

// Confidence levels reported with a result.
const (
	ConfidenceHigh     = 0.85
	ConfidenceReduced  = 0.70
	ConfidenceFallback = 0.40

	// minRealHoursForHigh is how much measured history earns ConfidenceHigh.
	minRealHoursForHigh = 24
)

// HorizonForecast is the forecast for one lead time.
type HorizonForecast struct {
	Horizon  Horizon
	AQI      float64
	Category airquality.Category
}

// Result is a normalized forecast.
type Result struct {
	Model      string
	Forecasts  [3]HorizonForecast
	Confidence float64

	// Fallback is set when the backend failed and the estimate was generated
	// around the current AQI instead.
	Fallback bool
}

// At returns the forecast for h.
func (r Result) At(h Horizon) HorizonForecast {
	for _, f := range r.Forecasts {
		if f.Horizon == h {
			return f
		}
	}
	return HorizonForecast{Horizon: h}
}

// Values returns the forecast AQIs ordered 8h, 12h, 24h.
func (r Result) Values() [3]float64 {
	var v [3]float64
	for i, f := range r.Forecasts {
		v[i] = f.AQI
	}
	return v
}

// NewResult builds a result from per-horizon values ordered 8h, 12h, 24h.
// Values are clamped to the AQI scale and rounded to one decimal.
func NewResult(model string, values [3]float64, confidence float64, fallback bool) Result {
	r := Result{Model: model, Confidence: confidence, Fallback: fallback}
	for i, h := range Horizons {
		aqi := roundAQI(values[i])
		r.Forecasts[i] = HorizonForecast{
			Horizon:  h,
			AQI:      aqi,
			Category: airquality.CategoryFor(aqi),
		}
	}
	return r
}

// roundAQI clamps to the AQI scale and rounds to one decimal.
func roundAQI(v float64) float64 {
	v = math.Max(0, math.Min(airquality.MaxAQI, v))
	return math.Round(v*10) / 10
}

// Input is everything a backend may read. It is built once per request.
type Input struct {
	// Series is the normalized 48 hour history, oldest first.
	Series airquality.Series

	// Matrix is the full per-hour feature matrix.
	Matrix *features.Matrix

	// Lags is the reduced lag vector.
	Lags features.LagVector

	// RealHours is how many rows of Series are measured rather than synthesized.
	RealHours int

	// Source is where the measured rows came from.
	Source airquality.Source
}

// NewInput assembles model input from a normalized history.
func NewInput(n airquality.Normalized, source airquality.Source) (Input, error) {
	m, err := features.Assemble(n.Series)
	if err != nil {
		return Input{}, err
	}
	return Input{
		Series:    n.Series,
		Matrix:    m,
		Lags:      features.ExtractLags(n.Series),
		RealHours: n.RealHours,
		Source:    source,
	}, nil
}

// CurrentAQI returns the most recent AQI, or 50 when the input is empty.
func (in Input) CurrentAQI() float64 {
	if o, ok := in.Series.Latest(); ok {
		return o.AQI
	}
	return features.DefaultLagAQI
}

// confidence grades a successful backend result by how much of the input is real.
func (in Input) confidence() float64 {
	if in.Source != airquality.SourceMock && in.RealHours >= minRealHoursForHigh {
		return ConfidenceHigh
	}
	return ConfidenceReduced
}
