// Package forecast runs the fetch, normalize, assemble and predict pipeline
// and keeps a history of the forecasts it produced.
package forecast

import (
	"errors"
	"time"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/prediction"
)

// Repository errors.
var (
	ErrForecastNotFound = errors.New("forecast not found")
)

// Location is a forecast point.
type Location struct {
	Lat float64
	Lon float64
}

// Conditions summarizes the most recent hour of the input history.
type Conditions struct {
	Pollutants airquality.Pollutants
	AQI        float64
	Category   airquality.Category
	Trend      airquality.Trend
	ObservedAt time.Time
}

func conditionsOf(s airquality.Series) Conditions {
	latest, ok := s.Latest()
	if !ok {
		return Conditions{Trend: airquality.TrendStable}
	}
	return Conditions{
		Pollutants: latest.Pollutants,
		AQI:        latest.AQI,
		Category:   airquality.CategoryFor(latest.AQI),
		Trend:      s.Trend(),
		ObservedAt: latest.Timestamp,
	}
}

// Forecast is one stored prediction.
type Forecast struct {
	ID       string
	Location Location
	Result   prediction.Result

	// InputHours is how many hours were fetched or supplied before normalization.
	InputHours int

	// RealHours is how many of the 48 model input rows are measured.
	RealHours int

	Source    airquality.Source
	Current   Conditions
	CreatedAt time.Time
}
