package models

import (
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
)

// HorizonPrediction is the forecast for one lead time.
type HorizonPrediction struct {
	AQI      float64 `json:"aqi"`
	Category string  `json:"category"`
}

// Predictions carries the three horizons twice: as the flat aqi_* fields
// older clients read and as per-horizon objects with categories.
type Predictions struct {
	AQI8h  float64 `json:"aqi_8h"`
	AQI12h float64 `json:"aqi_12h"`
	AQI24h float64 `json:"aqi_24h"`

	H8  HorizonPrediction `json:"8h"`
	H12 HorizonPrediction `json:"12h"`
	H24 HorizonPrediction `json:"24h"`

	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

// NewPredictions converts a prediction result.
func NewPredictions(r prediction.Result) Predictions {
	at := func(h prediction.Horizon) HorizonPrediction {
		f := r.At(h)
		return HorizonPrediction{AQI: f.AQI, Category: string(f.Category)}
	}
	p := Predictions{
		H8:         at(prediction.Horizon8h),
		H12:        at(prediction.Horizon12h),
		H24:        at(prediction.Horizon24h),
		Confidence: r.Confidence,
		Fallback:   r.Fallback,
	}
	p.AQI8h, p.AQI12h, p.AQI24h = p.H8.AQI, p.H12.AQI, p.H24.AQI
	return p
}

// CurrentConditions summarizes the latest input hour. Fields are null when
// there was no input.
type CurrentConditions struct {
	Timestamp *Timestamp `json:"timestamp"`
	AQI       *float64   `json:"aqi"`
	Category  string     `json:"category,omitempty"`
	PM25      *float64   `json:"pm25"`
	PM10      *float64   `json:"pm10"`
	Trend     string     `json:"trend"`
}

// NewCurrentConditions converts forecast conditions.
func NewCurrentConditions(c forecast.Conditions) CurrentConditions {
	out := CurrentConditions{Trend: string(c.Trend)}
	if c.ObservedAt.IsZero() {
		return out
	}
	ts := Timestamp(c.ObservedAt)
	aqi, pm25, pm10 := round2(c.AQI), round2(c.Pollutants.PM25), round2(c.Pollutants.PM10)
	out.Timestamp = &ts
	out.AQI = &aqi
	out.Category = string(c.Category)
	out.PM25 = &pm25
	out.PM10 = &pm10
	return out
}

// PredictionResponse is returned by every prediction endpoint and by the
// forecast history endpoints.
type PredictionResponse struct {
	ForecastID          string            `json:"forecast_id"`
	Location            Location          `json:"location"`
	ModelUsed           string            `json:"model_used"`
	Predictions         Predictions       `json:"predictions"`
	PredictionTimestamp Timestamp         `json:"prediction_timestamp"`
	InputHours          int               `json:"input_hours"`
	DataSource          string            `json:"data_source"`
	CurrentConditions   CurrentConditions `json:"current_conditions"`

	// InputData echoes the POST /predict_from_current body.
	InputData *CurrentInput `json:"input_data,omitempty"`
}

// NewPredictionResponse converts a stored forecast.
func NewPredictionResponse(f *forecast.Forecast) PredictionResponse {
	return PredictionResponse{
		ForecastID:          f.ID,
		Location:            Location{Latitude: f.Location.Lat, Longitude: f.Location.Lon},
		ModelUsed:           f.Result.Model,
		Predictions:         NewPredictions(f.Result),
		PredictionTimestamp: Timestamp(f.CreatedAt),
		InputHours:          f.InputHours,
		DataSource:          string(f.Source),
		CurrentConditions:   NewCurrentConditions(f.Current),
	}
}

// PagedResponseMeta contains pagination metadata.
type PagedResponseMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// ForecastList is returned by GET /forecasts.
type ForecastList struct {
	Items []PredictionResponse `json:"items"`
	Meta  PagedResponseMeta    `json:"meta"`
}

// NewForecastList converts a page of forecasts.
func NewForecastList(fs []*forecast.Forecast, limit int) ForecastList {
	items := make([]PredictionResponse, len(fs))
	for i, f := range fs {
		items[i] = NewPredictionResponse(f)
	}
	return ForecastList{
		Items: items,
		Meta:  PagedResponseMeta{Limit: limit, Count: len(items)},
	}
}
