package models

import (
	"fmt"
	"math"
	"time"

	"github.com/aqicast/aqicast/internal/airquality"
)

// Concentration bounds accepted on input. CO is in mg/m³.
const (
	MaxConcentration   = 500.0
	MaxCOConcentration = 50.0
)

// Observation is one hour of readings. CO is in mg/m³, every other
// pollutant in µg/m³.
type Observation struct {
	Timestamp       Timestamp `json:"timestamp"`
	CarbonMonoxide  float64   `json:"carbon_monoxide"`
	NitrogenDioxide float64   `json:"nitrogen_dioxide"`
	SulphurDioxide  float64   `json:"sulphur_dioxide"`
	Ozone           float64   `json:"ozone"`
	PM25            float64   `json:"pm2_5"`
	PM10            float64   `json:"pm10"`

	// AQI is optional on input; zero means derive it from the pollutants.
	AQI      float64 `json:"aqi"`
	Category string  `json:"category,omitempty"`
}

// NewObservation converts a domain observation to its wire form.
func NewObservation(o airquality.Observation) Observation {
	return Observation{
		Timestamp:       Timestamp(o.Timestamp),
		CarbonMonoxide:  round2(o.COMilligrams()),
		NitrogenDioxide: round2(o.NO2),
		SulphurDioxide:  round2(o.SO2),
		Ozone:           round2(o.O3),
		PM25:            round2(o.PM25),
		PM10:            round2(o.PM10),
		AQI:             round2(o.AQI),
		Category:        string(airquality.CategoryFor(o.AQI)),
	}
}

// Domain converts the wire form back, moving CO to µg/m³.
func (o Observation) Domain() airquality.Observation {
	return airquality.Observation{
		Pollutants: airquality.Pollutants{
			PM25: o.PM25,
			PM10: o.PM10,
			CO:   airquality.COFromMilligrams(o.CarbonMonoxide),
			NO2:  o.NitrogenDioxide,
			SO2:  o.SulphurDioxide,
			O3:   o.Ozone,
		},
		AQI:       o.AQI,
		Timestamp: o.Timestamp.Time(),
	}
}

// Validate checks one observation, prefixing field names with prefix.
func (o Observation) Validate(prefix string) []FieldError {
	var errs []FieldError
	if o.Timestamp.Time().IsZero() {
		errs = append(errs, FieldError{Field: prefix + "timestamp", Message: "is required", Code: CodeRequired})
	}
	errs = appendRange(errs, prefix+"carbon_monoxide", o.CarbonMonoxide, MaxCOConcentration)
	errs = appendRange(errs, prefix+"nitrogen_dioxide", o.NitrogenDioxide, MaxConcentration)
	errs = appendRange(errs, prefix+"sulphur_dioxide", o.SulphurDioxide, MaxConcentration)
	errs = appendRange(errs, prefix+"ozone", o.Ozone, MaxConcentration)
	errs = appendRange(errs, prefix+"pm2_5", o.PM25, MaxConcentration)
	errs = appendRange(errs, prefix+"pm10", o.PM10, MaxConcentration)
	errs = appendRange(errs, prefix+"aqi", o.AQI, airquality.MaxAQI)
	return errs
}

// LiveDataResponse is returned by GET /live_data.
type LiveDataResponse struct {
	Location       Location      `json:"location"`
	DataSource     string        `json:"data_source"`
	HoursFetched   int           `json:"hours_fetched"`
	FetchTimestamp Timestamp     `json:"fetch_timestamp"`
	Data           []Observation `json:"data"`
}

// NewLiveDataResponse builds the live data body.
func NewLiveDataResponse(loc Location, f *airquality.Fetched) LiveDataResponse {
	data := make([]Observation, len(f.Series))
	for i, o := range f.Series {
		data[i] = NewObservation(o)
	}
	return LiveDataResponse{
		Location:       loc,
		DataSource:     string(f.Source),
		HoursFetched:   len(f.Series),
		FetchTimestamp: Timestamp(f.FetchedAt),
		Data:           data,
	}
}

// CurrentInput is the POST /predict_from_current body. CO is in mg/m³.
type CurrentInput struct {
	PM25 *float64 `json:"pm25"`
	PM10 *float64 `json:"pm10"`
	CO   *float64 `json:"co"`
	O3   *float64 `json:"o3"`
	NO2  *float64 `json:"no2"`
	SO2  *float64 `json:"so2"`
}

// Validate requires every reading and checks its bounds.
func (in CurrentInput) Validate() []FieldError {
	var errs []FieldError
	for _, f := range []struct {
		name string
		v    *float64
		max  float64
	}{
		{"pm25", in.PM25, MaxConcentration},
		{"pm10", in.PM10, MaxConcentration},
		{"co", in.CO, MaxCOConcentration},
		{"o3", in.O3, MaxConcentration},
		{"no2", in.NO2, MaxConcentration},
		{"so2", in.SO2, MaxConcentration},
	} {
		if f.v == nil {
			errs = append(errs, FieldError{Field: f.name, Message: "is required", Code: CodeRequired})
			continue
		}
		errs = appendRange(errs, f.name, *f.v, f.max)
	}
	return errs
}

// Pollutants converts a validated input to internal units.
func (in CurrentInput) Pollutants() airquality.Pollutants {
	return airquality.Pollutants{
		PM25: deref(in.PM25),
		PM10: deref(in.PM10),
		CO:   airquality.COFromMilligrams(deref(in.CO)),
		NO2:  deref(in.NO2),
		SO2:  deref(in.SO2),
		O3:   deref(in.O3),
	}
}

// MaxHistoryHours is the longest history accepted by POST /predict.
const MaxHistoryHours = 120

// HistoryRequest is the POST /predict/{modelName} body, oldest observation first.
type HistoryRequest struct {
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	History   []Observation `json:"history"`
}

// Validate checks the coordinates and every observation.
func (req HistoryRequest) Validate() []FieldError {
	var errs []FieldError
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		errs = append(errs, FieldError{Field: "latitude", Message: "must be between -90 and 90", Code: CodeOutOfRange})
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		errs = append(errs, FieldError{Field: "longitude", Message: "must be between -180 and 180", Code: CodeOutOfRange})
	}
	if len(req.History) > MaxHistoryHours {
		errs = append(errs, FieldError{
			Field:   "history",
			Message: fmt.Sprintf("must contain at most %d observations", MaxHistoryHours),
			Code:    CodeOutOfRange,
		})
		return errs
	}
	for i, o := range req.History {
		errs = append(errs, o.Validate(fmt.Sprintf("history[%d].", i))...)
	}
	return errs
}

// Series converts the history to the domain form.
func (req HistoryRequest) Series() airquality.Series {
	s := make(airquality.Series, len(req.History))
	for i, o := range req.History {
		s[i] = o.Domain()
	}
	return s
}

// AQIRequest is the POST /aqi body. CO is in mg/m³; omitted readings count as zero.
type AQIRequest struct {
	PM25    float64 `json:"pm25"`
	PM10    float64 `json:"pm10"`
	CO      float64 `json:"co"`
	O3      float64 `json:"o3"`
	NO2     float64 `json:"no2"`
	SO2     float64 `json:"so2"`
	Profile string  `json:"profile,omitempty"`
}

// Validate checks bounds and the profile name.
func (req AQIRequest) Validate() []FieldError {
	var errs []FieldError
	errs = appendRange(errs, "pm25", req.PM25, MaxConcentration)
	errs = appendRange(errs, "pm10", req.PM10, MaxConcentration)
	errs = appendRange(errs, "co", req.CO, MaxCOConcentration)
	errs = appendRange(errs, "o3", req.O3, MaxConcentration)
	errs = appendRange(errs, "no2", req.NO2, MaxConcentration)
	errs = appendRange(errs, "so2", req.SO2, MaxConcentration)
	if _, ok := airquality.ProfileByName(req.Profile); !ok {
		errs = append(errs, FieldError{Field: "profile", Message: "must be default or extended", Code: CodeInvalid})
	}
	return errs
}

// Pollutants converts the request to internal units.
func (req AQIRequest) Pollutants() airquality.Pollutants {
	return airquality.Pollutants{
		PM25: req.PM25,
		PM10: req.PM10,
		CO:   airquality.COFromMilligrams(req.CO),
		NO2:  req.NO2,
		SO2:  req.SO2,
		O3:   req.O3,
	}
}

// AQIResponse is returned by POST /aqi.
type AQIResponse struct {
	AQI        float64   `json:"aqi"`
	Category   string    `json:"category"`
	Profile    string    `json:"profile"`
	ComputedAt Timestamp `json:"computed_at"`
}

// NewAQIResponse rounds the index to one decimal.
func NewAQIResponse(aqi float64, profile string, at time.Time) AQIResponse {
	aqi = math.Round(aqi*10) / 10
	return AQIResponse{
		AQI:        aqi,
		Category:   string(airquality.CategoryFor(aqi)),
		Profile:    profile,
		ComputedAt: Timestamp(at),
	}
}

func appendRange(errs []FieldError, field string, v, max float64) []FieldError {
	if math.IsNaN(v) || v < 0 || v > max {
		return append(errs, FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be between 0 and %g", max),
			Code:    CodeOutOfRange,
		})
	}
	return errs
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
