package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/aqicast/aqicast/internal/airquality"
)

// ErrSeriesLength is returned when the input is not a normalized 48 hour history.
var ErrSeriesLength = errors.New("series must hold exactly 48 hourly observations")

// Column counts per block.
const (
	PollutantFeatureCount = 7
	LagFeatureCount       = 7

	// Width is the number of features per hour.
	Width = PollutantFeatureCount + TimeFeatureCount + LagFeatureCount

	// Rows is the number of hours in a model input.
	Rows = airquality.HistoryLength
)

// Per-field divisors that bring typical concentrations to roughly [0, 1].
const (
	scaleAQI  = airquality.MaxAQI
	scalePM25 = 100.0
	scalePM10 = 150.0
	scaleO3   = 200.0
	scaleNO2  = 100.0
	scaleSO2  = 50.0
	scaleCO   = 10000.0

	// scaleCONO2 scales the CO x NO2 interaction term (both in µg/m³).
	scaleCONO2 = 1e5

	// rollingWindow is the trailing average length in hours, current hour included.
	rollingWindow = 24
)

// Row is the feature vector for one hour.
type Row [Width]float64

// Matrix is the full model input, oldest hour first.
type Matrix [Rows]Row

// Flatten returns the matrix row by row as a single vector.
func (m *Matrix) Flatten() []float64 {
	out := make([]float64, 0, Rows*Width)
	for i := range m {
		out = append(out, m[i][:]...)
	}
	return out
}

// Sequence returns the matrix as a slice of rows for sequence backends.
func (m *Matrix) Sequence() [][]float64 {
	out := make([][]float64, Rows)
	for i := range m {
		row := make([]float64, Width)
		copy(row, m[i][:])
		out[i] = row
	}
	return out
}

// Assemble builds the 48 x Width feature matrix from a normalized series.
//
// Each row holds the scaled pollutant fields, the calendar encoding of the
// row's timestamp, then lag and aggregate features. Lags that reach before the
// first row fall back to the row itself, and the rolling mean uses whatever
// history is available. Every ratio floors its denominator at 1.
func Assemble(s airquality.Series) (*Matrix, error) {
	if len(s) != Rows {
		return nil, fmt.Errorf("%w: got %d", ErrSeriesLength, len(s))
	}

	var m Matrix
	var rollingSum float64
	for i, o := range s {
		rollingSum += o.AQI
		if i >= rollingWindow {
			rollingSum -= s[i-rollingWindow].AQI
		}
		window := min(i+1, rollingWindow)

		prev := o
		if i > 0 {
			prev = s[i-1]
		}
		dayAgo := o
		if i >= 24 {
			dayAgo = s[i-24]
		}

		row := &m[i]
		col := 0
		put := func(v float64) {
			row[col] = v
			col++
		}

		put(o.AQI / scaleAQI)
		put(o.PM25 / scalePM25)
		put(o.PM10 / scalePM10)
		put(o.O3 / scaleO3)
		put(o.NO2 / scaleNO2)
		put(o.SO2 / scaleSO2)
		put(o.CO / scaleCO)

		for _, v := range Encode(o.Timestamp).Values() {
			put(v)
		}

		put(prev.AQI / scaleAQI)
		put(dayAgo.AQI / scaleAQI)
		put(dayAgo.PM25 / scalePM25)
		put(rollingSum / float64(window) / scaleAQI)
		put((o.AQI - prev.AQI) / floorOne(prev.AQI))
		put(o.PM25 / floorOne(o.PM10))
		put(o.CO * o.NO2 / scaleCONO2)
	}

	return &m, nil
}

func floorOne(v float64) float64 {
	return math.Max(v, 1)
}
