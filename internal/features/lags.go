package features

import "github.com/aqicast/aqicast/internal/airquality"

// Lags are the hour offsets, counted back from the most recent row, used by
// the reduced lag contract.
var Lags = [...]int{1, 3, 6, 12, 24}

// Substitutes used when the history is too short for a lag.
const (
	DefaultLagAQI  = 50.0
	DefaultLagPM25 = 15.0
	DefaultLagO3   = 40.0
)

// LagVectorLength is the number of values in a LagVector.
const LagVectorLength = 3 * len(Lags)

// LagVector holds AQI, PM2.5 and O3 at each lag, grouped by field:
// AQI at lags 1..24, then PM2.5, then O3.
type LagVector [LagVectorLength]float64

// AQI returns the AQI value at lag index i of Lags.
func (v LagVector) AQI(i int) float64 { return v[i] }

// PM25 returns the PM2.5 value at lag index i of Lags.
func (v LagVector) PM25(i int) float64 { return v[len(Lags)+i] }

// O3 returns the O3 value at lag index i of Lags.
func (v LagVector) O3(i int) float64 { return v[2*len(Lags)+i] }

// ExtractLags reads the reduced lag features from a series of any length.
// The row for lag k is s[len(s)-1-k]; when the series is not deep enough the
// fixed defaults are used instead. It never fails.
func ExtractLags(s airquality.Series) LagVector {
	var v LagVector
	n := len(s)
	for i, lag := range Lags {
		idx := n - 1 - lag
		if idx < 0 {
			v[i] = DefaultLagAQI
			v[len(Lags)+i] = DefaultLagPM25
			v[2*len(Lags)+i] = DefaultLagO3
			continue
		}
		o := s[idx]
		v[i] = o.AQI
		v[len(Lags)+i] = o.PM25
		v[2*len(Lags)+i] = o.O3
	}
	return v
}
