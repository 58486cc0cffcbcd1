package airquality

import (
	"math"
	"math/rand/v2"
	"time"
)

// Baseline concentrations for a moderately polluted area, in µg/m³.
var Baseline = Pollutants{
	PM25: 15.5,
	PM10: 28.3,
	CO:   800,
	NO2:  22.1,
	SO2:  8.2,
	O3:   45.6,
}

// BaselineAQI is the AQI assigned to baseline rows when no history exists.
const BaselineAQI = 65.0

// mockJitter bounds the per-hour random factor applied to generated data.
const mockJitter = 0.05

// NewRand returns an independently seeded random source for a single call.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // not used for security
}

// GenerateMock produces a plausible hourly series ending at the hour containing now.
// The shape is fixed (a weekly-ish step pattern times a daily sine cycle);
// rng only adds a small jitter on top.
func GenerateMock(now time.Time, hours int, rng *rand.Rand) Series {
	if hours <= 0 {
		return Series{}
	}
	if rng == nil {
		rng = NewRand()
	}

	end := now.Truncate(time.Hour)
	series := make(Series, 0, hours)
	for i := 0; i < hours; i++ {
		variation := 0.7 + float64(i%7)*0.1
		dailyCycle := 1.0 + 0.3*math.Sin(2*math.Pi*float64(i)/24)
		jitter := 1 + (rng.Float64()*2-1)*mockJitter

		p := Baseline.Scale(variation * dailyCycle * jitter)
		ts := end.Add(-time.Duration(hours-i-1) * time.Hour)
		series = append(series, NewObservation(p, ts))
	}
	return series
}

// SynthesizeFromCurrent builds a 48 hour history around a single current reading.
// Row i is scaled by 0.8 + (i%12)*0.05 and stamped 48-i hours before now.
func SynthesizeFromCurrent(current Pollutants, now time.Time) Series {
	series := make(Series, 0, HistoryLength)
	for i := 0; i < HistoryLength; i++ {
		variation := 0.8 + float64(i%12)*0.05
		ts := now.Add(-time.Duration(HistoryLength-i) * time.Hour)
		series = append(series, NewObservation(current.Scale(variation), ts))
	}
	return series
}
