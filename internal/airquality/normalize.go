package airquality

import (
	"math/rand/v2"
	"time"
)

// HistoryLength is the number of hourly rows every model input is built from.
const HistoryLength = 48

// Padding factors applied to each synthesized field.
const (
	padFactorMin = 0.9
	padFactorMax = 1.1
)

// Normalized is a fixed-length history plus how much of it is real.
type Normalized struct {
	Series Series

	// RealHours is how many rows came from the caller (at most HistoryLength).
	RealHours int
}

// Synthetic returns the number of padded rows.
func (n Normalized) Synthetic() int {
	return len(n.Series) - n.RealHours
}

// Normalize returns exactly HistoryLength chronological rows.
//
// Longer inputs keep their most recent 48 rows. Shorter inputs are padded at
// the old end with copies of the most recent real row, each field scaled by an
// independent factor in [0.9, 1.1], stamped one hour apart going back from the
// oldest real row. An empty input yields baseline rows ending at now.
// The input slice is never modified.
func Normalize(s Series, now time.Time, rng *rand.Rand) Normalized {
	n := len(s)
	switch {
	case n >= HistoryLength:
		out := make(Series, HistoryLength)
		copy(out, s[n-HistoryLength:])
		return Normalized{Series: out, RealHours: HistoryLength}
	case n == 0:
		return Normalized{Series: baselineSeries(now)}
	}

	if rng == nil {
		rng = NewRand()
	}

	template := s[n-1]
	oldest := s[0].Timestamp
	if oldest.IsZero() {
		oldest = now.Truncate(time.Hour)
	}

	missing := HistoryLength - n
	out := make(Series, HistoryLength)
	for i := 0; i < missing; i++ {
		// Row i sits (missing-i) hours before the oldest real row.
		ts := oldest.Add(-time.Duration(missing-i) * time.Hour)
		out[i] = jittered(template, ts, rng)
	}
	copy(out[missing:], s)

	return Normalized{Series: out, RealHours: n}
}

// NormalizeNow normalizes against the current time with a fresh random source.
func NormalizeNow(s Series) Normalized {
	return Normalize(s, time.Now(), NewRand())
}

func jittered(t Observation, ts time.Time, rng *rand.Rand) Observation {
	f := func() float64 {
		return padFactorMin + rng.Float64()*(padFactorMax-padFactorMin)
	}
	return Observation{
		Pollutants: Pollutants{
			PM25: t.PM25 * f(),
			PM10: t.PM10 * f(),
			CO:   t.CO * f(),
			NO2:  t.NO2 * f(),
			SO2:  t.SO2 * f(),
			O3:   t.O3 * f(),
		},
		AQI:       clamp(t.AQI*f(), 0, MaxAQI),
		Timestamp: ts,
	}
}

func baselineSeries(now time.Time) Series {
	end := now.Truncate(time.Hour)
	out := make(Series, HistoryLength)
	for i := range out {
		out[i] = Observation{
			Pollutants: Baseline,
			AQI:        BaselineAQI,
			Timestamp:  end.Add(-time.Duration(HistoryLength-1-i) * time.Hour),
		}
	}
	return out
}
