package airquality_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/airquality"
)

var testNow = time.Date(2025, 6, 2, 14, 37, 0, 0, time.UTC)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func hourlySeries(n int, end time.Time) airquality.Series {
	s := make(airquality.Series, n)
	for i := range s {
		p := airquality.Pollutants{
			PM25: 10 + float64(i),
			PM10: 20 + float64(i),
			CO:   400,
			NO2:  20,
			SO2:  5,
			O3:   40,
		}
		s[i] = airquality.NewObservation(p, end.Add(-time.Duration(n-1-i)*time.Hour))
	}
	return s
}

func assertHourly(t *testing.T, s airquality.Series) {
	t.Helper()
	for i := 1; i < len(s); i++ {
		assert.Equal(t, time.Hour, s[i].Timestamp.Sub(s[i-1].Timestamp), "row %d", i)
	}
}

func TestNormalize_Lengths(t *testing.T) {
	end := testNow.Truncate(time.Hour)
	for _, n := range []int{0, 1, 24, 47, 48, 60, 120} {
		input := hourlySeries(n, end)
		got := airquality.Normalize(input, testNow, seeded())

		require.Len(t, got.Series, airquality.HistoryLength, "n=%d", n)
		assert.Equal(t, min(n, airquality.HistoryLength), got.RealHours)
		assert.Equal(t, airquality.HistoryLength-got.RealHours, got.Synthetic())
		assertHourly(t, got.Series)

		if n > 0 {
			assert.Equal(t, input[n-1], got.Series[airquality.HistoryLength-1], "most recent row kept")
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	got := airquality.Normalize(nil, testNow, seeded())

	require.Len(t, got.Series, airquality.HistoryLength)
	assert.Equal(t, 0, got.RealHours)
	assertHourly(t, got.Series)
	assert.Equal(t, testNow.Truncate(time.Hour), got.Series[airquality.HistoryLength-1].Timestamp)
	for _, o := range got.Series {
		assert.InDelta(t, airquality.BaselineAQI, o.AQI, 0.001)
		assert.Equal(t, airquality.Baseline, o.Pollutants)
	}
}

func TestNormalize_LongKeepsMostRecent(t *testing.T) {
	input := hourlySeries(60, testNow.Truncate(time.Hour))
	got := airquality.Normalize(input, testNow, seeded())

	assert.Equal(t, input[12:], got.Series)
}

func TestNormalize_PaddingWithinBounds(t *testing.T) {
	input := hourlySeries(1, testNow.Truncate(time.Hour))
	template := input[0]

	got := airquality.Normalize(input, testNow, seeded())

	for _, o := range got.Series[:airquality.HistoryLength-1] {
		assert.InDelta(t, template.PM25, o.PM25, template.PM25*0.1+1e-9)
		assert.InDelta(t, template.PM10, o.PM10, template.PM10*0.1+1e-9)
		assert.InDelta(t, template.CO, o.CO, template.CO*0.1+1e-9)
		assert.InDelta(t, template.AQI, o.AQI, template.AQI*0.1+1e-9)
		assert.True(t, o.Timestamp.Before(template.Timestamp))
	}
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	input := hourlySeries(10, testNow.Truncate(time.Hour))
	snapshot := append(airquality.Series(nil), input...)

	_ = airquality.Normalize(input, testNow, seeded())

	assert.Equal(t, snapshot, input)
}

func TestNormalize_Reproducible(t *testing.T) {
	input := hourlySeries(5, testNow.Truncate(time.Hour))

	a := airquality.Normalize(input, testNow, seeded())
	b := airquality.Normalize(input, testNow, seeded())

	assert.Equal(t, a, b)
}
