package airquality_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/airquality"
)

func TestGenerateMock(t *testing.T) {
	for _, hours := range []int{1, 24, 48, 120} {
		s := airquality.GenerateMock(testNow, hours, seeded())

		require.Len(t, s, hours)
		assert.Equal(t, testNow.Truncate(time.Hour), s[hours-1].Timestamp)
		assertHourly(t, s)
		for _, o := range s {
			assert.Greater(t, o.PM25, 0.0)
			assert.InDelta(t, airquality.Calculate(o.Pollutants), o.AQI, 1e-9)
			assert.LessOrEqual(t, o.AQI, airquality.MaxAQI)
		}
	}
}

func TestGenerateMock_NonPositive(t *testing.T) {
	assert.Empty(t, airquality.GenerateMock(testNow, 0, nil))
	assert.Empty(t, airquality.GenerateMock(testNow, -3, nil))
}

func TestGenerateMock_NormalizeRoundTrip(t *testing.T) {
	for _, hours := range []int{1, 48} {
		s := airquality.GenerateMock(testNow, hours, seeded())
		got := airquality.Normalize(s, testNow, seeded())

		require.Len(t, got.Series, airquality.HistoryLength)
		assert.Equal(t, s[hours-1], got.Series[airquality.HistoryLength-1])
		assertHourly(t, got.Series)
	}
}

func TestSynthesizeFromCurrent(t *testing.T) {
	current := airquality.Pollutants{PM25: 20, PM10: 40, CO: 1000, NO2: 30, SO2: 10, O3: 60}

	s := airquality.SynthesizeFromCurrent(current, testNow)

	require.Len(t, s, airquality.HistoryLength)
	assertHourly(t, s)
	assert.Equal(t, testNow.Add(-48*time.Hour), s[0].Timestamp)
	assert.Equal(t, testNow.Add(-time.Hour), s[47].Timestamp)

	// Row 0 is scaled by 0.8, row 11 by 1.35, row 12 wraps back to 0.8.
	assert.InDelta(t, 16, s[0].PM25, 1e-9)
	assert.InDelta(t, 27, s[11].PM25, 1e-9)
	assert.InDelta(t, 16, s[12].PM25, 1e-9)
	assert.InDelta(t, 800, s[0].CO, 1e-9)
}

func TestSeries_Trend(t *testing.T) {
	mk := func(aqis ...float64) airquality.Series {
		s := make(airquality.Series, len(aqis))
		for i, a := range aqis {
			s[i] = airquality.Observation{AQI: a}
		}
		return s
	}

	assert.Equal(t, airquality.TrendStable, mk().Trend())
	assert.Equal(t, airquality.TrendStable, mk(10, 20).Trend())
	assert.Equal(t, airquality.TrendIncreasing, mk(10, 5, 11).Trend())
	assert.Equal(t, airquality.TrendDecreasing, mk(10, 50, 10).Trend())
}

func TestObservation_COUnits(t *testing.T) {
	o := airquality.NewObservation(airquality.Pollutants{CO: airquality.COFromMilligrams(0.8)}, testNow)

	assert.InDelta(t, 800, o.CO, 1e-9)
	assert.InDelta(t, 0.8, o.COMilligrams(), 1e-9)
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, airquality.Query{Lat: -15.7797, Lon: -47.9297}.Validate())
	assert.ErrorIs(t, airquality.Query{Lat: 90.1}.Validate(), airquality.ErrInvalidCoordinates)
	assert.ErrorIs(t, airquality.Query{Lon: -180.5}.Validate(), airquality.ErrInvalidCoordinates)
}
