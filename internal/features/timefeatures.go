// Package features turns a normalized 48 hour history into model input.
package features

import (
	"math"
	"time"
)

// EpochYear is the year the linear year feature is measured from.
const EpochYear = 2020

// yearScale spreads a decade over [0, 1].
const yearScale = 10.0

// TimeFeatureCount is the number of values Encode produces.
const TimeFeatureCount = 10

// TimeFeatures is the calendar encoding of one timestamp.
type TimeFeatures struct {
	HourSin, HourCos       float64
	WeekdaySin, WeekdayCos float64
	MonthSin, MonthCos     float64
	Year                   float64
	Weekend                float64
	RushHour               float64
	RushWeekday            float64
}

// Encode maps t onto cyclical and categorical calendar features.
// Weekdays count from Monday = 0 and months from January = 0.
// The timestamp is used in its own location.
func Encode(t time.Time) TimeFeatures {
	hour := t.Hour()
	weekday := (int(t.Weekday()) + 6) % 7
	month := int(t.Month()) - 1

	weekend := weekday >= 5
	rush := !weekend && ((hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19))

	hs, hc := cyclical(hour, 24)
	ws, wc := cyclical(weekday, 7)
	ms, mc := cyclical(month, 12)

	return TimeFeatures{
		HourSin:     hs,
		HourCos:     hc,
		WeekdaySin:  ws,
		WeekdayCos:  wc,
		MonthSin:    ms,
		MonthCos:    mc,
		Year:        float64(t.Year()-EpochYear) / yearScale,
		Weekend:     flag(weekend),
		RushHour:    flag(rush),
		RushWeekday: flag(rush) * flag(!weekend),
	}
}

// Values returns the features in model column order.
func (f TimeFeatures) Values() [TimeFeatureCount]float64 {
	return [TimeFeatureCount]float64{
		f.HourSin, f.HourCos,
		f.WeekdaySin, f.WeekdayCos,
		f.MonthSin, f.MonthCos,
		f.Year,
		f.Weekend,
		f.RushHour,
		f.RushWeekday,
	}
}

func cyclical(x, period int) (sin, cos float64) {
	angle := 2 * math.Pi * float64(x) / float64(period)
	return math.Sin(angle), math.Cos(angle)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
