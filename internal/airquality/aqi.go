package airquality

import "math"

// MaxAQI is the top of the AQI scale.
const MaxAQI = 500.0

// breakpoint maps a PM2.5 concentration band onto an index band.
type breakpoint struct {
	concLo, concHi float64
	aqiLo, aqiHi   float64
}

// pm25Breakpoints are the PM2.5 bands in µg/m³. The hazardous band tops out
// at 350.4; anything above it is pinned to MaxAQI.
var pm25Breakpoints = []breakpoint{
	{0, 12, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 500},
}

// Bonus is an additive, capped contribution from a secondary pollutant:
// min(value/Threshold, 1) * MaxPoints.
type Bonus struct {
	Threshold float64
	MaxPoints float64
}

func (b Bonus) points(v float64) float64 {
	if b.Threshold <= 0 || math.IsNaN(v) || v <= 0 {
		return 0
	}
	return math.Min(v/b.Threshold, 1.0) * b.MaxPoints
}

// Profile holds the secondary pollutant bonuses. CO thresholds are in µg/m³.
type Profile struct {
	Name string
	O3   Bonus
	NO2  Bonus
	SO2  Bonus
	CO   Bonus
}

// DefaultProfile is the profile used for every stored observation.
var DefaultProfile = Profile{
	Name: "default",
	O3:   Bonus{Threshold: 100, MaxPoints: 20},
	NO2:  Bonus{Threshold: 100, MaxPoints: 15},
	SO2:  Bonus{Threshold: 20, MaxPoints: 15},
	CO:   Bonus{Threshold: 1000, MaxPoints: 10},
}

// ExtendedProfile weights ozone and NO2 more heavily.
var ExtendedProfile = Profile{
	Name: "extended",
	O3:   Bonus{Threshold: 100, MaxPoints: 30},
	NO2:  Bonus{Threshold: 100, MaxPoints: 20},
	SO2:  Bonus{Threshold: 20, MaxPoints: 15},
	CO:   Bonus{Threshold: 1000, MaxPoints: 10},
}

// Profiles lists the named bonus profiles.
var Profiles = []Profile{DefaultProfile, ExtendedProfile}

// ProfileByName returns the profile called name. An empty name selects DefaultProfile.
func ProfileByName(name string) (Profile, bool) {
	if name == "" {
		return DefaultProfile, true
	}
	for _, p := range Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Calculator derives an AQI from pollutant concentrations.
//
// PM2.5 sets the base index through piecewise-linear interpolation; the other
// pollutants add capped bonuses on top. This is intentionally additive and not
// the max-of-subindices EPA method.
type Calculator struct {
	profile Profile
}

// NewCalculator creates a calculator for the given bonus profile.
func NewCalculator(p Profile) Calculator {
	return Calculator{profile: p}
}

// Profile returns the calculator's bonus profile.
func (c Calculator) Profile() Profile {
	return c.profile
}

// Calculate returns the AQI for p, clamped to [0, 500].
func (c Calculator) Calculate(p Pollutants) float64 {
	total := PM25Index(p.PM25) +
		c.profile.O3.points(p.O3) +
		c.profile.NO2.points(p.NO2) +
		c.profile.SO2.points(p.SO2) +
		c.profile.CO.points(p.CO)
	return clamp(total, 0, MaxAQI)
}

// Calculate derives an AQI with DefaultProfile.
func Calculate(p Pollutants) float64 {
	return NewCalculator(DefaultProfile).Calculate(p)
}

// PM25Index interpolates the PM2.5 concentration onto the index scale.
// Negative concentrations count as zero; NaN and anything above the top band
// return MaxAQI.
func PM25Index(c float64) float64 {
	if math.IsNaN(c) {
		return MaxAQI
	}
	if c < 0 {
		c = 0
	}
	for _, bp := range pm25Breakpoints {
		// Values in the gap between two bands take the upper band's line.
		if c <= bp.concHi {
			idx := (bp.aqiHi-bp.aqiLo)/(bp.concHi-bp.concLo)*(c-bp.concLo) + bp.aqiLo
			return math.Max(idx, 0)
		}
	}
	return MaxAQI
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return hi
	}
	return math.Max(lo, math.Min(hi, v))
}
