package prediction

import "math/rand/v2"

// fallbackTrend is the growth applied to the current AQI by the fallback estimate.
const fallbackTrend = 1.05

// fallbackNoise bounds the uniform noise added at 8, 12 and 24 hours.
var fallbackNoise = [3]float64{5, 7.5, 10}

// FallbackEstimate returns rough horizon values around the current AQI:
// current * 1.05 plus uniform noise of +-5, +-7.5 and +-10.
// Values are not clamped or rounded here.
func FallbackEstimate(current float64, rng *rand.Rand) [3]float64 {
	base := current * fallbackTrend
	var out [3]float64
	for i, n := range fallbackNoise {
		out[i] = base + (rng.Float64()*2-1)*n
	}
	return out
}
