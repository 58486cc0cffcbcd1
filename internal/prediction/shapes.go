package prediction

import (
	"fmt"
	"math"
)

// Output is a raw backend result. The concrete types below are the only
// implementations; each knows how to become three horizon values.
type Output interface {
	horizons() ([3]float64, error)
}

// Scalar is a single next-period estimate. Longer horizons apply fixed growth.
type Scalar float64

// Growth factors applied to a Scalar output for 8, 12 and 24 hours.
var scalarGrowth = [3]float64{1.00, 1.02, 1.05}

func (s Scalar) horizons() ([3]float64, error) {
	var out [3]float64
	for i, g := range scalarGrowth {
		out[i] = float64(s) * g
	}
	return out, finite(out[:])
}

// Triple holds the 8, 12 and 24 hour values directly.
type Triple [3]float64

func (t Triple) horizons() ([3]float64, error) {
	return t, finite(t[:])
}

// Hourly is a step-by-step forecast starting one hour ahead.
type Hourly []float64

// MinHourly is the shortest Hourly output that covers 24 hours.
const MinHourly = 24

func (h Hourly) horizons() ([3]float64, error) {
	if len(h) < MinHourly {
		return [3]float64{}, fmt.Errorf("%w: hourly output has %d steps, need %d", ErrInvalidOutput, len(h), MinHourly)
	}
	var out [3]float64
	for i, hz := range Horizons {
		out[i] = h[int(hz)-1]
	}
	return out, finite(out[:])
}

// PerHorizon holds one value per horizon, each from its own sub-model.
type PerHorizon map[Horizon]float64

func (p PerHorizon) horizons() ([3]float64, error) {
	var out [3]float64
	for i, hz := range Horizons {
		v, ok := p[hz]
		if !ok {
			return out, fmt.Errorf("%w: missing %s horizon", ErrInvalidOutput, hz)
		}
		out[i] = v
	}
	return out, finite(out[:])
}

func finite(vs []float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidOutput)
		}
	}
	return nil
}
