package prediction

import (
	"context"
	"fmt"

	"github.com/aqicast/aqicast/internal/features"
)

// linearArtifact holds one weight row per horizon over the lag vector.
type linearArtifact struct {
	Intercepts [3]float64   `json:"intercepts"`
	Weights    [3][]float64 `json:"weights"`
}

// LinearLags is a linear regression over the reduced lag vector.
type LinearLags struct {
	intercepts [3]float64
	weights    [3][features.LagVectorLength]float64
}

func newLinearLags(a *linearArtifact) (*LinearLags, error) {
	l := &LinearLags{intercepts: a.Intercepts}
	for i, w := range a.Weights {
		if len(w) != features.LagVectorLength {
			return nil, fmt.Errorf("%s weights: got %d, need %d", Horizons[i], len(w), features.LagVectorLength)
		}
		copy(l.weights[i][:], w)
	}
	return l, nil
}

// Predict implements Backend.
func (l *LinearLags) Predict(_ context.Context, in Input) (Output, error) {
	var out Triple
	for i := range out {
		v := l.intercepts[i]
		for j, x := range in.Lags {
			v += l.weights[i][j] * x
		}
		out[i] = v
	}
	return out, nil
}
