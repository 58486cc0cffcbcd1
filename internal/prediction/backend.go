package prediction

import "context"

// Backend produces a raw forecast from model input.
type Backend interface {
	Predict(ctx context.Context, in Input) (Output, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, in Input) (Output, error)

// Predict calls f.
func (f BackendFunc) Predict(ctx context.Context, in Input) (Output, error) {
	return f(ctx, in)
}

// Kind names a backend implementation in the registry manifest.
type Kind string

const (
	KindGradientBoosting Kind = "gradient_boosting"
	KindRandomForest     Kind = "random_forest"
	KindLinearLags       Kind = "linear_lags"
	KindRemoteSequence   Kind = "remote_sequence"
)
