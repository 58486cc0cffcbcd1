package forecast

import "context"

// Listing bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListOptions contains options for listing forecasts.
type ListOptions struct {
	Limit int

	// Model restricts the listing to one model when set.
	Model string
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// Repository defines the interface for forecast persistence.
type Repository interface {
	// Save stores a forecast.
	Save(ctx context.Context, f *Forecast) error

	// Get retrieves a forecast by ID.
	// Returns ErrForecastNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Forecast, error)

	// List returns the most recent forecasts, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Forecast, error)
}
