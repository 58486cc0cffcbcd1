package forecast

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is how many forecasts the in-memory store retains.
const DefaultMemoryCapacity = 1000

// InMemoryRepository is an in-memory implementation of Repository.
// It keeps the most recent forecasts up to its capacity and is used when no
// database is configured.
type InMemoryRepository struct {
	mu       sync.RWMutex
	capacity int
	byID     map[string]*Forecast
	order    []string // oldest first
}

// NewInMemoryRepository creates a new in-memory forecast repository.
func NewInMemoryRepository(capacity int) *InMemoryRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryRepository{
		capacity: capacity,
		byID:     make(map[string]*Forecast),
	}
}

// Save stores a forecast, evicting the oldest when full.
func (r *InMemoryRepository) Save(_ context.Context, f *Forecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *f
	if _, exists := r.byID[f.ID]; !exists {
		r.order = append(r.order, f.ID)
	}
	r.byID[f.ID] = &cpy

	for len(r.order) > r.capacity {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

// Get retrieves a forecast by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Forecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, ErrForecastNotFound
	}

	cpy := *f
	return &cpy, nil
}

// List returns the most recent forecasts, newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) ([]*Forecast, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.limit()
	out := make([]*Forecast, 0, min(limit, len(r.order)))
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		f := r.byID[r.order[i]]
		if opts.Model != "" && f.Result.Model != opts.Model {
			continue
		}
		cpy := *f
		out = append(out, &cpy)
	}
	return out, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
