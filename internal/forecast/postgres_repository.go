package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/prediction"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL forecast repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectForecast = `
	SELECT
		id, model, lat, lon,
		aqi_8h, aqi_12h, aqi_24h, confidence, fallback,
		input_hours, real_hours, source,
		current_aqi, current_trend,
		current_pm25, current_pm10, current_co, current_no2, current_so2, current_o3,
		observed_at, created_at
	FROM forecasts
`

// Save stores a forecast.
func (r *PostgresRepository) Save(ctx context.Context, f *Forecast) error {
	query := `
		INSERT INTO forecasts (
			id, model, lat, lon,
			aqi_8h, aqi_12h, aqi_24h, confidence, fallback,
			input_hours, real_hours, source,
			current_aqi, current_trend,
			current_pm25, current_pm10, current_co, current_no2, current_so2, current_o3,
			observed_at, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17, $18, $19, $20,
			$21, $22
		)
		ON CONFLICT (id) DO NOTHING
	`

	v := f.Result.Values()
	c := f.Current
	_, err := r.pool.Exec(ctx, query,
		f.ID, f.Result.Model, f.Location.Lat, f.Location.Lon,
		v[0], v[1], v[2], f.Result.Confidence, f.Result.Fallback,
		f.InputHours, f.RealHours, string(f.Source),
		c.AQI, string(c.Trend),
		c.Pollutants.PM25, c.Pollutants.PM10, c.Pollutants.CO, c.Pollutants.NO2, c.Pollutants.SO2, c.Pollutants.O3,
		c.ObservedAt, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// Get retrieves a forecast by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Forecast, error) {
	f, err := scanForecast(r.pool.QueryRow(ctx, selectForecast+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForecastNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns the most recent forecasts, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*Forecast, error) {
	query := selectForecast + `
		WHERE ($1 = '' OR model = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, opts.Model, opts.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []*Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		forecasts = append(forecasts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return forecasts, nil
}

// scanForecast scans one forecast row.
func scanForecast(row pgx.Row) (*Forecast, error) {
	var (
		f          Forecast
		model      string
		values     [3]float64
		confidence float64
		degraded   bool
		source     string
		trend      string
	)

	err := row.Scan(
		&f.ID, &model, &f.Location.Lat, &f.Location.Lon,
		&values[0], &values[1], &values[2], &confidence, &degraded,
		&f.InputHours, &f.RealHours, &source,
		&f.Current.AQI, &trend,
		&f.Current.Pollutants.PM25, &f.Current.Pollutants.PM10, &f.Current.Pollutants.CO,
		&f.Current.Pollutants.NO2, &f.Current.Pollutants.SO2, &f.Current.Pollutants.O3,
		&f.Current.ObservedAt, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Result = prediction.NewResult(model, values, confidence, degraded)
	f.Source = airquality.Source(source)
	f.Current.Trend = airquality.Trend(trend)
	f.Current.Category = airquality.CategoryFor(f.Current.AQI)
	return &f, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
