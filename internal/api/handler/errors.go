package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/api/middleware"
	"github.com/aqicast/aqicast/internal/api/response"
	"github.com/aqicast/aqicast/internal/forecast"
	"github.com/aqicast/aqicast/internal/prediction"
)

// writeError maps service errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, prediction.ErrModelNotFound),
		errors.Is(err, forecast.ErrForecastNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, prediction.ErrModelUnavailable),
		errors.Is(err, airquality.ErrDataUnavailable):
		response.ServiceUnavailable(w, r, err.Error())
	case errors.Is(err, airquality.ErrInvalidCoordinates),
		errors.Is(err, forecast.ErrInvalidHistory):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "prediction failed")
	}
}
