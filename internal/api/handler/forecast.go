package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/api/middleware"
	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/api/response"
	"github.com/aqicast/aqicast/internal/forecast"
)

// Hour windows accepted on the query string.
const (
	LiveDataDefaultHours = 24
	LiveDataMinHours     = 1
	PredictDefaultHours  = 48
	PredictMinHours      = 24
	MaxHours             = 120
)

// ForecastHandler handles live data and prediction endpoints.
type ForecastHandler struct {
	forecasts *forecast.Service
	defaults  forecast.Location
	logger    zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler. defaults is used when a
// request omits latitude or longitude.
func NewForecastHandler(forecasts *forecast.Service, defaults forecast.Location, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		forecasts: forecasts,
		defaults:  defaults,
		logger:    logger,
	}
}

// LiveData handles GET /live_data - hourly observations for a location.
func (h *ForecastHandler) LiveData(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r, LiveDataDefaultHours, LiveDataMinHours)
	if !ok {
		return
	}

	fetched, err := h.forecasts.LiveData(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	setSource(w, fetched.Source)
	loc := models.Location{Latitude: q.Lat, Longitude: q.Lon}
	response.JSON(w, r, http.StatusOK, models.NewLiveDataResponse(loc, fetched))
}

// PredictLive handles GET /predict_live/{modelName} - forecast from live history.
func (h *ForecastHandler) PredictLive(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r, PredictDefaultHours, PredictMinHours)
	if !ok {
		return
	}

	f, err := h.forecasts.PredictLive(r.Context(), chi.URLParam(r, "modelName"), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setSource(w, f.Source)

	response.JSON(w, r, http.StatusOK, models.NewPredictionResponse(f))
}

// PredictFromCurrent handles POST /predict_from_current/{modelName} - forecast
// from one set of current readings.
func (h *ForecastHandler) PredictFromCurrent(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	loc := forecast.Location{
		Lat: p.float("latitude", h.defaults.Lat, -90, 90),
		Lon: p.float("longitude", h.defaults.Lon, -180, 180),
	}
	if errs := p.Errors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	var input models.CurrentInput
	if err := response.DecodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid current readings", errs)
		return
	}

	f, err := h.forecasts.PredictFromCurrent(r.Context(), chi.URLParam(r, "modelName"), loc, input.Pollutants())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	setSource(w, f.Source)
	resp := models.NewPredictionResponse(f)
	resp.InputData = &input
	response.JSON(w, r, http.StatusOK, resp)
}

// PredictHistory handles POST /predict/{modelName} - forecast from a
// caller-supplied hourly history.
func (h *ForecastHandler) PredictHistory(w http.ResponseWriter, r *http.Request) {
	var req models.HistoryRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid history", errs)
		return
	}

	loc := h.defaults
	if req.Latitude != nil {
		loc.Lat = *req.Latitude
	}
	if req.Longitude != nil {
		loc.Lon = *req.Longitude
	}

	f, err := h.forecasts.PredictHistory(r.Context(), chi.URLParam(r, "modelName"), loc, req.Series())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	setSource(w, f.Source)

	response.JSON(w, r, http.StatusOK, models.NewPredictionResponse(f))
}

// ListForecasts handles GET /forecasts - recent forecasts, newest first.
func (h *ForecastHandler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	opts := forecast.ListOptions{
		Limit: p.int("limit", forecast.DefaultListLimit, 1, forecast.MaxListLimit),
		Model: r.URL.Query().Get("model"),
	}
	if errs := p.Errors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	items, err := h.forecasts.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewForecastList(items, opts.Limit))
}

// GetForecast handles GET /forecasts/{forecastId} - one stored forecast.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	f, err := h.forecasts.Get(r.Context(), chi.URLParam(r, "forecastId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewPredictionResponse(f))
}

func (h *ForecastHandler) query(w http.ResponseWriter, r *http.Request, defHours, minHours int) (airquality.Query, bool) {
	p := newQueryParser(r.URL.Query())
	q := airquality.Query{
		Lat:   p.float("latitude", h.defaults.Lat, -90, 90),
		Lon:   p.float("longitude", h.defaults.Lon, -180, 180),
		Hours: p.int("hours", defHours, minHours, MaxHours),
	}
	if errs := p.Errors(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return q, false
	}
	return q, true
}

// setSource tells clients and the metrics middleware where the input data came from.
func setSource(w http.ResponseWriter, src airquality.Source) {
	w.Header().Set(middleware.DataSourceHeader, string(src))
}
