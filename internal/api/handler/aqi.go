package handler

import (
	"net/http"
	"time"

	"github.com/aqicast/aqicast/internal/airquality"
	"github.com/aqicast/aqicast/internal/api/models"
	"github.com/aqicast/aqicast/internal/api/response"
)

// AQIHandler exposes the AQI calculator.
type AQIHandler struct {
	now func() time.Time
}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler() *AQIHandler {
	return &AQIHandler{now: time.Now}
}

// Calculate handles POST /aqi - AQI for one set of readings.
func (h *AQIHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req models.AQIRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid readings", errs)
		return
	}

	profile, _ := airquality.ProfileByName(req.Profile)
	aqi := airquality.NewCalculator(profile).Calculate(req.Pollutants())

	response.JSON(w, r, http.StatusOK, models.NewAQIResponse(aqi, profile.Name, h.now().UTC()))
}
