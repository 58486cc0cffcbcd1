package handler

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/aqicast/aqicast/internal/api/models"
)

// queryParser reads bounded numeric query parameters and collects field errors.
type queryParser struct {
	values url.Values
	errs   []models.FieldError
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) float(name string, def, lo, hi float64) float64 {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.invalid(name, "must be a number")
		return def
	}
	if v < lo || v > hi {
		p.outOfRange(name, fmt.Sprintf("must be between %g and %g", lo, hi))
		return def
	}
	return v
}

func (p *queryParser) int(name string, def, lo, hi int) int {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.invalid(name, "must be an integer")
		return def
	}
	if v < lo || v > hi {
		p.outOfRange(name, fmt.Sprintf("must be between %d and %d", lo, hi))
		return def
	}
	return v
}

func (p *queryParser) invalid(name, msg string) {
	p.errs = append(p.errs, models.FieldError{Field: name, Message: msg, Code: models.CodeInvalid})
}

func (p *queryParser) outOfRange(name, msg string) {
	p.errs = append(p.errs, models.FieldError{Field: name, Message: msg, Code: models.CodeOutOfRange})
}

// Errors returns the collected field errors.
func (p *queryParser) Errors() []models.FieldError {
	return p.errs
}
