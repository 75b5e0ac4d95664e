package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
)

const maxBodyBytes = 1 << 20

var (
	validate = validator.New()

	errBadBody = errors.New("could not parse JSON body")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeInternalError logs err and answers 500 without exposing its text.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r.Context()).Error("request failed",
		zap.String("method", r.Method),
		zap.String("route", routePattern(r)),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// decodeBody reads a JSON object into dst and runs the struct's validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := readJSON(w, r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// writeBodyError answers 400 for a body decodeBody rejected.
func writeBodyError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "validation_failed", verrs.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
}

// pathParam returns a URL parameter with any percent-encoding removed.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// queryDay parses an optional YYYY-MM-DD query parameter in loc.
func queryDay(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(availability.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}
