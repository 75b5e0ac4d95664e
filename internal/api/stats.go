package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/stats"
)

type countsFunc func(ctx context.Context, by identity.Session, rng stats.Range) ([]stats.Count, error)

// statsRange reads the optional desde/hasta days; hasta includes its whole day.
func statsRange(r *http.Request, loc *time.Location) (stats.Range, error) {
	from, err := queryDay(r, "desde", loc)
	if err != nil {
		return stats.Range{}, err
	}
	to, err := queryDay(r, "hasta", loc)
	if err != nil {
		return stats.Range{}, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return stats.Range{From: from, To: to}, nil
}

func rangedStatsHandler(fn countsFunc, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := statsRange(r, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		counts, err := fn(r.Context(), session(r), rng)
		if err != nil {
			handleStatsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func bySpecialtyHandler(svc *stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.BySpecialty(r.Context(), session(r))
		if err != nil {
			handleStatsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func loginsHandler(svc *stats.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = n
		}
		logins, err := svc.Logins(r.Context(), session(r), limit)
		if err != nil {
			handleStatsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, logins)
	}
}

func handleStatsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stats.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}
