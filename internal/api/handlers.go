package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	redisclient "github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/redis"
)

func session(r *http.Request) identity.Session {
	sess, _ := identity.FromContext(r.Context())
	return sess
}

func offeredDaysHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := svc.OfferableDates(r.Context(), pathParam(r, "id"), pathParam(r, "esp"))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		resp := make([]DayResponse, 0, len(dates))
		for _, d := range dates {
			resp = append(resp, DayResponse{
				Date:    d.Format(availability.DateLayout),
				Weekday: availability.WeekdayName(d.Weekday()),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func offeredSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := svc.ParseDate(r.URL.Query().Get("fecha"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "fecha must be YYYY-MM-DD")
			return
		}

		slots, err := svc.OfferableSlots(r.Context(), pathParam(r, "id"), pathParam(r, "esp"), date)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		resp := SlotsResponse{Date: date.Format(availability.DateLayout), Slots: make([]string, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, s.String())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// createAppointmentHandler books for the calling patient. Administrators book on behalf of
// the patient named in the body.
func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}

		sess := session(r)
		patientID := sess.UserID
		if sess.Is(identity.RoleAdmin) {
			patientID = req.PatientID
		}

		appt, err := svc.SubmitBooking(r.Context(), appointment.BookingRequest{
			SpecialistID: req.SpecialistID,
			Specialty:    req.Specialty,
			Date:         req.Date,
			Slot:         req.Slot,
			PatientID:    patientID,
		})
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := appointment.ListFilter{
			PatientID:    q.Get("paciente_id"),
			SpecialistID: q.Get("especialista_id"),
			Specialty:    q.Get("especialidad"),
		}
		if raw := q.Get("estado"); raw != "" {
			for _, st := range strings.Split(raw, ",") {
				f.Statuses = append(f.Statuses, appointment.Status(strings.TrimSpace(st)))
			}
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			f.Limit = n
		}

		var err error
		if f.From, err = queryDay(r, "desde", loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		if f.To, err = queryDay(r, "hasta", loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		if !f.To.IsZero() {
			f.To = f.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}

		list, err := svc.List(r.Context(), session(r), f)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		if list == nil {
			list = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Get(r.Context(), session(r), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func clinicalHistoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ClinicalHistory(r.Context(), session(r), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		if list == nil {
			list = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func acceptAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Accept(r.Context(), session(r), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rejectAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommentRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		appt, err := svc.Reject(r.Context(), session(r), chi.URLParam(r, "id"), req.Comment)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommentRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		appt, err := svc.Cancel(r.Context(), session(r), chi.URLParam(r, "id"), req.Comment)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.CompleteInput
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		appt, err := svc.Complete(r.Context(), session(r), chi.URLParam(r, "id"), req)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func reviewAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.ReviewInput
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		appt, err := svc.Review(r.Context(), session(r), chi.URLParam(r, "id"), req)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func surveyAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SurveyRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		appt, err := svc.Survey(r.Context(), session(r), chi.URLParam(r, "id"), req.Answers)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func handleAppointmentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrMissingSelection),
		errors.Is(err, appointment.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", err.Error())
	case errors.Is(err, appointment.ErrCommentRequired),
		errors.Is(err, appointment.ErrInvalidClinicalRecord),
		errors.Is(err, appointment.ErrReviewRequired),
		errors.Is(err, appointment.ErrInvalidRating),
		errors.Is(err, appointment.ErrInvalidSurvey):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, appointment.ErrInvalidPatient):
		writeError(w, http.StatusBadRequest, "invalid_patient", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSpecialistInactive):
		writeError(w, http.StatusUnprocessableEntity, "specialist_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotNotOffered):
		writeError(w, http.StatusUnprocessableEntity, "slot_not_offered", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, appointment.ErrStaleStatus),
		errors.Is(err, appointment.ErrSurveyNotAllowed):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAvailabilityUnknown):
		writeError(w, http.StatusServiceUnavailable, "availability_unknown", "reserved slots could not be determined, please retry")
	default:
		writeInternalError(w, r, err)
	}
}
