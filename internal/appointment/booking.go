package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	redisclient "github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/redis"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

var (
	ErrMissingSelection    = errors.New("specialist, specialty, date, slot and patient must all be selected")
	ErrInvalidSelection    = errors.New("malformed date or slot")
	ErrAvailabilityUnknown = errors.New("reserved slots could not be determined")
	ErrSlotNotOffered      = errors.New("slot is not offered by the specialist")
	ErrSlotTaken           = errors.New("slot already has an appointment")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
	ErrSpecialistInactive  = errors.New("specialist does not exist or is not approved")
	ErrInvalidPatient      = errors.New("appointments can only be booked for an existing patient")
)

// BookingRequest carries the five selections a patient makes before submitting.
type BookingRequest struct {
	SpecialistID string `json:"especialista_id" validate:"required"`
	Specialty    string `json:"especialidad" validate:"required"`
	Date         string `json:"fecha" validate:"required"`
	Slot         string `json:"horario" validate:"required"`
	PatientID    string `json:"paciente_id" validate:"required"`
}

// hasRole reports whether id is an existing account of role, approved by an administrator.
// Ids that are not UUIDs never match.
func (s *Service) hasRole(ctx context.Context, id string, role identity.Role) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	got, approved, err := s.accounts.Account(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load account %s: %w", id, err)
	}
	return got == role && approved, nil
}

// rules loads and compiles the availability of one specialty. Malformed stored rules are
// logged and skipped. A specialist who is unknown or no longer approved offers nothing.
func (s *Service) rules(ctx context.Context, specialistID, specialty string) ([]availability.Rule, error) {
	active, err := s.hasRole(ctx, specialistID, identity.RoleSpecialist)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, nil
	}

	list, err := s.avail.Get(ctx, specialistID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	spec, ok := availability.FindSpecialty(list, specialty)
	if !ok {
		return nil, nil
	}

	rules, diags := availability.CompileRules(spec.Rules)
	for _, d := range diags {
		s.log.Warn("skipping malformed availability rule",
			zap.String("specialist_id", specialistID),
			zap.String("specialty", specialty),
			zap.Error(d),
		)
	}
	return rules, nil
}

// OfferableDates lists the days, starting today, on which the specialist works the specialty.
func (s *Service) OfferableDates(ctx context.Context, specialistID, specialty string) (dates []time.Time, err error) {
	defer func() { s.metrics.ObserveSlotQuery("dates", err) }()

	rules, err := s.rules(ctx, specialistID, specialty)
	if err != nil {
		return nil, err
	}
	return availability.ExpandCandidateDates(rules, s.now().In(s.location()), s.lookahead()), nil
}

// ReservedStartTimes returns the start times already taken on date by appointments that are
// not cancelled. A store failure is reported as ErrAvailabilityUnknown, never as an empty set.
func (s *Service) ReservedStartTimes(ctx context.Context, specialistID, specialty string, date time.Time) (availability.Reserved, error) {
	loc := s.location()
	from := availability.StartOfDay(date.In(loc))
	to := from.AddDate(0, 0, 1).Add(-time.Millisecond)

	starts, err := s.repo.ReservedStarts(ctx, specialistID, specialty, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAvailabilityUnknown, err)
	}
	return availability.ReservedFrom(starts, loc), nil
}

// OfferableSlots expands the specialist's rules for date and removes the reserved starts.
func (s *Service) OfferableSlots(ctx context.Context, specialistID, specialty string, date time.Time) (slots []availability.Slot, err error) {
	defer func() {
		s.metrics.ObserveSlotQuery("slots", err)
		if err == nil {
			s.metrics.ObserveOfferedSlots(len(slots))
		}
	}()

	rules, err := s.rules(ctx, specialistID, specialty)
	if err != nil {
		return nil, err
	}
	candidates := availability.ExpandSlotsForDate(rules, date.In(s.location()))
	if len(candidates) == 0 {
		return []availability.Slot{}, nil
	}

	reserved, err := s.ReservedStartTimes(ctx, specialistID, specialty, date)
	if err != nil {
		return nil, err
	}
	return availability.AvailableSlots(candidates, reserved), nil
}

// ParseDate reads a YYYY-MM-DD day in the service's time zone.
func (s *Service) ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(availability.DateLayout, strings.TrimSpace(raw), s.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	return d, nil
}

// SubmitBooking creates a pending appointment for the selected slot. The offer and the
// reservation are re-checked under a per-slot lock before inserting.
func (s *Service) SubmitBooking(ctx context.Context, req BookingRequest) (created *Appointment, err error) {
	defer func() { s.metrics.ObserveBooking(bookingOutcome(err)) }()

	req.SpecialistID = strings.TrimSpace(req.SpecialistID)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.PatientID = strings.TrimSpace(req.PatientID)
	if err := validate.Struct(req); err != nil {
		return nil, ErrMissingSelection
	}

	date, err := s.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	slot, err := availability.ParseSlot(req.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	startsAt := slot.Start.On(date)

	ok, err := s.hasRole(ctx, req.SpecialistID, identity.RoleSpecialist)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSpecialistInactive
	}
	ok, err = s.hasRole(ctx, req.PatientID, identity.RolePatient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPatient
	}

	key := redisclient.SlotKey(req.SpecialistID, req.Specialty, startsAt)
	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		if err := s.checkOffered(lockCtx, req.SpecialistID, req.Specialty, date, slot); err != nil {
			return err
		}

		reserved, err := s.ReservedStartTimes(lockCtx, req.SpecialistID, req.Specialty, date)
		if err != nil {
			return err
		}
		if reserved.Has(slot.Start) {
			return ErrSlotTaken
		}

		appt, err := s.repo.Create(lockCtx, Appointment{
			PatientID:    req.PatientID,
			SpecialistID: req.SpecialistID,
			Specialty:    req.Specialty,
			StartsAt:     startsAt,
			Status:       StatusPending,
			Survey:       []SurveyAnswer{},
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, req.PatientID, EventAppointmentRequested, map[string]any{
			"especialista_id": req.SpecialistID,
			"especialidad":    req.Specialty,
			"fecha_hora":      startsAt,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info("appointment requested",
		zap.String("appointment_id", created.ID),
		zap.String("specialist_id", created.SpecialistID),
		zap.Time("starts_at", created.StartsAt),
	)
	return created, nil
}

// checkOffered re-runs the resolver: the date must be inside the lookahead window and the
// slot one of the steps generated for it.
func (s *Service) checkOffered(ctx context.Context, specialistID, specialty string, date time.Time, slot availability.Slot) error {
	rules, err := s.rules(ctx, specialistID, specialty)
	if err != nil {
		return err
	}

	inWindow := false
	for _, d := range availability.ExpandCandidateDates(rules, s.now().In(s.location()), s.lookahead()) {
		if d.Equal(date) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return fmt.Errorf("%w: %s is not an offered date", ErrSlotNotOffered, date.Format(availability.DateLayout))
	}

	for _, c := range availability.ExpandSlotsForDate(rules, date) {
		if c == slot {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSlotNotOffered, slot)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrMissingSelection), errors.Is(err, ErrInvalidSelection),
		errors.Is(err, ErrSpecialistInactive), errors.Is(err, ErrInvalidPatient):
		return "invalid"
	case errors.Is(err, ErrSlotNotOffered):
		return "not_offered"
	case errors.Is(err, ErrSlotTaken):
		return "taken"
	case errors.Is(err, ErrSlotBeingBooked):
		return "contended"
	case errors.Is(err, ErrAvailabilityUnknown):
		return "unknown"
	default:
		return "error"
	}
}
