package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/metrics"
	redisclient "github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/redis"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentAccepted  = "APPOINTMENT_ACCEPTED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentReviewed  = "APPOINTMENT_REVIEWED"
	EventSurveyAnswered       = "APPOINTMENT_SURVEY_ANSWERED"
)

var (
	ErrForbidden               = errors.New("not allowed to act on this appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCommentRequired         = errors.New("a comment is required")
	ErrInvalidClinicalRecord   = errors.New("invalid clinical record")
	ErrReviewRequired          = errors.New("review text is required")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrSurveyNotAllowed        = errors.New("survey requires a completed appointment with a diagnosis")
	ErrInvalidSurvey           = errors.New("survey needs at least one answered question")
)

var validate = validator.New()

// Accounts resolves the role of a user and whether an administrator approved it.
type Accounts interface {
	Account(ctx context.Context, id string) (role identity.Role, approved bool, err error)
}

type Service struct {
	repo     Repository
	avail    availability.Repository
	accounts Accounts
	locker   redisclient.Locker
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(repo Repository, avail availability.Repository, accounts Accounts, locker redisclient.Locker, cfg config.Config, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		avail:    avail,
		accounts: accounts,
		locker:   locker,
		cfg:      cfg,
		log:      logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.Local
}

func (s *Service) lookahead() int {
	if s.cfg.LookaheadDays > 0 {
		return s.cfg.LookaheadDays
	}
	return availability.DefaultLookaheadDays
}

// CompleteInput is what a specialist submits to close an appointment.
type CompleteInput struct {
	Record    ClinicalRecord `json:"historia_clinica"`
	Diagnosis string         `json:"diagnostico"`
	Review    string         `json:"resena"`
}

// ReviewInput is the patient's review of a completed appointment.
type ReviewInput struct {
	Text   string `json:"resena"`
	Rating *int   `json:"calificacion,omitempty"`
}

// transition is one guarded status change.
type transition struct {
	event  string
	from   []Status
	update Update
}

// Accept moves a pending appointment to aceptado. Only its specialist may accept it.
func (s *Service) Accept(ctx context.Context, sess identity.Session, id string) (*Appointment, error) {
	return s.apply(ctx, sess, id, "aceptar", func(a *Appointment) (transition, error) {
		if !s.ownsAsSpecialist(sess, a) {
			return transition{}, ErrForbidden
		}
		to := StatusAccepted
		return transition{
			event:  EventAppointmentAccepted,
			from:   []Status{StatusPending},
			update: Update{Status: &to},
		}, nil
	})
}

// Reject moves a pending appointment to rechazado with the specialist's reason.
func (s *Service) Reject(ctx context.Context, sess identity.Session, id, comment string) (*Appointment, error) {
	return s.apply(ctx, sess, id, "rechazar", func(a *Appointment) (transition, error) {
		if !s.ownsAsSpecialist(sess, a) {
			return transition{}, ErrForbidden
		}
		comment = strings.TrimSpace(comment)
		if comment == "" {
			return transition{}, ErrCommentRequired
		}
		to := StatusRejected
		return transition{
			event:  EventAppointmentRejected,
			from:   []Status{StatusPending},
			update: Update{Status: &to, Comment: &comment},
		}, nil
	})
}

// Cancel moves an appointment to cancelado. Patients and admins may cancel pending or
// accepted appointments; the specialist only pending ones.
func (s *Service) Cancel(ctx context.Context, sess identity.Session, id, comment string) (*Appointment, error) {
	return s.apply(ctx, sess, id, "cancelar", func(a *Appointment) (transition, error) {
		var from []Status
		switch {
		case sess.Is(identity.RoleAdmin), s.ownsAsPatient(sess, a):
			from = []Status{StatusPending, StatusAccepted}
		case s.ownsAsSpecialist(sess, a):
			from = []Status{StatusPending}
		default:
			return transition{}, ErrForbidden
		}
		comment = strings.TrimSpace(comment)
		if comment == "" {
			return transition{}, ErrCommentRequired
		}
		to := StatusCancelled
		return transition{
			event:  EventAppointmentCancelled,
			from:   from,
			update: Update{Status: &to, Comment: &comment},
		}, nil
	})
}

// Complete closes an accepted appointment with the clinical record, diagnosis and the
// specialist's review.
func (s *Service) Complete(ctx context.Context, sess identity.Session, id string, in CompleteInput) (*Appointment, error) {
	return s.apply(ctx, sess, id, "finalizar", func(a *Appointment) (transition, error) {
		if !s.ownsAsSpecialist(sess, a) {
			return transition{}, ErrForbidden
		}
		record := in.Record.normalize()
		if err := validate.Struct(record); err != nil {
			return transition{}, fmt.Errorf("%w: %v", ErrInvalidClinicalRecord, err)
		}
		diagnosis := strings.TrimSpace(in.Diagnosis)
		review := strings.TrimSpace(in.Review)
		if diagnosis == "" || review == "" {
			return transition{}, fmt.Errorf("%w: diagnosis and review are required", ErrInvalidClinicalRecord)
		}
		to := StatusCompleted
		return transition{
			event: EventAppointmentCompleted,
			from:  []Status{StatusAccepted},
			update: Update{
				Status:           &to,
				ClinicalRecord:   &record,
				Diagnosis:        &diagnosis,
				SpecialistReview: &review,
			},
		}, nil
	})
}

// Review stores the patient's review of a completed appointment.
func (s *Service) Review(ctx context.Context, sess identity.Session, id string, in ReviewInput) (*Appointment, error) {
	return s.apply(ctx, sess, id, "resena", func(a *Appointment) (transition, error) {
		if !s.ownsAsPatient(sess, a) {
			return transition{}, ErrForbidden
		}
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return transition{}, ErrReviewRequired
		}
		if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
			return transition{}, ErrInvalidRating
		}
		return transition{
			event:  EventAppointmentReviewed,
			from:   []Status{StatusCompleted},
			update: Update{PatientReview: &text, Rating: in.Rating},
		}, nil
	})
}

// Survey stores the patient's answers. It is only open once the specialist left a diagnosis.
func (s *Service) Survey(ctx context.Context, sess identity.Session, id string, answers []SurveyAnswer) (*Appointment, error) {
	return s.apply(ctx, sess, id, "encuesta", func(a *Appointment) (transition, error) {
		if !s.ownsAsPatient(sess, a) {
			return transition{}, ErrForbidden
		}
		if a.Status != StatusCompleted || strings.TrimSpace(a.Diagnosis) == "" {
			return transition{}, ErrSurveyNotAllowed
		}
		if len(answers) == 0 {
			return transition{}, ErrInvalidSurvey
		}
		for i := range answers {
			answers[i].Question = strings.TrimSpace(answers[i].Question)
			answers[i].Answer = strings.TrimSpace(answers[i].Answer)
			if err := validate.Struct(answers[i]); err != nil {
				return transition{}, fmt.Errorf("%w: %v", ErrInvalidSurvey, err)
			}
		}
		return transition{
			event:  EventSurveyAnswered,
			from:   []Status{StatusCompleted},
			update: Update{Survey: answers},
		}, nil
	})
}

// apply loads the appointment, lets plan decide the transition and writes it conditionally
// on the current status.
func (s *Service) apply(ctx context.Context, sess identity.Session, id, action string, plan func(*Appointment) (transition, error)) (appt *Appointment, err error) {
	defer func() { s.metrics.ObserveTransition(action, err) }()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	tr, err := plan(current)
	if err != nil {
		return nil, err
	}
	if !hasStatus(tr.from, current.Status) {
		return nil, fmt.Errorf("%w: %s from %s", ErrInvalidStatusTransition, action, current.Status)
	}

	updated, err := s.repo.UpdateIfStatus(ctx, id, tr.from, tr.update)
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %s raced with another change", ErrInvalidStatusTransition, action)
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s appointment: %w", action, err)
	}

	payload := map[string]any{"from": current.Status, "to": updated.Status}
	if tr.update.Comment != nil {
		payload["comment"] = *tr.update.Comment
	}
	s.logEvent(ctx, updated.ID, sess.UserID, tr.event, payload)

	return updated, nil
}

func hasStatus(list []Status, st Status) bool {
	for _, v := range list {
		if v == st {
			return true
		}
	}
	return false
}

func (s *Service) ownsAsSpecialist(sess identity.Session, a *Appointment) bool {
	return sess.Is(identity.RoleSpecialist) && sess.UserID == a.SpecialistID
}

func (s *Service) ownsAsPatient(sess identity.Session, a *Appointment) bool {
	return sess.Is(identity.RolePatient) && sess.UserID == a.PatientID
}

func (s *Service) canView(sess identity.Session, a *Appointment) bool {
	return sess.Is(identity.RoleAdmin) || s.ownsAsPatient(sess, a) || s.ownsAsSpecialist(sess, a)
}

func (s *Service) logEvent(ctx context.Context, appointmentID, actorID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if actorID != "" {
		ev.ActorID = &actorID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

// Get returns one appointment visible to the caller.
func (s *Service) Get(ctx context.Context, sess identity.Session, id string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !s.canView(sess, appt) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// List returns the caller's appointments: patients see their own, specialists the ones
// assigned to them (newest first), admins everything matching f.
func (s *Service) List(ctx context.Context, sess identity.Session, f ListFilter) ([]Appointment, error) {
	switch sess.Role {
	case identity.RolePatient:
		f.PatientID = sess.UserID
	case identity.RoleSpecialist:
		f.SpecialistID = sess.UserID
		f.NewestFirst = true
	case identity.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}

	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// ClinicalHistory lists the completed appointments of a patient. Patients read their own,
// admins any, specialists only patients they have attended.
func (s *Service) ClinicalHistory(ctx context.Context, sess identity.Session, patientID string) ([]Appointment, error) {
	done := []Status{StatusCompleted}

	switch sess.Role {
	case identity.RoleAdmin:
	case identity.RolePatient:
		if sess.UserID != patientID {
			return nil, ErrForbidden
		}
	case identity.RoleSpecialist:
		attended, err := s.repo.List(ctx, ListFilter{PatientID: patientID, SpecialistID: sess.UserID, Statuses: done, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("check attended patient: %w", err)
		}
		if len(attended) == 0 {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	list, err := s.repo.List(ctx, ListFilter{PatientID: patientID, Statuses: done, NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("clinical history: %w", err)
	}
	return list, nil
}
