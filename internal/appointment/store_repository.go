package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

const (
	turnosCollection = "turnos"
	eventsCollection = "event_logs"
)

type StoreRepository struct {
	store store.Store
	now   func() time.Time
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{store: s, now: time.Now}
}

// Helpers

func scanAppointment(row store.Row) (*Appointment, error) {
	a := Appointment{
		ID:               store.String(row["id"]),
		PatientID:        store.String(row["paciente_id"]),
		SpecialistID:     store.String(row["especialista_id"]),
		Specialty:        store.String(row["especialidad"]),
		StartsAt:         store.Time(row["fecha_hora"]),
		Status:           Status(store.String(row["estado"])),
		Comment:          store.String(row["comentario"]),
		SpecialistReview: store.String(row["resena_especialista"]),
		PatientReview:    store.String(row["resena_paciente"]),
		Rating:           store.IntPtr(row["calificacion"]),
		Diagnosis:        store.String(row["diagnostico"]),
		CreatedAt:        store.Time(row["created_at"]),
		UpdatedAt:        store.Time(row["updated_at"]),
	}

	if v := row["historia_clinica"]; v != nil {
		var rec ClinicalRecord
		if err := store.DecodeJSON(v, &rec); err != nil {
			return nil, fmt.Errorf("decode historia_clinica of %s: %w", a.ID, err)
		}
		a.ClinicalRecord = &rec
	}
	if err := store.DecodeJSON(row["encuesta"], &a.Survey); err != nil {
		return nil, fmt.Errorf("decode encuesta of %s: %w", a.ID, err)
	}
	if a.Survey == nil {
		a.Survey = []SurveyAnswer{}
	}
	return &a, nil
}

func scanAppointments(rows []store.Row) ([]Appointment, error) {
	result := make([]Appointment, 0, len(rows))
	for _, row := range rows {
		a, err := scanAppointment(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	row, err := store.SelectOne(ctx, r.store, store.Query{
		Collection: turnosCollection,
		Filters:    []store.Filter{store.Eq("id", id)},
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return scanAppointment(row)
}

func (r *StoreRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var filters []store.Filter
	if f.PatientID != "" {
		filters = append(filters, store.Eq("paciente_id", f.PatientID))
	}
	if f.SpecialistID != "" {
		filters = append(filters, store.Eq("especialista_id", f.SpecialistID))
	}
	if f.Specialty != "" {
		filters = append(filters, store.Eq("especialidad", f.Specialty))
	}
	if len(f.Statuses) > 0 {
		filters = append(filters, store.In("estado", statusStrings(f.Statuses)...))
	}
	if !f.From.IsZero() {
		filters = append(filters, store.Gte("fecha_hora", f.From))
	}
	if !f.To.IsZero() {
		filters = append(filters, store.Lte("fecha_hora", f.To))
	}

	rows, err := r.store.Select(ctx, store.Query{
		Collection: turnosCollection,
		Filters:    filters,
		Order:      store.OrderBy("fecha_hora", f.NewestFirst),
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// ReservedStarts returns the start instants of non-cancelled appointments in [from, to].
func (r *StoreRepository) ReservedStarts(ctx context.Context, specialistID, specialty string, from, to time.Time) ([]time.Time, error) {
	rows, err := r.store.Select(ctx, store.Query{
		Collection: turnosCollection,
		Fields:     []string{"fecha_hora"},
		Filters: []store.Filter{
			store.Eq("especialista_id", specialistID),
			store.Eq("especialidad", specialty),
			store.NotIn("estado", string(StatusCancelled)),
			store.Gte("fecha_hora", from),
			store.Lte("fecha_hora", to),
		},
	})
	if err != nil {
		return nil, err
	}

	starts := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		starts = append(starts, store.Time(row["fecha_hora"]))
	}
	return starts, nil
}

// Create inserts a new appointment. A live appointment already holding the same
// specialist, specialty and start surfaces as ErrSlotTaken.
func (r *StoreRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	now := r.now()
	survey, err := store.JSON(a.Survey)
	if err != nil {
		return nil, fmt.Errorf("encode encuesta: %w", err)
	}

	row := store.Row{
		"paciente_id":         a.PatientID,
		"especialista_id":     a.SpecialistID,
		"especialidad":        a.Specialty,
		"fecha_hora":          a.StartsAt,
		"estado":              string(a.Status),
		"comentario":          a.Comment,
		"resena_especialista": a.SpecialistReview,
		"resena_paciente":     a.PatientReview,
		"diagnostico":         a.Diagnosis,
		"encuesta":            survey,
		"created_at":          now,
		"updated_at":          now,
	}
	if a.ID != "" {
		row["id"] = a.ID
	}

	inserted, err := r.store.Insert(ctx, turnosCollection, row)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return scanAppointment(inserted)
}

// UpdateIfStatus applies u only while the appointment is still in one of from. It returns
// ErrStaleStatus when the row exists but moved on, ErrAppointmentNotFound when it does not.
func (r *StoreRepository) UpdateIfStatus(ctx context.Context, id string, from []Status, u Update) (*Appointment, error) {
	patch := store.Row{"updated_at": r.now()}
	if u.Status != nil {
		patch["estado"] = string(*u.Status)
	}
	if u.Comment != nil {
		patch["comentario"] = *u.Comment
	}
	if u.SpecialistReview != nil {
		patch["resena_especialista"] = *u.SpecialistReview
	}
	if u.PatientReview != nil {
		patch["resena_paciente"] = *u.PatientReview
	}
	if u.Rating != nil {
		patch["calificacion"] = *u.Rating
	}
	if u.Diagnosis != nil {
		patch["diagnostico"] = *u.Diagnosis
	}
	if u.ClinicalRecord != nil {
		doc, err := store.JSON(u.ClinicalRecord)
		if err != nil {
			return nil, fmt.Errorf("encode historia_clinica: %w", err)
		}
		patch["historia_clinica"] = doc
	}
	if u.Survey != nil {
		doc, err := store.JSON(u.Survey)
		if err != nil {
			return nil, fmt.Errorf("encode encuesta: %w", err)
		}
		patch["encuesta"] = doc
	}

	n, err := r.store.Update(ctx, turnosCollection, patch,
		store.Eq("id", id),
		store.In("estado", statusStrings(from)...),
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}
	return r.GetByID(ctx, id)
}

func (r *StoreRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	row := store.Row{
		"event_type": ev.EventType,
		"created_at": nullableTime(ev.CreatedAt, r.now),
	}
	if ev.AppointmentID != nil {
		row["turno_id"] = *ev.AppointmentID
	}
	if ev.ActorID != nil {
		row["actor_id"] = *ev.ActorID
	}
	if ev.Payload != nil {
		row["payload"] = ev.Payload
	}

	if _, err := r.store.Insert(ctx, eventsCollection, row); err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}

// InstallMemoryIndexes mirrors the turnos_slot_unico partial index on an in-memory store.
func InstallMemoryIndexes(m *store.Memory) {
	m.AddUniqueIndex(turnosCollection, func(r store.Row) bool {
		return store.String(r["estado"]) != string(StatusCancelled)
	}, "especialista_id", "especialidad", "fecha_hora")
}
