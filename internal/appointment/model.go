package appointment

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pendiente"
	StatusAccepted  Status = "aceptado"
	StatusCompleted Status = "realizado"
	StatusCancelled Status = "cancelado"
	StatusRejected  Status = "rechazado"
)

// MaxDynamicFields bounds the free-form entries of a clinical record.
const MaxDynamicFields = 3

type Appointment struct {
	ID               string          `json:"id"`
	PatientID        string          `json:"paciente_id"`
	SpecialistID     string          `json:"especialista_id"`
	Specialty        string          `json:"especialidad"`
	StartsAt         time.Time       `json:"fecha_hora"`
	Status           Status          `json:"estado"`
	Comment          string          `json:"comentario"`
	SpecialistReview string          `json:"resena_especialista"`
	PatientReview    string          `json:"resena_paciente"`
	Rating           *int            `json:"calificacion,omitempty"`
	Diagnosis        string          `json:"diagnostico"`
	ClinicalRecord   *ClinicalRecord `json:"historia_clinica,omitempty"`
	Survey           []SurveyAnswer  `json:"encuesta"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ClinicalRecord is filled in by the specialist when an appointment is completed.
type ClinicalRecord struct {
	Height      float64        `json:"altura" validate:"gt=0"`
	Weight      float64        `json:"peso" validate:"gt=0"`
	Temperature float64        `json:"temperatura" validate:"gt=0"`
	Pressure    string         `json:"presion" validate:"required"`
	Extra       []DynamicField `json:"datosDinamicos" validate:"max=3,dive"`
}

type DynamicField struct {
	Key   string `json:"clave" validate:"required"`
	Value string `json:"valor" validate:"required"`
}

// normalize trims every text field and drops dynamic pairs left entirely blank.
func (c ClinicalRecord) normalize() ClinicalRecord {
	c.Pressure = strings.TrimSpace(c.Pressure)
	extra := make([]DynamicField, 0, len(c.Extra))
	for _, f := range c.Extra {
		f.Key = strings.TrimSpace(f.Key)
		f.Value = strings.TrimSpace(f.Value)
		if f.Key == "" && f.Value == "" {
			continue
		}
		extra = append(extra, f)
	}
	c.Extra = extra
	return c
}

type SurveyAnswer struct {
	Question string `json:"pregunta" validate:"required"`
	Answer   string `json:"respuesta" validate:"required"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	ActorID       *string
	Payload       []byte
	CreatedAt     time.Time
}

// Update lists the columns a lifecycle transition writes. Nil fields are left untouched.
type Update struct {
	Status           *Status
	Comment          *string
	SpecialistReview *string
	PatientReview    *string
	Rating           *int
	Diagnosis        *string
	ClinicalRecord   *ClinicalRecord
	Survey           []SurveyAnswer
}

// ListFilter narrows appointment listings. Empty fields match everything.
type ListFilter struct {
	PatientID    string
	SpecialistID string
	Specialty    string
	Statuses     []Status
	From         time.Time
	To           time.Time
	NewestFirst  bool
	Limit        int
}
