package api

import (
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
)

type CreateAppointmentRequest struct {
	SpecialistID string `json:"especialista_id"`
	Specialty    string `json:"especialidad"`
	Date         string `json:"fecha"`
	Slot         string `json:"horario"`
	PatientID    string `json:"paciente_id,omitempty"`
}

type CommentRequest struct {
	Comment string `json:"comentario"`
}

type SurveyRequest struct {
	Answers []appointment.SurveyAnswer `json:"respuestas"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignInResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	UserID      string        `json:"user_id"`
	Role        identity.Role `json:"role"`
}

type ApprovalRequest struct {
	Approved *bool `json:"aprobado" validate:"required"`
}

type DayResponse struct {
	Date    string `json:"fecha"`
	Weekday string `json:"dia"`
}

type SlotsResponse struct {
	Date  string   `json:"fecha"`
	Slots []string `json:"horarios"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
