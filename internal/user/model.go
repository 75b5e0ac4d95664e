package user

import (
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
)

type Profile struct {
	ID              string        `json:"id"`
	Role            identity.Role `json:"tipo"`
	Name            string        `json:"nombre"`
	LastName        string        `json:"apellido"`
	Age             int           `json:"edad"`
	DNI             string        `json:"dni"`
	Email           string        `json:"email"`
	HealthInsurance string        `json:"obra_social,omitempty"`
	Specialties     []string      `json:"especialidades,omitempty"`
	ImageURL1       string        `json:"img_url_1"`
	ImageURL2       string        `json:"img_url_2,omitempty"`
	Approved        bool          `json:"aprobado"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (p Profile) FullName() string {
	return p.Name + " " + p.LastName
}

// Registration is a sign-up form. Patients must name their health insurance and
// specialists at least one specialty.
type Registration struct {
	Role            identity.Role `json:"tipo" validate:"required,oneof=paciente especialista administrador"`
	Name            string        `json:"nombre" validate:"required,min=2"`
	LastName        string        `json:"apellido" validate:"required,min=2"`
	Age             int           `json:"edad" validate:"gte=18,lte=120"`
	DNI             string        `json:"dni" validate:"required,numeric,min=7,max=8"`
	Email           string        `json:"email" validate:"required,email"`
	Password        string        `json:"password" validate:"required,min=6"`
	HealthInsurance string        `json:"obra_social" validate:"required_if=Role paciente"`
	Specialties     []string      `json:"especialidades" validate:"required_if=Role especialista,dive,required"`
}

type Specialty struct {
	ID    string `json:"id"`
	Name  string `json:"nombre"`
	Image string `json:"imagen,omitempty"`
}

// Specialist is an approved specialist with the availability of each specialty.
type Specialist struct {
	Profile
	Availability []availability.SpecialtyAvailability `json:"disponibilidad"`
}
