package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
)

type fakeCredentials struct {
	n      int
	emails []string
}

func (f *fakeCredentials) SignUp(_ context.Context, email, _ string) (string, error) {
	f.n++
	f.emails = append(f.emails, email)
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", f.n), nil
}

func newService(t *testing.T) (*Service, *fakeCredentials, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	InstallMemoryIndexes(mem)
	creds := &fakeCredentials{}
	svc := NewService(NewStoreRepository(mem), creds, availability.NewStoreRepository(mem), zap.NewNop())
	return svc, creds, mem
}

func patientRegistration() Registration {
	return Registration{
		Role:            identity.RolePatient,
		Name:            "Ana",
		LastName:        "García",
		Age:             34,
		DNI:             "30111222",
		Email:           "Ana@Example.com ",
		Password:        "secreto",
		HealthInsurance: "OSDE",
	}
}

func specialistRegistration() Registration {
	return Registration{
		Role:        identity.RoleSpecialist,
		Name:        "Luis",
		LastName:    "Pérez",
		Age:         45,
		DNI:         "20111222",
		Email:       "luis@example.com",
		Password:    "secreto",
		Specialties: []string{"Cardiología", " Cardiología ", "Traumatología"},
	}
}

func TestRegister_Patient(t *testing.T) {
	svc, creds, _ := newService(t)

	p, err := svc.Register(context.Background(), identity.Session{}, patientRegistration())
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.True(t, p.Approved)
	assert.Empty(t, p.Specialties)
	assert.Equal(t, []string{"ana@example.com"}, creds.emails)
}

func TestRegister_SpecialistStartsUnapproved(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Register(ctx, identity.Session{}, specialistRegistration())
	require.NoError(t, err)
	assert.False(t, p.Approved)
	assert.Equal(t, []string{"Cardiología", "Traumatología"}, p.Specialties)

	specialties, err := svc.ListSpecialties(ctx)
	require.NoError(t, err)
	require.Len(t, specialties, 2)
	assert.Equal(t, "Cardiología", specialties[0].Name)

	// A second specialist reusing a specialty does not duplicate it.
	other := specialistRegistration()
	other.Email = "otro@example.com"
	other.Specialties = []string{"Cardiología"}
	_, err = svc.Register(ctx, identity.Session{}, other)
	require.NoError(t, err)
	specialties, err = svc.ListSpecialties(ctx)
	require.NoError(t, err)
	assert.Len(t, specialties, 2)
}

func TestRegister_Invalid(t *testing.T) {
	svc, creds, _ := newService(t)
	ctx := context.Background()

	cases := map[string]func(*Registration){
		"minor":        func(r *Registration) { r.Age = 17 },
		"short dni":    func(r *Registration) { r.DNI = "123" },
		"bad email":    func(r *Registration) { r.Email = "nope" },
		"no insurance": func(r *Registration) { r.HealthInsurance = "" },
		"short pass":   func(r *Registration) { r.Password = "123" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			reg := patientRegistration()
			mutate(&reg)
			_, err := svc.Register(ctx, identity.Session{}, reg)
			assert.ErrorIs(t, err, ErrInvalidRegistration)
		})
	}

	noSpecialty := specialistRegistration()
	noSpecialty.Specialties = []string{"  "}
	_, err := svc.Register(ctx, identity.Session{}, noSpecialty)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	assert.Zero(t, creds.n, "credentials are never created for invalid forms")
}

func TestRegister_AdminOnlyByAdmin(t *testing.T) {
	svc, _, _ := newService(t)
	reg := patientRegistration()
	reg.Role = identity.RoleAdmin

	_, err := svc.Register(context.Background(), identity.Session{}, reg)
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := svc.Register(context.Background(), identity.Session{UserID: "root", Role: identity.RoleAdmin}, reg)
	require.NoError(t, err)
	assert.Empty(t, p.HealthInsurance)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Register(context.Background(), identity.Session{}, patientRegistration())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), identity.Session{}, patientRegistration())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestApprovalAndSpecialistListing(t *testing.T) {
	svc, _, mem := newService(t)
	ctx := context.Background()
	admin := identity.Session{UserID: "root", Role: identity.RoleAdmin}

	spec, err := svc.Register(ctx, identity.Session{}, specialistRegistration())
	require.NoError(t, err)

	listed, err := svc.ListSpecialists(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed, "unapproved specialists are hidden")

	_, err = svc.SetApproval(ctx, identity.Session{UserID: spec.ID, Role: identity.RoleSpecialist}, spec.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := svc.SetApproval(ctx, admin, spec.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	_, err = svc.SetApproval(ctx, admin, "missing", true)
	assert.ErrorIs(t, err, ErrUserNotFound)

	role, ok, err := NewStoreRepository(mem).Account(ctx, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleSpecialist, role)
	assert.True(t, ok)

	session := identity.Session{UserID: spec.ID, Role: identity.RoleSpecialist}
	saved, err := svc.SaveAvailability(ctx, session, []availability.SpecialtyAvailability{{
		Name:  "Cardiología",
		Rules: []availability.RawRule{{Day: "Lunes", From: "9:00", To: "12:00"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "lunes", saved[0].Rules[0].Day)

	_, err = svc.SaveAvailability(ctx, session, []availability.SpecialtyAvailability{{
		Name:  "Pediatría",
		Rules: []availability.RawRule{{Day: "lunes", From: "09:00", To: "12:00"}},
	}})
	assert.ErrorIs(t, err, availability.ErrNotOffered)

	listed, err = svc.ListSpecialists(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, spec.ID, listed[0].ID)
	assert.Equal(t, saved, listed[0].Availability)

	all, err := svc.ListByRole(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSetImage(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, identity.Session{}, patientRegistration())
	require.NoError(t, err)

	updated, err := svc.SetImage(ctx, p.ID, 2, "http://cdn/usuarios/x/2.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/usuarios/x/2.png", updated.ImageURL2)

	_, err = svc.SetImage(ctx, p.ID, 3, "x")
	assert.ErrorIs(t, err, ErrInvalidImages)
}
