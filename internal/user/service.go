package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
)

var (
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrForbidden           = errors.New("operation requires an administrator")
)

var validate = validator.New()

// Credentials creates the login for a new profile and returns its user id.
type Credentials interface {
	SignUp(ctx context.Context, email, password string) (string, error)
}

type Service struct {
	repo  Repository
	creds Credentials
	avail availability.Repository
	log   *zap.Logger
}

func NewService(repo Repository, creds Credentials, avail availability.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, creds: creds, avail: avail, log: logger}
}

// Register signs up the credentials and stores the profile. Anyone may register as a
// patient or specialist; only an administrator may create another administrator.
// Specialists start unapproved.
func (s *Service) Register(ctx context.Context, by identity.Session, reg Registration) (*Profile, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.DNI = strings.TrimSpace(reg.DNI)
	reg.HealthInsurance = strings.TrimSpace(reg.HealthInsurance)

	specialties := make([]string, 0, len(reg.Specialties))
	seen := map[string]bool{}
	for _, sp := range reg.Specialties {
		sp = strings.TrimSpace(sp)
		if sp != "" && !seen[sp] {
			seen[sp] = true
			specialties = append(specialties, sp)
		}
	}
	reg.Specialties = specialties

	if err := validate.Struct(reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	if reg.Role == identity.RoleSpecialist && len(reg.Specialties) == 0 {
		return nil, fmt.Errorf("%w: specialists need at least one specialty", ErrInvalidRegistration)
	}
	if reg.Role == identity.RoleAdmin && !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}

	if reg.Role == identity.RoleSpecialist {
		for _, sp := range reg.Specialties {
			if err := s.repo.EnsureSpecialty(ctx, sp); err != nil {
				return nil, err
			}
		}
	} else {
		reg.Specialties = nil
	}
	if reg.Role != identity.RolePatient {
		reg.HealthInsurance = ""
	}

	id, err := s.creds.SignUp(ctx, reg.Email, reg.Password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	profile, err := s.repo.Insert(ctx, Profile{
		ID:              id,
		Role:            reg.Role,
		Name:            reg.Name,
		LastName:        reg.LastName,
		Age:             reg.Age,
		DNI:             reg.DNI,
		Email:           reg.Email,
		HealthInsurance: reg.HealthInsurance,
		Specialties:     reg.Specialties,
		Approved:        reg.Role != identity.RoleSpecialist,
	})
	if err != nil {
		s.log.Error("profile insert failed after sign up", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", id), zap.String("role", string(reg.Role)))
	return profile, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.Get(ctx, id)
}

// SetApproval lets an administrator enable or disable a specialist's access.
func (s *Service) SetApproval(ctx context.Context, by identity.Session, id string, approved bool) (*Profile, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	if err := s.repo.SetApproval(ctx, id, approved); err != nil {
		return nil, err
	}
	s.log.Info("approval changed", zap.String("user_id", id), zap.Bool("approved", approved), zap.String("by", by.UserID))
	return s.repo.Get(ctx, id)
}

// ListByRole is the administrator's user listing. An empty role lists everyone.
func (s *Service) ListByRole(ctx context.Context, by identity.Session, role identity.Role) ([]Profile, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.repo.ListByRole(ctx, role)
}

func (s *Service) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	return s.repo.ListSpecialties(ctx)
}

// ListSpecialists returns the approved specialists, each with the availability they saved.
func (s *Service) ListSpecialists(ctx context.Context) ([]Specialist, error) {
	profiles, err := s.repo.ListByRole(ctx, identity.RoleSpecialist)
	if err != nil {
		return nil, err
	}

	out := make([]Specialist, 0, len(profiles))
	for _, p := range profiles {
		if !p.Approved {
			continue
		}
		list, err := s.avail.Get(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("availability of %s: %w", p.ID, err)
		}
		if list == nil {
			list = []availability.SpecialtyAvailability{}
		}
		out = append(out, Specialist{Profile: p, Availability: list})
	}
	return out, nil
}

// SaveAvailability validates and stores the specialist's weekly hours.
func (s *Service) SaveAvailability(ctx context.Context, by identity.Session, list []availability.SpecialtyAvailability) ([]availability.SpecialtyAvailability, error) {
	if !by.Is(identity.RoleSpecialist) {
		return nil, ErrForbidden
	}
	p, err := s.repo.Get(ctx, by.UserID)
	if err != nil {
		return nil, err
	}

	clean, err := availability.ValidateForEditing(list, p.Specialties)
	if err != nil {
		return nil, err
	}
	if err := s.avail.Save(ctx, by.UserID, clean); err != nil {
		return nil, err
	}
	return clean, nil
}

func (s *Service) Availability(ctx context.Context, specialistID string) ([]availability.SpecialtyAvailability, error) {
	list, err := s.avail.Get(ctx, specialistID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []availability.SpecialtyAvailability{}
	}
	return list, nil
}

// SetImage records the public URL of profile image n (1 or 2).
func (s *Service) SetImage(ctx context.Context, id string, n int, url string) (*Profile, error) {
	if err := s.repo.SetImage(ctx, id, n, url); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
