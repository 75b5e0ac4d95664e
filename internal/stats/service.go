package stats

import (
	"context"
	"errors"
	"time"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

var ErrForbidden = errors.New("statistics are restricted to administrators")

const defaultLoginLimit = 200

type Count struct {
	Key   string `json:"clave"`
	Label string `json:"etiqueta,omitempty"`
	Total int    `json:"total"`
}

type Login struct {
	UserID string    `json:"usuario_id"`
	Email  string    `json:"email"`
	Role   string    `json:"tipo"`
	At     time.Time `json:"fecha_hora"`
}

// Range bounds a statistic by appointment time. Zero ends are open.
type Range struct {
	From time.Time
	To   time.Time
}

type Repository interface {
	CountBySpecialty(ctx context.Context) ([]Count, error)
	CountByDay(ctx context.Context, loc *time.Location, rng Range) ([]Count, error)
	CountBySpecialist(ctx context.Context, rng Range, statuses []string) ([]Count, error)
	Logins(ctx context.Context, limit int) ([]Login, error)
}

// Profiles resolves specialist names for the per-specialist charts.
type Profiles interface {
	Get(ctx context.Context, id string) (*user.Profile, error)
}

type Service struct {
	repo     Repository
	profiles Profiles
	loc      *time.Location
}

func NewService(repo Repository, profiles Profiles, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, profiles: profiles, loc: loc}
}

func (s *Service) BySpecialty(ctx context.Context, by identity.Session) ([]Count, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	return nonNil(s.repo.CountBySpecialty(ctx))
}

func (s *Service) ByDay(ctx context.Context, by identity.Session, rng Range) ([]Count, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	return nonNil(s.repo.CountByDay(ctx, s.loc, rng))
}

// RequestedBySpecialist counts every appointment requested per specialist in rng.
func (s *Service) RequestedBySpecialist(ctx context.Context, by identity.Session, rng Range) ([]Count, error) {
	return s.bySpecialist(ctx, by, rng, nil)
}

// CompletedBySpecialist counts only appointments marked realizado.
func (s *Service) CompletedBySpecialist(ctx context.Context, by identity.Session, rng Range) ([]Count, error) {
	return s.bySpecialist(ctx, by, rng, []string{"realizado"})
}

func (s *Service) bySpecialist(ctx context.Context, by identity.Session, rng Range, statuses []string) ([]Count, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	counts, err := nonNil(s.repo.CountBySpecialist(ctx, rng, statuses))
	if err != nil {
		return nil, err
	}

	// names are looked up per call; profiles can be renamed at any time
	names := make(map[string]string, len(counts))
	for i, c := range counts {
		name, ok := names[c.Key]
		if !ok {
			name = c.Key
			if p, err := s.profiles.Get(ctx, c.Key); err == nil {
				name = p.FullName()
			}
			names[c.Key] = name
		}
		counts[i].Label = name
	}
	return counts, nil
}

// Logins lists the most recent sign-ins, newest first.
func (s *Service) Logins(ctx context.Context, by identity.Session, limit int) ([]Login, error) {
	if !by.Is(identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultLoginLimit
	}
	logins, err := s.repo.Logins(ctx, limit)
	if err != nil {
		return nil, err
	}
	if logins == nil {
		logins = []Login{}
	}
	return logins, nil
}

func nonNil(counts []Count, err error) ([]Count, error) {
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []Count{}
	}
	return counts, nil
}
