package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/auth"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/db"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

// every seeded account shares this password
const seedPassword = "turnos123"

var specialties = []string{
	"Cardiología",
	"Clínica Médica",
	"Dermatología",
	"Pediatría",
	"Traumatología",
	"Ginecología",
	"Oftalmología",
	"Neurología",
	"Psiquiatría",
	"Otorrinolaringología",
}

var insurers = []string{"OSDE", "Swiss Medical", "Galeno", "IOMA", "PAMI", "Medifé"}

var weekdays = []string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	nSpecialists := flag.Int("specialists", 20, "specialists to create")
	nPatients := flag.Int("patients", 200, "patients to create")
	seed := flag.Uint64("seed", 0, "faker seed, 0 picks a random one")
	flag.Parse()

	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	st := store.NewPgStore(pool)
	userRepo := user.NewStoreRepository(st)
	authSvc := auth.NewService(st, userRepo, nil, cfg, zap.NewNop())
	s := &seeder{
		users: user.NewService(userRepo, authSvc, availability.NewStoreRepository(st), zap.NewNop()),
		faker: gofakeit.New(*seed),
		admin: identity.Session{UserID: "seed", Role: identity.RoleAdmin},
	}

	if err := s.seedAdmin(ctx); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := s.seedSpecialists(ctx, *nSpecialists); err != nil {
		log.Fatalf("seed specialists: %v", err)
	}
	if err := s.seedPatients(ctx, *nPatients); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Printf("seed complete, password for every account: %s", seedPassword)
}

type seeder struct {
	users *user.Service
	faker *gofakeit.Faker
	admin identity.Session
}

func (s *seeder) registration(role identity.Role, email string) user.Registration {
	return user.Registration{
		Role:     role,
		Name:     s.faker.FirstName(),
		LastName: s.faker.LastName(),
		Age:      s.faker.Number(18, 90),
		DNI:      strconv.Itoa(s.faker.Number(10000000, 45000000)),
		Email:    email,
		Password: seedPassword,
	}
}

// register skips accounts left over from a previous run.
func (s *seeder) register(ctx context.Context, reg user.Registration) (*user.Profile, bool, error) {
	p, err := s.users.Register(ctx, s.admin, reg)
	if errors.Is(err, auth.ErrEmailTaken) || errors.Is(err, user.ErrEmailTaken) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *seeder) seedAdmin(ctx context.Context) error {
	_, created, err := s.register(ctx, s.registration(identity.RoleAdmin, "admin@clinica.test"))
	if err != nil {
		return err
	}
	if created {
		log.Println("admin created: admin@clinica.test")
	}
	return nil
}

func (s *seeder) seedSpecialists(ctx context.Context, count int) error {
	log.Printf("seeding %d specialists", count)

	for i := 0; i < count; i++ {
		reg := s.registration(identity.RoleSpecialist, fmt.Sprintf("especialista%03d@clinica.test", i))
		reg.Specialties = s.pickSpecialties()

		p, created, err := s.register(ctx, reg)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		if _, err := s.users.SetApproval(ctx, s.admin, p.ID, true); err != nil {
			return err
		}

		sess := identity.Session{UserID: p.ID, Role: identity.RoleSpecialist}
		if _, err := s.users.SaveAvailability(ctx, sess, s.weeklyHours(reg.Specialties)); err != nil {
			return fmt.Errorf("availability of %s: %w", reg.Email, err)
		}
	}

	log.Println("specialists seeded")
	return nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		reg := s.registration(identity.RolePatient, fmt.Sprintf("paciente%04d@clinica.test", i))
		reg.HealthInsurance = insurers[s.faker.Number(0, len(insurers)-1)]
		if _, _, err := s.register(ctx, reg); err != nil {
			return err
		}
		if (i+1)%50 == 0 {
			log.Printf("patients seeded: %d/%d", i+1, count)
		}
	}

	log.Println("patients seeded")
	return nil
}

func (s *seeder) pickSpecialties() []string {
	first := s.faker.Number(0, len(specialties)-1)
	out := []string{specialties[first]}
	if s.faker.Bool() {
		out = append(out, specialties[(first+1+s.faker.Number(0, len(specialties)-2))%len(specialties)])
	}
	return out
}

// weeklyHours gives each specialty two or three days with a block between 08:00 and 18:00.
func (s *seeder) weeklyHours(names []string) []availability.SpecialtyAvailability {
	out := make([]availability.SpecialtyAvailability, 0, len(names))
	for _, name := range names {
		spec := availability.SpecialtyAvailability{Name: name}
		start := s.faker.Number(0, len(weekdays)-1)
		days := s.faker.Number(2, 3)
		for d := 0; d < days; d++ {
			from := s.faker.Number(availability.EditMinHour, 13)
			to := from + s.faker.Number(2, 4)
			if to > availability.EditMaxHour {
				to = availability.EditMaxHour
			}
			spec.Rules = append(spec.Rules, availability.RawRule{
				Day:  weekdays[(start+d*2)%len(weekdays)],
				From: fmt.Sprintf("%02d:00", from),
				To:   fmt.Sprintf("%02d:30", to-1),
			})
		}
		out = append(out, spec)
	}
	return out
}
