package main

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/api"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/auth"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/metrics"
	redisclient "github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/redis"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/stats"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/store"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

const memorySpecialists = 3

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }

// noStats backs the statistics endpoints, which the simulation never calls.
type noStats struct{}

func (noStats) CountBySpecialty(context.Context) ([]stats.Count, error) { return nil, nil }
func (noStats) CountByDay(context.Context, *time.Location, stats.Range) ([]stats.Count, error) {
	return nil, nil
}
func (noStats) CountBySpecialist(context.Context, stats.Range, []string) ([]stats.Count, error) {
	return nil, nil
}
func (noStats) Logins(context.Context, int) ([]stats.Login, error) { return nil, nil }

// startInMemory serves the full API from an in-memory store and an embedded redis, seeded
// with an administrator, a few specialists working every weekday morning and patients.
func startInMemory(patients int) (string, func(), error) {
	mr, err := miniredis.Run()
	if err != nil {
		return "", nil, fmt.Errorf("start miniredis: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mem := store.NewMemory()
	auth.InstallMemoryIndexes(mem)
	user.InstallMemoryIndexes(mem)
	appointment.InstallMemoryIndexes(mem)

	cfg := config.Config{
		Env:           "dev",
		JWTSecret:     "simulation-secret",
		SessionTTL:    time.Hour,
		LockTTL:       5 * time.Second,
		Location:      time.Local,
		LookaheadDays: availability.DefaultLookaheadDays,
	}
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	userRepo := user.NewStoreRepository(mem)
	availRepo := availability.NewStoreRepository(mem)
	authSvc := auth.NewService(mem, userRepo, redisclient.NewRevocationList(rdb), cfg, logger)
	userSvc := user.NewService(userRepo, authSvc, availRepo, logger)
	apptSvc := appointment.NewService(appointment.NewStoreRepository(mem), availRepo, userRepo,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL), cfg, logger, m)

	if err := seedMemory(context.Background(), userSvc, patients); err != nil {
		_ = rdb.Close()
		mr.Close()
		return "", nil, err
	}

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Appointments:   apptSvc,
		Users:          userSvc,
		Auth:           authSvc,
		Stats:          stats.NewService(noStats{}, userRepo, cfg.Location),
		Health:         api.NewHealthHandler(memoryPinger{}, rdb, cfg.Env, "simulation"),
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Location:       cfg.Location,
	}))
	log.Printf("in-memory api listening on %s", srv.URL)

	return srv.URL, func() {
		srv.Close()
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func seedMemory(ctx context.Context, users *user.Service, patients int) error {
	faker := gofakeit.New(0)
	admin := identity.Session{UserID: "simulation", Role: identity.RoleAdmin}

	reg := func(role identity.Role, email string) user.Registration {
		return user.Registration{
			Role:     role,
			Name:     faker.FirstName(),
			LastName: faker.LastName(),
			Age:      faker.Number(18, 90),
			DNI:      strconv.Itoa(faker.Number(10000000, 45000000)),
			Email:    email,
			Password: seedPassword,
		}
	}

	if _, err := users.Register(ctx, admin, reg(identity.RoleAdmin, "admin@clinica.test")); err != nil {
		return fmt.Errorf("register admin: %w", err)
	}

	var morning []availability.RawRule
	for _, day := range []string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"} {
		morning = append(morning, availability.RawRule{Day: day, From: "08:00", To: "12:00"})
	}

	for i := 0; i < memorySpecialists; i++ {
		r := reg(identity.RoleSpecialist, fmt.Sprintf("especialista%03d@clinica.test", i))
		r.Specialties = []string{"Clínica Médica"}
		p, err := users.Register(ctx, admin, r)
		if err != nil {
			return fmt.Errorf("register specialist: %w", err)
		}
		if _, err := users.SetApproval(ctx, admin, p.ID, true); err != nil {
			return err
		}
		sess := identity.Session{UserID: p.ID, Role: identity.RoleSpecialist}
		if _, err := users.SaveAvailability(ctx, sess, []availability.SpecialtyAvailability{{Name: "Clínica Médica", Rules: morning}}); err != nil {
			return fmt.Errorf("save availability: %w", err)
		}
	}

	for i := 0; i < patients; i++ {
		r := reg(identity.RolePatient, fmt.Sprintf("paciente%04d@clinica.test", i))
		r.HealthInsurance = "OSDE"
		if _, err := users.Register(ctx, admin, r); err != nil {
			return fmt.Errorf("register patient: %w", err)
		}
	}
	return nil
}
