package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/auth"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/metrics"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/stats"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/storage"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Users        *user.Service
	Auth         *auth.Service
	Stats        *stats.Service
	Images       *storage.ImageStore // nil disables uploads
	Health       *HealthHandler

	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler // defaults to the global prometheus registry

	Location      *time.Location
	CORSOrigins   []string
	AuthRateLimit int // requests per minute per IP on /auth, 0 disables
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.AuthRateLimit, time.Minute))
			}
			r.Post("/signup", signUpHandler(cfg.Users))
			r.Post("/signin", signInHandler(cfg.Auth))
			r.With(RequireSession).Post("/signout", signOutHandler(cfg.Auth))
			r.With(RequireSession).Get("/me", meHandler(cfg.Users))
		})

		r.Get("/especialidades", listSpecialtiesHandler(cfg.Users))
		r.Get("/especialistas", listSpecialistsHandler(cfg.Users))

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/especialistas/{id}/especialidades/{esp}/dias", offeredDaysHandler(cfg.Appointments))
			r.Get("/especialistas/{id}/especialidades/{esp}/horarios", offeredSlotsHandler(cfg.Appointments))

			r.Route("/me", func(r chi.Router) {
				r.With(RequireRole(identity.RoleSpecialist)).Get("/disponibilidad", getAvailabilityHandler(cfg.Users))
				r.With(RequireRole(identity.RoleSpecialist)).Put("/disponibilidad", saveAvailabilityHandler(cfg.Users))
				r.Post("/imagenes/{n}", uploadImageHandler(cfg.Users, cfg.Images))
			})

			// Appointment endpoints
			r.Route("/turnos", func(r chi.Router) {
				r.With(RequireRole(identity.RolePatient, identity.RoleAdmin)).Post("/", createAppointmentHandler(cfg.Appointments))
				r.Get("/", listAppointmentsHandler(cfg.Appointments, cfg.Location))
				r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/aceptar", acceptAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/rechazar", rejectAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/cancelar", cancelAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/finalizar", completeAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/resena", reviewAppointmentHandler(cfg.Appointments))
				r.Post("/{id}/encuesta", surveyAppointmentHandler(cfg.Appointments))
			})

			r.Get("/pacientes/{id}/historia-clinica", clinicalHistoryHandler(cfg.Appointments))

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(identity.RoleAdmin))

				r.Get("/usuarios", listUsersHandler(cfg.Users))
				r.Post("/usuarios/{id}/aprobacion", approvalHandler(cfg.Users))

				r.Get("/estadisticas/especialidades", bySpecialtyHandler(cfg.Stats))
				r.Get("/estadisticas/dias", rangedStatsHandler(cfg.Stats.ByDay, cfg.Location))
				r.Get("/estadisticas/especialistas", rangedStatsHandler(cfg.Stats.RequestedBySpecialist, cfg.Location))
				r.Get("/estadisticas/finalizados", rangedStatsHandler(cfg.Stats.CompletedBySpecialist, cfg.Location))
				r.Get("/estadisticas/ingresos", loginsHandler(cfg.Stats))
			})
		})
	})

	return r
}
