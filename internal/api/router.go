package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/report"
)

type RouterConfig struct {
	Booking   *booking.Service
	Directory *booking.Directory
	Registry  *booking.Registry
	Calendar  *booking.Calendar
	Reports   *report.Generator
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Version   string
	JWTSecret string
	Log       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints stay outside the auth gate.
	r.Get("/health/live", livenessHandler)
	r.Get("/health/ready", healthHandler(cfg.PgPool, cfg.Redis, cfg.Version))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Booking))
			r.Get("/", listAppointmentsHandler(cfg.Booking))
			r.Get("/{id}", getAppointmentHandler(cfg.Booking))
			r.Patch("/{id}", patchAppointmentHandler(cfg.Booking))
			r.Delete("/{id}", cancelAppointmentHandler(cfg.Booking))
		})

		r.Route("/physicians", func(r chi.Router) {
			r.Post("/", createPhysicianHandler(cfg.Directory))
			r.Get("/", listPhysiciansHandler(cfg.Directory))
			r.Get("/{id}", getPhysicianHandler(cfg.Directory))
			r.Delete("/{id}", deactivatePhysicianHandler(cfg.Directory))
			r.Get("/{id}/slots", listSlotsHandler(cfg.Calendar))
			r.Get("/{id}/windows", listWindowsHandler(cfg.Registry))
			r.Post("/{id}/windows", defineWindowHandler(cfg.Registry))
			r.Delete("/{id}/windows/{windowID}", removeWindowHandler(cfg.Registry))
		})

		r.Route("/patients", func(r chi.Router) {
			r.Post("/", createPatientHandler(cfg.Directory))
			r.Get("/", listPatientsHandler(cfg.Directory))
			r.Get("/{id}", getPatientHandler(cfg.Directory))
			r.Delete("/{id}", deactivatePatientHandler(cfg.Directory))
		})

		r.Get("/reports/appointments", appointmentReportHandler(cfg.Reports))
	})

	return r
}
