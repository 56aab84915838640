package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medibook/scheduling/internal/booking"
	"github.com/medibook/scheduling/internal/metrics"
	"github.com/medibook/scheduling/internal/schedule"
)

type RouterConfig struct {
	Service   *booking.Service
	Schedules schedule.Repository
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	Metrics   *metrics.BookingMetrics
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(httprate.LimitByIP(120, time.Minute))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Booking engine
	r.Post("/appointments", reserveHandler(cfg.Service))
	r.Post("/appointments/validate", validateHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Confirm(req.Context(), id)
	}))
	r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Cancel(req.Context(), id)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Complete(req.Context(), id)
	}))

	// Doctor schedule configuration
	r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Service))
	r.Get("/doctors/{id}/template", getTemplateHandler(cfg.Schedules))
	r.Put("/doctors/{id}/template", putTemplateHandler(cfg.Schedules))
	r.Post("/doctors/{id}/blocked-dates", addBlockedDateHandler(cfg.Schedules))
	r.Delete("/doctors/{id}/blocked-dates/{blockID}", removeBlockedDateHandler(cfg.Schedules))

	return r
}
